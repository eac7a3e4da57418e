package model

// PrimeSummary is the user-facing row per (agency, prime). Orphan rows are
// synthesized for subcontractor lines whose prime could not be located.
type PrimeSummary struct {
	Agency                 string      `json:"agency"`
	PrimeVendor            string      `json:"prime_vendor"`
	PrimeCertificationType CertType    `json:"prime_certification_type,omitempty"`
	PrimeMatchMethod       MatchMethod `json:"prime_match_method"`
	PrimeQualifying        bool        `json:"prime_qualifying"`
	PrimeTotalAmount       float64     `json:"prime_total_amount"`
	CertifiedSubsTotal     float64     `json:"certified_subs_total"`
	UncertifiedSubsTotal   float64     `json:"uncertified_subs_total"`
	SubCount               int         `json:"sub_count"`
	CertifiedSpend         float64     `json:"certified_spend"`
	Orphan                 bool        `json:"orphan"`
}

// SubDetail is one row per subcontractor ledger line (after fan-out).
type SubDetail struct {
	Agency               string      `json:"agency"`
	PrimeVendor          string      `json:"prime_vendor"`
	PrimeLinkMethod      MatchMethod `json:"prime_link_method"`
	SubVendor            string      `json:"sub_vendor"`
	SubTaxID             string      `json:"sub_tax_id,omitempty"`
	SubCertificationType CertType    `json:"sub_certification_type,omitempty"`
	SubMatchMethod       MatchMethod `json:"sub_match_method"`
	SubQualifying        bool        `json:"sub_qualifying"`
	AmountPaid           *float64    `json:"amount_paid,omitempty"`
	AuditPeriod          string      `json:"audit_period,omitempty"`
	SourceRow            int         `json:"source_row"`
}

// DetailRow is the combined prime+sub table. Prime rows carry the prime
// totals and certified spend with the sub columns null; sub rows carry the
// sub columns with the certified spend null.
type DetailRow struct {
	Role                   VendorRole   `json:"role"`
	Agency                 string       `json:"agency"`
	PrimeVendor            string       `json:"prime_vendor"`
	PrimeCertificationType CertType     `json:"prime_certification_type,omitempty"`
	PrimeMatchMethod       MatchMethod  `json:"prime_match_method"`
	PrimeTotalAmount       *float64     `json:"prime_total_amount,omitempty"`
	CertifiedSpend         *float64     `json:"certified_spend,omitempty"`
	SubVendor              *string      `json:"sub_vendor,omitempty"`
	SubCertificationType   *CertType    `json:"sub_certification_type,omitempty"`
	SubMatchMethod         *MatchMethod `json:"sub_match_method,omitempty"`
	SubAmountPaid          *float64     `json:"sub_amount_paid,omitempty"`
}

// DataQuality counts the row-level anomalies of one run. None of them abort
// the run; they surface as unmatched or null values in the report.
type DataQuality struct {
	MissingKeys        map[string]int `json:"missing_keys"`
	Ambiguous          map[string]int `json:"ambiguous"`
	Unmatched          map[string]int `json:"unmatched"`
	ReferentialGaps    int            `json:"referential_gaps"`
	InactiveOnlyGroups int            `json:"inactive_only_groups"`
	UnkeyedVendors     int            `json:"unkeyed_vendors"`
	UnknownRoles       int            `json:"unknown_roles"`
	NullAmounts        int            `json:"null_amounts"`
}

// NewDataQuality returns a DataQuality with its counter maps allocated.
func NewDataQuality() DataQuality {
	return DataQuality{
		MissingKeys: make(map[string]int),
		Ambiguous:   make(map[string]int),
		Unmatched:   make(map[string]int),
	}
}

// Report holds every derived table of one pipeline run.
type Report struct {
	CertifiedVendors     []CertifiedVendor      `json:"certified_vendors"`
	MatchedContractLines []MatchedContractLine  `json:"matched_contract_lines"`
	MatchedFundingRows   []MatchedFundingRow    `json:"matched_funding_rows"`
	AgencyPrimeTotals    []AgencyPrimeTotal     `json:"agency_prime_totals"`
	SubTotals            []SubTotal             `json:"sub_totals"`
	CertifiedSpend       []CertifiedSpendRecord `json:"certified_spend"`
	SubLinks             []SubLink              `json:"-"`
	PrimeSummaries       []PrimeSummary         `json:"prime_summaries"`
	SubDetails           []SubDetail            `json:"sub_details"`
	Details              []DetailRow            `json:"details"`
	FundingSummaries     []FundingSummary       `json:"funding_summaries"`
	Quality              DataQuality            `json:"quality"`
}

// Counts returns the row count of every output table, keyed by table name.
func (r *Report) Counts() map[string]int {
	return map[string]int{
		"certified_vendor":      len(r.CertifiedVendors),
		"matched_contract_line": len(r.MatchedContractLines),
		"matched_funding_row":   len(r.MatchedFundingRows),
		"agency_prime_total":    len(r.AgencyPrimeTotals),
		"sub_total":             len(r.SubTotals),
		"certified_spend":       len(r.CertifiedSpend),
		"prime_summary":         len(r.PrimeSummaries),
		"sub_detail":            len(r.SubDetails),
		"prime_sub_detail":      len(r.Details),
		"funding_summary":       len(r.FundingSummaries),
	}
}
