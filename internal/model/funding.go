package model

// FundingRow is one row of the agency/higher-education funding extract.
type FundingRow struct {
	Row          int      `json:"row"`
	Source       string   `json:"source"`
	AgencyNumber string   `json:"agency_number"`
	AgencyName   string   `json:"agency_name"`
	BusinessName string   `json:"business_name"`
	TaxID        string   `json:"tax_id,omitempty"`
	TotalAmount  *float64 `json:"total_amount,omitempty"`
}

// Amount returns the total amount with null treated as zero.
func (f FundingRow) Amount() float64 {
	if f.TotalAmount == nil {
		return 0
	}
	return *f.TotalAmount
}

// MatchedFundingRow is a funding row with registry attributes attached.
type MatchedFundingRow struct {
	FundingRow
	CertificationType CertType    `json:"certification_type,omitempty"`
	MatchedTaxID      string      `json:"matched_tax_id,omitempty"`
	MatchedB2GID      string      `json:"matched_b2g_id,omitempty"`
	MatchedName       string      `json:"matched_name,omitempty"`
	MatchMethod       MatchMethod `json:"match_method"`
}

// FundingSummary rolls funding rows up per reporting agency.
type FundingSummary struct {
	Source          string  `json:"source"`
	AgencyNumber    string  `json:"agency_number"`
	AgencyName      string  `json:"agency_name"`
	TotalAmount     float64 `json:"total_amount"`
	CertifiedAmount float64 `json:"certified_amount"`
	RowCount        int     `json:"row_count"`
	MatchedCount    int     `json:"matched_count"`
}
