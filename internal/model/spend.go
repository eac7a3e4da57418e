package model

// AgencyPrimeTotal aggregates a prime's own direct payments within an agency.
type AgencyPrimeTotal struct {
	Agency            string      `json:"agency"`
	PrimeVendor       string      `json:"prime_vendor"`
	PrimeTotalAmount  float64     `json:"prime_total_amount"`
	CertificationType CertType    `json:"certification_type,omitempty"`
	MatchMethod       MatchMethod `json:"match_method"`
	ResolvedTaxID     string      `json:"resolved_tax_id,omitempty"`
	RowCount          int         `json:"row_count"`
}

// Key returns the (agency, prime) key of the total.
func (a AgencyPrimeTotal) Key() PrimeKey {
	return PrimeKey{Agency: a.Agency, PrimeVendor: a.PrimeVendor}
}

// SubTotal aggregates the subcontractor payments resolved to one prime.
type SubTotal struct {
	Agency               string  `json:"agency"`
	PrimeVendor          string  `json:"prime_vendor"`
	CertifiedSubsTotal   float64 `json:"certified_subs_total"`
	UncertifiedSubsTotal float64 `json:"uncertified_subs_total"`
	SubCount             int     `json:"sub_count"`
}

// Key returns the (agency, prime) key of the total.
func (s SubTotal) Key() PrimeKey {
	return PrimeKey{Agency: s.Agency, PrimeVendor: s.PrimeVendor}
}

// CertifiedSpendRecord is the dollar amount creditable toward participation
// goals for one prime within an agency.
type CertifiedSpendRecord struct {
	Agency         string  `json:"agency"`
	PrimeVendor    string  `json:"prime_vendor"`
	CertifiedSpend float64 `json:"certified_spend"`
}
