package model

import "strings"

// CertType is a certification designation from the vendor registry
// (e.g. "MBE", "WBE"). Values are stored upper-cased and trimmed; the empty
// value means no certification.
type CertType string

const (
	CertMBE   CertType = "MBE"
	CertMWBE  CertType = "MWBE"
	CertWBE   CertType = "WBE"
	CertCBE   CertType = "CBE"
	CertSEDBE CertType = "SEDBE"
	CertVOB   CertType = "VOB"
)

// ParseCertType normalizes a raw certification label.
func ParseCertType(s string) CertType {
	return CertType(strings.ToUpper(strings.TrimSpace(s)))
}

// IsNull reports whether no certification is attached.
func (c CertType) IsNull() bool {
	return c == ""
}

// StatusActive is the only certification status that counts.
const StatusActive = "Active"

// VendorRecord is one row of the certification/vendor registry snapshot.
type VendorRecord struct {
	Row                 int      `json:"row"`
	BusinessName        string   `json:"business_name"`
	TaxID               string   `json:"tax_id,omitempty"`
	B2GID               string   `json:"b2g_id,omitempty"`
	CertificationType   CertType `json:"certification_type,omitempty"`
	CertificationStatus string   `json:"certification_status"`
}

// IsActive reports whether the record carries an active certification.
func (v VendorRecord) IsActive() bool {
	return strings.EqualFold(strings.TrimSpace(v.CertificationStatus), StatusActive)
}

// CertifiedVendor is the single authoritative certification chosen for a
// canonical identity. Only identities whose winning candidate is active
// produce a CertifiedVendor.
type CertifiedVendor struct {
	TaxID               string   `json:"tax_id,omitempty"`
	CanonicalName       string   `json:"canonical_name,omitempty"`
	BusinessName        string   `json:"business_name"`
	B2GID               string   `json:"b2g_id,omitempty"`
	CertificationType   CertType `json:"certification_type"`
	CertificationStatus string   `json:"certification_status"`
	Rank                int      `json:"rank"`
	Candidates          int      `json:"candidates"`
}
