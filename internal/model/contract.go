package model

import "strings"

// VendorRole distinguishes prime contractors from subcontractors in the ledger.
type VendorRole string

const (
	RolePrime   VendorRole = "PRIME"
	RoleSub     VendorRole = "SUB"
	RoleUnknown VendorRole = "UNKNOWN"
)

// ParseVendorRole maps ledger role labels, including the CONTRACTOR and
// SUBCONTRACTOR synonyms, onto a VendorRole. Unrecognized labels return
// RoleUnknown and false.
func ParseVendorRole(s string) (VendorRole, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRIME", "CONTRACTOR", "PRIME CONTRACTOR", "PRIME_CONTRACTOR":
		return RolePrime, true
	case "SUB", "SUBCONTRACTOR", "SUB CONTRACTOR", "SUB_CONTRACTOR":
		return RoleSub, true
	default:
		return RoleUnknown, false
	}
}

// MatchMethod names the waterfall strategy that produced a match.
type MatchMethod string

const (
	MatchTaxID     MatchMethod = "tax_id"
	MatchB2GID     MatchMethod = "b2g_id"
	MatchName      MatchMethod = "name"
	MatchUnmatched MatchMethod = "unmatched"

	// Sub-to-prime link methods. The agency is a co-key in both.
	MatchPrimeTaxID MatchMethod = "prime_tax_id"
	MatchPrimeName  MatchMethod = "prime_name"
)

// Priority orders match methods from most to least confident. Lower is better;
// unmatched and unknown methods sort last.
func (m MatchMethod) Priority() int {
	switch m {
	case MatchTaxID, MatchPrimeTaxID:
		return 1
	case MatchB2GID:
		return 2
	case MatchName, MatchPrimeName:
		return 3
	default:
		return 99
	}
}

// ContractLineItem is one raw row of the contract payment ledger.
type ContractLineItem struct {
	Row          int        `json:"row"`
	Agency       string     `json:"agency"`
	PrimeVendor  string     `json:"prime_vendor"`
	BusinessName string     `json:"business_name"`
	Role         VendorRole `json:"vendor_role"`
	RawRole      string     `json:"raw_role,omitempty"`
	TaxID        string     `json:"tax_id,omitempty"`
	B2GID        string     `json:"b2g_id,omitempty"`
	AmountPaid   *float64   `json:"amount_paid,omitempty"`
	AuditPeriod  string     `json:"audit_period,omitempty"`
}

// Amount returns the paid amount with null treated as zero.
func (c ContractLineItem) Amount() float64 {
	if c.AmountPaid == nil {
		return 0
	}
	return *c.AmountPaid
}

// PrimeKey returns the (agency, prime) grouping key of the line. PRIME rows
// with a blank prime_vendor fall back to their own business name.
func (c ContractLineItem) PrimeKey() PrimeKey {
	prime := strings.TrimSpace(c.PrimeVendor)
	if prime == "" && c.Role == RolePrime {
		prime = strings.TrimSpace(c.BusinessName)
	}
	return PrimeKey{Agency: strings.TrimSpace(c.Agency), PrimeVendor: prime}
}

// MatchedContractLine is a ledger row with the registry attributes attached by
// the contract matcher. When a strategy hits several registry identities the
// ledger row appears once per hit.
type MatchedContractLine struct {
	ContractLineItem
	CertificationType CertType    `json:"certification_type,omitempty"`
	MatchedTaxID      string      `json:"matched_tax_id,omitempty"`
	MatchedB2GID      string      `json:"matched_b2g_id,omitempty"`
	MatchedName       string      `json:"matched_name,omitempty"`
	MatchMethod       MatchMethod `json:"match_method"`
}

// PrimeKey identifies a prime contractor within an agency.
type PrimeKey struct {
	Agency      string `json:"agency"`
	PrimeVendor string `json:"prime_vendor"`
}

// SubLink attaches a SUB ledger line to the prime it was resolved to. Prime is
// the zero key and Method is MatchUnmatched when no prime could be located.
type SubLink struct {
	Line   MatchedContractLine `json:"line"`
	Prime  PrimeKey            `json:"prime"`
	Method MatchMethod         `json:"method"`
}
