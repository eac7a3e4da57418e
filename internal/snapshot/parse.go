package snapshot

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/certspend/internal/model"
)

// nullTokens are cell values that mean "no value".
var nullTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
	"n/a":  true,
}

// IsNullCell reports whether a cell carries no value.
func IsNullCell(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// CleanID normalizes an identifier cell: it trims, maps null tokens to "" and
// drops the ".0" a spreadsheet appends to numeric identifiers.
func CleanID(s string) string {
	s = strings.TrimSpace(s)
	if IsNullCell(s) {
		return ""
	}
	if base, ok := strings.CutSuffix(s, ".0"); ok && isDigits(base) {
		return base
	}
	return s
}

// CleanText trims a text cell and maps null tokens to "".
func CleanText(s string) string {
	if IsNullCell(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

// ParseAmount parses a currency cell. It accepts "$", thousands separators
// and parenthesized negatives. Blank or unparsable cells yield nil.
func ParseAmount(s string) *float64 {
	s = strings.TrimSpace(s)
	if IsNullCell(s) || s == "-" {
		return nil
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	if neg {
		v = -v
	}
	return &v
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// sourceRow is the spreadsheet row number of data row i (header is row 1).
func sourceRow(i int) int {
	return i + 2
}

// ParseVendors converts a registry table into VendorRecords.
func ParseVendors(t *Table) ([]model.VendorRecord, error) {
	b, err := VendorSchema.Bind(t.Header)
	if err != nil {
		return nil, err
	}

	out := make([]model.VendorRecord, 0, len(t.Rows))
	for i, r := range t.Rows {
		out = append(out, model.VendorRecord{
			Row:                 sourceRow(i),
			BusinessName:        CleanText(b.Get(r, "business_name")),
			TaxID:               CleanID(b.Get(r, "tax_id")),
			B2GID:               CleanID(b.Get(r, "b2g_id")),
			CertificationType:   model.ParseCertType(CleanText(b.Get(r, "certification_type"))),
			CertificationStatus: CleanText(b.Get(r, "certification_status")),
		})
	}
	return out, nil
}

// ParseContracts converts a ledger table into ContractLineItems. Roles that
// are not a PRIME or SUB synonym are kept as UNKNOWN with the raw label.
func ParseContracts(t *Table) ([]model.ContractLineItem, error) {
	b, err := ContractSchema.Bind(t.Header)
	if err != nil {
		return nil, err
	}

	out := make([]model.ContractLineItem, 0, len(t.Rows))
	for i, r := range t.Rows {
		raw := CleanText(b.Get(r, "vendor_role"))
		role, _ := model.ParseVendorRole(raw)
		out = append(out, model.ContractLineItem{
			Row:          sourceRow(i),
			Agency:       CleanText(b.Get(r, "agency")),
			PrimeVendor:  CleanText(b.Get(r, "prime_vendor")),
			BusinessName: CleanText(b.Get(r, "business_name")),
			Role:         role,
			RawRole:      raw,
			TaxID:        CleanID(b.Get(r, "tax_id")),
			B2GID:        CleanID(b.Get(r, "b2g_id")),
			AmountPaid:   ParseAmount(b.Get(r, "amount_paid")),
			AuditPeriod:  CleanText(b.Get(r, "audit_period")),
		})
	}
	return out, nil
}

// ParseFunding converts a funding table into FundingRows.
func ParseFunding(t *Table) ([]model.FundingRow, error) {
	b, err := FundingSchema.Bind(t.Header)
	if err != nil {
		return nil, err
	}

	out := make([]model.FundingRow, 0, len(t.Rows))
	for i, r := range t.Rows {
		out = append(out, model.FundingRow{
			Row:          sourceRow(i),
			Source:       CleanText(b.Get(r, "source")),
			AgencyNumber: CleanID(b.Get(r, "agency_number")),
			AgencyName:   CleanText(b.Get(r, "agency_name")),
			BusinessName: CleanText(b.Get(r, "business_name")),
			TaxID:        CleanID(b.Get(r, "tax_id")),
			TotalAmount:  ParseAmount(b.Get(r, "total_amount")),
		})
	}
	return out, nil
}
