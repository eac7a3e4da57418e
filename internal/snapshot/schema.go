// Package snapshot turns raw tabular extracts into typed input rows. Headers
// are normalized and checked against the expected columns before any row is
// parsed.
package snapshot

import (
	"fmt"
	"strings"
)

// Snapshot names.
const (
	Vendors   = "vendors"
	Contracts = "contracts"
	Funding   = "funding"
)

// Column is an expected snapshot column. Aliases are accepted in place of
// Name; all names are compared after NormalizeHeader.
type Column struct {
	Name     string
	Aliases  []string
	Required bool
}

// Schema lists the columns of one snapshot.
type Schema struct {
	Name    string
	Columns []Column
}

// VendorSchema is the vendor registry layout.
var VendorSchema = Schema{
	Name: Vendors,
	Columns: []Column{
		{Name: "business_name", Aliases: []string{"vendor_name", "company_name"}, Required: true},
		{Name: "tax_id", Aliases: []string{"tin", "fein", "federal_tax_id"}, Required: true},
		{Name: "b2g_id", Aliases: []string{"b2gnow_vendor_number", "b2gnow_id", "b2g_number"}, Required: true},
		{Name: "certification_type", Aliases: []string{"cert_type", "certification"}, Required: true},
		{Name: "certification_status", Aliases: []string{"cert_status", "status"}, Required: true},
	},
}

// ContractSchema is the contract payment ledger layout.
var ContractSchema = Schema{
	Name: Contracts,
	Columns: []Column{
		{Name: "agency", Aliases: []string{"agency_name"}, Required: true},
		{Name: "prime_vendor", Aliases: []string{"prime", "prime_contractor"}, Required: true},
		{Name: "business_name", Aliases: []string{"vendor_name"}, Required: true},
		{Name: "vendor_role", Aliases: []string{"role"}, Required: true},
		{Name: "tax_id", Aliases: []string{"tin", "fein"}},
		{Name: "b2g_id", Aliases: []string{"b2gnow_vendor_number", "b2gnow_id"}},
		{Name: "amount_paid", Aliases: []string{"amount", "paid_amount"}, Required: true},
		{Name: "audit_period", Aliases: []string{"period", "fiscal_period"}},
	},
}

// FundingSchema is the agency and higher-education funding layout.
var FundingSchema = Schema{
	Name: Funding,
	Columns: []Column{
		{Name: "source", Aliases: []string{"source_type"}, Required: true},
		{Name: "agency_number", Aliases: []string{"agency_no", "agency_code"}, Required: true},
		{Name: "agency_name", Aliases: []string{"agency"}, Required: true},
		{Name: "business_name", Aliases: []string{"vendor_name"}, Required: true},
		{Name: "tax_id", Aliases: []string{"tin", "fein"}},
		{Name: "total_amount", Aliases: []string{"amount", "total"}, Required: true},
	},
}

// SchemaDriftError reports required columns missing from a snapshot header.
// It is structural: the run must stop before any derived table is built.
type SchemaDriftError struct {
	Snapshot string
	Missing  []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("snapshot: %s is missing required columns: %s", e.Snapshot, strings.Join(e.Missing, ", "))
}

// NormalizeHeader trims a header cell, replaces spaces with underscores and
// lowercases it.
func NormalizeHeader(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}

// Binding maps canonical column names to header positions.
type Binding struct {
	idx map[string]int
}

// Bind resolves the schema against a header row. Missing required columns
// yield a *SchemaDriftError; missing optional columns read as blank.
func (s Schema) Bind(header []string) (*Binding, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		n := NormalizeHeader(h)
		if _, dup := pos[n]; !dup {
			pos[n] = i
		}
	}

	b := &Binding{idx: make(map[string]int, len(s.Columns))}
	var missing []string
	for _, c := range s.Columns {
		found := false
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if i, ok := pos[name]; ok {
				b.idx[c.Name] = i
				found = true
				break
			}
		}
		if !found && c.Required {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaDriftError{Snapshot: s.Name, Missing: missing}
	}
	return b, nil
}

// Get returns the trimmed value of column name in record, or "" when the
// column is unbound or the record is short.
func (b *Binding) Get(record []string, name string) string {
	i, ok := b.idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// Index returns the header position bound to column name.
func (b *Binding) Index(name string) (int, bool) {
	i, ok := b.idx[name]
	return i, ok
}

// Has reports whether column name is present in the header.
func (b *Binding) Has(name string) bool {
	_, ok := b.idx[name]
	return ok
}
