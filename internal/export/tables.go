// Package export projects a report onto flat output tables and writes them
// as an XLSX workbook.
package export

import (
	"sort"

	"github.com/sells-group/certspend/internal/model"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindText Kind = iota
	KindFloat
	KindInt
	KindBool
)

// Column is one output column.
type Column struct {
	Name string
	Kind Kind
}

// Table is one output table. Row values are string, float64, int, bool or
// nil for null, in column order.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func text(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Kind: KindText}
	}
	return cols
}

func col(name string, kind Kind) Column {
	return Column{Name: name, Kind: kind}
}

func cols(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// str maps "" to null.
func str(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func fptr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func sptr[T ~string](v *T) any {
	if v == nil {
		return nil
	}
	return str(string(*v))
}

// Table names, matching model.Report.Counts keys.
const (
	TableCertifiedVendor     = "certified_vendor"
	TableMatchedContractLine = "matched_contract_line"
	TableMatchedFundingRow   = "matched_funding_row"
	TableAgencyPrimeTotal    = "agency_prime_total"
	TableSubTotal            = "sub_total"
	TableCertifiedSpend      = "certified_spend"
	TablePrimeSummary        = "prime_summary"
	TableSubDetail           = "sub_detail"
	TablePrimeSubDetail      = "prime_sub_detail"
	TableFundingSummary      = "funding_summary"
	TableDataQuality         = "data_quality"
)

// Tables projects every report table, in a fixed order.
func Tables(r *model.Report) []Table {
	return []Table{
		PrimeSummary(r),
		PrimeSubDetail(r),
		SubDetail(r),
		CertifiedSpend(r),
		AgencyPrimeTotal(r),
		SubTotal(r),
		FundingSummary(r),
		CertifiedVendor(r),
		MatchedContractLine(r),
		MatchedFundingRow(r),
		DataQuality(r),
	}
}

// CertifiedVendor projects the resolved registry.
func CertifiedVendor(r *model.Report) Table {
	t := Table{
		Name: TableCertifiedVendor,
		Columns: cols(
			text("tax_id", "canonical_name", "business_name", "b2g_id", "certification_type", "certification_status"),
			[]Column{col("rank", KindInt), col("candidates", KindInt)},
		),
	}
	for _, v := range r.CertifiedVendors {
		t.Rows = append(t.Rows, []any{
			str(v.TaxID), str(v.CanonicalName), str(v.BusinessName), str(v.B2GID),
			str(string(v.CertificationType)), str(v.CertificationStatus), v.Rank, v.Candidates,
		})
	}
	return t
}

// MatchedContractLine projects the matched ledger.
func MatchedContractLine(r *model.Report) Table {
	t := Table{
		Name: TableMatchedContractLine,
		Columns: cols(
			[]Column{col("source_row", KindInt)},
			text("agency", "prime_vendor", "business_name", "vendor_role", "raw_role", "tax_id", "b2g_id"),
			[]Column{col("amount_paid", KindFloat)},
			text("audit_period", "certification_type", "matched_tax_id", "matched_b2g_id", "matched_name", "match_method"),
		),
	}
	for _, l := range r.MatchedContractLines {
		t.Rows = append(t.Rows, []any{
			l.Row, str(l.Agency), str(l.PrimeVendor), str(l.BusinessName), str(string(l.Role)), str(l.RawRole),
			str(l.TaxID), str(l.B2GID), fptr(l.AmountPaid), str(l.AuditPeriod), str(string(l.CertificationType)),
			str(l.MatchedTaxID), str(l.MatchedB2GID), str(l.MatchedName), str(string(l.MatchMethod)),
		})
	}
	return t
}

// MatchedFundingRow projects the matched funding extract.
func MatchedFundingRow(r *model.Report) Table {
	t := Table{
		Name: TableMatchedFundingRow,
		Columns: cols(
			[]Column{col("source_row", KindInt)},
			text("source", "agency_number", "agency_name", "business_name", "tax_id"),
			[]Column{col("total_amount", KindFloat)},
			text("certification_type", "matched_tax_id", "matched_b2g_id", "matched_name", "match_method"),
		),
	}
	for _, f := range r.MatchedFundingRows {
		t.Rows = append(t.Rows, []any{
			f.Row, str(f.Source), str(f.AgencyNumber), str(f.AgencyName), str(f.BusinessName), str(f.TaxID),
			fptr(f.TotalAmount), str(string(f.CertificationType)), str(f.MatchedTaxID), str(f.MatchedB2GID),
			str(f.MatchedName), str(string(f.MatchMethod)),
		})
	}
	return t
}

// AgencyPrimeTotal projects the prime aggregates.
func AgencyPrimeTotal(r *model.Report) Table {
	t := Table{
		Name: TableAgencyPrimeTotal,
		Columns: cols(
			text("agency", "prime_vendor"),
			[]Column{col("prime_total_amount", KindFloat)},
			text("certification_type", "match_method", "resolved_tax_id"),
			[]Column{col("row_count", KindInt)},
		),
	}
	for _, a := range r.AgencyPrimeTotals {
		t.Rows = append(t.Rows, []any{
			str(a.Agency), str(a.PrimeVendor), a.PrimeTotalAmount, str(string(a.CertificationType)),
			str(string(a.MatchMethod)), str(a.ResolvedTaxID), a.RowCount,
		})
	}
	return t
}

// SubTotal projects the subcontractor aggregates.
func SubTotal(r *model.Report) Table {
	t := Table{
		Name: TableSubTotal,
		Columns: cols(
			text("agency", "prime_vendor"),
			[]Column{col("certified_subs_total", KindFloat), col("uncertified_subs_total", KindFloat), col("sub_count", KindInt)},
		),
	}
	for _, s := range r.SubTotals {
		t.Rows = append(t.Rows, []any{str(s.Agency), str(s.PrimeVendor), s.CertifiedSubsTotal, s.UncertifiedSubsTotal, s.SubCount})
	}
	return t
}

// CertifiedSpend projects the per-prime certified spend.
func CertifiedSpend(r *model.Report) Table {
	t := Table{
		Name:    TableCertifiedSpend,
		Columns: cols(text("agency", "prime_vendor"), []Column{col("certified_spend", KindFloat)}),
	}
	for _, c := range r.CertifiedSpend {
		t.Rows = append(t.Rows, []any{str(c.Agency), str(c.PrimeVendor), c.CertifiedSpend})
	}
	return t
}

// PrimeSummary projects one row per (agency, prime), orphans included.
func PrimeSummary(r *model.Report) Table {
	t := Table{
		Name: TablePrimeSummary,
		Columns: cols(
			text("agency", "prime_vendor", "prime_certification_type", "prime_match_method"),
			[]Column{
				col("prime_qualifying", KindBool),
				col("prime_total_amount", KindFloat),
				col("certified_subs_total", KindFloat),
				col("uncertified_subs_total", KindFloat),
				col("sub_count", KindInt),
				col("certified_spend", KindFloat),
				col("orphan", KindBool),
			},
		),
	}
	for _, p := range r.PrimeSummaries {
		t.Rows = append(t.Rows, []any{
			str(p.Agency), str(p.PrimeVendor), str(string(p.PrimeCertificationType)), str(string(p.PrimeMatchMethod)),
			p.PrimeQualifying, p.PrimeTotalAmount, p.CertifiedSubsTotal, p.UncertifiedSubsTotal, p.SubCount,
			p.CertifiedSpend, p.Orphan,
		})
	}
	return t
}

// SubDetail projects one row per subcontractor link.
func SubDetail(r *model.Report) Table {
	t := Table{
		Name: TableSubDetail,
		Columns: cols(
			text("agency", "prime_vendor", "prime_link_method", "sub_vendor", "sub_tax_id", "sub_certification_type", "sub_match_method"),
			[]Column{col("sub_qualifying", KindBool), col("amount_paid", KindFloat)},
			text("audit_period"),
			[]Column{col("source_row", KindInt)},
		),
	}
	for _, s := range r.SubDetails {
		t.Rows = append(t.Rows, []any{
			str(s.Agency), str(s.PrimeVendor), str(string(s.PrimeLinkMethod)), str(s.SubVendor), str(s.SubTaxID),
			str(string(s.SubCertificationType)), str(string(s.SubMatchMethod)), s.SubQualifying, fptr(s.AmountPaid),
			str(s.AuditPeriod), s.SourceRow,
		})
	}
	return t
}

// PrimeSubDetail projects the combined prime and sub table with its role
// discriminator.
func PrimeSubDetail(r *model.Report) Table {
	t := Table{
		Name: TablePrimeSubDetail,
		Columns: cols(
			text("role", "agency", "prime_vendor", "prime_certification_type", "prime_match_method"),
			[]Column{col("prime_total_amount", KindFloat), col("certified_spend", KindFloat)},
			text("sub_vendor", "sub_certification_type", "sub_match_method"),
			[]Column{col("sub_amount_paid", KindFloat)},
		),
	}
	for _, d := range r.Details {
		t.Rows = append(t.Rows, []any{
			str(string(d.Role)), str(d.Agency), str(d.PrimeVendor), str(string(d.PrimeCertificationType)),
			str(string(d.PrimeMatchMethod)), fptr(d.PrimeTotalAmount), fptr(d.CertifiedSpend),
			sptr(d.SubVendor), sptr(d.SubCertificationType), sptr(d.SubMatchMethod), fptr(d.SubAmountPaid),
		})
	}
	return t
}

// FundingSummary projects the per-agency funding rollup.
func FundingSummary(r *model.Report) Table {
	t := Table{
		Name: TableFundingSummary,
		Columns: cols(
			text("source", "agency_number", "agency_name"),
			[]Column{
				col("total_amount", KindFloat),
				col("certified_amount", KindFloat),
				col("row_count", KindInt),
				col("matched_count", KindInt),
			},
		),
	}
	for _, f := range r.FundingSummaries {
		t.Rows = append(t.Rows, []any{
			str(f.Source), str(f.AgencyNumber), str(f.AgencyName), f.TotalAmount, f.CertifiedAmount, f.RowCount, f.MatchedCount,
		})
	}
	return t
}

// DataQuality flattens the quality counters into (metric, key, value) rows
// with keys sorted.
func DataQuality(r *model.Report) Table {
	q := r.Quality
	t := Table{
		Name:    TableDataQuality,
		Columns: cols(text("metric", "key"), []Column{col("value", KindInt)}),
	}
	for _, m := range []struct {
		name   string
		counts map[string]int
	}{
		{"missing_keys", q.MissingKeys},
		{"ambiguous", q.Ambiguous},
		{"unmatched", q.Unmatched},
	} {
		keys := make([]string, 0, len(m.counts))
		for k := range m.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.Rows = append(t.Rows, []any{m.name, k, m.counts[k]})
		}
	}
	for _, s := range []struct {
		name  string
		value int
	}{
		{"referential_gaps", q.ReferentialGaps},
		{"inactive_only_groups", q.InactiveOnlyGroups},
		{"unkeyed_vendors", q.UnkeyedVendors},
		{"unknown_roles", q.UnknownRoles},
		{"null_amounts", q.NullAmounts},
	} {
		t.Rows = append(t.Rows, []any{s.name, nil, s.value})
	}
	return t
}
