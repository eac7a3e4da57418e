// Package rollup outer-joins the matched and aggregated tables into the
// report tables. No prime, subcontractor line or funding row is dropped.
package rollup

import (
	"strings"

	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/spend"
)

// Input is everything the rollup joins.
type Input struct {
	Totals  []model.AgencyPrimeTotal
	Subs    []model.SubTotal
	Orphans []model.SubTotal
	Spend   []model.CertifiedSpendRecord
	Links   []model.SubLink
	Funding []model.MatchedFundingRow
}

// Output holds the user-facing report tables.
type Output struct {
	PrimeSummaries   []model.PrimeSummary
	SubDetails       []model.SubDetail
	Details          []model.DetailRow
	FundingSummaries []model.FundingSummary
}

type summaryKey struct {
	prime  model.PrimeKey
	orphan bool
}

// Build produces the report tables. Prime summaries keep the order of the
// prime totals, followed by orphan rows for subcontracting whose prime could
// not be located.
func Build(calc *spend.Calculator, in Input) Output {
	var out Output

	subs := make(map[model.PrimeKey]model.SubTotal, len(in.Subs))
	for _, s := range in.Subs {
		subs[s.Key()] = s
	}
	spent := make(map[model.PrimeKey]float64, len(in.Spend))
	for _, s := range in.Spend {
		spent[model.PrimeKey{Agency: s.Agency, PrimeVendor: s.PrimeVendor}] = s.CertifiedSpend
	}

	for _, t := range in.Totals {
		s := subs[t.Key()]
		cs, ok := spent[t.Key()]
		if !ok {
			cs = calc.CertifiedSpend(t.CertificationType, t.PrimeTotalAmount, s)
		}
		out.PrimeSummaries = append(out.PrimeSummaries, model.PrimeSummary{
			Agency:                 t.Agency,
			PrimeVendor:            t.PrimeVendor,
			PrimeCertificationType: t.CertificationType,
			PrimeMatchMethod:       t.MatchMethod,
			PrimeQualifying:        calc.Qualifies(t.CertificationType),
			PrimeTotalAmount:       t.PrimeTotalAmount,
			CertifiedSubsTotal:     s.CertifiedSubsTotal,
			UncertifiedSubsTotal:   s.UncertifiedSubsTotal,
			SubCount:               s.SubCount,
			CertifiedSpend:         cs,
		})
	}
	for _, o := range in.Orphans {
		out.PrimeSummaries = append(out.PrimeSummaries, model.PrimeSummary{
			Agency:               o.Agency,
			PrimeVendor:          o.PrimeVendor,
			PrimeMatchMethod:     model.MatchUnmatched,
			CertifiedSubsTotal:   o.CertifiedSubsTotal,
			UncertifiedSubsTotal: o.UncertifiedSubsTotal,
			SubCount:             o.SubCount,
			CertifiedSpend:       calc.CertifiedSpend("", 0, o),
			Orphan:               true,
		})
	}

	bySummary := make(map[summaryKey][]model.SubDetail)
	for _, l := range in.Links {
		d := subDetail(calc, l)
		out.SubDetails = append(out.SubDetails, d)
		k := summaryKey{
			prime:  model.PrimeKey{Agency: d.Agency, PrimeVendor: d.PrimeVendor},
			orphan: l.Method == model.MatchUnmatched,
		}
		bySummary[k] = append(bySummary[k], d)
	}

	for _, ps := range out.PrimeSummaries {
		out.Details = append(out.Details, primeDetail(ps))
		k := summaryKey{prime: model.PrimeKey{Agency: ps.Agency, PrimeVendor: ps.PrimeVendor}, orphan: ps.Orphan}
		for _, d := range bySummary[k] {
			out.Details = append(out.Details, subDetailRow(ps, d))
		}
	}

	out.FundingSummaries = Funding(calc, in.Funding)
	return out
}

func subDetail(calc *spend.Calculator, l model.SubLink) model.SubDetail {
	agency, prime := l.Prime.Agency, l.Prime.PrimeVendor
	if l.Method == model.MatchUnmatched {
		agency = strings.TrimSpace(l.Line.Agency)
		prime = strings.TrimSpace(l.Line.PrimeVendor)
	}
	return model.SubDetail{
		Agency:               agency,
		PrimeVendor:          prime,
		PrimeLinkMethod:      l.Method,
		SubVendor:            strings.TrimSpace(l.Line.BusinessName),
		SubTaxID:             l.Line.MatchedTaxID,
		SubCertificationType: l.Line.CertificationType,
		SubMatchMethod:       l.Line.MatchMethod,
		SubQualifying:        calc.Qualifies(l.Line.CertificationType),
		AmountPaid:           l.Line.AmountPaid,
		AuditPeriod:          l.Line.AuditPeriod,
		SourceRow:            l.Line.Row,
	}
}

func primeDetail(ps model.PrimeSummary) model.DetailRow {
	total := ps.PrimeTotalAmount
	cs := ps.CertifiedSpend
	return model.DetailRow{
		Role:                   model.RolePrime,
		Agency:                 ps.Agency,
		PrimeVendor:            ps.PrimeVendor,
		PrimeCertificationType: ps.PrimeCertificationType,
		PrimeMatchMethod:       ps.PrimeMatchMethod,
		PrimeTotalAmount:       &total,
		CertifiedSpend:         &cs,
	}
}

func subDetailRow(ps model.PrimeSummary, d model.SubDetail) model.DetailRow {
	vendor := d.SubVendor
	cert := d.SubCertificationType
	method := d.SubMatchMethod
	row := model.DetailRow{
		Role:                   model.RoleSub,
		Agency:                 ps.Agency,
		PrimeVendor:            ps.PrimeVendor,
		PrimeCertificationType: ps.PrimeCertificationType,
		PrimeMatchMethod:       ps.PrimeMatchMethod,
		SubVendor:              &vendor,
		SubMatchMethod:         &method,
		SubAmountPaid:          d.AmountPaid,
	}
	if !cert.IsNull() {
		row.SubCertificationType = &cert
	}
	return row
}
