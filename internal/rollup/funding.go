package rollup

import (
	"strings"

	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/spend"
)

type fundingKey struct {
	source, number, name string
}

type fundingAcc struct {
	sum     model.FundingSummary
	rows    map[int]bool
	matched map[int]bool
	// certified remembers the source rows already credited when fan-out is
	// deduplicated.
	certified map[int]bool
}

// Funding rolls matched funding rows up per (source, agency_number,
// agency_name). Certified amount sums rows whose matched certification
// qualifies. With fan-out deduplication each source row counts once.
func Funding(calc *spend.Calculator, rows []model.MatchedFundingRow) []model.FundingSummary {
	dedupe := calc.Options().DedupeFanout

	accs := make(map[fundingKey]*fundingAcc)
	var order []fundingKey
	for _, r := range rows {
		k := fundingKey{
			source: strings.TrimSpace(r.Source),
			number: strings.TrimSpace(r.AgencyNumber),
			name:   strings.TrimSpace(r.AgencyName),
		}
		acc, ok := accs[k]
		if !ok {
			acc = &fundingAcc{
				sum:       model.FundingSummary{Source: k.source, AgencyNumber: k.number, AgencyName: k.name},
				rows:      make(map[int]bool),
				matched:   make(map[int]bool),
				certified: make(map[int]bool),
			}
			accs[k] = acc
			order = append(order, k)
		}

		seen := acc.rows[r.Row]
		acc.rows[r.Row] = true
		if r.MatchMethod != model.MatchUnmatched {
			acc.matched[r.Row] = true
		}

		if !dedupe || !seen {
			acc.sum.TotalAmount += r.Amount()
		}
		if calc.Qualifies(r.CertificationType) && (!dedupe || !acc.certified[r.Row]) {
			acc.sum.CertifiedAmount += r.Amount()
			acc.certified[r.Row] = true
		}
	}

	out := make([]model.FundingSummary, 0, len(order))
	for _, k := range order {
		acc := accs[k]
		acc.sum.RowCount = len(acc.rows)
		acc.sum.MatchedCount = len(acc.matched)
		out = append(out, acc.sum)
	}
	return out
}
