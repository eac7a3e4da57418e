package spend

import (
	"strings"

	"github.com/sells-group/certspend/internal/model"
)

type primeAcc struct {
	total   model.AgencyPrimeTotal
	rows    map[int]bool
	bestTax string
	anyTax  string
	rawTax  string
}

// AggregatePrimes sums the PRIME ledger rows per (agency, prime). The prime's
// certification is the best-ranked one among its rows and the match method
// the most confident. Null amounts count as zero. Output follows the first
// appearance of each prime.
func (c *Calculator) AggregatePrimes(lines []model.MatchedContractLine) []model.AgencyPrimeTotal {
	if c.opts.DedupeFanout {
		lines = c.dedupeLines(lines)
	}

	accs := make(map[model.PrimeKey]*primeAcc)
	var order []model.PrimeKey

	for _, l := range lines {
		if l.Role != model.RolePrime {
			continue
		}
		key := l.PrimeKey()
		acc, ok := accs[key]
		if !ok {
			acc = &primeAcc{
				total: model.AgencyPrimeTotal{
					Agency:      key.Agency,
					PrimeVendor: key.PrimeVendor,
					MatchMethod: model.MatchUnmatched,
				},
				rows: make(map[int]bool),
			}
			accs[key] = acc
			order = append(order, key)
		}

		acc.total.PrimeTotalAmount += l.Amount()
		acc.rows[l.Row] = true

		if c.better(l.CertificationType, acc.total.CertificationType) {
			acc.total.CertificationType = l.CertificationType
			acc.bestTax = l.MatchedTaxID
		}
		if acc.anyTax == "" {
			acc.anyTax = l.MatchedTaxID
		}
		if l.MatchMethod.Priority() < acc.total.MatchMethod.Priority() {
			acc.total.MatchMethod = l.MatchMethod
		}
		if acc.rawTax == "" {
			acc.rawTax = strings.TrimSpace(l.TaxID)
		}
	}

	out := make([]model.AgencyPrimeTotal, 0, len(order))
	for _, key := range order {
		acc := accs[key]
		acc.total.RowCount = len(acc.rows)
		switch {
		case acc.bestTax != "":
			acc.total.ResolvedTaxID = acc.bestTax
		case acc.anyTax != "":
			acc.total.ResolvedTaxID = acc.anyTax
		default:
			acc.total.ResolvedTaxID = acc.rawTax
		}
		out = append(out, acc.total)
	}
	return out
}

type subAcc struct {
	total model.SubTotal
}

// AggregateSubs sums resolved subcontractor links per prime, splitting them
// into certified (qualifying certification) and uncertified dollars.
// Unresolved links are left to the rollup.
func (c *Calculator) AggregateSubs(links []model.SubLink) []model.SubTotal {
	if c.opts.DedupeFanout {
		links = c.dedupeLinks(links)
	}

	accs := make(map[model.PrimeKey]*subAcc)
	var order []model.PrimeKey

	for _, link := range links {
		if link.Method == model.MatchUnmatched {
			continue
		}
		acc, ok := accs[link.Prime]
		if !ok {
			acc = &subAcc{total: model.SubTotal{Agency: link.Prime.Agency, PrimeVendor: link.Prime.PrimeVendor}}
			accs[link.Prime] = acc
			order = append(order, link.Prime)
		}
		c.addSub(&acc.total, link.Line)
	}

	out := make([]model.SubTotal, 0, len(order))
	for _, key := range order {
		out = append(out, accs[key].total)
	}
	return out
}

// OrphanSubs sums the unresolved subcontractor links per (agency, prime named
// on the line). These primes have no ledger row of their own.
func (c *Calculator) OrphanSubs(links []model.SubLink) []model.SubTotal {
	if c.opts.DedupeFanout {
		links = c.dedupeLinks(links)
	}

	accs := make(map[model.PrimeKey]*subAcc)
	var order []model.PrimeKey
	for _, link := range links {
		if link.Method != model.MatchUnmatched {
			continue
		}
		key := model.PrimeKey{
			Agency:      strings.TrimSpace(link.Line.Agency),
			PrimeVendor: strings.TrimSpace(link.Line.PrimeVendor),
		}
		acc, ok := accs[key]
		if !ok {
			acc = &subAcc{total: model.SubTotal{Agency: key.Agency, PrimeVendor: key.PrimeVendor}}
			accs[key] = acc
			order = append(order, key)
		}
		c.addSub(&acc.total, link.Line)
	}

	out := make([]model.SubTotal, 0, len(order))
	for _, key := range order {
		out = append(out, accs[key].total)
	}
	return out
}

func (c *Calculator) addSub(t *model.SubTotal, l model.MatchedContractLine) {
	if c.hierarchy.Qualifies(l.CertificationType) {
		t.CertifiedSubsTotal += l.Amount()
	} else {
		t.UncertifiedSubsTotal += l.Amount()
	}
	t.SubCount++
}

// better reports whether a outranks b. Null never outranks anything.
func (c *Calculator) better(a, b model.CertType) bool {
	if a.IsNull() {
		return false
	}
	if b.IsNull() {
		return true
	}
	return c.hierarchy.Rank(a) < c.hierarchy.Rank(b)
}

// dedupeLines keeps one line per source row: the one with the best-ranked
// certification, earliest on ties.
func (c *Calculator) dedupeLines(lines []model.MatchedContractLine) []model.MatchedContractLine {
	best := make(map[int]int, len(lines))
	var order []int
	for i, l := range lines {
		j, ok := best[l.Row]
		if !ok {
			best[l.Row] = i
			order = append(order, l.Row)
			continue
		}
		if c.better(l.CertificationType, lines[j].CertificationType) {
			best[l.Row] = i
		}
	}

	out := make([]model.MatchedContractLine, 0, len(order))
	for _, row := range order {
		out = append(out, lines[best[row]])
	}
	return out
}

// dedupeLinks keeps one link per source row, preferring the best-ranked
// certification and then the earliest link.
func (c *Calculator) dedupeLinks(links []model.SubLink) []model.SubLink {
	best := make(map[int]int, len(links))
	var order []int
	for i, l := range links {
		j, ok := best[l.Line.Row]
		if !ok {
			best[l.Line.Row] = i
			order = append(order, l.Line.Row)
			continue
		}
		if c.better(l.Line.CertificationType, links[j].Line.CertificationType) {
			best[l.Line.Row] = i
		}
	}

	out := make([]model.SubLink, 0, len(order))
	for _, row := range order {
		out = append(out, links[best[row]])
	}
	return out
}
