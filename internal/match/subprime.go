package match

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/resolve"
	"github.com/sells-group/certspend/internal/waterfall"
)

// SubPrimeResult holds the sub-to-prime links and pass statistics.
type SubPrimeResult struct {
	Links     []model.SubLink
	Passes    []waterfall.PassStats
	Unmatched int
}

type subTarget struct {
	canonAgency string
	canonPrime  string
	primeTaxIDs []string
}

type primeCandidate struct {
	canonAgency string
	canonPrime  string
	taxID       string
}

// Both strategies carry the canonical agency as a co-key so identically named
// primes under different agencies never share subcontractors.
func subPrimeStrategies() []waterfall.Strategy[subTarget, primeCandidate] {
	return []waterfall.Strategy[subTarget, primeCandidate]{
		{
			Method: waterfall.MethodPrimeTaxID,
			TargetKeys: func(t subTarget) []string {
				keys := make([]string, 0, len(t.primeTaxIDs))
				for _, id := range t.primeTaxIDs {
					keys = append(keys, coKey(id, t.canonAgency))
				}
				return keys
			},
			CandidateKeys: func(c primeCandidate) []string { return one(coKey(c.taxID, c.canonAgency)) },
		},
		{
			Method:        waterfall.MethodPrimeName,
			TargetKeys:    func(t subTarget) []string { return one(coKey(t.canonPrime, t.canonAgency)) },
			CandidateKeys: func(c primeCandidate) []string { return one(coKey(c.canonPrime, c.canonAgency)) },
		},
	}
}

// TaxIndex maps a canonical vendor name to every tax_id the registry lists
// under it. It resolves the tax_id of a prime named on a subcontractor line.
type TaxIndex map[string][]string

// NewTaxIndex builds a TaxIndex from the full registry, active or not.
func NewTaxIndex(records []model.VendorRecord) TaxIndex {
	idx := make(TaxIndex)
	seen := make(map[string]bool)
	for _, r := range records {
		name := resolve.Canonicalize(r.BusinessName)
		id := cleanID(r.TaxID)
		if name == "" || id == "" {
			continue
		}
		k := coKey(name, id)
		if seen[k] {
			continue
		}
		seen[k] = true
		idx[name] = append(idx[name], id)
	}
	return idx
}

// SubsToPrimes resolves every SUB line to the prime total it was paid
// through. Lines whose prime cannot be located are kept with method
// "unmatched" and a zero prime key.
func (m *Matcher) SubsToPrimes(ctx context.Context, subs []model.MatchedContractLine, primes []model.AgencyPrimeTotal, taxes TaxIndex) (*SubPrimeResult, error) {
	log := zap.L().With(zap.String("component", "match.subprime"))

	strategies, err := waterfall.Select(subPrimeStrategies(), m.plan.SubPrime)
	if err != nil {
		return nil, eris.Wrap(err, "match: sub_prime plan")
	}

	targets := make([]subTarget, len(subs))
	for i, s := range subs {
		canonPrime := resolve.Canonicalize(s.PrimeVendor)
		targets[i] = subTarget{
			canonAgency: resolve.Canonicalize(s.Agency),
			canonPrime:  canonPrime,
			primeTaxIDs: taxes[canonPrime],
		}
	}

	candidates := make([]primeCandidate, len(primes))
	for i, p := range primes {
		candidates[i] = primeCandidate{
			canonAgency: resolve.Canonicalize(p.Agency),
			canonPrime:  resolve.Canonicalize(p.PrimeVendor),
			taxID:       cleanID(p.ResolvedTaxID),
		}
	}

	res, err := waterfall.Run(ctx, targets, candidates, strategies)
	if err != nil {
		return nil, eris.Wrap(err, "match: sub_prime waterfall")
	}

	out := &SubPrimeResult{
		Links:     make([]model.SubLink, 0, len(subs)),
		Passes:    res.Passes,
		Unmatched: res.Unmatched,
	}
	for i, s := range subs {
		mt := res.Matches[i]
		if !mt.Matched() {
			out.Links = append(out.Links, model.SubLink{Line: s, Method: model.MatchUnmatched})
			continue
		}
		for _, h := range mt.Hits {
			out.Links = append(out.Links, model.SubLink{
				Line:   s,
				Prime:  primes[h].Key(),
				Method: model.MatchMethod(mt.Method),
			})
		}
	}

	if out.Unmatched > 0 {
		log.Warn("subcontractor lines without a resolvable prime",
			zap.Int("unmatched", out.Unmatched),
			zap.Int("subs", len(subs)),
		)
	}

	return out, nil
}
