package match

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/resolve"
	"github.com/sells-group/certspend/internal/waterfall"
)

// ContractResult holds the matched ledger and pass statistics.
type ContractResult struct {
	Lines     []model.MatchedContractLine
	Passes    []waterfall.PassStats
	Unmatched int
}

type contractTarget struct {
	line  model.ContractLineItem
	canon string
}

func contractStrategies() []waterfall.Strategy[contractTarget, model.CertifiedVendor] {
	return []waterfall.Strategy[contractTarget, model.CertifiedVendor]{
		{
			Method:        waterfall.MethodTaxID,
			TargetKeys:    func(t contractTarget) []string { return one(cleanID(t.line.TaxID)) },
			CandidateKeys: func(v model.CertifiedVendor) []string { return one(cleanID(v.TaxID)) },
		},
		{
			Method:        waterfall.MethodB2GID,
			TargetKeys:    func(t contractTarget) []string { return one(cleanID(t.line.B2GID)) },
			CandidateKeys: func(v model.CertifiedVendor) []string { return one(cleanID(v.B2GID)) },
		},
		{
			Method:        waterfall.MethodName,
			TargetKeys:    func(t contractTarget) []string { return one(t.canon) },
			CandidateKeys: func(v model.CertifiedVendor) []string { return one(v.CanonicalName) },
		},
	}
}

// Contracts attaches certifications to every ledger line. Every input line
// appears in the output at least once: unmatched lines once with method
// "unmatched", fanned-out lines once per hit.
func (m *Matcher) Contracts(ctx context.Context, lines []model.ContractLineItem, vendors []model.CertifiedVendor) (*ContractResult, error) {
	log := zap.L().With(zap.String("component", "match.contract"))

	strategies, err := waterfall.Select(contractStrategies(), m.plan.Contract)
	if err != nil {
		return nil, eris.Wrap(err, "match: contract plan")
	}

	targets := make([]contractTarget, len(lines))
	for i, l := range lines {
		targets[i] = contractTarget{line: l, canon: resolve.Canonicalize(l.BusinessName)}
	}

	res, err := waterfall.Run(ctx, targets, vendors, strategies)
	if err != nil {
		return nil, eris.Wrap(err, "match: contract waterfall")
	}

	out := &ContractResult{
		Lines:     make([]model.MatchedContractLine, 0, len(lines)),
		Passes:    res.Passes,
		Unmatched: res.Unmatched,
	}
	for i, l := range lines {
		mt := res.Matches[i]
		if !mt.Matched() {
			out.Lines = append(out.Lines, model.MatchedContractLine{
				ContractLineItem: l,
				MatchMethod:      model.MatchUnmatched,
			})
			continue
		}
		for _, h := range mt.Hits {
			v := vendors[h]
			out.Lines = append(out.Lines, model.MatchedContractLine{
				ContractLineItem:  l,
				CertificationType: v.CertificationType,
				MatchedTaxID:      v.TaxID,
				MatchedB2GID:      v.B2GID,
				MatchedName:       v.CanonicalName,
				MatchMethod:       model.MatchMethod(mt.Method),
			})
		}
	}

	log.Info("contract lines matched",
		zap.Int("lines", len(lines)),
		zap.Int("output_rows", len(out.Lines)),
		zap.Int("unmatched", out.Unmatched),
	)

	return out, nil
}
