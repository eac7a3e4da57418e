package match

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/resolve"
	"github.com/sells-group/certspend/internal/waterfall"
)

// FundingResult holds the matched funding rows and pass statistics.
type FundingResult struct {
	Rows      []model.MatchedFundingRow
	Passes    []waterfall.PassStats
	Unmatched int
}

type fundingTarget struct {
	row   model.FundingRow
	canon string
}

// Funding rows carry no b2g_id, so there is no b2g_id strategy here.
func fundingStrategies() []waterfall.Strategy[fundingTarget, model.CertifiedVendor] {
	return []waterfall.Strategy[fundingTarget, model.CertifiedVendor]{
		{
			Method:        waterfall.MethodTaxID,
			TargetKeys:    func(t fundingTarget) []string { return one(cleanID(t.row.TaxID)) },
			CandidateKeys: func(v model.CertifiedVendor) []string { return one(cleanID(v.TaxID)) },
		},
		{
			Method:        waterfall.MethodName,
			TargetKeys:    func(t fundingTarget) []string { return one(t.canon) },
			CandidateKeys: func(v model.CertifiedVendor) []string { return one(v.CanonicalName) },
		},
	}
}

// Funding attaches certifications to every funding row with the same output
// guarantees as Contracts.
func (m *Matcher) Funding(ctx context.Context, rows []model.FundingRow, vendors []model.CertifiedVendor) (*FundingResult, error) {
	log := zap.L().With(zap.String("component", "match.funding"))

	strategies, err := waterfall.Select(fundingStrategies(), m.plan.Funding)
	if err != nil {
		return nil, eris.Wrap(err, "match: funding plan")
	}

	targets := make([]fundingTarget, len(rows))
	for i, r := range rows {
		targets[i] = fundingTarget{row: r, canon: resolve.Canonicalize(r.BusinessName)}
	}

	res, err := waterfall.Run(ctx, targets, vendors, strategies)
	if err != nil {
		return nil, eris.Wrap(err, "match: funding waterfall")
	}

	out := &FundingResult{
		Rows:      make([]model.MatchedFundingRow, 0, len(rows)),
		Passes:    res.Passes,
		Unmatched: res.Unmatched,
	}
	for i, r := range rows {
		mt := res.Matches[i]
		if !mt.Matched() {
			out.Rows = append(out.Rows, model.MatchedFundingRow{
				FundingRow:  r,
				MatchMethod: model.MatchUnmatched,
			})
			continue
		}
		for _, h := range mt.Hits {
			v := vendors[h]
			out.Rows = append(out.Rows, model.MatchedFundingRow{
				FundingRow:        r,
				CertificationType: v.CertificationType,
				MatchedTaxID:      v.TaxID,
				MatchedB2GID:      v.B2GID,
				MatchedName:       v.CanonicalName,
				MatchMethod:       model.MatchMethod(mt.Method),
			})
		}
	}

	log.Info("funding rows matched",
		zap.Int("rows", len(rows)),
		zap.Int("output_rows", len(out.Rows)),
		zap.Int("unmatched", out.Unmatched),
	)

	return out, nil
}
