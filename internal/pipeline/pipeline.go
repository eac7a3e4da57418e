// Package pipeline runs the certified-spend computation as one batch pass
// over immutable input snapshots.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/certspend/internal/certify"
	"github.com/sells-group/certspend/internal/match"
	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/rollup"
	"github.com/sells-group/certspend/internal/spend"
	"github.com/sells-group/certspend/internal/waterfall"
)

// Inputs are the three snapshots a run is computed from.
type Inputs struct {
	Vendors   []model.VendorRecord
	Contracts []model.ContractLineItem
	Funding   []model.FundingRow
}

// Options configures a run.
type Options struct {
	Hierarchy *certify.Hierarchy
	Plan      waterfall.Plan
	Spend     spend.Options
}

// Pipeline computes a Report from Inputs. It holds no state between runs.
type Pipeline struct {
	resolver *certify.Resolver
	matcher  *match.Matcher
	calc     *spend.Calculator
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	h := opts.Hierarchy
	if h == nil {
		h = certify.DefaultHierarchy()
	}
	return &Pipeline{
		resolver: certify.NewResolver(h),
		matcher:  match.New(opts.Plan),
		calc:     spend.New(h, opts.Spend),
	}
}

// Run executes every stage in dependency order. Any stage error aborts the
// run and no report is returned.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*model.Report, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	log.Info("pipeline: starting run",
		zap.Int("vendors", len(in.Vendors)),
		zap.Int("contracts", len(in.Contracts)),
		zap.Int("funding", len(in.Funding)),
	)
	start := time.Now()

	// Dedupe and row counts key on Row; callers outside the snapshot parser
	// may leave it unset.
	in = numberRows(in)

	report := &model.Report{Quality: model.NewDataQuality()}
	q := &report.Quality

	stage := func(name string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "pipeline: before %s", name)
		}
		t := time.Now()
		if err := fn(); err != nil {
			log.Error("pipeline: stage failed", zap.String("stage", name), zap.Error(err))
			return err
		}
		log.Debug("pipeline: stage complete",
			zap.String("stage", name),
			zap.Duration("duration", time.Since(t)),
		)
		return nil
	}

	// Stage 1: certification resolution.
	if err := stage("certify", func() error {
		res := p.resolver.Resolve(in.Vendors)
		report.CertifiedVendors = res.Vendors
		q.InactiveOnlyGroups = res.InactiveOnly
		q.UnkeyedVendors = res.Unkeyed
		return nil
	}); err != nil {
		return nil, err
	}

	// Stage 2: contract and funding matching are independent of each other.
	var contracts *match.ContractResult
	var funding *match.FundingResult
	if err := stage("match", func() error {
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			contracts, err = p.matcher.Contracts(gCtx, in.Contracts, report.CertifiedVendors)
			return err
		})
		g.Go(func() error {
			var err error
			funding, err = p.matcher.Funding(gCtx, in.Funding, report.CertifiedVendors)
			return err
		})
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "pipeline: match")
		}
		report.MatchedContractLines = contracts.Lines
		report.MatchedFundingRows = funding.Rows
		recordPasses(q, "contract", contracts.Passes, contracts.Unmatched)
		recordPasses(q, "funding", funding.Passes, funding.Unmatched)
		return nil
	}); err != nil {
		return nil, err
	}

	// Stage 3: prime aggregation.
	if err := stage("aggregate_primes", func() error {
		report.AgencyPrimeTotals = p.calc.AggregatePrimes(report.MatchedContractLines)
		return nil
	}); err != nil {
		return nil, err
	}

	// Stage 4: subcontractor to prime linking.
	if err := stage("link_subs", func() error {
		var subs []model.MatchedContractLine
		for _, l := range report.MatchedContractLines {
			if l.Role == model.RoleSub {
				subs = append(subs, l)
			}
		}
		res, err := p.matcher.SubsToPrimes(ctx, subs, report.AgencyPrimeTotals, match.NewTaxIndex(in.Vendors))
		if err != nil {
			return eris.Wrap(err, "pipeline: link subs")
		}
		report.SubLinks = res.Links
		recordPasses(q, "sub_prime", res.Passes, res.Unmatched)
		q.ReferentialGaps = res.Unmatched
		return nil
	}); err != nil {
		return nil, err
	}

	// Stage 5: subcontractor aggregation and certified spend.
	var orphans []model.SubTotal
	if err := stage("spend", func() error {
		report.SubTotals = p.calc.AggregateSubs(report.SubLinks)
		orphans = p.calc.OrphanSubs(report.SubLinks)
		report.CertifiedSpend = p.calc.Calculate(report.AgencyPrimeTotals, report.SubTotals)
		return nil
	}); err != nil {
		return nil, err
	}

	// Stage 6: rollup.
	if err := stage("rollup", func() error {
		out := rollup.Build(p.calc, rollup.Input{
			Totals:  report.AgencyPrimeTotals,
			Subs:    report.SubTotals,
			Orphans: orphans,
			Spend:   report.CertifiedSpend,
			Links:   report.SubLinks,
			Funding: report.MatchedFundingRows,
		})
		report.PrimeSummaries = out.PrimeSummaries
		report.SubDetails = out.SubDetails
		report.Details = out.Details
		report.FundingSummaries = out.FundingSummaries
		return nil
	}); err != nil {
		return nil, err
	}

	countInputAnomalies(q, in)

	log.Info("pipeline: run complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("certified_vendors", len(report.CertifiedVendors)),
		zap.Int("primes", len(report.AgencyPrimeTotals)),
		zap.Int("referential_gaps", q.ReferentialGaps),
	)

	return report, nil
}

// recordPasses folds waterfall statistics into the quality counters, keyed
// "<matcher>.<method>".
func recordPasses(q *model.DataQuality, matcher string, passes []waterfall.PassStats, unmatched int) {
	for _, ps := range passes {
		k := matcher + "." + ps.Method
		if ps.MissingKey > 0 {
			q.MissingKeys[k] += ps.MissingKey
		}
		if ps.Ambiguous > 0 {
			q.Ambiguous[k] += ps.Ambiguous
		}
	}
	q.Unmatched[matcher] += unmatched
}

// numberRows returns in with Row set to the 1-based input position on every
// contract line, and likewise on every funding row, unless the existing
// values are already positive and unique. The caller's slices are not
// modified.
func numberRows(in Inputs) Inputs {
	contractRows := make([]int, len(in.Contracts))
	for i, c := range in.Contracts {
		contractRows[i] = c.Row
	}
	if !uniqueRows(contractRows) {
		cs := make([]model.ContractLineItem, len(in.Contracts))
		copy(cs, in.Contracts)
		for i := range cs {
			cs[i].Row = i + 1
		}
		in.Contracts = cs
	}

	fundingRows := make([]int, len(in.Funding))
	for i, f := range in.Funding {
		fundingRows[i] = f.Row
	}
	if !uniqueRows(fundingRows) {
		fs := make([]model.FundingRow, len(in.Funding))
		copy(fs, in.Funding)
		for i := range fs {
			fs[i].Row = i + 1
		}
		in.Funding = fs
	}
	return in
}

func uniqueRows(rows []int) bool {
	seen := make(map[int]bool, len(rows))
	for _, r := range rows {
		if r <= 0 || seen[r] {
			return false
		}
		seen[r] = true
	}
	return true
}

func countInputAnomalies(q *model.DataQuality, in Inputs) {
	for _, c := range in.Contracts {
		if c.Role == model.RoleUnknown {
			q.UnknownRoles++
		}
		if c.AmountPaid == nil {
			q.NullAmounts++
		}
	}
	for _, f := range in.Funding {
		if f.TotalAmount == nil {
			q.NullAmounts++
		}
	}
}
