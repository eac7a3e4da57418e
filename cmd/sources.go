package main

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/certspend/internal/certify"
	"github.com/sells-group/certspend/internal/config"
	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/pipeline"
	"github.com/sells-group/certspend/internal/snapshot"
	"github.com/sells-group/certspend/internal/spend"
	"github.com/sells-group/certspend/internal/waterfall"
)

// tableReader serves snapshot tables synced into Postgres.
type tableReader interface {
	ReadTable(ctx context.Context, table string) (*snapshot.Table, error)
}

func snapshotSource(src config.SourceConfig) snapshot.Source {
	return snapshot.Source{Path: src.Path, Sheet: src.Sheet, Table: src.Table, Encoding: src.Encoding}
}

func sourceFor(sources config.SourcesConfig, name string) (config.SourceConfig, bool) {
	switch name {
	case snapshot.Vendors:
		return sources.Vendors, true
	case snapshot.Contracts:
		return sources.Contracts, true
	case snapshot.Funding:
		return sources.Funding, true
	default:
		return config.SourceConfig{}, false
	}
}

// readSnapshot reads a source from its file, or from Postgres when no file
// is configured.
func readSnapshot(ctx context.Context, name string, src config.SourceConfig, db tableReader) (*snapshot.Table, error) {
	if src.Path != "" {
		return snapshot.ReadFile(ctx, name, snapshotSource(src))
	}
	if src.Table == "" {
		return nil, eris.Errorf("certspend: %s source has neither a path nor a table", name)
	}
	if db == nil {
		return nil, eris.Errorf("certspend: %s source reads table %s but no database is configured", name, src.Table)
	}
	tbl, err := db.ReadTable(ctx, src.Table)
	if err != nil {
		return nil, err
	}
	tbl.Name = name
	return tbl, nil
}

// loadInputs reads and parses the three snapshots concurrently. A schema
// drift in any of them fails the whole load.
func loadInputs(ctx context.Context, sources config.SourcesConfig, db tableReader) (pipeline.Inputs, error) {
	var (
		in        pipeline.Inputs
		vendors   []model.VendorRecord
		contracts []model.ContractLineItem
		funding   []model.FundingRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tbl, err := readSnapshot(gctx, snapshot.Vendors, sources.Vendors, db)
		if err != nil {
			return err
		}
		vendors, err = snapshot.ParseVendors(tbl)
		return err
	})
	g.Go(func() error {
		tbl, err := readSnapshot(gctx, snapshot.Contracts, sources.Contracts, db)
		if err != nil {
			return err
		}
		contracts, err = snapshot.ParseContracts(tbl)
		return err
	})
	g.Go(func() error {
		tbl, err := readSnapshot(gctx, snapshot.Funding, sources.Funding, db)
		if err != nil {
			return err
		}
		funding, err = snapshot.ParseFunding(tbl)
		return err
	})
	if err := g.Wait(); err != nil {
		return in, err
	}

	in.Vendors, in.Contracts, in.Funding = vendors, contracts, funding
	return in, nil
}

// pipelineOptions maps configuration onto pipeline options.
func pipelineOptions(c *config.Config) (pipeline.Options, error) {
	levels := make([]certify.Level, len(c.Certification.Hierarchy))
	for i, l := range c.Certification.Hierarchy {
		levels[i] = certify.Level{Type: model.ParseCertType(l.Type), Rank: l.Rank, Qualifying: l.Qualifying}
	}
	h, err := certify.DefaultHierarchy().With(levels)
	if err != nil {
		return pipeline.Options{}, eris.Wrap(err, "certspend: certification hierarchy")
	}

	plan := waterfall.DefaultPlan()
	if c.Waterfall.PlanPath != "" {
		p, err := waterfall.LoadPlan(c.Waterfall.PlanPath)
		if err != nil {
			return pipeline.Options{}, err
		}
		plan = *p
	}

	return pipeline.Options{
		Hierarchy: h,
		Plan:      plan,
		Spend: spend.Options{
			FloorAtZero:  c.Spend.FloorAtZero,
			DedupeFanout: c.Spend.DedupeFanout,
		},
	}, nil
}
