package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/pipeline"
	"github.com/sells-group/certspend/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute certified spend and publish the report",
	Long:  "Reads the vendor registry, contract ledger and funding snapshots, runs the certified-spend pipeline and publishes the report tables to every configured sink.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		applyRunFlags(cmd)

		if err := cfg.Validate("run"); err != nil {
			return err
		}
		opts, err := pipelineOptions(cfg)
		if err != nil {
			return err
		}

		var st *store.PostgresStore
		if cfg.Store.DatabaseURL != "" {
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		report, err := runWithLog(ctx, st, opts)
		if err != nil {
			return err
		}

		printReportSummary(os.Stdout, report)
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.String("vendors", "", "vendor registry file (overrides sources.vendors.path)")
	f.String("contracts", "", "contract ledger file (overrides sources.contracts.path)")
	f.String("funding", "", "funding extract file (overrides sources.funding.path)")
	f.String("xlsx", "", "write the report workbook to this path")
	f.String("sqlite", "", "write the report tables to this SQLite file")
	f.Bool("publish", false, "publish the report tables to the certspend Postgres schema")
	f.Bool("floor-at-zero", false, "clamp negative certified spend to zero")
	f.Bool("dedupe-fanout", false, "count each ledger row once when it matched several vendors")
	f.String("plan", "", "waterfall strategy plan YAML")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays explicitly set flags on the loaded configuration.
func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("vendors") {
		cfg.Sources.Vendors.Path, _ = f.GetString("vendors")
	}
	if f.Changed("contracts") {
		cfg.Sources.Contracts.Path, _ = f.GetString("contracts")
	}
	if f.Changed("funding") {
		cfg.Sources.Funding.Path, _ = f.GetString("funding")
	}
	if f.Changed("xlsx") {
		cfg.Output.XLSXPath, _ = f.GetString("xlsx")
	}
	if f.Changed("sqlite") {
		cfg.Output.SQLitePath, _ = f.GetString("sqlite")
	}
	if f.Changed("publish") {
		cfg.Output.PublishPostgres, _ = f.GetBool("publish")
	}
	if f.Changed("floor-at-zero") {
		cfg.Spend.FloorAtZero, _ = f.GetBool("floor-at-zero")
	}
	if f.Changed("dedupe-fanout") {
		cfg.Spend.DedupeFanout, _ = f.GetBool("dedupe-fanout")
	}
	if f.Changed("plan") {
		cfg.Waterfall.PlanPath, _ = f.GetString("plan")
	}
}

// runWithLog runs the report and records the outcome in the run log when a
// database is available.
func runWithLog(ctx context.Context, st *store.PostgresStore, opts pipeline.Options) (*model.Report, error) {
	log := zap.L().With(zap.String("component", "run"))

	var (
		runLog *store.RunLog
		runID  string
		reader tableReader
		pg     store.Stager
	)
	if st != nil {
		reader, pg = st, st
		runLog = store.NewRunLog(st.Pool())
		id, err := runLog.Start(ctx)
		if err != nil {
			return nil, err
		}
		runID = id
		log = log.With(zap.String("run_id", runID))
	}

	report, err := runReport(ctx, reader, pg, opts)
	if runLog == nil {
		return report, err
	}

	// Record the outcome even when ctx was cancelled.
	logCtx := context.WithoutCancel(ctx)
	if err != nil {
		if ferr := runLog.Fail(logCtx, runID, err.Error()); ferr != nil {
			log.Error("failed to record run failure", zap.Error(ferr))
		}
		return nil, err
	}
	if err := runLog.Complete(logCtx, runID, report.Counts()); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}
	return report, nil
}

// runReport loads the inputs, computes the report and publishes it. Nothing
// is published unless the whole computation succeeded.
func runReport(ctx context.Context, reader tableReader, pg store.Stager, opts pipeline.Options) (*model.Report, error) {
	in, err := loadInputs(ctx, cfg.Sources, reader)
	if err != nil {
		return nil, eris.Wrap(err, "certspend: load inputs")
	}

	report, err := pipeline.New(opts).Run(ctx, in)
	if err != nil {
		return nil, err
	}

	sinks := reportSinks(cfg.Output, pg)
	if len(sinks) == 0 {
		return nil, eris.New("certspend: no report sink configured")
	}
	if err := publishReport(ctx, report, sinks); err != nil {
		return nil, err
	}
	return report, nil
}

// printReportSummary writes table row counts and data-quality counters.
func printReportSummary(w io.Writer, r *model.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS")

	counts := r.Counts()
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(tw, "%s\t%d\n", n, counts[n])
	}

	q := r.Quality
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "DATA QUALITY\tCOUNT")
	for _, m := range []struct {
		label  string
		counts map[string]int
	}{
		{"unmatched", q.Unmatched},
		{"missing key", q.MissingKeys},
		{"ambiguous", q.Ambiguous},
	} {
		keys := make([]string, 0, len(m.counts))
		for k := range m.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(tw, "%s (%s)\t%d\n", m.label, k, m.counts[k])
		}
	}
	fmt.Fprintf(tw, "referential gaps\t%d\n", q.ReferentialGaps)
	fmt.Fprintf(tw, "inactive-only vendor groups\t%d\n", q.InactiveOnlyGroups)
	fmt.Fprintf(tw, "unkeyed vendor rows\t%d\n", q.UnkeyedVendors)
	fmt.Fprintf(tw, "unknown roles\t%d\n", q.UnknownRoles)
	fmt.Fprintf(tw, "null amounts\t%d\n", q.NullAmounts)
	tw.Flush() //nolint:errcheck
}
