package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/certspend/internal/config"
	"github.com/sells-group/certspend/internal/ingest"
	"github.com/sells-group/certspend/internal/snapshot"
	"github.com/sells-group/certspend/internal/store"
)

var snapshotNames = []string{snapshot.Vendors, snapshot.Contracts, snapshot.Funding}

var loadCmd = &cobra.Command{
	Use:       "load [vendors|contracts|funding]...",
	Short:     "Sync snapshot spreadsheets into Postgres",
	Long:      "Upserts each configured source file into its Postgres table. Rows are fingerprinted: unchanged rows are skipped, changed rows are updated and rows no longer in the file are deleted.",
	ValidArgs: snapshotNames,
	Args:      cobra.OnlyValidArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("load"); err != nil {
			return err
		}

		names, err := loadTargets(cmd, args)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var results []*ingest.Result
		for _, name := range names {
			src, _ := sourceFor(cfg.Sources, name)
			res, err := loadSource(ctx, st, name, src)
			if err != nil {
				return err
			}
			results = append(results, res)
		}

		formatLoadResults(os.Stdout, results)
		return nil
	},
}

func init() {
	f := loadCmd.Flags()
	f.String("file", "", "source file (requires exactly one source name)")
	f.String("sheet", "", "sheet name (requires exactly one source name)")
	f.String("table", "", "target table (requires exactly one source name)")
	f.StringSlice("key", nil, "conflict-key column, repeatable (requires exactly one source name)")
	rootCmd.AddCommand(loadCmd)
}

// loadTargets resolves the sources to load and applies the single-source
// flag overrides.
func loadTargets(cmd *cobra.Command, args []string) ([]string, error) {
	f := cmd.Flags()
	overrides := f.Changed("file") || f.Changed("sheet") || f.Changed("table") || f.Changed("key")

	if len(args) == 0 {
		if overrides {
			return nil, eris.New("load: --file, --sheet, --table and --key need exactly one source name")
		}
		var names []string
		for _, n := range snapshotNames {
			if src, _ := sourceFor(cfg.Sources, n); src.Path != "" {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			return nil, eris.New("load: no source has a path configured")
		}
		return names, nil
	}

	if overrides {
		if len(args) != 1 {
			return nil, eris.New("load: --file, --sheet, --table and --key need exactly one source name")
		}
		src := sourcePtr(&cfg.Sources, args[0])
		if f.Changed("file") {
			src.Path, _ = f.GetString("file")
		}
		if f.Changed("sheet") {
			src.Sheet, _ = f.GetString("sheet")
		}
		if f.Changed("table") {
			src.Table, _ = f.GetString("table")
		}
		if f.Changed("key") {
			src.Keys, _ = f.GetStringSlice("key")
		}
	}

	for _, n := range args {
		if src, _ := sourceFor(cfg.Sources, n); src.Path == "" {
			return nil, eris.Errorf("load: sources.%s.path is not set", n)
		}
	}
	return args, nil
}

func sourcePtr(sources *config.SourcesConfig, name string) *config.SourceConfig {
	switch name {
	case snapshot.Contracts:
		return &sources.Contracts
	case snapshot.Funding:
		return &sources.Funding
	default:
		return &sources.Vendors
	}
}

// loadSource syncs one source file. After a vendor sync the canonical-name
// view is rebuilt over the vendor table.
func loadSource(ctx context.Context, st *store.PostgresStore, name string, src config.SourceConfig) (*ingest.Result, error) {
	res, err := ingest.Load(ctx, st.Pool(), snapshotSource(src), ingest.Config{Table: src.Table, Keys: src.Keys})
	if err != nil {
		return nil, eris.Wrapf(err, "load: %s", name)
	}

	if name == snapshot.Vendors {
		col, ok := vendorNameColumn(res.Columns)
		if !ok {
			zap.L().Warn("vendor table has no business name column; canonical view not rebuilt",
				zap.String("table", res.Table))
			return res, nil
		}
		if err := st.EnsureCanonicalView(ctx, res.Table, col); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// vendorNameColumn finds the business name column of a vendor header,
// honoring the registry's column aliases.
func vendorNameColumn(columns []string) (string, bool) {
	b, err := snapshot.VendorSchema.Bind(columns)
	if err != nil {
		return "", false
	}
	i, ok := b.Index("business_name")
	if !ok {
		return "", false
	}
	return columns[i], true
}

func formatLoadResults(w io.Writer, results []*ingest.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS\tDROPPED\tUPSERTED\tDELETED")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", r.Table, r.Rows, r.Dropped, r.Upserted, r.Deleted)
	}
	tw.Flush() //nolint:errcheck
}
