package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/certspend/internal/config"
	"github.com/sells-group/certspend/internal/export"
	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/snapshot"
	"github.com/sells-group/certspend/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const (
	vendorsCSV = `Business Name,Tax ID,B2G ID,Certification Type,Certification Status
Acme LLC,11,B1,MWBE,Active
Acme LLC,11,B1,MBE,Inactive
Gamma Corp,33,,WBE,Active
`
	contractsCSV = `Agency,Prime Vendor,Business Name,Vendor Role,Tax ID,B2G ID,Amount Paid,Audit Period
DOT,Acme LLC,Acme LLC,PRIME,11,,"$100,000.00",FY26
DOT,Acme LLC,Beta Inc,SUB,,,"15,000",FY26
DOT,Acme LLC,Gamma Corp,SUB,33,,"2,500",FY26
`
	fundingCSV = `Source,Agency Number,Agency Name,Business Name,Tax ID,Total Amount
Agency,100,DOT,Acme LLC,11,5000
Agency,100,DOT,Nobody,,1000
`
)

func writeInputs(t *testing.T, vendors string) (string, config.SourcesConfig) {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}
	return dir, config.SourcesConfig{
		Vendors:   config.SourceConfig{Path: write("vendors.csv", vendors)},
		Contracts: config.SourceConfig{Path: write("contracts.csv", contractsCSV)},
		Funding:   config.SourceConfig{Path: write("funding.csv", fundingCSV)},
	}
}

func TestRunReport_FilesToXLSXAndSQLite(t *testing.T) {
	dir, sources := writeInputs(t, vendorsCSV)
	cfg = &config.Config{
		Sources: sources,
		Output: config.OutputConfig{
			XLSXPath:   filepath.Join(dir, "report.xlsx"),
			SQLitePath: filepath.Join(dir, "report.db"),
		},
	}
	opts, err := pipelineOptions(cfg)
	require.NoError(t, err)

	report, err := runWithLog(context.Background(), nil, opts)
	require.NoError(t, err)

	require.Len(t, report.PrimeSummaries, 1)
	ps := report.PrimeSummaries[0]
	assert.Equal(t, model.CertMWBE, ps.PrimeCertificationType)
	assert.Equal(t, 100000.0, ps.PrimeTotalAmount)
	assert.Equal(t, 15000.0, ps.UncertifiedSubsTotal)
	assert.Equal(t, 2500.0, ps.CertifiedSubsTotal)
	assert.Equal(t, 85000.0, ps.CertifiedSpend)

	wb, err := xlsx.OpenFile(cfg.Output.XLSXPath)
	require.NoError(t, err)
	assert.Len(t, wb.Sheets, len(export.Tables(report)))
	assert.NotNil(t, wb.Sheet[export.TablePrimeSummary])

	st, err := store.NewSQLite(cfg.Output.SQLitePath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	n, err := st.Count(context.Background(), export.TableSubDetail)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunReport_SchemaDriftPublishesNothing(t *testing.T) {
	dir, sources := writeInputs(t, "Business Name,B2G ID,Certification Type,Certification Status\nAcme,B1,MBE,Active\n")
	out := filepath.Join(dir, "report.xlsx")
	cfg = &config.Config{Sources: sources, Output: config.OutputConfig{XLSXPath: out}}
	opts, err := pipelineOptions(cfg)
	require.NoError(t, err)

	_, err = runReport(context.Background(), nil, nil, opts)
	require.Error(t, err)

	var drift *snapshot.SchemaDriftError
	require.True(t, errors.As(err, &drift))
	assert.Equal(t, snapshot.Vendors, drift.Snapshot)
	assert.Equal(t, []string{"tax_id"}, drift.Missing)
	assert.NoFileExists(t, out)
}

type fakeReader struct {
	tables map[string]*snapshot.Table
}

func (f fakeReader) ReadTable(_ context.Context, table string) (*snapshot.Table, error) {
	t, ok := f.tables[table]
	if !ok {
		return nil, errors.New("no such table")
	}
	return t, nil
}

func TestReadSnapshot(t *testing.T) {
	ctx := context.Background()
	reader := fakeReader{tables: map[string]*snapshot.Table{
		"vendors": {Name: "vendors", Header: []string{"business_name"}},
	}}

	tbl, err := readSnapshot(ctx, snapshot.Vendors, config.SourceConfig{Table: "vendors"}, reader)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Vendors, tbl.Name)

	_, err = readSnapshot(ctx, snapshot.Vendors, config.SourceConfig{Table: "vendors"}, nil)
	assert.ErrorContains(t, err, "no database is configured")

	_, err = readSnapshot(ctx, snapshot.Funding, config.SourceConfig{}, reader)
	assert.ErrorContains(t, err, "neither a path nor a table")
}

func TestPipelineOptions(t *testing.T) {
	planPath := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte("waterfall:\n  contract: [name]\n"), 0644))

	c := &config.Config{
		Spend:         config.SpendConfig{FloorAtZero: true},
		Certification: config.CertificationConfig{Hierarchy: []config.CertLevelConfig{{Type: "vob", Rank: 6, Qualifying: true}}},
		Waterfall:     config.WaterfallConfig{PlanPath: planPath},
	}
	opts, err := pipelineOptions(c)
	require.NoError(t, err)

	assert.True(t, opts.Spend.FloorAtZero)
	assert.True(t, opts.Hierarchy.Qualifies(model.CertVOB))
	assert.Equal(t, []string{"name"}, opts.Plan.Contract)

	c.Waterfall.PlanPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = pipelineOptions(c)
	assert.Error(t, err)
}

func TestReportSinks(t *testing.T) {
	pg := store.NewPostgresWithPool(nil)

	sinks := reportSinks(config.OutputConfig{XLSXPath: "a.xlsx", SQLitePath: "a.db", PublishPostgres: true}, pg)
	require.Len(t, sinks, 3)
	assert.Equal(t, "postgres", sinks[0].name)
	assert.Equal(t, "sqlite", sinks[1].name)
	assert.Equal(t, "xlsx", sinks[2].name)

	assert.Empty(t, reportSinks(config.OutputConfig{PublishPostgres: true}, nil))
}

// fakeSink stages nothing and fails at the configured step.
type fakeSink struct {
	stageErr  error
	commitErr error
	delay     time.Duration
	aborted   *atomic.Bool
}

func (f fakeSink) Stage(_ context.Context, _ []export.Table) (export.Staged, error) {
	time.Sleep(f.delay)
	if f.stageErr != nil {
		return nil, f.stageErr
	}
	return fakeStaged(f), nil
}

type fakeStaged fakeSink

func (f fakeStaged) Commit(context.Context) error { return f.commitErr }

func (f fakeStaged) Abort(context.Context) error {
	if f.aborted != nil {
		f.aborted.Store(true)
	}
	return nil
}

func sampleReport() *model.Report {
	return &model.Report{
		PrimeSummaries: []model.PrimeSummary{{Agency: "DOT", PrimeVendor: "Acme", CertifiedSpend: 85000}},
		Quality:        model.NewDataQuality(),
	}
}

func TestPublishReport_StageFailurePublishesNothing(t *testing.T) {
	dir := t.TempDir()
	xlsxPath := filepath.Join(dir, "report.xlsx")
	sqlitePath := filepath.Join(dir, "report.db")
	var aborted atomic.Bool

	sinks := []namedSink{
		{name: "postgres", sink: fakeSink{delay: 200 * time.Millisecond, stageErr: errors.New("connection lost")}},
		{name: "other", sink: fakeSink{aborted: &aborted}},
		{name: "sqlite", sink: sqliteSink{path: sqlitePath}},
		{name: "xlsx", sink: xlsxSink{path: xlsxPath}},
	}

	err := publishReport(context.Background(), sampleReport(), sinks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to postgres")

	assert.NoFileExists(t, xlsxPath)
	assert.True(t, aborted.Load())

	st, err := store.NewSQLite(sqlitePath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	_, err = st.Count(context.Background(), export.TablePrimeSummary)
	assert.Error(t, err, "sqlite tables must not exist after an aborted publish")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".xlsx", "no workbook or temp workbook may remain")
	}
}

func TestPublishReport_CommitFailureAbortsLaterSinks(t *testing.T) {
	xlsxPath := filepath.Join(t.TempDir(), "report.xlsx")

	sinks := []namedSink{
		{name: "postgres", sink: fakeSink{commitErr: errors.New("commit failed")}},
		{name: "xlsx", sink: xlsxSink{path: xlsxPath}},
	}

	err := publishReport(context.Background(), sampleReport(), sinks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit failed")
	assert.NoFileExists(t, xlsxPath)
}

func TestPublishReport_AllSinksCommit(t *testing.T) {
	xlsxPath := filepath.Join(t.TempDir(), "report.xlsx")

	sinks := []namedSink{
		{name: "postgres", sink: fakeSink{}},
		{name: "xlsx", sink: xlsxSink{path: xlsxPath}},
	}

	require.NoError(t, publishReport(context.Background(), sampleReport(), sinks))
	assert.FileExists(t, xlsxPath)
}

func TestPrintReportSummary(t *testing.T) {
	q := model.NewDataQuality()
	q.Unmatched["funding"] = 1
	q.ReferentialGaps = 2
	r := &model.Report{PrimeSummaries: make([]model.PrimeSummary, 3), Quality: q}

	var buf bytes.Buffer
	printReportSummary(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "prime_summary")
	assert.Contains(t, out, "unmatched (funding)")
	assert.Contains(t, out, "referential gaps")
}
