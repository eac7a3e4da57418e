package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/certspend/internal/config"
	"github.com/sells-group/certspend/internal/export"
	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/store"
)

// xlsxSink stages the report workbook under a temporary name.
type xlsxSink struct {
	path string
}

func (s xlsxSink) Stage(ctx context.Context, tables []export.Table) (export.Staged, error) {
	w, err := export.StageXLSX(ctx, s.path, tables)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// sqliteSink keeps the SQLite file open until the staged publish ends.
type sqliteSink struct {
	path string
}

func (s sqliteSink) Stage(ctx context.Context, tables []export.Table) (export.Staged, error) {
	st, err := store.NewSQLite(s.path)
	if err != nil {
		return nil, err
	}
	staged, err := st.Stage(ctx, tables)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return closingStaged{Staged: staged, close: st.Close}, nil
}

// closingStaged releases its store once the staged publish is committed or
// aborted.
type closingStaged struct {
	export.Staged
	close func() error
}

func (c closingStaged) Commit(ctx context.Context) error {
	defer c.close() //nolint:errcheck
	return c.Staged.Commit(ctx)
}

func (c closingStaged) Abort(ctx context.Context) error {
	defer c.close() //nolint:errcheck
	return c.Staged.Abort(ctx)
}

type namedSink struct {
	name string
	sink store.Stager
}

// reportSinks lists the sinks enabled by out in commit order. pg may be nil
// when Postgres publishing is off. Postgres commits first since its commit
// can fail remotely; the workbook rename comes last.
func reportSinks(out config.OutputConfig, pg store.Stager) []namedSink {
	var sinks []namedSink
	if out.PublishPostgres && pg != nil {
		sinks = append(sinks, namedSink{name: "postgres", sink: pg})
	}
	if out.SQLitePath != "" {
		sinks = append(sinks, namedSink{name: "sqlite", sink: sqliteSink{path: out.SQLitePath}})
	}
	if out.XLSXPath != "" {
		sinks = append(sinks, namedSink{name: "xlsx", sink: xlsxSink{path: out.XLSXPath}})
	}
	return sinks
}

// publishReport stages the report in every sink concurrently and commits
// only once all of them staged, so a failing sink publishes nothing
// anywhere. A commit failure aborts the sinks not yet committed.
func publishReport(ctx context.Context, report *model.Report, sinks []namedSink) error {
	tables := export.Tables(report)
	staged := make([]export.Staged, len(sinks))

	// Staged transactions live on ctx, so the group must not cancel it.
	var g errgroup.Group
	for i, s := range sinks {
		g.Go(func() error {
			st, err := s.sink.Stage(ctx, tables)
			if err != nil {
				return eris.Wrapf(err, "certspend: publish to %s", s.name)
			}
			staged[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		abortStaged(ctx, sinks, staged)
		return err
	}

	for i, s := range sinks {
		if err := staged[i].Commit(ctx); err != nil {
			abortStaged(ctx, sinks[i+1:], staged[i+1:])
			return eris.Wrapf(err, "certspend: publish to %s", s.name)
		}
	}
	return nil
}

// abortStaged discards every staged publish. Abort errors are only logged.
func abortStaged(ctx context.Context, sinks []namedSink, staged []export.Staged) {
	ctx = context.WithoutCancel(ctx)
	for i, st := range staged {
		if st == nil {
			continue
		}
		if err := st.Abort(ctx); err != nil {
			zap.L().Warn("failed to abort staged report",
				zap.String("sink", sinks[i].name),
				zap.Error(err),
			)
		}
	}
}
