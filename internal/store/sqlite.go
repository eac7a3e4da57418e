package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/certspend/internal/export"
)

// SQLiteStore publishes report tables to a SQLite file using
// modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Publish drops, recreates and fills every table inside one transaction.
func (s *SQLiteStore) Publish(ctx context.Context, tables []export.Table) error {
	staged, err := s.Stage(ctx, tables)
	if err != nil {
		return err
	}
	return staged.Commit(ctx)
}

// Stage drops, recreates and fills every table inside a transaction that
// stays open until Commit or Abort. ctx must outlive the staged transaction.
func (s *SQLiteStore) Stage(ctx context.Context, tables []export.Table) (export.Staged, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: publish: begin tx")
	}

	for _, t := range tables {
		if err := publishTable(ctx, tx, t); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, err
		}
	}
	return &sqliteStaged{tx: tx, tables: len(tables)}, nil
}

type sqliteStaged struct {
	tx     *sql.Tx
	tables int
}

func (st *sqliteStaged) Commit(_ context.Context) error {
	if err := st.tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: publish: commit tx")
	}
	zap.L().With(zap.String("component", "store.sqlite")).Info("report published",
		zap.Int("tables", st.tables),
	)
	return nil
}

func (st *sqliteStaged) Abort(_ context.Context) error {
	if err := st.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return eris.Wrap(err, "sqlite: publish: rollback tx")
	}
	return nil
}

func publishTable(ctx context.Context, tx *sql.Tx, t export.Table) error {
	name := sqliteDialect.quote(t.Name)

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return eris.Wrapf(err, "sqlite: publish: drop %s", t.Name)
	}
	if _, err := tx.ExecContext(ctx, sqliteDialect.createTableSQL(name, t)); err != nil {
		return eris.Wrapf(err, "sqlite: publish: create %s", t.Name)
	}
	if len(t.Rows) == 0 {
		return nil
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = sqliteDialect.quote(c.Name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return eris.Wrapf(err, "sqlite: publish: prepare insert into %s", t.Name)
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range t.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: publish: insert %s row %d", t.Name, i)
		}
	}
	return nil
}

// Count returns the number of rows in table.
func (s *SQLiteStore) Count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+sqliteDialect.quote(table)).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", table)
	}
	return n, nil
}
