package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/certspend/internal/db"
	"github.com/sells-group/certspend/internal/export"
	"github.com/sells-group/certspend/internal/resilience"
	"github.com/sells-group/certspend/internal/resolve"
	"github.com/sells-group/certspend/internal/snapshot"
)

// Bookkeeping columns added by the ingest sync; never part of a snapshot.
var bookkeepingColumns = map[string]bool{
	"row_hash":   true,
	"created_at": true,
	"updated_at": true,
}

// PostgresStore reads snapshot tables from and publishes report tables to
// the certspend schema.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 5
	retry.OnRetry = resilience.RetryLogger("postgres.ping")
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close is a no-op.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool for the ingest sync and the run log.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Migrate applies the embedded migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// ReadTable reads a snapshot table with every cell cast to text. Null cells
// read as "". Rows are ordered by all columns so repeated reads of unchanged
// data are identical. A bare table name resolves inside Schema.
func (s *PostgresStore) ReadTable(ctx context.Context, table string) (*snapshot.Table, error) {
	ident := db.Identifier(Qualify(table))

	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		ident[0], ident[1],
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list columns of %s", table)
	}
	var header []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan column name")
		}
		if !bookkeepingColumns[name] {
			header = append(header, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: list columns of %s", table)
	}
	if len(header) == 0 {
		return nil, eris.Errorf("postgres: table %s not found or has no columns", table)
	}

	selects := make([]string, len(header))
	order := make([]string, len(header))
	for i, c := range header {
		q := pgx.Identifier{c}.Sanitize()
		selects[i] = q + "::text"
		order[i] = fmt.Sprintf("%d", i+1)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(selects, ", "), ident.Sanitize(), strings.Join(order, ", "))

	data, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read %s", table)
	}
	defer data.Close()

	var out [][]string
	for data.Next() {
		cells := make([]pgtype.Text, len(header))
		dest := make([]any, len(header))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := data.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s row", table)
		}
		row := make([]string, len(header))
		for i, c := range cells {
			if c.Valid {
				row[i] = c.String
			}
		}
		out = append(out, row)
	}
	if err := data.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: read %s", table)
	}

	return &snapshot.Table{Name: table, Header: header, Rows: out}, nil
}

// Publish drops and recreates every table inside one transaction, then loads
// it with COPY. Any failure rolls the whole publish back.
func (s *PostgresStore) Publish(ctx context.Context, tables []export.Table) error {
	// The whole publish is one transaction, so a serialization failure or a
	// dropped connection can be retried from scratch.
	return resilience.Do(ctx, publishRetry(), func(ctx context.Context) error {
		staged, err := s.stageTx(ctx, tables)
		if err != nil {
			return err
		}
		return staged.Commit(ctx)
	})
}

// Stage loads every table inside a transaction left open until Commit or
// Abort. Loading is retried on transient failures; the commit is not.
func (s *PostgresStore) Stage(ctx context.Context, tables []export.Table) (export.Staged, error) {
	staged, err := resilience.DoVal(ctx, publishRetry(), func(ctx context.Context) (*pgStaged, error) {
		return s.stageTx(ctx, tables)
	})
	if err != nil {
		return nil, err
	}
	return staged, nil
}

func publishRetry() resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres.publish")
	return retry
}

func (s *PostgresStore) stageTx(ctx context.Context, tables []export.Table) (_ *pgStaged, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: publish: begin tx")
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx) //nolint:errcheck
		}
	}()

	for _, t := range tables {
		name := Qualify(t.Name)
		quoted := db.Identifier(name).Sanitize()

		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
			return nil, eris.Wrapf(err, "postgres: publish: drop %s", name)
		}
		if _, err := tx.Exec(ctx, postgresDialect.createTableSQL(quoted, t)); err != nil {
			return nil, eris.Wrapf(err, "postgres: publish: create %s", name)
		}
		n, err := db.CopyFrom(ctx, tx, name, t.ColumnNames(), t.Rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: publish: load %s", name)
		}
		zap.L().Debug("table staged", zap.String("table", name), zap.Int64("rows", n))
	}
	return &pgStaged{tx: tx, tables: len(tables)}, nil
}

type pgStaged struct {
	tx     pgx.Tx
	tables int
}

func (st *pgStaged) Commit(ctx context.Context) error {
	if err := st.tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: publish: commit tx")
	}
	zap.L().With(zap.String("component", "store.postgres")).Info("report published",
		zap.Int("tables", st.tables),
	)
	return nil
}

func (st *pgStaged) Abort(ctx context.Context) error {
	if err := st.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: publish: rollback tx")
	}
	return nil
}

// EnsureCanonicalView (re)creates certspend.vendor_canonical over a synced
// vendor table, adding the canonical form of nameColumn for ad-hoc lookups.
func (s *PostgresStore) EnsureCanonicalView(ctx context.Context, vendorTable, nameColumn string) error {
	col := "v." + pgx.Identifier{nameColumn}.Sanitize()
	stmt := fmt.Sprintf(
		"DROP VIEW IF EXISTS certspend.vendor_canonical; CREATE VIEW certspend.vendor_canonical AS SELECT v.*, %s AS canonical_name FROM %s v",
		resolve.CanonicalizeSQL(col),
		db.Identifier(Qualify(vendorTable)).Sanitize(),
	)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return eris.Wrapf(err, "postgres: create canonical view over %s", vendorTable)
	}
	return nil
}
