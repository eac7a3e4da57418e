// Package ingest syncs a spreadsheet tab into a Postgres table. Each row is
// fingerprinted so unchanged rows are left alone, changed rows are updated in
// place and rows that disappeared from the sheet are deleted.
package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/sells-group/certspend/internal/db"
	"github.com/sells-group/certspend/internal/snapshot"
	"github.com/sells-group/certspend/internal/store"
)

// HashColumn holds the row fingerprint.
const HashColumn = "row_hash"

// Config describes one sync target.
type Config struct {
	// Table is the target table; bare names land in the certspend schema.
	Table string `mapstructure:"table"`
	// Keys are the conflict-key columns (normalized header names). Without
	// keys, the fingerprint itself identifies a row.
	Keys []string `mapstructure:"keys"`
}

// Result reports what a sync changed.
type Result struct {
	Table string `json:"table"`
	// Columns are the normalized header names written to Table.
	Columns  []string `json:"columns"`
	Rows     int      `json:"rows"`
	Dropped  int      `json:"dropped"`
	Upserted int64    `json:"upserted"`
	Deleted  int64    `json:"deleted"`
}

// Load reads src and syncs it into cfg.Table.
func Load(ctx context.Context, pool db.Pool, src snapshot.Source, cfg Config) (*Result, error) {
	tbl, err := snapshot.ReadFile(ctx, cfg.Table, src)
	if err != nil {
		return nil, err
	}
	return Sync(ctx, pool, tbl, cfg, src)
}

// Sync upserts tbl into cfg.Table inside one transaction: the table and its
// conflict index are created when missing, new header columns are added,
// rows are upserted only when their fingerprint changed and rows whose
// fingerprint is gone are deleted.
func Sync(ctx context.Context, pool db.Pool, tbl *snapshot.Table, cfg Config, src snapshot.Source) (*Result, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("table", cfg.Table))

	if cfg.Table == "" {
		return nil, eris.New("ingest: no target table")
	}
	table := store.Qualify(cfg.Table)

	header, err := normalizeHeader(tbl.Header)
	if err != nil {
		return nil, err
	}
	keys := cfg.Keys
	if len(keys) == 0 {
		keys = []string{HashColumn}
	}
	keyIdx, err := keyIndexes(header, keys)
	if err != nil {
		return nil, err
	}

	rows, hashes, dropped := prepareRows(tbl.Rows, header, keyIdx)
	if dropped > 0 {
		log.Warn("rows missing a conflict key dropped", zap.Int("dropped", dropped), zap.Strings("keys", keys))
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, stmt := range ensureTableSQL(table, header, keys) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, eris.Wrapf(err, "ingest: prepare table %s", table)
		}
	}

	columns := append(append([]string{}, header...), HashColumn)
	upsert := db.UpsertConfig{
		Table:        table,
		Columns:      columns,
		ConflictKeys: keys,
		UpdateCols:   updateColumns(columns, keys),
		HashColumn:   HashColumn,
	}
	upserted, err := db.BulkUpsert(ctx, tx, upsert, rows)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: upsert %s", table)
	}

	deleted, err := db.DeleteStale(ctx, tx, table, HashColumn, hashes)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: prune %s", table)
	}

	res := &Result{Table: table, Columns: header, Rows: len(rows), Dropped: dropped, Upserted: upserted, Deleted: deleted}
	if _, err := tx.Exec(ctx, syncStateSQL,
		table, src.Path, src.Sheet, res.Rows, res.Upserted, res.Deleted,
	); err != nil {
		return nil, eris.Wrapf(err, "ingest: record sync state for %s", table)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "ingest: commit tx")
	}

	log.Info("sheet synced",
		zap.Int("rows", res.Rows),
		zap.Int64("upserted", res.Upserted),
		zap.Int64("deleted", res.Deleted),
	)
	return res, nil
}

const syncStateSQL = `INSERT INTO certspend.sync_state
	(table_name, source_path, sheet, row_count, upserted, deleted, synced_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, now())
	ON CONFLICT (table_name) DO UPDATE SET
		source_path = EXCLUDED.source_path,
		sheet = EXCLUDED.sheet,
		row_count = EXCLUDED.row_count,
		upserted = EXCLUDED.upserted,
		deleted = EXCLUDED.deleted,
		synced_at = EXCLUDED.synced_at`

// RowHash fingerprints a row: BLAKE3 over the column names and trimmed cell
// text, hex-encoded. Whitespace-only edits do not change the hash.
func RowHash(header, cells []string) string {
	h := blake3.New()
	for i, name := range header {
		var cell string
		if i < len(cells) {
			cell = strings.TrimSpace(cells[i])
		}
		h.Write([]byte(name)) //nolint:errcheck
		h.Write([]byte{0x1f}) //nolint:errcheck
		h.Write([]byte(cell)) //nolint:errcheck
		h.Write([]byte{0x1e}) //nolint:errcheck
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeHeader(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, eris.New("ingest: sheet has no header row")
	}
	header := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		name := snapshot.NormalizeHeader(h)
		switch {
		case name == "":
			return nil, eris.Errorf("ingest: header column %d is blank", i+1)
		case name == HashColumn || name == "created_at" || name == "updated_at":
			return nil, eris.Errorf("ingest: header column %q is reserved", name)
		case seen[name]:
			return nil, eris.Errorf("ingest: header column %q appears twice", name)
		}
		seen[name] = true
		header[i] = name
	}
	return header, nil
}

// keyIndexes maps each key to its header index; the fingerprint column
// maps to -1.
func keyIndexes(header, keys []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		if k == HashColumn {
			out[i] = -1
			continue
		}
		p, ok := pos[k]
		if !ok {
			return nil, eris.Errorf("ingest: conflict key %q not in header", k)
		}
		out[i] = p
	}
	return out, nil
}

// prepareRows converts cells to upsert rows (blank cells become null) and
// drops rows missing a key. A conflict key repeated in the sheet keeps its
// last row.
func prepareRows(data [][]string, header []string, keyIdx []int) ([][]any, []string, int) {
	var (
		rows    [][]any
		hashes  []string
		dropped int
	)
	byKey := make(map[string]int)

	for _, cells := range data {
		key, ok := conflictKey(cells, keyIdx)
		if !ok {
			dropped++
			continue
		}

		hash := RowHash(header, cells)
		row := make([]any, len(header)+1)
		for i := range header {
			var cell string
			if i < len(cells) {
				cell = strings.TrimSpace(cells[i])
			}
			if cell != "" {
				row[i] = cell
			}
		}
		row[len(header)] = hash
		if key == "" {
			key = hash
		}

		if at, dup := byKey[key]; dup {
			rows[at] = row
			hashes[at] = hash
			continue
		}
		byKey[key] = len(rows)
		rows = append(rows, row)
		hashes = append(hashes, hash)
	}
	return rows, hashes, dropped
}

// conflictKey joins the key cells of a row. It returns "" and true when the
// fingerprint is the only key.
func conflictKey(cells []string, keyIdx []int) (string, bool) {
	parts := make([]string, 0, len(keyIdx))
	for _, i := range keyIdx {
		if i < 0 {
			continue
		}
		if i >= len(cells) || strings.TrimSpace(cells[i]) == "" {
			return "", false
		}
		parts = append(parts, strings.TrimSpace(cells[i]))
	}
	return strings.Join(parts, "\x1f"), true
}

func updateColumns(columns, keys []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	out := []string{}
	for _, c := range columns {
		if !isKey[c] {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		out = append(out, "updated_at")
	}
	return out
}

func ensureTableSQL(table string, header, keys []string) []string {
	ident := db.Identifier(table)
	quoted := ident.Sanitize()

	add := make([]string, len(header))
	for i, h := range header {
		add[i] = fmt.Sprintf("ADD COLUMN IF NOT EXISTS %s TEXT", pgx.Identifier{h}.Sanitize())
	}
	keyCols := make([]string, len(keys))
	for i, k := range keys {
		keyCols[i] = pgx.Identifier{k}.Sanitize()
	}
	index := pgx.Identifier{ident[len(ident)-1] + "_conflict_key"}.Sanitize()

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			row_hash   TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, quoted),
		fmt.Sprintf("ALTER TABLE %s %s", quoted, strings.Join(add, ", ")),
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)", index, quoted, strings.Join(keyCols, ", ")),
	}
}
