package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/certspend/internal/store"
)

// openStore connects to the configured Postgres database.
func openStore(ctx context.Context) (*store.PostgresStore, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("certspend: no database_url configured (set store.database_url)")
	}
	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "certspend: connect to database")
	}
	return st, nil
}
