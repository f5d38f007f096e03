package repo

import (
	"context"
	"fmt"

	"github.com/radieske/points-prediction-market/internal/shared/db"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open cria o store do driver informado; no Postgres aplica o Schema antes de retornar
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverPostgres, "":
		pg, err := db.ConnectPostgres(dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.Migrate(ctx, pg, Schema...); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return NewPostgres(pg), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
