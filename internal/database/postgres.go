package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpq"
	"github.com/pressly/goose/v3"

	"github.com/aditya/go-carpool/internal/database/migrations"
)

type PostgresDB struct {
	*sqlx.DB
}

// NewPostgres opens the pool. With instrument set the nrpq driver is used so
// queries show up as New Relic datastore segments.
func NewPostgres(databaseURL string, maxConns, maxIdleConns int, instrument bool) (*PostgresDB, error) {
	driverName := "postgres"
	if instrument {
		driverName = "nrpostgres"
	}

	db, err := sqlx.Connect(driverName, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

// Migrate applies the embedded goose migrations.
func (p *PostgresDB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, p.DB.DB, ".")
}

func (p *PostgresDB) Close() error {
	return p.DB.Close()
}

func (p *PostgresDB) Health(ctx context.Context) error {
	return p.PingContext(ctx)
}
