package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"catalog-cart-service/internal/catalog"
	"catalog-cart-service/internal/config"
	"catalog-cart-service/internal/store"
)

// openPostgres connects and pings once. It returns nil when no component
// is configured to use PostgreSQL.
func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	if !cfg.UsesPostgres() {
		return nil, nil
	}
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("database connection established",
		zap.String("host", cfg.Postgres.Host), zap.String("dbname", cfg.Postgres.DBName))
	return db, nil
}

// openCartStore returns the durable store selected by CART_STORE_DRIVER.
func openCartStore(ctx context.Context, cfg *config.Config, pg *sql.DB, logger *zap.Logger) (store.Backend, error) {
	switch cfg.Cart.Driver {
	case config.CartDriverMemory:
		logger.Warn("cart store is in memory, entries will not survive a restart")
		return store.NewMemoryStore(), nil
	case config.CartDriverPostgres:
		if pg == nil {
			return nil, fmt.Errorf("cart store %q needs a database connection", cfg.Cart.Driver)
		}
		s := store.NewPostgresStore(pg, logger)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case config.CartDriverSQLite:
		s, err := store.OpenSQLite(cfg.Cart.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("cart store opened", zap.String("driver", "sqlite"), zap.String("path", cfg.Cart.SQLitePath))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cart store driver %q", cfg.Cart.Driver)
	}
}

// newCatalogSource returns the Source selected by CATALOG_SOURCE.
func newCatalogSource(cfg *config.Config, pg *sql.DB, logger *zap.Logger) (catalog.Source, error) {
	switch cfg.Catalog.Source {
	case config.CatalogSourcePostgres:
		if pg == nil {
			return nil, fmt.Errorf("catalog source %q needs a database connection", cfg.Catalog.Source)
		}
		return catalog.NewStoreSource(store.NewPostgresStore(pg, logger)), nil
	case config.CatalogSourceHTTP:
		// The coordinator bounds each fetch; the client timeout is a backstop.
		client := &http.Client{Timeout: 2 * cfg.Catalog.FetchTimeout}
		return catalog.NewHTTPSource(cfg.Catalog.BaseURL, client)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}
