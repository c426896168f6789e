package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"catalog-cart-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrKeyNotFound      = errors.New("store: key not found")
	ErrEmptyKey         = errors.New("store: empty key")
	ErrSchemaNotCreated = errors.New("store: schema has not been created")
)

// undefined_table, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const pqUndefinedTable = "42P01"

// PostgresStore implements KeyValueStore for the cart and ProductLister for
// the catalog using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger.Named("postgres")}
}

// EnsureSchema creates the cart table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS cart;
		CREATE TABLE IF NOT EXISTS cart.entries (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("store: EnsureSchema failed: %w", err)
	}
	return nil
}

// mapPQError translates driver errors the callers can act on.
func mapPQError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUndefinedTable {
		return fmt.Errorf("store: %s failed: %w", op, ErrSchemaNotCreated)
	}
	return fmt.Errorf("store: %s failed: %w", op, err)
}

// --- KeyValueStore Implementation ---

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	query := `SELECT value FROM cart.entries WHERE key = $1;`
	var value string
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", mapPQError("Get", err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	// Concurrent writers resolve as last-writer-wins.
	query := `
		INSERT INTO cart.entries (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return mapPQError("Set", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	query := `DELETE FROM cart.entries WHERE key = $1;`
	result, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return mapPQError("Remove", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug("remove of absent key", zap.String("key", key))
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	query := `SELECT key FROM cart.entries ORDER BY key;`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapPQError("Keys", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store: Keys failed to scan row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: Keys iteration error: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cart.entries;`).Scan(&n); err != nil {
		return 0, mapPQError("Len", err)
	}
	return n, nil
}

// --- ProductLister Implementation ---

func (s *PostgresStore) ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Item, int, error) {
	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if params.SearchQuery != nil && *params.SearchQuery != "" {
		// Search in title OR description
		whereClauses = append(whereClauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argID, argID+1))
		searchTerm := "%" + *params.SearchQuery + "%"
		queryArgs = append(queryArgs, searchTerm, searchTerm)
		argID += 2
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM products.products" + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, mapPQError("ListProducts count", err)
	}

	if totalCount == 0 {
		return []domain.Item{}, 0, nil
	}

	orderBy := "id ASC"
	switch strings.ToLower(params.SortOrder) {
	case "asc":
		orderBy = "price ASC, id ASC"
	case "desc":
		orderBy = "price DESC, id ASC"
	}

	dataQuery := fmt.Sprintf("SELECT id, title, price, thumbnail FROM products.products%s ORDER BY %s LIMIT $%d OFFSET $%d",
		whereCondition, orderBy, argID, argID+1)
	finalQueryArgs := append(queryArgs, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, dataQuery, finalQueryArgs...)
	if err != nil {
		return nil, 0, mapPQError("ListProducts query", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0, params.Limit)
	for rows.Next() {
		var it domain.Item
		var thumbnail sql.NullString
		if err := rows.Scan(&it.ID, &it.Title, &it.Price, &thumbnail); err != nil {
			return nil, 0, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		it.Thumbnail = thumbnail.String
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}

	return items, totalCount, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		s.logger.Info("closing database connection pool")
		if err := s.db.Close(); err != nil {
			s.logger.Error("failed to close database connection pool", zap.Error(err))
			return err
		}
		return nil
	}
	return nil
}
