package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"catalog-cart-service/internal/catalog"
	"catalog-cart-service/internal/domain"
)

const (
	CatalogSourceHTTP     = "http"
	CatalogSourcePostgres = "postgres"

	CartDriverSQLite   = "sqlite"
	CartDriverPostgres = "postgres"
	CartDriverMemory   = "memory"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Catalog    CatalogConfig
	Scroll     ScrollConfig
	Cart       CartConfig
	// Checked only when a component uses PostgreSQL, see UsesPostgres.
	Postgres PostgresConfig `validate:"-"`
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080" validate:"required,numeric"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s" validate:"gt=0"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s" validate:"gt=0"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s" validate:"gt=0"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090" validate:"required,numeric"`
}

// CatalogConfig selects where catalog pages come from.
type CatalogConfig struct {
	Source       string        `envconfig:"CATALOG_SOURCE" default:"http" validate:"oneof=http postgres"`
	BaseURL      string        `envconfig:"CATALOG_BASE_URL" default:"https://dummyjson.com" validate:"required,url"`
	FetchTimeout time.Duration `envconfig:"CATALOG_FETCH_TIMEOUT" default:"10s" validate:"gt=0"`
	PageSize     int           `envconfig:"CATALOG_PAGE_SIZE" default:"10" validate:"pagesize"`
	Sort         string        `envconfig:"CATALOG_SORT" default:"none" validate:"oneof=asc desc none"`
}

// SortOrder is the price ordering the catalog starts with.
func (cc *CatalogConfig) SortOrder() domain.SortOrder {
	return domain.SortOrder(cc.Sort)
}

// ScrollConfig tunes the infinite scroll trigger.
type ScrollConfig struct {
	Threshold float64       `envconfig:"SCROLL_THRESHOLD" default:"100" validate:"gte=0"`
	Debounce  time.Duration `envconfig:"SCROLL_DEBOUNCE" default:"300ms" validate:"gte=0"`
}

// CartConfig selects the durable store behind the cart.
type CartConfig struct {
	Driver     string `envconfig:"CART_STORE_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres memory"`
	SQLitePath string `envconfig:"CART_SQLITE_PATH" default:"data/cart.db" validate:"required_if=Driver sqlite"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" validate:"required"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432" validate:"required,numeric"`
	User     string `envconfig:"POSTGRES_USER" validate:"required"`
	Password string `envconfig:"POSTGRES_PASSWORD" validate:"required"`
	DBName   string `envconfig:"POSTGRES_DBNAME" validate:"required"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName)
}

// UsesPostgres reports whether the catalog source or the cart store needs a
// PostgreSQL connection.
func (c *Config) UsesPostgres() bool {
	return c.Catalog.Source == CatalogSourcePostgres || c.Cart.Driver == CartDriverPostgres
}

// IsDevelopment reports whether human-friendly output should be used.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("pagesize", func(fl validator.FieldLevel) bool {
		return catalog.ValidPageSize(int(fl.Field().Int()))
	})
	return v
}

// Load reads the configuration from environment variables and validates it.
// It should be called once during application startup, after any .env file
// has been loaded into the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.UsesPostgres() {
		if err := validate.Struct(&cfg.Postgres); err != nil {
			return nil, fmt.Errorf("invalid postgres configuration: %w", err)
		}
	}
	return &cfg, nil
}
