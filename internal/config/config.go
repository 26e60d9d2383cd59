// Package config loads runtime configuration from environment variables.
package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"

	"voltstock/internal/core/security"
)

// Config holds runtime configuration for the server.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppPort         string        `envconfig:"APP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"20s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Empty DatabaseURL selects the in-memory store.
	DatabaseURL        string        `envconfig:"DATABASE_URL"`
	DBMaxConns         int32         `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns         int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	DBAutoMigrate      bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	TxStatementTimeout time.Duration `envconfig:"TX_STATEMENT_TIMEOUT" default:"30s"`
	TxLockTimeout      time.Duration `envconfig:"TX_LOCK_TIMEOUT" default:"10s"`

	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"voltstock"`

	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	AuditCompressThreshold int `envconfig:"AUDIT_COMPRESS_THRESHOLD" default:"8192"`

	Policy PolicyConfig `envconfig:"POLICY"`
}

// PolicyConfig overrides individual authorization rules with CEL expressions,
// read from POLICY_<NAME>.
type PolicyConfig struct {
	RequestCreate   string `envconfig:"REQUEST_CREATE"`
	RequestDispatch string `envconfig:"REQUEST_DISPATCH"`
	RequestConfirm  string `envconfig:"REQUEST_CONFIRM"`
	RequestUpdate   string `envconfig:"REQUEST_UPDATE"`
	RequestDelete   string `envconfig:"REQUEST_DELETE"`
	SaleCreate      string `envconfig:"SALE_CREATE"`
	SaleDelete      string `envconfig:"SALE_DELETE"`
	ReturnCreate    string `envconfig:"RETURN_CREATE"`
	ReturnProcess   string `envconfig:"RETURN_PROCESS"`
	ReturnDelete    string `envconfig:"RETURN_DELETE"`
	InventoryAdjust string `envconfig:"INVENTORY_ADJUST"`
	HolderView      string `envconfig:"HOLDER_VIEW"`
	HistoryView     string `envconfig:"HISTORY_VIEW"`
}

// Overrides returns the rules that were set.
func (p PolicyConfig) Overrides() map[security.Action]string {
	all := map[security.Action]string{
		security.ActionRequestCreate:   p.RequestCreate,
		security.ActionRequestDispatch: p.RequestDispatch,
		security.ActionRequestConfirm:  p.RequestConfirm,
		security.ActionRequestUpdate:   p.RequestUpdate,
		security.ActionRequestDelete:   p.RequestDelete,
		security.ActionSaleCreate:      p.SaleCreate,
		security.ActionSaleDelete:      p.SaleDelete,
		security.ActionReturnCreate:    p.ReturnCreate,
		security.ActionReturnProcess:   p.ReturnProcess,
		security.ActionReturnDelete:    p.ReturnDelete,
		security.ActionInventoryAdjust: p.InventoryAdjust,
		security.ActionHolderView:      p.HolderView,
		security.ActionHistoryView:     p.HistoryView,
	}
	out := make(map[security.Action]string)
	for action, rule := range all {
		if rule != "" {
			out[action] = rule
		}
	}
	return out
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.IsProduction() {
		if cfg.JWTSecret == "" {
			return nil, errors.New("JWT_SECRET must be provided in production")
		}
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL must be provided in production")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-me"
	}
	return &cfg, nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// UsesMemoryStore reports whether no database is configured.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == ""
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.AppPort
}
