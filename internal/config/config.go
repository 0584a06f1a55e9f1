package config

import (
	"context" // Context for envconfig lookups
	"errors"  // Validation errors
	"fmt"     // Error wrapping
	"time"    // Durations

	"github.com/joho/godotenv"          // For loading .env files
	"github.com/sethvargo/go-envconfig" // Struct tags to environment variables
	"github.com/shopspring/decimal"     // Credit limit amount
)

// Store drivers
const (
	DriverMySQL  = "mysql"  // gorm on MySQL
	DriverMemory = "memory" // In-process store, data is lost on exit
)

// Config holds the application configuration, loaded once at startup
type Config struct {
	AppPort        string        `env:"APP_PORT, default=8000"`             // Application port
	IsProd         bool          `env:"IS_PROD, default=false"`             // Is production environment
	LogLevel       string        `env:"LOG_LEVEL, default=info"`            // logrus level name
	LogFile        string        `env:"LOG_FILE"`                           // Optional copy of the log, e.g. security_events.log
	JWTSecret      string        `env:"JWT_SECRET"`                         // JWT signing secret
	TokenTTL       time.Duration `env:"TOKEN_TTL, default=2h"`              // Credential validity
	StoreDriver    string        `env:"STORE_DRIVER, default=mysql"`        // mysql or memory
	TxTimeout      time.Duration `env:"TX_TIMEOUT, default=10s"`            // Ledger transaction deadline
	TrustedProxies []string      `env:"TRUSTED_PROXIES, default=127.0.0.1"` // Proxies allowed to set X-Forwarded-For

	DB        DBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Ledger    LedgerConfig
}

// DBConfig holds the MySQL settings
type DBConfig struct {
	User            string        `env:"DB_USER"`                          // Database user
	Password        string        `env:"DB_PASSWORD"`                      // Database password
	Host            string        `env:"DB_HOST, default=127.0.0.1"`       // Database host
	Port            string        `env:"DB_PORT, default=3306"`            // Database port
	Name            string        `env:"DB_NAME, default=corebank"`        // Database name
	LockWaitTimeout time.Duration `env:"DB_LOCK_WAIT_TIMEOUT, default=5s"` // innodb_lock_wait_timeout
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS, default=20"`    // Connection pool size
}

// RedisConfig holds the Redis settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`             // Redis server address
	Password string        `env:"REDIS_PASS"`             // Redis password
	DB       int           `env:"REDIS_DB, default=0"`    // Redis database number
	CacheTTL time.Duration `env:"CACHE_TTL, default=60s"` // Account summary cache TTL
}

// RateLimitConfig bounds login and registration attempts per client
type RateLimitConfig struct {
	Max    int           `env:"RATE_LIMIT_MAX, default=10"`    // Requests per window
	Window time.Duration `env:"RATE_LIMIT_WINDOW, default=1m"` // Window length
}

// LedgerConfig holds product decisions for the ledger
type LedgerConfig struct {
	DefaultCreditLimit  decimal.Decimal `env:"DEFAULT_CREDIT_LIMIT, default=500"`    // Card limit at registration
	EnforceCreditLimit  bool            `env:"ENFORCE_CREDIT_LIMIT, default=false"`  // Reject purchases over the limit
	CheckClampedPayment bool            `env:"CHECK_CLAMPED_PAYMENT, default=false"` // Check funds against the clamped payment
}

// Load reads .env if present, then the environment
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through lookuper and validates it
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.TxTimeout <= 0 {
		errs = append(errs, errors.New("TX_TIMEOUT must be positive"))
	}
	switch c.StoreDriver {
	case DriverMySQL:
		if c.DB.LockWaitTimeout <= 0 {
			errs = append(errs, errors.New("DB_LOCK_WAIT_TIMEOUT must be positive"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of mysql, memory", c.StoreDriver))
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive"))
	}
	if !c.Ledger.DefaultCreditLimit.IsPositive() {
		errs = append(errs, errors.New("DEFAULT_CREDIT_LIMIT must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the HTTP listen address
func (c *Config) Addr() string { return ":" + c.AppPort }
