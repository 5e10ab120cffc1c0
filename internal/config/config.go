package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server ServerConfig
	App    AppConfig
	Cache  CacheConfig
	Store  StoreConfig
	Market MarketConfig
	Auth   AuthConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"grandexchange-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"ge"`
}

// StoreConfig holds market persistence settings.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, postgres, mysql, mongodb or memory
	Path string `envconfig:"STORE_PATH" default:"./data/market.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"STORE_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_PORT" default:"5432"`
	Name     string `envconfig:"STORE_NAME" default:"grandexchange"`
	User     string `envconfig:"STORE_USER" default:"postgres"`
	Password string `envconfig:"STORE_PASS" default:""`
	SSLMode  string `envconfig:"STORE_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"grandexchange"`
}

// MarketConfig holds Grand Exchange rules.
type MarketConfig struct {
	CollectionPageSize       int           `envconfig:"MARKET_COLLECTION_PAGE_SIZE" default:"10"`
	MaxHistoryEntries        int           `envconfig:"MARKET_MAX_HISTORY_ENTRIES" default:"50"`
	SellSlots                int           `envconfig:"MARKET_SELL_SLOTS" default:"10"`
	BuySlots                 int           `envconfig:"MARKET_BUY_SLOTS" default:"3"`
	MinPrice                 int           `envconfig:"MARKET_MIN_PRICE" default:"1"`
	MaxPrice                 int           `envconfig:"MARKET_MAX_PRICE" default:"1000000000"`
	MaxQuantity              int           `envconfig:"MARKET_MAX_QUANTITY" default:"100000"`
	DefaultSellDurationHours int           `envconfig:"MARKET_SELL_DURATION_HOURS" default:"168"`
	MaxSellDurationHours     int           `envconfig:"MARKET_MAX_SELL_DURATION_HOURS" default:"336"`
	MaxBuyDurationDays       int           `envconfig:"MARKET_MAX_BUY_DURATION_DAYS" default:"14"`
	ExpiryInterval           time.Duration `envconfig:"MARKET_EXPIRY_INTERVAL" default:"1m"`
	FlushInterval            time.Duration `envconfig:"MARKET_FLUSH_INTERVAL" default:"10s"`
	RulesPath                string        `envconfig:"MARKET_RULES_PATH" default:""`

	// CreateCooldown is the minimum gap between two sell offers, or two buy
	// orders, created by one player. Zero disables it.
	CreateCooldown   time.Duration `envconfig:"MARKET_CREATE_COOLDOWN" default:"5s"`
	PriceHistorySize int           `envconfig:"MARKET_PRICE_HISTORY_SIZE" default:"50"`
	AuditLogSize     int           `envconfig:"MARKET_AUDIT_LOG_SIZE" default:"1000"`
	FraudDetection   bool          `envconfig:"MARKET_FRAUD_DETECTION" default:"true"`
}

// AuthConfig holds API key and session token settings.
type AuthConfig struct {
	APIKeys  []string      `envconfig:"API_KEYS" default:""`
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// ValidPrice reports whether price lies within the configured bounds.
func (m *MarketConfig) ValidPrice(price int) bool {
	return price >= m.MinPrice && price <= m.MaxPrice
}

// ValidQuantity reports whether quantity is positive and within the configured limit.
func (m *MarketConfig) ValidQuantity(quantity int) bool {
	return quantity > 0 && (m.MaxQuantity <= 0 || quantity <= m.MaxQuantity)
}

// NormalizeSellDuration returns hours, or the default when hours is not positive,
// capped at the maximum.
func (m *MarketConfig) NormalizeSellDuration(hours int) int {
	if hours <= 0 {
		hours = m.DefaultSellDurationHours
	}
	if m.MaxSellDurationHours > 0 && hours > m.MaxSellDurationHours {
		hours = m.MaxSellDurationHours
	}
	return hours
}

// Load reads configuration from environment variables, then applies the
// market rules file if MARKET_RULES_PATH is set.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Market.RulesPath != "" {
		rules, err := LoadMarketRules(cfg.Market.RulesPath)
		if err != nil {
			return nil, err
		}
		rules.Apply(&cfg.Market)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
