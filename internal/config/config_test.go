package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, 10, cfg.Market.CollectionPageSize)
	assert.Equal(t, 50, cfg.Market.MaxHistoryEntries)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Market.CreateCooldown)
	assert.Equal(t, 50, cfg.Market.PriceHistorySize)
	assert.Equal(t, 1000, cfg.Market.AuditLogSize)
	assert.True(t, cfg.Market.FraudDetection)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("API_KEYS", "k1,k2")
	t.Setenv("MARKET_SELL_SLOTS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.Equal(t, 4, cfg.Market.SellSlots)
}

func TestLoad_RulesFileOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
collection_page_size: 6
slots:
  sell: 8
price:
  max: 5000
durations:
  max_buy_days: 3
create_cooldown_ms: 2500
audit_log_size: 200
`), 0o600))
	t.Setenv("MARKET_RULES_PATH", path)
	t.Setenv("MARKET_BUY_SLOTS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Market.CollectionPageSize)
	assert.Equal(t, 8, cfg.Market.SellSlots)
	assert.Equal(t, 2, cfg.Market.BuySlots)
	assert.Equal(t, 1, cfg.Market.MinPrice)
	assert.Equal(t, 5000, cfg.Market.MaxPrice)
	assert.Equal(t, 3, cfg.Market.MaxBuyDurationDays)
	assert.Equal(t, 2500*time.Millisecond, cfg.Market.CreateCooldown)
	assert.Equal(t, 200, cfg.Market.AuditLogSize)
	assert.Equal(t, 50, cfg.Market.PriceHistorySize)
}

func TestLoad_MissingRulesFile(t *testing.T) {
	t.Setenv("MARKET_RULES_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestMarketConfig_Validation(t *testing.T) {
	m := MarketConfig{MinPrice: 1, MaxPrice: 100, MaxQuantity: 10, DefaultSellDurationHours: 24, MaxSellDurationHours: 48}

	assert.True(t, m.ValidPrice(1))
	assert.False(t, m.ValidPrice(101))
	assert.False(t, m.ValidQuantity(0))
	assert.False(t, m.ValidQuantity(11))
	assert.Equal(t, 24, m.NormalizeSellDuration(0))
	assert.Equal(t, 48, m.NormalizeSellDuration(100))
	assert.Equal(t, 12, m.NormalizeSellDuration(12))

	assert.Equal(t, "u:p@tcp(h:3306)/db?parseTime=true",
		(&StoreConfig{User: "u", Password: "p", Host: "h", Port: 3306, Name: "db"}).MySQLDSN())
}
