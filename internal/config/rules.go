package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MarketRules is the YAML rules file. Zero values leave the env setting in place.
type MarketRules struct {
	CollectionPageSize int `yaml:"collection_page_size"`
	MaxHistoryEntries  int `yaml:"max_history_entries"`

	Slots struct {
		Sell int `yaml:"sell"`
		Buy  int `yaml:"buy"`
	} `yaml:"slots"`

	Price struct {
		Min int `yaml:"min"`
		Max int `yaml:"max"`
	} `yaml:"price"`

	MaxQuantity int `yaml:"max_quantity"`

	Durations struct {
		DefaultSellHours int `yaml:"default_sell_hours"`
		MaxSellHours     int `yaml:"max_sell_hours"`
		MaxBuyDays       int `yaml:"max_buy_days"`
	} `yaml:"durations"`

	CreateCooldownMillis int `yaml:"create_cooldown_ms"`
	PriceHistorySize     int `yaml:"price_history_size"`
	AuditLogSize         int `yaml:"audit_log_size"`
}

// LoadMarketRules reads a rules file.
func LoadMarketRules(path string) (MarketRules, error) {
	var r MarketRules
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("market rules: %w", err)
	}
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("market rules %s: %w", path, err)
	}
	return r, nil
}

// Apply overrides the non-zero rule values onto m.
func (r MarketRules) Apply(m *MarketConfig) {
	set := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	set(&m.CollectionPageSize, r.CollectionPageSize)
	set(&m.MaxHistoryEntries, r.MaxHistoryEntries)
	set(&m.SellSlots, r.Slots.Sell)
	set(&m.BuySlots, r.Slots.Buy)
	set(&m.MinPrice, r.Price.Min)
	set(&m.MaxPrice, r.Price.Max)
	set(&m.MaxQuantity, r.MaxQuantity)
	set(&m.DefaultSellDurationHours, r.Durations.DefaultSellHours)
	set(&m.MaxSellDurationHours, r.Durations.MaxSellHours)
	set(&m.MaxBuyDurationDays, r.Durations.MaxBuyDays)
	set(&m.PriceHistorySize, r.PriceHistorySize)
	set(&m.AuditLogSize, r.AuditLogSize)
	if r.CreateCooldownMillis != 0 {
		m.CreateCooldown = time.Duration(r.CreateCooldownMillis) * time.Millisecond
	}
}
