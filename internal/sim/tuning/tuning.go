package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	InitialPrice       float64 `yaml:"initial_price" json:"initial_price"`
	PriceMultiplier    float64 `yaml:"price_multiplier" json:"price_multiplier"`
	BaseYield          float64 `yaml:"base_yield" json:"base_yield"`
	UpgradeYieldFactor float64 `yaml:"upgrade_yield_factor" json:"upgrade_yield_factor"`
	UpgradeCost        float64 `yaml:"upgrade_cost" json:"upgrade_cost"`
	PowerupCost        float64 `yaml:"powerup_cost" json:"powerup_cost"`

	AccrualPeriodMs int `yaml:"accrual_period_ms" json:"accrual_period_ms"`
	TxLatencyMs     int `yaml:"tx_latency_ms" json:"tx_latency_ms"`
	WalletTimeoutMs int `yaml:"wallet_timeout_ms" json:"wallet_timeout_ms"`

	Colors         []string `yaml:"colors" json:"colors"`
	LeaderboardTop int      `yaml:"leaderboard_top" json:"leaderboard_top"`

	RateLimits RateLimits `yaml:"rate_limits" json:"rate_limits"`
}

type RateLimits struct {
	ActionsPerSecond float64 `yaml:"actions_per_second" json:"actions_per_second"`
	ActionBurst      int     `yaml:"action_burst" json:"action_burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		InitialPrice:       0.01,
		PriceMultiplier:    1.5,
		BaseYield:          0.001,
		UpgradeYieldFactor: 1.5,
		UpgradeCost:        0.01,
		PowerupCost:        0.005,
		AccrualPeriodMs:    60_000,
		TxLatencyMs:        1_000,
		WalletTimeoutMs:    10_000,
		Colors:             []string{"Red", "Blue", "Green", "Yellow", "Purple", "Orange"},
		LeaderboardTop:     5,
		RateLimits: RateLimits{
			ActionsPerSecond: 10,
			ActionBurst:      20,
		},
	}
}

// Load reads path on top of Defaults, so a file may set only what it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Validate rejects values a session cannot run with. Every economy and timing
// value must be positive, and each claim must raise the price.
func (t Tuning) Validate() error {
	switch {
	case t.InitialPrice <= 0:
		return fmt.Errorf("initial_price must be > 0")
	case t.PriceMultiplier <= 1:
		return fmt.Errorf("price_multiplier must be > 1")
	case t.BaseYield <= 0:
		return fmt.Errorf("base_yield must be > 0")
	case t.UpgradeYieldFactor < 1:
		return fmt.Errorf("upgrade_yield_factor must be >= 1")
	case t.UpgradeCost <= 0 || t.PowerupCost <= 0:
		return fmt.Errorf("upgrade_cost and powerup_cost must be > 0")
	case t.AccrualPeriodMs <= 0:
		return fmt.Errorf("accrual_period_ms must be > 0")
	case t.TxLatencyMs <= 0:
		return fmt.Errorf("tx_latency_ms must be > 0")
	case t.WalletTimeoutMs <= 0:
		return fmt.Errorf("wallet_timeout_ms must be > 0")
	case t.LeaderboardTop <= 0:
		return fmt.Errorf("leaderboard_top must be > 0")
	case len(t.Colors) == 0:
		return fmt.Errorf("colors must not be empty")
	}
	return nil
}

func (t Tuning) AccrualPeriod() time.Duration {
	return time.Duration(t.AccrualPeriodMs) * time.Millisecond
}

func (t Tuning) TxLatency() time.Duration {
	return time.Duration(t.TxLatencyMs) * time.Millisecond
}

func (t Tuning) WalletTimeout() time.Duration {
	return time.Duration(t.WalletTimeoutMs) * time.Millisecond
}
