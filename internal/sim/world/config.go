package world

import (
	"time"

	"conquest.ai/internal/sim/territory"
)

type Config struct {
	SessionID string

	InitialPrice       float64
	PriceMultiplier    float64
	BaseYield          float64
	UpgradeYieldFactor float64
	UpgradeCost        float64
	PowerupCost        float64

	AccrualPeriod time.Duration
	TxLatency     time.Duration
	WalletTimeout time.Duration

	Colors         []string
	LeaderboardTop int

	// Seed drives cosmetic color picks. Zero seeds from the wall clock.
	Seed int64

	// Now overrides the wall clock (tests).
	Now func() time.Time
}

// applyDefaults fills unset fields. It uses the same bounds as
// tuning.Validate, so a validated tuning passes through unchanged.
func (c *Config) applyDefaults() {
	if c.SessionID == "" {
		c.SessionID = "local"
	}
	if c.InitialPrice <= 0 {
		c.InitialPrice = 0.01
	}
	if c.PriceMultiplier <= 1 {
		c.PriceMultiplier = 1.5
	}
	if c.BaseYield <= 0 {
		c.BaseYield = 0.001
	}
	if c.UpgradeYieldFactor < 1 {
		c.UpgradeYieldFactor = 1.5
	}
	if c.UpgradeCost <= 0 {
		c.UpgradeCost = 0.01
	}
	if c.PowerupCost <= 0 {
		c.PowerupCost = 0.005
	}
	if c.AccrualPeriod <= 0 {
		c.AccrualPeriod = time.Minute
	}
	if c.TxLatency <= 0 {
		c.TxLatency = time.Second
	}
	if c.WalletTimeout <= 0 {
		c.WalletTimeout = 10 * time.Second
	}
	if len(c.Colors) == 0 {
		c.Colors = append([]string(nil), territory.Colors...)
	}
	if c.LeaderboardTop <= 0 {
		c.LeaderboardTop = 5
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
