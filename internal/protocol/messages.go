package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// CONNECT (client -> server): ask the wallet adapter for an account.
// Address is a hint; adapters that own account selection may ignore it.
type ConnectMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Address         string `json:"address,omitempty"`
}

// ACCOUNTS_CHANGED (client -> server). An empty list disconnects.
type AccountsChangedMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Accounts        []string `json:"accounts"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Action          string `json:"action"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	Powerup         string `json:"powerup,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	GridSize        int        `json:"grid_size"`
	Params          GameParams `json:"params"`
}

type GameParams struct {
	InitialPrice       float64  `json:"initial_price"`
	PriceMultiplier    float64  `json:"price_multiplier"`
	BaseYield          float64  `json:"base_yield"`
	UpgradeYieldFactor float64  `json:"upgrade_yield_factor"`
	UpgradeCost        float64  `json:"upgrade_cost"`
	PowerupCost        float64  `json:"powerup_cost"`
	AccrualPeriodMs    int64    `json:"accrual_period_ms"`
	TxLatencyMs        int64    `json:"tx_latency_ms"`
	Powerups           []string `json:"powerups"`
}
