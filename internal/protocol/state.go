package protocol

// STATE (server -> client). Sent after every change the client can see.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Address   string  `json:"address,omitempty"`
	Connected bool    `json:"connected"`
	Balance   float64 `json:"balance"`
	Earned    float64 `json:"earned"`
	Pending   int     `json:"pending"`

	Selected *CellRef `json:"selected,omitempty"`

	// Grid is row-major: Grid[y*size+x].
	Grid        []TerritoryObs `json:"grid"`
	Leaderboard []LeaderObs    `json:"leaderboard"`
}

type CellRef struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type TerritoryObs struct {
	X             int      `json:"x"`
	Y             int      `json:"y"`
	Owner         string   `json:"owner,omitempty"`
	Color         string   `json:"color,omitempty"`
	Price         float64  `json:"price"`
	LastClaimedMs int64    `json:"last_claimed_ms"`
	Yield         float64  `json:"yield"`
	Level         int      `json:"level"`
	Powerups      []string `json:"powerups"`
}

type LeaderObs struct {
	Address string  `json:"address"`
	Earned  float64 `json:"earned"`
}

// ACTION_RESULT (server -> client). A transaction reports PENDING on submit,
// then CONFIRMED or FAILED. Validation failures report FAILED directly.
type ActionResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	ID              string `json:"id"`
	Action          string `json:"action"`
	Status          string `json:"status"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	TxID            string `json:"tx_id,omitempty"`
}

// NOTICE (server -> client): user facing toast text.
type NoticeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Level           string `json:"level"`
	Code            string `json:"code,omitempty"`
	Text            string `json:"text"`
}
