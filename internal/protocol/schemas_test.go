package protocol_test

import (
	"testing"

	"conquest.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	valid := []string{
		`{"type":"HELLO","protocol_version":"1.0","client_name":"bot1","capabilities":{"max_queue":8}}`,
		`{"type":"CONNECT","protocol_version":"1.0","address":"0xA"}`,
		`{"type":"CONNECT","protocol_version":"1.0"}`,
		`{"type":"ACCOUNTS_CHANGED","protocol_version":"1.0","accounts":[]}`,
		`{"type":"ACCOUNTS_CHANGED","protocol_version":"1.0","accounts":["0xB","0xA"]}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a1","action":"CLAIM","x":0,"y":0}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a2","action":"ADD_POWERUP","x":1,"y":1,"powerup":"Shield"}`,
	}
	for _, raw := range valid {
		if _, err := v.Validate([]byte(raw)); err != nil {
			t.Fatalf("validate %s: %v", raw, err)
		}
	}

	invalid := []string{
		`{"type":"NOPE","protocol_version":"1.0"}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a3","action":"FLY","x":0,"y":0}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a4","action":"ADD_POWERUP","x":0,"y":0}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a5","action":"CLAIM","x":"zero","y":0}`,
		`{"type":"ACCOUNTS_CHANGED","protocol_version":"1.0"}`,
		`not json`,
	}
	for _, raw := range invalid {
		if _, err := v.Validate([]byte(raw)); err == nil {
			t.Fatalf("expected rejection: %s", raw)
		}
	}
}

func TestSchemas_OutboundMessages(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "s1",
		GridSize:        8,
		Params: protocol.GameParams{
			InitialPrice:    0.01,
			PriceMultiplier: 1.5,
			BaseYield:       0.001,
			UpgradeCost:     0.01,
			PowerupCost:     0.005,
			AccrualPeriodMs: 60000,
			TxLatencyMs:     1000,
			Powerups:        []string{"2x Yield", "Shield", "Bonus"},
		},
	}
	if err := v.ValidateValue(welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}

	st := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Leaderboard:     []protocol.LeaderObs{},
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			st.Grid = append(st.Grid, protocol.TerritoryObs{X: x, Y: y, Price: 0.01, Yield: 0.001, Level: 1, Powerups: []string{}})
		}
	}
	if err := v.ValidateValue(st); err != nil {
		t.Fatalf("state: %v", err)
	}

	st.Grid = st.Grid[:10]
	if err := v.ValidateValue(st); err == nil {
		t.Fatalf("expected short grid to be rejected")
	}

	res := protocol.ActionResultMsg{
		Type:            protocol.TypeActionResult,
		ProtocolVersion: protocol.Version,
		ID:              "a1",
		Action:          protocol.ActionClaim,
		Status:          protocol.StatusPending,
		OK:              true,
		TxID:            "tx_000001",
	}
	if err := v.ValidateValue(res); err != nil {
		t.Fatalf("action result: %v", err)
	}
}
