package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello           = "HELLO"
	TypeWelcome         = "WELCOME"
	TypeConnect         = "CONNECT"
	TypeAccountsChanged = "ACCOUNTS_CHANGED"
	TypeAct             = "ACT"
	TypeState           = "STATE"
	TypeActionResult    = "ACTION_RESULT"
	TypeNotice          = "NOTICE"
)

// Action kinds carried by ACT.
const (
	ActionSelect     = "SELECT"
	ActionClaim      = "CLAIM"
	ActionUpgrade    = "UPGRADE"
	ActionAddPowerup = "ADD_POWERUP"
)

// Transaction status reported in ACTION_RESULT.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusFailed    = "FAILED"
)

// Notice levels.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeInfo    = "info"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
