package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://conquest.ai/schemas/"

var schemaFiles = map[string]string{
	TypeHello:           "hello.schema.json",
	TypeConnect:         "connect.schema.json",
	TypeAccountsChanged: "accounts_changed.schema.json",
	TypeAct:             "act.schema.json",
	TypeWelcome:         "welcome.schema.json",
	TypeState:           "state.schema.json",
	TypeActionResult:    "action_result.schema.json",
}

// Validator checks messages against the embedded JSON schemas, keyed by type.
// A compiled Validator is safe for concurrent use.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	for _, name := range schemaFiles {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBaseURL+name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	for typ, name := range schemaFiles {
		s, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

// Validate decodes the message type and checks raw against its schema.
// Unknown types are rejected.
func (v *Validator) Validate(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, fmt.Errorf("decode: %w", err)
	}
	s, ok := v.byType[base.Type]
	if !ok {
		return base, fmt.Errorf("unknown message type %q", base.Type)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return base, fmt.Errorf("decode: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return base, err
	}
	return base, nil
}

// ValidateValue marshals v and validates the result. Used for outbound messages in tests.
func (v *Validator) ValidateValue(x any) error {
	b, err := json.Marshal(x)
	if err != nil {
		return err
	}
	_, err = v.Validate(b)
	return err
}
