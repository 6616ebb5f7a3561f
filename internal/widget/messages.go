package widget

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/solatis/cpq/internal/types"
)

// Outbound message types.
const (
	TypeReady         = "cpq-configurator-ready"
	TypeChange        = "cpq-configuration-change"
	TypeComplete      = "cpq-configuration-complete"
	TypeResize        = "cpq-configurator-resize"
	TypeConfiguration = "cpq-configuration"
)

// Inbound message types.
const (
	TypeSetTheme          = "cpq-set-theme"
	TypeLoadConfiguration = "cpq-load-configuration"
	TypeGetConfiguration  = "cpq-get-configuration"
)

// Message is the {type, data} envelope exchanged with the host page.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals data into a message of the given type.
func NewMessage(msgType string, data any) (Message, error) {
	if data == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return Message{Type: msgType, Data: raw}, nil
}

// ResizeData is the payload of TypeResize.
type ResizeData struct {
	Height int `json:"height"`
}

// ThemeData is the payload of TypeSetTheme.
type ThemeData struct {
	Theme string `json:"theme"`
}

// LoadConfigurationData is the payload of TypeLoadConfiguration. Config is a
// share token.
type LoadConfigurationData struct {
	Config string `json:"config"`
}

// ChangeData is the payload of TypeChange.
type ChangeData struct {
	ModelID     types.ModelID        `json:"model_id"`
	Selections  types.Selections     `json:"selections"`
	IsValid     bool                 `json:"is_valid"`
	Violations  []types.Violation    `json:"violations"`
	Pricing     *types.PricingResult `json:"pricing"`
	Subtotal    float64              `json:"subtotal"`
	CurrentStep int                  `json:"current_step"`
	Completion  int                  `json:"completion_percentage"`
	Phase       string               `json:"phase"`
}

const inboundSchemaJSON = `{
  "type": "object",
  "required": ["type"],
  "properties": {"type": {"type": "string", "minLength": 1}},
  "oneOf": [
    {
      "properties": {
        "type": {"const": "cpq-set-theme"},
        "data": {
          "type": "object",
          "required": ["theme"],
          "properties": {"theme": {"type": "string", "minLength": 1}}
        }
      },
      "required": ["data"]
    },
    {
      "properties": {
        "type": {"const": "cpq-load-configuration"},
        "data": {
          "type": "object",
          "required": ["config"],
          "properties": {"config": {"type": "string", "minLength": 1}}
        }
      },
      "required": ["data"]
    },
    {
      "properties": {"type": {"const": "cpq-get-configuration"}}
    }
  ]
}`

var inboundSchema = jsonschema.MustCompileString("https://schemas.cpq.local/widget/inbound.json", inboundSchemaJSON)

var inboundTypes = map[string]bool{
	TypeSetTheme:          true,
	TypeLoadConfiguration: true,
	TypeGetConfiguration:  true,
}

// checkInbound rejects unknown types with ErrUnknownMessage and
// malformed payloads with ErrBadPayload.
func checkInbound(msg Message) error {
	if !inboundTypes[msg.Type] {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := inboundSchema.Validate(generic); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, msg.Type, err)
	}
	return nil
}
