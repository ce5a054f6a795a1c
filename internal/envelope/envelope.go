// Package envelope decodes the remote agent's response envelope into a
// tagged intent. The agent is not consistent about payload shape, so both
// flat and nested transaction payloads normalize to one TransactionIntent.
package envelope

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidResponse is returned when the envelope output is not decodable.
var ErrInvalidResponse = errors.New("invalid response format")

// ActionType is the agent's tag for a reply.
type ActionType string

const (
	ActionChat        ActionType = "chat"
	ActionTransaction ActionType = "transaction"
)

// Envelope is the wire record returned by the agent's query endpoint.
// Output is itself a JSON document.
type Envelope struct {
	Output     string     `json:"output"`
	ActionType ActionType `json:"action_type,omitempty"`
}

// Kind discriminates Intent.
type Kind int

const (
	KindChat Kind = iota
	KindTransaction
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindTransaction:
		return "transaction"
	default:
		return "unexpected"
	}
}

// ChatIntent is a plain message for the chat log.
type ChatIntent struct {
	Message string
}

// TransactionIntent is a requested native transfer, not yet validated.
type TransactionIntent struct {
	Chain     string `json:"chain"`
	Recipient string `json:"recipient"`
	Amount    Amount `json:"amount"`
	Sender    string `json:"sender,omitempty"`
}

// Missing lists required fields that are empty.
func (t *TransactionIntent) Missing() []string {
	var missing []string
	if strings.TrimSpace(t.Chain) == "" {
		missing = append(missing, "chain")
	}
	if strings.TrimSpace(t.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if strings.TrimSpace(string(t.Amount)) == "" {
		missing = append(missing, "amount")
	}
	return missing
}

// Intent is the decoded envelope. Exactly one of Chat or Transaction is set
// for KindChat and KindTransaction; KindUnexpected carries only ActionType.
type Intent struct {
	Kind        Kind
	ActionType  string
	Chat        *ChatIntent
	Transaction *TransactionIntent
}

// Amount keeps the agent's amount verbatim whether it arrived as a JSON
// number or a string, so precision is never lost to float conversion.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
	default:
		var n jsoniter.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = Amount(n.String())
	}
	return nil
}

func (a Amount) String() string { return string(a) }

// Parse decodes env into an Intent.
//
// An outer "chat" tag wins over whatever the payload says. Otherwise the
// payload's own action_type decides; unknown tags yield KindUnexpected rather
// than defaulting to either branch.
func Parse(env Envelope) (Intent, error) {
	raw := []byte(strings.TrimSpace(env.Output))
	if len(raw) == 0 || !json.Valid(raw) {
		return Intent{}, ErrInvalidResponse
	}

	if env.ActionType == ActionChat {
		return Intent{
			Kind:       KindChat,
			ActionType: string(ActionChat),
			Chat:       &ChatIntent{Message: chatMessage(raw)},
		}, nil
	}

	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Valid JSON but not an object: there is no tag to act on.
		return Intent{Kind: KindUnexpected}, nil
	}

	tag := stringField(fields["action_type"])
	switch ActionType(tag) {
	case ActionChat:
		return Intent{
			Kind:       KindChat,
			ActionType: tag,
			Chat:       &ChatIntent{Message: stringField(fields["message"])},
		}, nil

	case ActionTransaction:
		src := raw
		if nested, ok := fields["transaction"]; ok && isObject(nested) {
			src = nested
		}
		var t TransactionIntent
		if err := json.Unmarshal(src, &t); err != nil {
			return Intent{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		t.Chain = strings.TrimSpace(t.Chain)
		t.Recipient = strings.TrimSpace(t.Recipient)
		t.Sender = strings.TrimSpace(t.Sender)
		return Intent{Kind: KindTransaction, ActionType: tag, Transaction: &t}, nil

	default:
		return Intent{Kind: KindUnexpected, ActionType: tag}, nil
	}
}

// chatMessage extracts display text from a payload tagged as chat.
func chatMessage(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		tag := stringField(fields["action_type"])
		if msg, ok := fields["message"]; ok && (tag == "" || tag == string(ActionChat)) {
			if text := stringField(msg); text != "" {
				return text
			}
		}
	}
	var compact bytes.Buffer
	if err := jsonCompact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

func jsonCompact(dst *bytes.Buffer, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dst.Write(b)
	return nil
}

func stringField(raw jsoniter.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isObject(raw jsoniter.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
