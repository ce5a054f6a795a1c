package agent

import (
	"regexp"
	"strings"
)

var redactKeys = map[string]struct{}{
	"password":    {},
	"passphrase":  {},
	"private_key": {},
	"privatekey":  {},
	"mnemonic":    {},
	"seed":        {},
	"secret":      {},
}

const redacted = "***REDACTED***"

// 32-byte hex strings in free text are treated as private keys. Transaction
// hashes never appear in what the user types.
var privateKeyPattern = regexp.MustCompile(`\b(0x)?[0-9a-fA-F]{64}\b`)

// RedactText masks anything in free text that looks like a private key.
func RedactText(s string) string {
	return privateKeyPattern.ReplaceAllString(s, redacted)
}

// RedactJSON masks secret-looking keys in a JSON document. Input that is not
// JSON is returned with free-text redaction only.
func RedactJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return RedactText(raw)
	}

	b, err := json.Marshal(redactValue(v))
	if err != nil {
		return RedactText(raw)
	}
	return string(b)
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			if _, ok := redactKeys[strings.ToLower(k)]; ok {
				out[k] = redacted
				continue
			}
			out[k] = redactValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = redactValue(t[i])
		}
		return out
	case string:
		return RedactText(t)
	default:
		return v
	}
}
