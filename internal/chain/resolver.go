package chain

import (
	"math/big"
	"strings"
)

// defaultAliases maps backend or user-supplied labels to canonical names.
// Keys are stored lower-case; separator variants are handled by normalizeName.
func defaultAliases() map[string]string {
	return map[string]string{
		"bsc":                 "bnb",
		"binance":             "bnb",
		"binance-smart-chain": "bnb",
		"bnb-smart-chain":     "bnb",

		"ethereum": "eth",
		"mainnet":  "eth",

		"polygon": "matic",
		"pol":     "matic",

		"monad":         "monad-testnet",
		"monad_testnet": "monad-testnet",
		"monad testnet": "monad-testnet",

		"u2u network": "u2u",
		"u2u_testnet": "u2u",
		"u2u testnet": "u2u",
	}
}

// normalizeName collapses runs of '_', ' ' and '-' into a single '-'.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if r == '_' || r == ' ' || r == '-' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('-')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Canonical maps a free-form chain name to its canonical registry name.
func (r *Registry) Canonical(raw string) (string, bool) {
	clean := strings.ToLower(strings.TrimSpace(raw))
	if clean == "" {
		return "", false
	}
	key := normalizeName(clean)
	if canonical, ok := r.aliases[key]; ok {
		if _, exists := r.chains[canonical]; exists {
			return canonical, true
		}
	}
	for _, candidate := range []string{clean, key} {
		if _, ok := r.chains[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// Resolve returns the numeric chain ID for a free-form name.
// Absence is reported with false; callers decide how to fail.
func (r *Registry) Resolve(raw string) (*big.Int, bool) {
	name, ok := r.Canonical(raw)
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(r.chains[name].ChainID), true
}

// Label returns a human-readable chain name, or raw when it does not resolve.
func (r *Registry) Label(raw string) string {
	name, ok := r.Canonical(raw)
	if !ok {
		return raw
	}
	return r.chains[name].Name
}
