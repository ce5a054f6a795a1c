package tx

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/monagent/chainpilot/internal/chain"
)

type codedErr struct{ code int }

func (e codedErr) Error() string  { return fmt.Sprintf("rpc error %d", e.code) }
func (e codedErr) ErrorCode() int { return e.code }

func TestError_IsKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindInvalidAmount, nil, "invalid amount: %s", "0"))

	assert.ErrorIs(t, err, KindInvalidAmount)
	assert.NotErrorIs(t, err, KindInvalidRecipient)
	assert.Equal(t, KindInvalidAmount, KindOf(err))
	assert.Equal(t, KindSendFailed, KindOf(errors.New("plain")))
	assert.Equal(t, "wrapped: invalid amount: 0", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newError(KindSendFailed, cause, "send failed")
	assert.ErrorIs(t, err, cause)
}

func TestIsUserRejection(t *testing.T) {
	assert.True(t, IsUserRejection(ErrUserRejected))
	assert.True(t, IsUserRejection(fmt.Errorf("switch: %w", ErrUserRejected)))
	assert.True(t, IsUserRejection(codedErr{code: 4001}))
	assert.True(t, IsUserRejection(errors.New("User denied transaction signature")))
	assert.False(t, IsUserRejection(codedErr{code: -32000}))
	assert.False(t, IsUserRejection(errors.New("nonce too low")))
	assert.False(t, IsUserRejection(nil))
}

func TestIsChainMismatch(t *testing.T) {
	typed := &chain.MismatchError{Chain: "bnb", Expected: big.NewInt(56), Actual: big.NewInt(1)}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed", typed, true},
		{"wrapped typed", fmt.Errorf("send: %w", typed), true},
		{"connector name", errors.New("ConnectorChainMismatchError: bad"), true},
		{"short name", errors.New("ChainMismatchError"), true},
		{"phrase", errors.New("Chain mismatch detected"), true},
		{"target chain text", errors.New("The current chain of the wallet (id: 1) does not match the target chain for the transaction (id: 56)"), true},
		{"unrelated", errors.New("insufficient funds"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsChainMismatch(tt.err))
		})
	}
}

func TestClassifySendError(t *testing.T) {
	assert.ErrorIs(t, classifySendError(ErrUserRejected, "transaction"), KindSendRejected)

	failed := classifySendError(errors.New("rpc down"), "network switch")
	assert.ErrorIs(t, failed, KindSendFailed)
	assert.Equal(t, "network switch failed: rpc down", failed.Error())

	typed := newError(KindPolicyViolation, nil, "blocked")
	assert.Same(t, typed, classifySendError(typed, "transaction"))
}
