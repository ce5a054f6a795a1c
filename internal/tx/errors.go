package tx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/monagent/chainpilot/internal/chain"
)

// Kind classifies a transaction failure for the user.
// A Kind is itself an error so callers can test with errors.Is(err, KindInvalidAmount).
type Kind string

const (
	KindWalletNotConnected   Kind = "wallet_not_connected"
	KindUnsupportedChain     Kind = "unsupported_chain"
	KindInvalidRecipient     Kind = "invalid_recipient"
	KindInvalidAmount        Kind = "invalid_amount"
	KindEnvelopeParseFailure Kind = "envelope_parse_failure"
	KindPolicyViolation      Kind = "policy_violation"
	KindSendRejected         Kind = "send_rejected"
	KindSendFailed           Kind = "send_failed"
)

func (k Kind) Error() string { return string(k) }

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches a Kind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind carried by err, or KindSendFailed for unclassified errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindSendFailed
}

var (
	// ErrSendInFlight is returned when a confirm arrives while a send is outstanding.
	ErrSendInFlight = errors.New("a transaction is already being sent")
	// ErrNoPending is returned when there is nothing to confirm.
	ErrNoPending = errors.New("no pending transaction")
	// ErrUserRejected is returned by wallets when the user declines a request.
	ErrUserRejected = errors.New("user rejected the request")
)

// EIP-1193 provider error code for a user rejection.
const codeUserRejected = 4001

type rpcCoder interface {
	ErrorCode() int
}

// IsUserRejection reports whether the wallet refused because the user declined.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var coded rpcCoder
	if errors.As(err, &coded) && coded.ErrorCode() == codeUserRejected {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

// chainMismatchSignatures are the error texts wallet connectors use when the
// connector's network differs from the wallet's. Matching on text is kept for
// connectors that do not return a typed error.
var chainMismatchSignatures = []string{
	"chainmismatcherror",
	"connectorchainmismatcherror",
	"chain mismatch",
	"chain id mismatch",
	"does not match the target chain",
}

// IsChainMismatch reports whether err is a connector/wallet network mismatch.
func IsChainMismatch(err error) bool {
	if err == nil {
		return false
	}
	var mismatch *chain.MismatchError
	if errors.As(err, &mismatch) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range chainMismatchSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// classifySendError maps a wallet error to SendRejected or SendFailed.
func classifySendError(err error, action string) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if IsUserRejection(err) {
		return newError(KindSendRejected, err, "%s rejected in wallet", action)
	}
	return newError(KindSendFailed, err, "%s failed: %v", action, err)
}
