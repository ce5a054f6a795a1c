package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/monagent/chainpilot/internal/envelope"
	"github.com/monagent/chainpilot/internal/tx"
)

// ReplyKind discriminates Reply.
type ReplyKind int

const (
	ReplyNone ReplyKind = iota
	ReplyChat
	ReplyTransaction
	ReplyUnexpected
	ReplyError
)

// Reply is what the UI shows for one user message.
type Reply struct {
	Kind    ReplyKind
	Text    string
	Pending *tx.Pending // set for ReplyTransaction
	Err     error       // set for ReplyError
}

// Session glues the agent, the session store and the orchestrator together.
type Session struct {
	backend    Backend
	store      SessionStore
	orch       *tx.Orchestrator
	logger     *zap.Logger
	transcript *Transcript

	mu     sync.Mutex
	state  SessionState
	loaded bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l.Named("session")
		}
	}
}

// WithTranscript records the conversation to t.
func WithTranscript(t *Transcript) SessionOption {
	return func(s *Session) { s.transcript = t }
}

// NewSession creates a chat session.
func NewSession(backend Backend, store SessionStore, orch *tx.Orchestrator, opts ...SessionOption) *Session {
	s := &Session{
		backend: backend,
		store:   store,
		orch:    orch,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) load() error {
	if s.loaded {
		return nil
	}
	st, err := s.store.Load()
	if err != nil {
		return err
	}
	s.state = st
	s.loaded = true
	return nil
}

// EnsureUser returns the stored user id, asking the agent for one if needed.
func (s *Session) EnsureUser(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return "", err
	}
	if s.state.UserID != "" {
		return s.state.UserID, nil
	}

	id, err := s.backend.Start(ctx)
	if err != nil {
		return "", fmt.Errorf("start agent session: %w", err)
	}
	s.state.UserID = id
	if err := s.store.Save(s.state); err != nil {
		s.logger.Warn("failed to persist user id", zap.Error(err))
	}
	s.logger.Info("agent session started", zap.String("user_id", id))
	return id, nil
}

// Send forwards text to the agent and interprets the answer. Transport and
// decoding problems become a fallback chat line rather than an error.
func (s *Session) Send(ctx context.Context, text string) Reply {
	if strings.TrimSpace(text) == "" {
		return Reply{Kind: ReplyNone}
	}
	s.transcript.User(text)

	reply := s.send(ctx, text)
	s.transcript.Reply(reply)
	return reply
}

func (s *Session) send(ctx context.Context, text string) Reply {
	userID, err := s.EnsureUser(ctx)
	if err != nil {
		s.logger.Warn("no agent session", zap.Error(err))
		return Reply{Kind: ReplyError, Text: MsgRequestFailed, Err: err}
	}

	env, err := s.backend.Query(ctx, userID, text)
	if err != nil {
		s.logger.Warn("agent query failed", zap.Error(err))
		return Reply{Kind: ReplyError, Text: MsgRequestFailed, Err: err}
	}
	s.transcript.Envelope(env)

	intent, err := envelope.Parse(env)
	if err != nil {
		s.logger.Warn("agent envelope rejected", zap.Error(err))
		return Reply{Kind: ReplyError, Text: MsgRequestFailed, Err: &tx.Error{
			Kind:    tx.KindEnvelopeParseFailure,
			Message: err.Error(),
			Err:     err,
		}}
	}

	switch intent.Kind {
	case envelope.KindChat:
		msg := intent.Chat.Message
		if msg == "" {
			msg = MsgEmptyChat
		}
		return Reply{Kind: ReplyChat, Text: msg}

	case envelope.KindTransaction:
		if missing := intent.Transaction.Missing(); len(missing) > 0 {
			err := &tx.Error{
				Kind:    tx.KindEnvelopeParseFailure,
				Message: "missing transaction fields: " + strings.Join(missing, ", "),
			}
			return Reply{Kind: ReplyError, Text: MsgMissingDetails, Err: err}
		}
		p, err := s.orch.Receive(ctx, intent.Transaction, env)
		if err != nil {
			return Reply{Kind: ReplyError, Text: FailedMessage(err), Err: err}
		}
		return Reply{Kind: ReplyTransaction, Text: MsgTxInitiating, Pending: p}

	default:
		s.logger.Info("unexpected agent action", zap.String("action_type", intent.ActionType))
		return Reply{Kind: ReplyUnexpected, Text: MsgUnexpected}
	}
}

// NotifyWallet tells the agent the connected address, once per address. The
// flag is persisted only after the agent accepted the message.
func (s *Session) NotifyWallet(ctx context.Context, address common.Address) error {
	if address == (common.Address{}) {
		return errors.New("no wallet address")
	}
	userID, err := s.EnsureUser(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	sent := s.state.NoticeSent(address.Hex())
	s.mu.Unlock()
	if sent {
		return nil
	}

	if _, err := s.backend.Query(ctx, userID, "My wallet address is "+address.Hex()); err != nil {
		return fmt.Errorf("send wallet address: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.markNotice(address.Hex())
	if err := s.store.Save(s.state); err != nil {
		return fmt.Errorf("persist wallet notice: %w", err)
	}
	s.logger.Info("wallet address shared with agent", zap.String("address", address.Hex()))
	return nil
}

// Reset forgets the agent user id and wallet notices. The next message
// starts a new agent session.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionState{}
	s.loaded = true
	if err := s.store.Save(s.state); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	s.logger.Info("agent session reset")
	return nil
}

// Orchestrator returns the session's transaction orchestrator.
func (s *Session) Orchestrator() *tx.Orchestrator {
	return s.orch
}

// Transcript returns the session's transcript, or nil.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}
