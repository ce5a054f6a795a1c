package tx

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/monagent/chainpilot/internal/chain"
	"github.com/monagent/chainpilot/internal/envelope"
)

// State is the orchestrator's position in the transfer lifecycle.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateAwaitingConfirmation
	StateSending
	StateSent
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateSending:
		return "sending"
	case StateSent:
		return "sent"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a lifecycle.
func (s State) Terminal() bool {
	return s == StateSent || s == StateFailed || s == StateCancelled
}

// Result is reported to recorders when a lifecycle ends.
type Result struct {
	Pending Pending
	State   State
	Outcome *Outcome
	Err     error
	At      time.Time
}

// OutcomeRecorder receives every terminal result.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, r Result)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy applies p to every intent and override.
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l.Named("tx")
		}
	}
}

// WithRecorder adds r to the recorders notified of terminal results.
func WithRecorder(r OutcomeRecorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorders = append(o.recorders, r)
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator turns transaction intents into wallet submissions. It holds at
// most one pending transfer and allows at most one send in flight.
type Orchestrator struct {
	wallet    Wallet
	registry  *chain.Registry
	policy    Policy
	logger    *zap.Logger
	recorders []OutcomeRecorder
	now       func() time.Time

	mu          sync.Mutex
	state       State
	pending     *Pending
	sending     bool
	lastErr     error
	invalidated error
	seq         uint64

	unsubscribe func()
}

// NewOrchestrator creates an orchestrator over w. If w publishes events the
// orchestrator subscribes until Close.
func NewOrchestrator(w Wallet, registry *chain.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		wallet:   w,
		registry: registry,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if src, ok := w.(EventSource); ok {
		o.unsubscribe = src.Subscribe(o.HandleWalletEvent)
	}
	return o
}

// Close stops listening to wallet events.
func (o *Orchestrator) Close() {
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
}

// State returns the current state and the last failure, if any.
func (o *Orchestrator) State() (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.lastErr
}

// Pending returns a copy of the pending transfer.
func (o *Orchestrator) Pending() (Pending, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return Pending{}, false
	}
	return o.pending.clone(), true
}

// Acknowledge returns a terminal state to Idle once the result was shown.
func (o *Orchestrator) Acknowledge() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() {
		o.state = StateIdle
		o.lastErr = nil
	}
}

// Receive validates a transaction intent and stores it as the pending
// transfer, replacing any earlier one. No wallet request is made.
func (o *Orchestrator) Receive(ctx context.Context, intent *envelope.TransactionIntent, env envelope.Envelope) (*Pending, error) {
	o.mu.Lock()
	if o.sending {
		o.mu.Unlock()
		return nil, ErrSendInFlight
	}
	o.state = StateValidating
	o.pending = nil
	o.mu.Unlock()

	p, err := o.validate(intent, env)
	if err != nil {
		o.finish(ctx, nil, p, nil, err)
		return nil, err
	}

	o.mu.Lock()
	o.seq++
	p.ID = o.seq
	o.pending = p
	o.invalidated = nil
	o.state = StateAwaitingConfirmation
	o.lastErr = nil
	o.mu.Unlock()

	o.logger.Info("transfer pending",
		zap.Uint64("id", p.ID),
		zap.String("chain", p.Chain),
		zap.String("to", p.Recipient.Hex()),
		zap.String("amount", p.Amount))

	out := p.clone()
	return &out, nil
}

func (o *Orchestrator) validate(intent *envelope.TransactionIntent, env envelope.Envelope) (*Pending, error) {
	p := &Pending{Envelope: env, ReceivedAt: o.now()}
	if intent == nil {
		return p, newError(KindEnvelopeParseFailure, nil, "missing transaction details")
	}
	p.ChainValue = intent.Chain
	p.ChainLabel = o.registry.Label(intent.Chain)
	p.Amount = intent.Amount.String()

	if o.wallet == nil || !o.wallet.Connected() {
		return p, newError(KindWalletNotConnected, nil, "wallet not connected")
	}
	p.Account = o.wallet.Account()

	name, ok := o.registry.Canonical(intent.Chain)
	if !ok {
		return p, newError(KindUnsupportedChain, nil, "unsupported chain: %s", intent.Chain)
	}
	cfg, err := o.registry.Get(name)
	if err != nil {
		return p, newError(KindUnsupportedChain, err, "unsupported chain: %s", intent.Chain)
	}
	p.Chain = name
	p.ChainID = new(big.Int).Set(cfg.ChainID)
	p.Decimals = cfg.Decimals

	to, value, err := o.checkTransfer(p.Chain, p.Decimals, intent.Recipient, p.Amount)
	if err != nil {
		return p, err
	}
	p.Recipient = to
	p.Value = value
	return p, nil
}

// checkTransfer validates recipient and amount and applies the spend policy.
func (o *Orchestrator) checkTransfer(chainName string, decimals uint8, recipient, amount string) (common.Address, *big.Int, error) {
	recipient = strings.TrimSpace(recipient)
	if !common.IsHexAddress(recipient) {
		return common.Address{}, nil, newError(KindInvalidRecipient, nil, "invalid recipient address: %q", recipient)
	}
	to := common.HexToAddress(recipient)

	value, err := chain.ToSmallestUnit(amount, decimals)
	if err != nil {
		return to, nil, newError(KindInvalidAmount, err, "invalid amount: %v", err)
	}

	if err := Validate(Intent{Chain: chainName, To: to, ValueWei: value}, o.policy); err != nil {
		return to, value, newError(KindPolicyViolation, err, "blocked by policy: %v", err)
	}
	return to, value, nil
}

// Confirm sends the pending transfer on the wallet's current network.
func (o *Orchestrator) Confirm(ctx context.Context, ov Overrides) (*Outcome, error) {
	return o.confirm(ctx, ov, false)
}

// SwitchAndConfirm asks the wallet to switch to the intent's chain, then sends.
func (o *Orchestrator) SwitchAndConfirm(ctx context.Context, ov Overrides) (*Outcome, error) {
	return o.confirm(ctx, ov, true)
}

// Cancel discards the pending transfer.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	if o.sending {
		o.mu.Unlock()
		return ErrSendInFlight
	}
	p := o.pending
	if p == nil {
		o.mu.Unlock()
		return ErrNoPending
	}
	o.pending = nil
	o.invalidated = nil
	o.state = StateCancelled
	o.lastErr = nil
	o.mu.Unlock()

	o.logger.Info("transfer cancelled", zap.Uint64("id", p.ID))
	o.record(ctx, Result{Pending: p.clone(), State: StateCancelled, At: o.now()})
	return nil
}

func (o *Orchestrator) confirm(ctx context.Context, ov Overrides, switchFirst bool) (*Outcome, error) {
	o.mu.Lock()
	if o.sending {
		o.mu.Unlock()
		return nil, ErrSendInFlight
	}
	p := o.pending
	if p == nil {
		o.mu.Unlock()
		return nil, ErrNoPending
	}
	invalidated := o.invalidated
	o.sending = true
	o.state = StateSending
	o.mu.Unlock()

	var (
		out *Outcome
		err error
	)
	if invalidated != nil {
		err = invalidated
	} else {
		out, err = o.send(ctx, p, ov, switchFirst)
	}
	o.finish(ctx, p, p, out, err)
	return out, err
}

// finish records a terminal result and clears the slot if it still holds slot.
func (o *Orchestrator) finish(ctx context.Context, slot, p *Pending, out *Outcome, err error) {
	state := StateSent
	if err != nil {
		state = StateFailed
	}

	o.mu.Lock()
	if slot != nil {
		o.sending = false
		if o.pending == slot {
			o.pending = nil
			o.invalidated = nil
		}
	}
	o.state = state
	o.lastErr = err
	o.mu.Unlock()

	res := Result{State: state, Outcome: out, Err: err, At: o.now()}
	if p != nil {
		res.Pending = p.clone()
	}
	if err != nil {
		o.logger.Warn("transfer failed", zap.String("kind", string(KindOf(err))), zap.Error(err))
	} else {
		o.logger.Info("transfer sent",
			zap.String("hash", out.Hash.Hex()),
			zap.Bool("fallback", out.Fallback))
	}
	o.record(ctx, res)
}

func (o *Orchestrator) record(ctx context.Context, r Result) {
	for _, rec := range o.recorders {
		rec.RecordOutcome(ctx, r)
	}
}

func (o *Orchestrator) send(ctx context.Context, p *Pending, ov Overrides, switchFirst bool) (*Outcome, error) {
	if !o.wallet.Connected() {
		return nil, newError(KindWalletNotConnected, nil, "wallet not connected")
	}
	account := o.wallet.Account()
	if account != p.Account {
		return nil, newError(KindWalletNotConnected, nil, "wallet account changed since the transaction was prepared")
	}

	to, value, amount := p.Recipient, p.Value, p.Amount
	if ov.Recipient != "" || ov.Amount != "" {
		recipient := p.Recipient.Hex()
		if ov.Recipient != "" {
			recipient = ov.Recipient
		}
		if ov.Amount != "" {
			amount = strings.TrimSpace(ov.Amount)
		}
		var err error
		to, value, err = o.checkTransfer(p.Chain, p.Decimals, recipient, amount)
		if err != nil {
			return nil, err
		}
	}

	if switchFirst {
		if err := o.switchTo(ctx, p.ChainID); err != nil {
			return nil, err
		}
	}

	req := TransferRequest{From: account, To: to, Value: value}
	out := &Outcome{To: to, Amount: amount, Value: new(big.Int).Set(value)}

	hash, err := o.wallet.SendTransaction(ctx, req)
	if err != nil {
		if !o.fallbackEligible(ctx, err) {
			return nil, classifySendError(err, "transaction")
		}
		o.logger.Info("network mismatch, retrying through provider", zap.Error(err))
		fbHash, fbErr := o.sendViaProvider(ctx, req)
		if fbErr != nil {
			o.logger.Warn("provider fallback failed", zap.Error(fbErr))
			return nil, classifySendError(err, "transaction")
		}
		hash = fbHash
		out.Fallback = true
	}
	out.Hash = hash
	o.describeNetwork(ctx, out)
	return out, nil
}

func (o *Orchestrator) switchTo(ctx context.Context, target *big.Int) error {
	current, err := o.wallet.ChainID(ctx)
	if err == nil && current != nil && current.Cmp(target) == 0 {
		return nil
	}
	if err := o.wallet.SwitchChain(ctx, target); err != nil {
		return classifySendError(err, "network switch")
	}
	return nil
}

// fallbackEligible reports whether a failed send should be retried through
// the provider on the wallet's current network.
func (o *Orchestrator) fallbackEligible(ctx context.Context, err error) bool {
	if IsUserRejection(err) || !IsChainMismatch(err) {
		return false
	}
	if o.wallet.Provider() == nil {
		return false
	}
	if sender, ok := o.wallet.(CurrentNetworkSender); ok {
		can, cerr := sender.CanSendOnCurrentNetwork(ctx)
		if cerr != nil {
			o.logger.Debug("current network capability check failed", zap.Error(cerr))
			return false
		}
		return can
	}
	return true
}

func (o *Orchestrator) sendViaProvider(ctx context.Context, req TransferRequest) (common.Hash, error) {
	to := req.To
	args := SendTxArgs{From: req.From, To: &to, Value: (*hexutil.Big)(req.Value)}
	var hash common.Hash
	if err := o.wallet.Provider().CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	if hash == (common.Hash{}) {
		return common.Hash{}, errors.New("provider returned an empty transaction hash")
	}
	return hash, nil
}

// describeNetwork fills in the network the transfer was signed for. After a
// provider fallback that is whatever the provider reports, and the fields stay
// empty when it cannot say.
func (o *Orchestrator) describeNetwork(ctx context.Context, out *Outcome) {
	id, err := o.networkID(ctx, out.Fallback)
	if err != nil || id == nil {
		o.logger.Debug("network unknown after send", zap.Bool("fallback", out.Fallback), zap.Error(err))
		return
	}
	out.ChainID = id
	name, ok := o.registry.NameByID(id)
	if !ok {
		return
	}
	out.Chain = name
	if cfg, err := o.registry.Get(name); err == nil {
		out.ExplorerURL = cfg.TxURL(out.Hash.Hex())
	}
}

func (o *Orchestrator) networkID(ctx context.Context, fallback bool) (*big.Int, error) {
	if !fallback {
		return o.wallet.ChainID(ctx)
	}
	var id hexutil.Big
	if err := o.wallet.Provider().CallContext(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return id.ToInt(), nil
}

// HandleWalletEvent invalidates the pending transfer when the wallet
// disconnects or changes account. Network changes are only logged.
func (o *Orchestrator) HandleWalletEvent(ev WalletEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.logger.Debug("wallet event", zap.Stringer("kind", ev.Kind), zap.String("account", ev.Account.Hex()))
	if o.pending == nil || o.sending {
		return
	}
	switch ev.Kind {
	case EventDisconnected:
		o.invalidated = newError(KindWalletNotConnected, nil, "wallet disconnected")
	case EventAccountChanged, EventConnected:
		if ev.Account != o.pending.Account {
			o.invalidated = newError(KindWalletNotConnected, nil, "wallet account changed since the transaction was prepared")
		} else {
			o.invalidated = nil
		}
	}
}
