package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/monagent/chainpilot/internal/envelope"
	"github.com/monagent/chainpilot/internal/tx"
)

// Transcript appends the conversation to <dataDir>/sessions/<id>.jsonl.
// A nil *Transcript discards everything.
type Transcript struct {
	mu   sync.Mutex
	path string
	f    *os.File
	now  func() time.Time
}

// OpenTranscript opens (appending) the transcript for sessionID.
func OpenTranscript(dataDir, sessionID string) (*Transcript, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data dir not configured")
	}
	dir := filepath.Join(dataDir, "sessions")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &Transcript{path: path, f: f, now: time.Now}, nil
}

// Path returns the transcript file.
func (t *Transcript) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

func (t *Transcript) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f != nil {
		_ = t.f.Close()
		t.f = nil
	}
}

type transcriptRecord struct {
	TS   string `json:"ts"`
	Type string `json:"type"`

	Content    string `json:"content,omitempty"`
	ActionType string `json:"action_type,omitempty"`

	Chain   string `json:"chain,omitempty"`
	To      string `json:"to,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Hash    string `json:"hash,omitempty"`
	State   string `json:"state,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// User records what the user typed, with secrets masked.
func (t *Transcript) User(text string) {
	t.write(transcriptRecord{Type: "user", Content: RedactText(text)})
}

// Envelope records the agent's raw answer.
func (t *Transcript) Envelope(env envelope.Envelope) {
	t.write(transcriptRecord{Type: "envelope", Content: RedactJSON(env.Output), ActionType: string(env.ActionType)})
}

// Reply records what was shown for a user message.
func (t *Transcript) Reply(r Reply) {
	if r.Kind == ReplyNone {
		return
	}
	rec := transcriptRecord{Type: "reply", Content: r.Text, IsError: r.Kind == ReplyError}
	if r.Pending != nil {
		rec.Chain = r.Pending.Chain
		rec.To = r.Pending.Recipient.Hex()
		rec.Amount = r.Pending.Amount
	}
	t.write(rec)
}

// RecordOutcome implements tx.OutcomeRecorder.
func (t *Transcript) RecordOutcome(_ context.Context, r tx.Result) {
	rec := transcriptRecord{
		Type:   "transaction",
		Chain:  r.Pending.Chain,
		Amount: r.Pending.Amount,
		State:  r.State.String(),
	}
	if r.Pending.Recipient != (common.Address{}) {
		rec.To = r.Pending.Recipient.Hex()
	}
	if r.Outcome != nil {
		rec.Hash = r.Outcome.Hash.Hex()
		rec.To = r.Outcome.To.Hex()
		rec.Amount = r.Outcome.Amount
	}
	if r.Err != nil {
		rec.Content = r.Err.Error()
		rec.IsError = true
	}
	t.write(rec)
}

func (t *Transcript) write(rec transcriptRecord) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return
	}
	rec.TS = t.now().UTC().Format(time.RFC3339Nano)

	// One JSON object per line to keep it append-only and streamable.
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	b = append(b, '\n')
	_, _ = t.f.Write(b)
}
