package agent

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/monagent/chainpilot/internal/tx"
)

// HistoryStore persists every transfer lifecycle that reached a terminal
// state, plus the receipt once the transfer is mined.
type HistoryStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// HistoryEntry is one row of transfer history.
type HistoryEntry struct {
	ID        int64
	State     string
	Chain     string
	ChainID   string
	Recipient string
	Amount    string
	TxHash    string
	Fallback  bool
	ErrorKind string
	Error     string
	Status    *uint64 // receipt status once mined
	GasUsed   *uint64
	CreatedAt time.Time
}

// OpenHistoryStore opens (or creates) the history DB under dataDir/history.db.
func OpenHistoryStore(dataDir string, logger *zap.Logger) (*HistoryStore, error) {
	return OpenHistoryStoreDSN(filepath.Join(dataDir, "history.db"), logger)
}

// OpenHistoryStoreDSN opens (or creates) a history DB using the given sqlite DSN/path.
// Tests may pass ":memory:" to avoid touching disk.
func OpenHistoryStoreDSN(dsn string, logger *zap.Logger) (*HistoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	if err := ensureHistorySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &HistoryStore{db: db, logger: logger.Named("history")}, nil
}

func ensureHistorySchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS transfers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	state TEXT NOT NULL,
	chain TEXT,
	chain_id TEXT,
	recipient TEXT,
	amount TEXT,
	tx_hash TEXT,
	fallback INTEGER NOT NULL DEFAULT 0,
	error_kind TEXT,
	error TEXT,
	status INTEGER,
	gas_used INTEGER,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS transfers_tx_hash ON transfers (tx_hash);
`)
	if err != nil {
		return fmt.Errorf("create transfers table: %w", err)
	}
	return nil
}

// Close closes the underlying DB.
func (s *HistoryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordOutcome implements tx.OutcomeRecorder. Failures are logged, never returned.
func (s *HistoryStore) RecordOutcome(ctx context.Context, r tx.Result) {
	if _, err := s.Add(ctx, r); err != nil {
		s.logger.Warn("failed to record transfer", zap.Error(err))
	}
}

// Add inserts r and returns its row id.
func (s *HistoryStore) Add(ctx context.Context, r tx.Result) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("history store not initialized")
	}

	var (
		chainID, recipient, hash, kind, msg string
		amount                              = displayAmount(r.Pending.Amount, r.Pending.Value, r.Pending.Decimals)
		fallback                            int
	)
	if r.Pending.ChainID != nil {
		chainID = r.Pending.ChainID.String()
	}
	if r.Pending.Recipient != (common.Address{}) {
		recipient = r.Pending.Recipient.Hex()
	}
	if r.Outcome != nil {
		hash = r.Outcome.Hash.Hex()
		recipient = r.Outcome.To.Hex()
		amount = displayAmount(r.Outcome.Amount, r.Outcome.Value, r.Pending.Decimals)
		if r.Outcome.ChainID != nil {
			chainID = r.Outcome.ChainID.String()
		}
		if r.Outcome.Fallback {
			fallback = 1
		}
	}
	if r.Err != nil {
		kind = string(tx.KindOf(r.Err))
		msg = r.Err.Error()
	}
	chainName := r.Pending.Chain
	if r.Outcome != nil && r.Outcome.Chain != "" {
		chainName = r.Outcome.Chain
	}
	if chainName == "" {
		chainName = r.Pending.ChainValue
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO transfers (state, chain, chain_id, recipient, amount, tx_hash, fallback, error_kind, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, r.State.String(), chainName, chainID, recipient, amount, hash, fallback, kind, msg)
	if err != nil {
		return 0, fmt.Errorf("persist transfer: %w", err)
	}
	return res.LastInsertId()
}

// SetReceipt stores the mined status for a sent transfer.
func (s *HistoryStore) SetReceipt(ctx context.Context, receipt *types.Receipt) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history store not initialized")
	}
	if receipt == nil {
		return fmt.Errorf("receipt is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE transfers SET status = ?, gas_used = ? WHERE tx_hash = ?`,
		receipt.Status, receipt.GasUsed, receipt.TxHash.Hex())
	if err != nil {
		return fmt.Errorf("persist receipt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no transfer with hash %s", receipt.TxHash.Hex())
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history store not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, state, COALESCE(chain, ''), COALESCE(chain_id, ''), COALESCE(recipient, ''), COALESCE(amount, ''),
	COALESCE(tx_hash, ''), fallback, COALESCE(error_kind, ''), COALESCE(error, ''), status, gas_used, created_at
FROM transfers ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			e        HistoryEntry
			fallback int
			status   sql.NullInt64
			gasUsed  sql.NullInt64
			created  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.State, &e.Chain, &e.ChainID, &e.Recipient, &e.Amount,
			&e.TxHash, &fallback, &e.ErrorKind, &e.Error, &status, &gasUsed, &created); err != nil {
			return nil, err
		}
		e.Fallback = fallback != 0
		if status.Valid {
			v := uint64(status.Int64)
			e.Status = &v
		}
		if gasUsed.Valid {
			v := uint64(gasUsed.Int64)
			e.GasUsed = &v
		}
		if created.Valid {
			e.CreatedAt = parseTimestamp(created.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
