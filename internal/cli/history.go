package cli

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/monagent/chainpilot/internal/agent"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent transfers",
	Long:  `List transfers that were sent, failed, or cancelled, newest first.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "Number of transfers to show")
	historyCmd.Flags().Bool("json", false, "Print as JSON")
}

// historyRecord is the JSON form of a history entry.
type historyRecord struct {
	ID        int64   `json:"id"`
	State     string  `json:"state"`
	Chain     string  `json:"chain"`
	ChainID   string  `json:"chain_id,omitempty"`
	Recipient string  `json:"recipient,omitempty"`
	Amount    string  `json:"amount,omitempty"`
	TxHash    string  `json:"tx_hash,omitempty"`
	Fallback  bool    `json:"fallback,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty"`
	Error     string  `json:"error,omitempty"`
	Status    *uint64 `json:"status,omitempty"`
	GasUsed   *uint64 `json:"gas_used,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := agent.OpenHistoryStore(cfg.DataDir, zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if asJSON {
		return writeHistoryJSON(cmd.OutOrStdout(), entries)
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatHistory(entries))
	return nil
}

func writeHistoryJSON(out io.Writer, entries []agent.HistoryEntry) error {
	records := make([]historyRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, historyRecord{
			ID:        e.ID,
			State:     e.State,
			Chain:     e.Chain,
			ChainID:   e.ChainID,
			Recipient: e.Recipient,
			Amount:    e.Amount,
			TxHash:    e.TxHash,
			Fallback:  e.Fallback,
			ErrorKind: e.ErrorKind,
			Error:     e.Error,
			Status:    e.Status,
			GasUsed:   e.GasUsed,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
