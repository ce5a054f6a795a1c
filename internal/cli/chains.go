package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/monagent/chainpilot/internal/chain"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List supported networks",
	Long:  `List the networks the agent can target, with chain IDs and RPC endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}
		printChains(cmd.OutOrStdout(), registry)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func printChains(out io.Writer, registry *chain.Registry) {
	fmt.Fprintf(out, "%-15s %-22s %-10s %-6s %s\n", "NAME", "LABEL", "CHAIN ID", "TOKEN", "RPC")
	for _, name := range registry.Names() {
		cfg, err := registry.Get(name)
		if err != nil {
			continue
		}
		rpc := "-"
		if len(cfg.RPCURLs) > 0 {
			rpc = cfg.RPCURLs[0]
		}
		label := cfg.Name
		if cfg.IsTestnet {
			label += " (testnet)"
		}
		fmt.Fprintf(out, "%-15s %-22s %-10d %-6s %s\n", name, label, cfg.ChainIDInt, cfg.NativeCurrency, rpc)
	}
}
