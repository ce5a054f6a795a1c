package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monagent/chainpilot/internal/chain"
	"github.com/monagent/chainpilot/internal/wallet"
)

const maxConcurrentBalanceQueries = 4

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "View portfolio balances",
	Long:  `Display native token balances across the networks the agent can send on.`,
	RunE:  runPortfolio,
}

func init() {
	rootCmd.AddCommand(portfolioCmd)

	portfolioCmd.Flags().String("address", "", "Address to check (uses the configured wallet if not specified)")
	portfolioCmd.Flags().StringSlice("chains", nil, "Chains to query (default: all mainnets)")
	portfolioCmd.Flags().Bool("testnet", false, "Include testnet chains")
}

// balanceResult is one row of the portfolio table.
type balanceResult struct {
	chain   string
	balance *chain.NativeBalance
	err     error
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	addressFlag, _ := cmd.Flags().GetString("address")
	chains, _ := cmd.Flags().GetStringSlice("chains")
	includeTestnet, _ := cmd.Flags().GetBool("testnet")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	var address common.Address
	if addressFlag != "" {
		if !common.IsHexAddress(addressFlag) {
			return fmt.Errorf("invalid address: %s", addressFlag)
		}
		address = common.HexToAddress(addressFlag)
	} else {
		km, err := wallet.NewKeystoreManager(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("no address specified and failed to load wallets: %w", err)
		}
		address, err = km.Default(cfg.Wallet.Address)
		if err != nil {
			return fmt.Errorf("no address specified and no wallet found. Use --address or create a wallet first: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Using wallet: %s\n\n", address.Hex())
	}

	names, err := portfolioChains(registry, chains, includeTestnet)
	if err != nil {
		return err
	}

	client := chain.NewClient(registry, zap.NewNop())
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	results := fetchBalances(ctx, client, address, names)
	printPortfolio(cmd.OutOrStdout(), address, results)
	return nil
}

// portfolioChains resolves the requested chain names, defaulting to every
// registered mainnet.
func portfolioChains(registry *chain.Registry, requested []string, includeTestnet bool) ([]string, error) {
	var names []string
	if len(requested) == 0 {
		for _, name := range registry.Names() {
			cfg, err := registry.Get(name)
			if err != nil {
				return nil, err
			}
			if !cfg.IsTestnet || includeTestnet {
				names = append(names, name)
			}
		}
		return names, nil
	}
	for _, raw := range requested {
		name, ok := registry.Canonical(raw)
		if !ok {
			return nil, fmt.Errorf("unknown chain: %s", raw)
		}
		names = append(names, name)
	}
	return names, nil
}

// fetchBalances queries every chain concurrently. Per-chain failures are
// reported in the result instead of failing the whole table.
func fetchBalances(ctx context.Context, client *chain.Client, address common.Address, names []string) []balanceResult {
	results := make([]balanceResult, len(names))

	eg, childCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentBalanceQueries)
	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			balance, err := client.GetNativeBalance(childCtx, name, address)
			results[i] = balanceResult{chain: name, balance: balance, err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func printPortfolio(out io.Writer, address common.Address, results []balanceResult) {
	fmt.Fprintf(out, "Portfolio for %s\n", address.Hex())
	fmt.Fprintln(out, "─────────────────────────────────────────────────────────")

	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(out, "  %-14s  ⚠ Error: %v\n", r.chain, r.err)
			continue
		}

		// Visual indicator for zero vs non-zero balances
		indicator := "○"
		if r.balance.Balance.Sign() > 0 {
			indicator = "●"
		}
		fmt.Fprintf(out, "%s %-14s  %s\n", indicator, r.chain, r.balance)
	}

	fmt.Fprintln(out, "─────────────────────────────────────────────────────────")
}
