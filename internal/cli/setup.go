package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monagent/chainpilot/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the setup wizard",
	Long: `Run the interactive setup wizard.

This command guides you through creating or importing the wallet
chainpilot uses to send the transfers the agent prepares.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !setup.IsInteractive() {
			setup.PrintEnvInstructions()
			return fmt.Errorf("setup requires an interactive terminal")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		result, err := setup.RunWizard(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}

		if result == nil || result.Cancelled {
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), "\nSetup complete! Run 'chainpilot' to start.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
