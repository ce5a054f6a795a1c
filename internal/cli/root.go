package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/monagent/chainpilot/internal/config"
	"github.com/monagent/chainpilot/internal/setup"
)

var (
	cfgFile string
	v       = viper.New()
	rootCmd = &cobra.Command{
		Use:   "chainpilot",
		Short: "Terminal chat client for the MonAgent blockchain assistant",
		Long: `chainpilot is a terminal client for the MonAgent assistant.

Ask questions in plain language. When the agent prepares a native token
transfer, chainpilot validates it, shows it for review and editing, and
only submits it through your local wallet after you confirm.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Check if setup is needed
			if setup.NeedsSetup(cfg.DataDir) {
				if !setup.IsInteractive() {
					setup.PrintEnvInstructions()
					return fmt.Errorf("setup required: run chainpilot interactively or create a wallet first")
				}

				result, err := setup.RunWizard(cfg.DataDir)
				if err != nil {
					return fmt.Errorf("setup failed: %w", err)
				}

				// If user cancelled setup, exit cleanly
				if result == nil || result.Cancelled {
					return nil
				}
			}

			return RunChat(cmd.Context(), cfg)
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(v)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chainpilot/config.yaml)")
	pf.String("data-dir", "", "directory for wallets, session and history (default is $HOME/.chainpilot)")
	pf.String("chain", config.DefaultChain, "network the wallet starts on")
	pf.String("agent-url", config.DefaultAgentURL, "base URL of the agent API")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Bool("debug", false, "verbose development logging")

	_ = v.BindPFlag("data_dir", pf.Lookup("data-dir"))
	_ = v.BindPFlag("wallet.chain", pf.Lookup("chain"))
	_ = v.BindPFlag("agent.url", pf.Lookup("agent-url"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("debug", pf.Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dataDir := v.GetString("data_dir")
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		v.AddConfigPath(dataDir)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	// A missing config file is fine; a broken one is worth a warning.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: could not read config: %v\n", err)
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
