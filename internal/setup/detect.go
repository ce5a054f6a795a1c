package setup

import (
	"os"
	"path/filepath"

	"github.com/monagent/chainpilot/internal/wallet"
)

const doneMarker = ".setup-done"

// SetupStatus represents the current setup state
type SetupStatus struct {
	HasWallet     bool
	HasSession    bool
	Skipped       bool
	IsComplete    bool
	WalletAddress string
}

// DetectSetupStatus checks the current setup state
func DetectSetupStatus(dataDir string) (*SetupStatus, error) {
	status := &SetupStatus{}

	keystoreDir := filepath.Join(dataDir, "keystore")
	if entries, err := os.ReadDir(keystoreDir); err == nil {
		// Filter out directories and hidden files
		for _, entry := range entries {
			if !entry.IsDir() && entry.Name()[0] != '.' {
				status.HasWallet = true
				break
			}
		}
	}

	// Get first wallet address for display if we have one
	if status.HasWallet {
		km, err := wallet.NewKeystoreManager(dataDir)
		if err == nil {
			if accounts := km.ListAccounts(); len(accounts) > 0 {
				status.WalletAddress = accounts[0].Address.Hex()
			}
		}
	}

	if _, err := os.Stat(filepath.Join(dataDir, "session.json")); err == nil {
		status.HasSession = true
	}
	if _, err := os.Stat(filepath.Join(dataDir, doneMarker)); err == nil {
		status.Skipped = true
	}

	// Chat works without a wallet, so an explicit skip also completes setup.
	status.IsComplete = status.HasWallet || status.Skipped

	return status, nil
}

// NeedsSetup returns true if interactive setup should run
func NeedsSetup(dataDir string) bool {
	status, _ := DetectSetupStatus(dataDir)
	return !status.IsComplete
}

// MarkDone records that setup finished so it is not offered again.
func MarkDone(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, doneMarker), nil, 0600)
}
