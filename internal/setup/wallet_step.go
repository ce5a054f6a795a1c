package setup

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/monagent/chainpilot/internal/wallet"
)

// createWallet creates or imports a wallet with the entered password
func (m WizardModel) createWallet() tea.Cmd {
	password := m.passwordInput.Value()
	privateKey := m.keyInput.Value()
	importing := m.importing
	dataDir := m.dataDir

	return func() tea.Msg {
		km, err := wallet.NewKeystoreManager(dataDir)
		if err != nil {
			return walletCreatedMsg{err: err}
		}

		if importing {
			account, err := km.ImportKey(privateKey, password)
			if err != nil {
				return walletCreatedMsg{err: err}
			}
			return walletCreatedMsg{address: account.Address.Hex()}
		}

		account, err := km.CreateAccount(password)
		if err != nil {
			return walletCreatedMsg{err: err}
		}
		return walletCreatedMsg{address: account.Address.Hex()}
	}
}
