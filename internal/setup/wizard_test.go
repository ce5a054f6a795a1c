package setup

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/chainpilot/internal/testutil"
)

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func step(t *testing.T, m WizardModel, msg tea.Msg) (WizardModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	wm, ok := next.(WizardModel)
	require.True(t, ok)
	return wm, cmd
}

func TestNewWizard_InputPrompts(t *testing.T) {
	m := NewWizard(testutil.TempDir(t))

	assert.Equal(t, "", m.keyInput.Prompt, "keyInput should have empty prompt")
	assert.Equal(t, "", m.passwordInput.Prompt, "passwordInput should have empty prompt")
	assert.Equal(t, "", m.confirmInput.Prompt, "confirmInput should have empty prompt")
}

func TestNewWizard_Initialization(t *testing.T) {
	t.Run("initializes with StepWelcome", func(t *testing.T) {
		m := NewWizard(testutil.TempDir(t))
		assert.Equal(t, StepWelcome, m.step)
		assert.True(t, m.walletSelector.Active())
	})

	t.Run("jumps to complete when a wallet exists", func(t *testing.T) {
		dir := testutil.TempDir(t)
		writeKeyFile(t, dir, "UTC--2024-01-01T00-00-00.000000000Z--1234567890123456789012345678901234567890")

		m := NewWizard(dir)
		assert.Equal(t, StepComplete, m.step)
	})
}

func TestWizard_SkipWallet(t *testing.T) {
	m := *NewWizard(testutil.TempDir(t))

	m, _ = step(t, m, key(tea.KeyEnter))
	require.Equal(t, StepWalletChoice, m.step)

	m, _ = step(t, m, key(tea.KeyDown))
	m, _ = step(t, m, key(tea.KeyDown))
	m, _ = step(t, m, key(tea.KeyEnter))
	require.Equal(t, StepComplete, m.step)
	assert.Contains(t, m.View(), "Not configured")

	m, cmd := step(t, m, key(tea.KeyEnter))
	require.NotNil(t, cmd)
	require.NotNil(t, m.result)
	assert.False(t, m.result.Cancelled)
	assert.False(t, m.result.WalletCreated)
}

func TestWizard_CreatePasswordFlow(t *testing.T) {
	m := *NewWizard(testutil.TempDir(t))
	m, _ = step(t, m, key(tea.KeyEnter))
	m, _ = step(t, m, key(tea.KeyEnter)) // create
	require.Equal(t, StepWalletPassword, m.step)
	assert.False(t, m.importing)

	m, _ = step(t, m, runes("short"))
	m, _ = step(t, m, key(tea.KeyEnter))
	assert.Equal(t, 0, m.passwordStep)
	assert.Contains(t, m.passwordError, "8 characters")

	m.passwordInput.SetValue("correct-horse")
	m, _ = step(t, m, key(tea.KeyEnter))
	require.Equal(t, 1, m.passwordStep)

	m.confirmInput.SetValue("wrong-horse")
	m, _ = step(t, m, key(tea.KeyEnter))
	assert.Contains(t, m.passwordError, "do not match")
	assert.Empty(t, m.confirmInput.Value())

	m.confirmInput.SetValue("correct-horse")
	m, cmd := step(t, m, key(tea.KeyEnter))
	assert.True(t, m.creating)
	assert.NotNil(t, cmd)

	m, _ = step(t, m, walletCreatedMsg{address: "0x1234567890123456789012345678901234567890"})
	assert.Equal(t, StepComplete, m.step)
	assert.True(t, m.walletCreated)
	assert.Contains(t, m.View(), "0x1234...7890")
}

func TestWizard_WalletCreationError(t *testing.T) {
	m := *NewWizard(testutil.TempDir(t))
	m.step = StepWalletPassword
	m.passwordStep = 1
	m.creating = true

	m, _ = step(t, m, walletCreatedMsg{err: errors.New("invalid private key")})
	assert.False(t, m.creating)
	assert.Equal(t, StepWalletPassword, m.step)
	assert.Equal(t, 0, m.passwordStep)
	assert.Equal(t, "invalid private key", m.passwordError)
}

func TestWizard_ImportRequiresKey(t *testing.T) {
	m := *NewWizard(testutil.TempDir(t))
	m, _ = step(t, m, key(tea.KeyEnter))
	m, _ = step(t, m, key(tea.KeyDown))
	m, _ = step(t, m, key(tea.KeyEnter))
	require.Equal(t, StepImportKey, m.step)
	assert.True(t, m.importing)

	m, _ = step(t, m, key(tea.KeyEnter))
	assert.Equal(t, StepImportKey, m.step)
	assert.Equal(t, "Private key is required", m.passwordError)

	m.keyInput.SetValue("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	m, _ = step(t, m, key(tea.KeyEnter))
	assert.Equal(t, StepWalletPassword, m.step)

	m, _ = step(t, m, key(tea.KeyEsc))
	assert.Equal(t, StepWalletChoice, m.step)
}

func TestWizard_CtrlCCancels(t *testing.T) {
	m := *NewWizard(testutil.TempDir(t))

	m, cmd := step(t, m, key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	require.NotNil(t, m.result)
	assert.True(t, m.result.Cancelled)
	assert.Contains(t, m.View(), "Setup cancelled")
}
