package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/chainpilot/internal/testutil"
)

func writeKeyFile(t *testing.T, dataDir, name string) {
	t.Helper()
	keystoreDir := filepath.Join(dataDir, "keystore")
	require.NoError(t, os.MkdirAll(keystoreDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(keystoreDir, name), []byte("{}"), 0600))
}

func TestDetectSetupStatus(t *testing.T) {
	t.Run("returns empty status for fresh directory", func(t *testing.T) {
		dir := testutil.TempDir(t)

		status, err := DetectSetupStatus(dir)
		require.NoError(t, err)

		assert.False(t, status.HasWallet)
		assert.False(t, status.HasSession)
		assert.False(t, status.Skipped)
		assert.False(t, status.IsComplete)
		assert.Empty(t, status.WalletAddress)
	})

	t.Run("detects wallet from keystore", func(t *testing.T) {
		dir := testutil.TempDir(t)
		writeKeyFile(t, dir, "UTC--2024-01-01T00-00-00.000000000Z--1234567890123456789012345678901234567890")

		status, err := DetectSetupStatus(dir)
		require.NoError(t, err)

		assert.True(t, status.HasWallet)
		assert.True(t, status.IsComplete)
	})

	t.Run("ignores hidden files in keystore", func(t *testing.T) {
		dir := testutil.TempDir(t)
		writeKeyFile(t, dir, ".DS_Store")

		status, err := DetectSetupStatus(dir)
		require.NoError(t, err)

		assert.False(t, status.HasWallet)
	})

	t.Run("ignores directories in keystore", func(t *testing.T) {
		dir := testutil.TempDir(t)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "keystore", "subdir"), 0700))

		status, err := DetectSetupStatus(dir)
		require.NoError(t, err)

		assert.False(t, status.HasWallet)
	})

	t.Run("detects agent session", func(t *testing.T) {
		dir := testutil.TempDir(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte(`{"user_id":"u1"}`), 0600))

		status, err := DetectSetupStatus(dir)
		require.NoError(t, err)

		assert.True(t, status.HasSession)
		assert.False(t, status.IsComplete)
	})
}

func TestNeedsSetup(t *testing.T) {
	t.Run("returns true for fresh directory", func(t *testing.T) {
		assert.True(t, NeedsSetup(testutil.TempDir(t)))
	})

	t.Run("returns false after an explicit skip", func(t *testing.T) {
		dir := testutil.TempDir(t)
		require.NoError(t, MarkDone(dir))

		assert.False(t, NeedsSetup(dir))

		info, err := os.Stat(filepath.Join(dir, doneMarker))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})
}
