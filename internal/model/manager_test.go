package model

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, version string, symbols []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, fmt.Sprintf("model_v%s.bin", version)),
		[]byte("weights"), 0o644))
	writeConfig(t, dir, version, symbols)
}

func writeConfig(t *testing.T, dir, version string, symbols []string) {
	t.Helper()
	meta := fmt.Sprintf(`{"trained_symbols": %s, "trained_at": %q, "training_days": 365}`,
		jsonList(symbols), time.Now().UTC().Format(time.RFC3339))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, fmt.Sprintf("model_config_v%s.json", version)),
		[]byte(meta), 0o644))
}

func jsonList(items []string) string {
	out := "["
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", s)
	}
	return out + "]"
}

func newTestManager(t *testing.T, dir string) *Manager {
	t.Helper()
	m, err := NewManager(ManagerOptions{Dir: dir, Watch: false})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, -1, CompareVersions("1.0", "2.0"))
	assert.Equal(t, 1, CompareVersions("2.1", "2.0"))
	assert.Equal(t, 0, CompareVersions("2.1", "2.1"))
	// Numeric, not lexicographic.
	assert.Equal(t, 1, CompareVersions("10.0", "9.9"))
	assert.Equal(t, 1, CompareVersions("2.10", "2.9"))
}

func TestListArtifactsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "1.0", []string{"BTCUSDT"})
	writeArtifact(t, dir, "10.2", []string{"BTCUSDT", "ETHUSDT"})
	writeArtifact(t, dir, "2.1", []string{"BTCUSDT"})

	artifacts, err := ListArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	assert.Equal(t, "10.2", artifacts[0].Version)
	assert.Equal(t, "2.1", artifacts[1].Version)
	assert.Equal(t, "1.0", artifacts[2].Version)
	assert.True(t, artifacts[0].Complete)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, artifacts[0].TrainedSymbols)
	assert.Equal(t, 365, artifacts[0].TrainingDays)
}

func TestListArtifactsIncompleteAndInvalid(t *testing.T) {
	dir := t.TempDir()
	// Weights without metadata: listed but not complete.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_v1.0.bin"), []byte("w"), 0o644))
	// Metadata missing required fields: version skipped entirely.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_v2.0.bin"), []byte("w"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_config_v2.0.json"), []byte(`{"note": "oops"}`), 0o644))
	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644))

	artifacts, err := ListArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "1.0", artifacts[0].Version)
	assert.False(t, artifacts[0].Complete)
}

func TestManagerLoadFailsWithoutArtifact(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	_, err := m.Load()
	assert.Error(t, err)
}

func TestManagerLoadPicksNewestComplete(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "1.0", []string{"BTCUSDT"})
	writeArtifact(t, dir, "2.1", []string{"BTCUSDT", "ETHUSDT"})
	// Newer but incomplete: weights still being written.
	writeConfig(t, dir, "3.0", []string{"BTCUSDT"})

	m := newTestManager(t, dir)
	h, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "2.1", h.Version)
	assert.True(t, h.IsTrained("ETHUSDT"))
	assert.False(t, h.IsTrained("SOLUSDT"))
	assert.NotEmpty(t, h.LoadID)
}

func TestManagerLoadTwiceFails(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "1.0", []string{"BTCUSDT"})
	m := newTestManager(t, dir)
	_, err := m.Load()
	require.NoError(t, err)
	_, err = m.Load()
	assert.Error(t, err)
}

func TestManagerNeverReloadsWithoutNewerVersion(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "2.1", []string{"BTCUSDT"})
	m := newTestManager(t, dir)
	loaded, err := m.Load()
	require.NoError(t, err)

	// Rewriting the same version must not produce a new handle.
	writeArtifact(t, dir, "2.1", []string{"BTCUSDT", "ETHUSDT"})
	for i := 0; i < 5; i++ {
		h, rotated, err := m.MaybeRotate()
		require.NoError(t, err)
		assert.False(t, rotated)
		assert.Equal(t, loaded.LoadID, h.LoadID)
	}
	assert.True(t, m.LastRotation().IsZero())
}

func TestManagerRotatesToNewerVersion(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "2.1", []string{"BTCUSDT"})
	m := newTestManager(t, dir)
	old, err := m.Load()
	require.NoError(t, err)

	writeArtifact(t, dir, "2.2", []string{"BTCUSDT", "ETHUSDT"})
	h, rotated, err := m.MaybeRotate()
	require.NoError(t, err)
	assert.True(t, rotated)
	assert.Equal(t, "2.2", h.Version)
	assert.NotEqual(t, old.LoadID, h.LoadID)
	assert.True(t, h.IsTrained("ETHUSDT"))
	assert.False(t, m.LastRotation().IsZero())
	assert.Same(t, h, m.Current())
}

func TestManagerIgnoresOlderAndEqualVersions(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "2.1", []string{"BTCUSDT"})
	m := newTestManager(t, dir)
	_, err := m.Load()
	require.NoError(t, err)

	writeArtifact(t, dir, "1.9", []string{"ETHUSDT"})
	_, rotated, err := m.MaybeRotate()
	require.NoError(t, err)
	assert.False(t, rotated)
	assert.Equal(t, "2.1", m.Current().Version)
}

func TestManagerRotationSkipsIncompleteNewer(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "2.1", []string{"BTCUSDT"})
	m := newTestManager(t, dir)
	_, err := m.Load()
	require.NoError(t, err)

	// Metadata landed first; weights not there yet.
	writeConfig(t, dir, "2.2", []string{"BTCUSDT", "ETHUSDT"})
	_, rotated, err := m.MaybeRotate()
	require.NoError(t, err)
	assert.False(t, rotated)

	// Weights arrive, next slow tick picks it up.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_v2.2.bin"), []byte("w"), 0o644))
	h, rotated, err := m.MaybeRotate()
	require.NoError(t, err)
	assert.True(t, rotated)
	assert.Equal(t, "2.2", h.Version)
}
