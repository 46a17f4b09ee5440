package health

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"skipper/internal/symbolstate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(at time.Time) *symbolstate.Snapshot {
	return &symbolstate.Snapshot{
		At:           at,
		ModelVersion: "2.1",
		States: map[string]symbolstate.State{
			"BTCUSDT": symbolstate.StateTrained,
			"ETHUSDT": symbolstate.StateUntrainedTrainable,
		},
	}
}

func TestCheckHealthy(t *testing.T) {
	m := NewMonitor(filepath.Join(t.TempDir(), "status.json"), 10*time.Minute)
	st := m.Check(Input{
		Snapshot:     testSnapshot(time.Now().UTC()),
		ModelVersion: "2.1",
		QueueDepth:   1,
		Tick:         4,
	})
	assert.Equal(t, "HEALTHY", st.Health)
	assert.Empty(t, st.Issues)
	assert.Equal(t, 1, st.StateCounts["TRAINED"])
	assert.Equal(t, 1, st.StateCounts["UNTRAINED_TRAINABLE"])
	assert.Equal(t, 1, st.TradableCount)
	assert.EqualValues(t, 1, st.QueueDepth)
}

func TestCheckDegradedBeforeFirstPass(t *testing.T) {
	m := NewMonitor(filepath.Join(t.TempDir(), "status.json"), 10*time.Minute)
	st := m.Check(Input{})
	assert.Equal(t, "DEGRADED", st.Health)
	assert.NotEmpty(t, st.Warnings)
}

func TestCheckUnhealthyWhenClassificationStale(t *testing.T) {
	m := NewMonitor(filepath.Join(t.TempDir(), "status.json"), 10*time.Minute)
	st := m.Check(Input{
		Snapshot: testSnapshot(time.Now().UTC().Add(-time.Hour)),
	})
	assert.Equal(t, "UNHEALTHY", st.Health)
	assert.NotEmpty(t, st.Issues)
}

func TestCheckDegradedOnFailedLookups(t *testing.T) {
	m := NewMonitor(filepath.Join(t.TempDir(), "status.json"), 10*time.Minute)
	snap := testSnapshot(time.Now().UTC())
	snap.Failed = []string{"BADUSDT"}
	st := m.Check(Input{Snapshot: snap})
	assert.Equal(t, "DEGRADED", st.Health)
	assert.Equal(t, 1, st.FailedLookups)
}

func TestCheckFlagsKillSwitch(t *testing.T) {
	m := NewMonitor(filepath.Join(t.TempDir(), "status.json"), 10*time.Minute)
	st := m.Check(Input{
		Snapshot:   testSnapshot(time.Now().UTC()),
		KillSwitch: true,
		KillReason: "drawdown exceeded",
	})
	assert.True(t, st.KillSwitch)
	assert.NotEmpty(t, st.Warnings)
	// A deliberate halt is not an infrastructure fault.
	assert.Equal(t, "HEALTHY", st.Health)
}

func TestWriteProducesReadableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.json")
	m := NewMonitor(path, 10*time.Minute)
	st := m.Check(Input{Snapshot: testSnapshot(time.Now().UTC()), ModelVersion: "2.1", Tick: 2})
	m.Write(st)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Status
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "HEALTHY", decoded.Health)
	assert.Equal(t, 2, decoded.Tick)
	assert.Equal(t, 1, decoded.StateCounts["TRAINED"])

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
