package pipeline

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-svr/internal/datastore"
	"daq-svr/internal/registry"
)

type fixedStore datastore.Snapshot

func (f fixedStore) Snapshot() datastore.Snapshot { return datastore.Snapshot(f) }

func TestBuildSnapshotDropsNonFinite(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store := fixedStore{
		Values: map[string]float64{
			"speed_engine_rpm": 3100,
			"bad":              math.NaN(),
			"worse":            math.Inf(1),
			"cvt_ratio":        datastore.Infinite,
		},
		Connected: []string{"speed_engine_rpm"},
		Elapsed:   1500 * time.Millisecond,
	}

	snap := BuildSnapshot(store, "run-1", "replay:x", now)
	assert.Equal(t, map[string]float64{"speed_engine_rpm": 3100, "cvt_ratio": datastore.Infinite}, snap.Values)
	assert.Equal(t, "2026-03-14T12:00:00Z", snap.Datetime)
	assert.InDelta(t, 1.5, snap.ElapsedSec, 1e-9)
	assert.Equal(t, 0, snap.Fix)

	raw, err := ToJSON(snap)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "run-1", back["run_id"])
	assert.Equal(t, "replay:x", back["source"])
}

func TestBuildSnapshotFromStore(t *testing.T) {
	store, err := datastore.New(registry.Default(), nil)
	require.NoError(t, err)
	require.NoError(t, store.AppendFields("gps_fix", 29.7, -95.4, 31))
	require.NoError(t, store.MarkConnected(registry.GPSFix))

	snap := BuildSnapshot(store, "run-2", "", time.Now())
	assert.Equal(t, 1, snap.Fix)
	assert.Equal(t, 29.7, snap.Values[registry.NameGPSLatitude])
	assert.Contains(t, snap.Connected, registry.NameGPSLongitude)
}

func TestEmptyConnectedEncodesAsArray(t *testing.T) {
	snap := BuildSnapshot(fixedStore{Values: map[string]float64{}}, "", "", time.Now())
	raw, err := ToJSON(snap)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"connected":[]`)
}

func TestCalcFix(t *testing.T) {
	cases := []struct {
		name string
		vals map[string]float64
		want int
	}{
		{"valid", map[string]float64{registry.NameGPSLatitude: 45, registry.NameGPSLongitude: -120}, 1},
		{"null island", map[string]float64{registry.NameGPSLatitude: 0, registry.NameGPSLongitude: 0}, 0},
		{"out of range", map[string]float64{registry.NameGPSLatitude: 91, registry.NameGPSLongitude: 0}, 0},
		{"missing", map[string]float64{registry.NameGPSLatitude: 45}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CalcFix(tc.vals))
		})
	}
}
