package pipeline

import (
	"encoding/json"
	"math"
	"time"

	"daq-svr/internal/datastore"
	"daq-svr/internal/registry"
)

func coordsValid(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return true
}

// CalcFix reports 1 when both coordinates are present and in range.
func CalcFix(values map[string]float64) int {
	lat, okLat := values[registry.NameGPSLatitude]
	lon, okLon := values[registry.NameGPSLongitude]
	if okLat && okLon && coordsValid(lat, lon) {
		return 1
	}
	return 0
}

// Reader is the part of the data store a snapshot is built from.
type Reader interface {
	Snapshot() datastore.Snapshot
}

// BuildSnapshot copies the store's current values. Non-finite values are left
// out so the result always encodes as JSON.
func BuildSnapshot(store Reader, runID, source string, now time.Time) *Snapshot {
	s := store.Snapshot()
	values := make(map[string]float64, len(s.Values))
	for name, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values[name] = v
	}
	connected := s.Connected
	if connected == nil {
		connected = []string{}
	}
	return &Snapshot{
		RunID:      runID,
		Source:     source,
		Datetime:   now.UTC().Format(time.RFC3339Nano),
		ElapsedSec: s.Elapsed.Seconds(),
		Values:     values,
		Connected:  connected,
		Fix:        CalcFix(values),
	}
}

func ToJSON(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}
