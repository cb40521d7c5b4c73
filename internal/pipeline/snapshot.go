package pipeline

// Snapshot is the consumer-facing view of a run's current values. It is what
// the live feed pushes and what the Redis publisher stores.
type Snapshot struct {
	RunID      string  `json:"run_id"`
	Source     string  `json:"source,omitempty"`
	Datetime   string  `json:"dt"`
	ElapsedSec float64 `json:"elapsed_s"`

	Values    map[string]float64 `json:"values"`
	Connected []string           `json:"connected"`

	// Fix is 1 when the GPS channels hold a plausible position.
	Fix int `json:"fix"`
}
