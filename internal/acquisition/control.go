package acquisition

import (
	"encoding/json"
	"net/http"

	"daq-svr/internal/codec"
	"daq-svr/internal/source"
)

type status struct {
	Enabled bool          `json:"enabled"`
	RunID   string        `json:"run_id,omitempty"`
	Session codec.Session `json:"session"`
	Source  string        `json:"source,omitempty"`
}

// Register mounts the collection control endpoints on mux:
// POST /control/start, POST /control/stop and GET /control/status.
func (l *Loop) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /control/start", func(w http.ResponseWriter, _ *http.Request) {
		l.SetEnabled(true)
		l.writeStatus(w)
	})
	mux.HandleFunc("POST /control/stop", func(w http.ResponseWriter, _ *http.Request) {
		l.SetEnabled(false)
		l.writeStatus(w)
	})
	mux.HandleFunc("GET /control/status", func(w http.ResponseWriter, _ *http.Request) {
		l.writeStatus(w)
	})
}

func (l *Loop) writeStatus(w http.ResponseWriter) {
	st := status{
		Enabled: l.Enabled(),
		RunID:   l.RunID(),
		Session: l.engine.Session(),
	}
	if src := l.links.Active(); src != nil {
		st.Source = source.NameOf(src)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		l.logger.Error("acquisition: status encode failed", "err", err)
	}
}
