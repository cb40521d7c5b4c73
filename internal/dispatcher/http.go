package dispatcher

import (
	"encoding/json"
	"errors"
	"net/http"
)

type request struct {
	Cmd  string   `json:"cmd"`
	Args []string `json:"args"`
}

type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Register mounts POST /control/command and GET /control/commands on mux.
func (d *Dispatcher) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /control/command", d.handleCommand)
	mux.HandleFunc("GET /control/commands", func(w http.ResponseWriter, _ *http.Request) {
		type entry struct {
			Name  string `json:"name"`
			Usage string `json:"usage"`
		}
		var out []entry
		for _, c := range d.Commands() {
			out = append(out, entry{Name: c.Name, Usage: c.Usage})
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func (d *Dispatcher) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}
	err := d.Dispatch(req.Cmd, req.Args...)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, response{OK: true})
	case errors.Is(err, ErrUnknownCommand):
		writeJSON(w, http.StatusNotFound, response{Error: err.Error()})
	case errors.Is(err, ErrTooSoon):
		writeJSON(w, http.StatusTooManyRequests, response{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
