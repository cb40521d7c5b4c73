package live

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-svr/internal/pipeline"
)

func TestHandlerStreamsSnapshots(t *testing.T) {
	var n atomic.Int32
	h := NewHandler(5*time.Millisecond, func() *pipeline.Snapshot {
		n.Add(1)
		return &pipeline.Snapshot{
			RunID:     "run-1",
			Values:    map[string]float64{"speed_engine_rpm": float64(n.Load())},
			Connected: []string{},
		}
	}, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var last float64
	for i := 0; i < 3; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var snap pipeline.Snapshot
		require.NoError(t, json.Unmarshal(data, &snap))
		assert.Equal(t, "run-1", snap.RunID)
		assert.Greater(t, snap.Values["speed_engine_rpm"], last)
		last = snap.Values["speed_engine_rpm"]
	}
}

func TestHandlerRejectsPlainHTTP(t *testing.T) {
	h := NewHandler(time.Second, func() *pipeline.Snapshot { return &pipeline.Snapshot{} }, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/live", nil))
	assert.Equal(t, 400, rec.Code)
}
