package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	reg := NewRegistry()
	ChunksScheduled.Inc()
	FramesDropped.WithLabelValues("audio", "muted").Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "livevoice_chunks_scheduled_total")
	assert.Contains(t, body, `livevoice_frames_dropped_total{kind="audio",reason="muted"}`)
}
