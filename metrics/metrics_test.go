package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryExposesHandler(t *testing.T) {
	r := New()
	r.SetTotal.WithLabelValues("text").Inc()
	r.GetTotal.WithLabelValues("text", "hit").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "reedbase_set_total")
}

func TestGatherIncludesRegisteredCounters(t *testing.T) {
	r := New()
	r.FrameCommittedTotal.Inc()

	families, err := r.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "reedbase_frame_committed_total" {
			found = true
		}
	}
	assert.True(t, found, "expected reedbase_frame_committed_total among gathered families")
}
