package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New("test")

	m.RecordAuth("success")
	m.RecordAuth("failure")
	m.RecordAuth("failure")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("failure")))

	m.RecordSearch("anonymous", 4, 4)
	m.RecordSearch("owner", 2, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogSearches.WithLabelValues("owner")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.MaskedProfiles))

	m.RecordEventPublished("profile", "created")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("profile", "created")))

	m.TrackDBOperation("profiles.list")(time.Now())
	assert.Equal(t, 1, testutil.CollectAndCount(m.DBOperationDuration))
}

func TestNilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAuth("success")
		m.RecordSearch("owner", 1, 0)
		m.RecordEventPublished("tag", "created")
		m.RecordEventProcessed("audit", "ok")
		m.TrackDBOperation("x")(time.Now())
	})
}

func TestHandler(t *testing.T) {
	m := New("skillmap")
	m.RecordAuth("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "skillmap_auth_attempts_total"))
}
