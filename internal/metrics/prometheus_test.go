package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKind(t *testing.T) {
	before := testutil.ToFloat64(RowsWrittenTotal.WithLabelValues("hustle_stats"))

	RecordKind("hustle_stats", "success", 24)
	RecordKind("hustle_stats", "failed", 0)

	assert.Equal(t, before+24, testutil.ToFloat64(RowsWrittenTotal.WithLabelValues("hustle_stats")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(KindIngestTotal.WithLabelValues("hustle_stats", "failed")), 1.0)
}

func TestRecordRetry(t *testing.T) {
	before := testutil.ToFloat64(FetchRetriesTotal.WithLabelValues("playbyplayv3"))

	RecordRetry("playbyplayv3", 2.5)

	assert.Equal(t, before+1, testutil.ToFloat64(FetchRetriesTotal.WithLabelValues("playbyplayv3")))
}

func TestPush(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, Push(server.URL, "nba_ingest"))
	assert.Equal(t, "/metrics/job/nba_ingest", path)
}

func TestPush_NoGateway(t *testing.T) {
	assert.NoError(t, Push("", "nba_ingest"))
}
