package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {

	t.Run("nil receiver is a no-op", func(t *testing.T) {
		var m *Metrics
		m.ObserveRequest(EndpointMetainfo, OutcomeOK)
		m.ObserveWrite("base", 1, 1)
		m.Finish(time.Now(), time.Now())
		assert.NoError(t, m.WriteTextfile("ignored"))
		assert.NoError(t, m.Push(context.Background(), "http://ignored", "job"))
	})

	t.Run("counters", func(t *testing.T) {
		m := New("")
		m.ObserveTokensListed("base", 3)
		m.ObserveRequest(EndpointMarketBatch, OutcomeOK)
		m.ObserveRequest(EndpointMarketBatch, OutcomeOK)
		m.ObserveRetry(EndpointMarketBatch)
		m.ObserveWrite("base", 2, 1)
		m.ObserveMissing("base", "no_data", 1)
		m.ObserveUpload(true)

		assert.Equal(t, 3.0, testutil.ToFloat64(m.TokensListed.WithLabelValues("base")))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues(EndpointMarketBatch, OutcomeOK)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues(EndpointMarketBatch)))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsWritten.WithLabelValues("base")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicatesSkipped.WithLabelValues("base")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadSuccess))
	})

	t.Run("textfile", func(t *testing.T) {
		m := New("test")
		m.ObserveRemoved(2)
		path := filepath.Join(t.TempDir(), "collector.prom")
		require.NoError(t, m.WriteTextfile(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "test_retention_files_removed_total 2")
	})

	t.Run("push", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		m := New("")
		require.NoError(t, m.Push(context.Background(), server.URL, "collector"))
		assert.True(t, strings.HasSuffix(gotPath, "/metrics/job/collector"), gotPath)
	})
}
