package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/polyrabbit/market-collector/config"
	"github.com/polyrabbit/market-collector/dapplooker"
	mchttp "github.com/polyrabbit/market-collector/http"
	"github.com/polyrabbit/market-collector/metrics"
	"github.com/polyrabbit/market-collector/writer"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// fakeAPI serves both endpoints. Tokens are listed on a single short page,
// market answers are looked up by the joined ticker list.
type fakeAPI struct {
	mu       sync.Mutex
	tokens   map[string][]string
	market   map[string]func(w http.ResponseWriter)
	requests []string
}

func (api *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	chain := query.Get("chain")
	switch {
	case strings.Contains(r.URL.Path, "metainfo"):
		items := make([]string, 0, len(api.tokens[chain]))
		for _, symbol := range api.tokens[chain] {
			items = append(items, fmt.Sprintf(`{"symbol":%q}`, strings.ToUpper(symbol)))
		}
		fmt.Fprintf(w, `{"success":true,"data":[%s]}`, strings.Join(items, ","))
	case strings.Contains(r.URL.Path, "market"):
		tickers := query.Get("token_tickers")
		api.mu.Lock()
		api.requests = append(api.requests, chain+":"+tickers)
		api.mu.Unlock()
		if respond, ok := api.market[chain+":"+tickers]; ok {
			respond(w)
			return
		}
		fmt.Fprint(w, `{"success":true,"data":[]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func marketJSON(records ...string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		fmt.Fprintf(w, `{"success":true,"data":[%s]}`, strings.Join(records, ","))
	}
}

func status(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) { w.WriteHeader(code) }
}

func token(id, symbol string) string {
	return fmt.Sprintf(`{"token_info":{"id":%q,"symbol":%q},"token_metrics":{"usd_price":1.5}}`, id, symbol)
}

type fixture struct {
	collector *Collector
	client    *dapplooker.Client
	records   *writer.MarketWriter
	missing   *writer.MissingLedger
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, api *fakeAPI) *fixture {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		APIKey:               "test-key",
		MetainfoURL:          server.URL + "/v1/crypto-metainfo/",
		MarketURL:            server.URL + "/v1/crypto-market/",
		PageSize:             100,
		Timeout:              5,
		IndividualTimeout:    5,
		CleanBatchSize:       30,
		ProblematicBatchSize: 10,
	}
	m := metrics.New("test")
	client := dapplooker.NewClient(cfg, mchttp.New(cfg), m)
	client.Sleep = func(context.Context, time.Duration) error { return nil }

	dir := t.TempDir()
	records, err := writer.NewMarketWriter(filepath.Join(dir, "market_data.csv"))
	require.NoError(t, err)
	missing, err := writer.NewMissingLedger(filepath.Join(dir, "missing_tokens.csv"))
	require.NoError(t, err)

	return &fixture{
		collector: New(cfg, client, records, missing, m),
		client:    client,
		records:   records,
		missing:   missing,
		metrics:   m,
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows[1:]
}

func TestCollector_ProcessChain(t *testing.T) {

	t.Run("absent symbols are logged once as missing", func(t *testing.T) {
		api := &fakeAPI{
			tokens: map[string][]string{"base": {"abc", "def$", "ghi"}},
			market: map[string]func(http.ResponseWriter){
				"base:abc,ghi": marketJSON(token("1", "ABC")),
				"base:def$":    marketJSON(token("2", "def$")),
			},
		}
		f := newFixture(t, api)

		result := f.collector.ProcessChain(context.Background(), "base")
		require.NoError(t, result.Err)
		assert.Equal(t, writer.ChainResult{
			Chain: "base", Tokens: 3, Clean: 2, Problematic: 1, Records: 2, Missing: 1,
		}, result)
		assert.Equal(t, []string{"base:abc,ghi", "base:def$"}, api.requests)

		rows := readRows(t, f.records.Path())
		require.Len(t, rows, 2)
		assert.Equal(t, "1", rows[0][0])
		assert.Equal(t, "2", rows[1][0])

		missing := readRows(t, f.missing.Path())
		require.Len(t, missing, 1)
		assert.Equal(t, "ghi", missing[0][0])
		assert.Equal(t, "base", missing[0][1])
		assert.Equal(t, dapplooker.ReasonNoData, missing[0][3])

		assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RecordsWritten.WithLabelValues("base")))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MissingTokens.WithLabelValues("base", "no_data")))
	})

	t.Run("failed batch falls back to individual requests", func(t *testing.T) {
		api := &fakeAPI{
			tokens: map[string][]string{"base": {"abc", "ghi", "jkl", "mno", "pqr"}},
			market: map[string]func(http.ResponseWriter){
				"base:abc,ghi,jkl,mno,pqr": status(http.StatusInternalServerError),
				"base:abc":                 marketJSON(token("1", "abc")),
				"base:ghi": func(w http.ResponseWriter) {
					fmt.Fprint(w, `{"success":false,"message":"unknown ticker"}`)
				},
				"base:jkl": func(w http.ResponseWriter) { fmt.Fprint(w, `not json`) },
				"base:mno": status(http.StatusNotFound),
			},
		}
		f := newFixture(t, api)

		result := f.collector.ProcessChain(context.Background(), "base")
		require.NoError(t, result.Err)
		assert.Equal(t, 1, result.Records)
		assert.Equal(t, 4, result.Missing)
		assert.Equal(t, []string{
			"base:abc,ghi,jkl,mno,pqr", "base:abc", "base:ghi", "base:jkl", "base:mno", "base:pqr",
		}, api.requests, "a 500 is not retried")

		missing := readRows(t, f.missing.Path())
		require.Len(t, missing, 4)
		assert.Equal(t, "ghi", missing[0][0])
		assert.Equal(t, dapplooker.ReasonAPIFailure, missing[0][3])
		assert.Equal(t, "jkl", missing[1][0])
		assert.True(t, strings.HasPrefix(missing[1][3], "JSON parsing error: "), missing[1][3])
		assert.Equal(t, "mno", missing[2][0])
		assert.True(t, strings.HasPrefix(missing[2][3], "Request error: "), missing[2][3])
		assert.Equal(t, "pqr", missing[3][0])
		assert.Equal(t, dapplooker.ReasonNoData, missing[3][3])
	})

	t.Run("single token batch is retried once individually", func(t *testing.T) {
		api := &fakeAPI{
			tokens: map[string][]string{"solana": {"abc"}},
			market: map[string]func(http.ResponseWriter){
				"solana:abc": status(http.StatusBadRequest),
			},
		}
		f := newFixture(t, api)

		result := f.collector.ProcessChain(context.Background(), "solana")
		assert.Equal(t, 1, result.Missing)
		assert.Equal(t, []string{"solana:abc", "solana:abc"}, api.requests)
	})

	t.Run("listing failure is reported", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()
		f := newFixture(t, &fakeAPI{})
		f.client.MetainfoURL = server.URL

		result := f.collector.ProcessChain(context.Background(), "base")
		require.Error(t, result.Err)
		assert.Zero(t, result.Tokens)
	})
}

func TestCollector_Run(t *testing.T) {

	t.Run("deduplicates across chains and keeps going after a failure", func(t *testing.T) {
		api := &fakeAPI{
			tokens: map[string][]string{
				"base":   {"abc"},
				"solana": {"abc", "xyz"},
			},
			market: map[string]func(http.ResponseWriter){
				"base:abc":       marketJSON(token("1", "abc")),
				"solana:abc,xyz": marketJSON(token("1", "abc"), token("9", "xyz")),
			},
		}
		f := newFixture(t, api)

		results := f.collector.Run(context.Background(), []string{"base", "unknown", "solana"})
		require.Len(t, results, 3)
		assert.Equal(t, 1, results[0].Records)
		assert.Zero(t, results[1].Tokens)
		assert.Equal(t, 1, results[2].Records)
		assert.Equal(t, 1, results[2].Duplicates)
		assert.Equal(t, 2, f.records.Written())
	})

	t.Run("cancelled run skips remaining chains", func(t *testing.T) {
		f := newFixture(t, &fakeAPI{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := f.collector.Run(ctx, []string{"base", "solana"})
		require.Len(t, results, 2)
		for _, r := range results {
			assert.ErrorIs(t, r.Err, context.Canceled)
		}
	})
}

func TestSplitBatches(t *testing.T) {
	symbols := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, splitBatches(symbols, 2))
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, splitBatches(symbols, 30))
	assert.Empty(t, splitBatches(nil, 10))
}

func TestAbsentSymbols(t *testing.T) {
	records := []dapplooker.MarketRecord{
		{Result: gjson.Parse(`{"token_info":{"symbol":"DEF"}}`)},
		{Result: gjson.Parse(`{"token_info":{}}`)},
	}
	assert.Equal(t, []string{"abc", "ghi"}, absentSymbols([]string{"abc", "def", "ghi"}, records))
	assert.Empty(t, absentSymbols([]string{"def"}, records))
}
