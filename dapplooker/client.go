// Package dapplooker talks to the DappLooker token metadata and market APIs.
package dapplooker

import (
	"context"
	"time"

	"github.com/polyrabbit/market-collector/config"
	"github.com/polyrabbit/market-collector/http"
	"github.com/polyrabbit/market-collector/metrics"
	"golang.org/x/time/rate"
)

// RetryPolicy describes how a market request reacts to 502 responses. Any
// other failure is returned on the first attempt.
type RetryPolicy struct {
	Attempts int
	Delays   []time.Duration
	// Timeout bounds every single attempt, zero means the HTTP client timeout.
	Timeout time.Duration
}

func (p RetryPolicy) delay(retry int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if retry >= len(p.Delays) {
		retry = len(p.Delays) - 1
	}
	return p.Delays[retry]
}

var (
	BatchRetryPolicy = RetryPolicy{
		Attempts: 3,
		Delays:   []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
	}
	IndividualRetryPolicy = RetryPolicy{
		Attempts: 2,
		Delays:   []time.Duration{1 * time.Second, 3 * time.Second},
	}
)

type Client struct {
	*http.Client
	APIKey      string
	MetainfoURL string
	MarketURL   string
	PageSize    int

	BatchPolicy      RetryPolicy
	IndividualPolicy RetryPolicy

	// Sleep waits between retries, replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error

	pageLimiter *rate.Limiter
	metrics     *metrics.Metrics
}

func NewClient(cfg *config.Config, httpClient *http.Client, m *metrics.Metrics) *Client {
	individual := IndividualRetryPolicy
	individual.Timeout = time.Duration(cfg.IndividualTimeout) * time.Second
	return &Client{
		Client:           httpClient,
		APIKey:           cfg.APIKey,
		MetainfoURL:      cfg.MetainfoURL,
		MarketURL:        cfg.MarketURL,
		PageSize:         cfg.PageSize,
		BatchPolicy:      BatchRetryPolicy,
		IndividualPolicy: individual,
		Sleep:            SleepContext,
		pageLimiter:      NewPacer(cfg.PageDelay),
		metrics:          m,
	}
}

// NewPacer returns a limiter that spaces consecutive Wait calls by at least
// interval. A non-positive interval never blocks.
func NewPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
