package dapplooker

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/polyrabbit/market-collector/metrics"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Nested sections of a market record.
const (
	SectionTokenInfo    = "token_info"
	SectionTechnical    = "technical_indicators"
	SectionHolders      = "token_holder_insights"
	SectionSmartMoney   = "smart_money_insights"
	SectionDevWallet    = "dev_wallet_insights"
	SectionTokenMetrics = "token_metrics"
	SectionSocial       = "x_social_metrics"
	FieldLastUpdatedAt  = "last_updated_at"
)

// MarketRecord is one token object returned by the market endpoint.
type MarketRecord struct {
	gjson.Result
}

func (r MarketRecord) Section(name string) gjson.Result {
	return r.Get(name)
}

// ID is the token id used for de-duplication, empty if absent.
func (r MarketRecord) ID() string {
	return r.Get(SectionTokenInfo + ".id").String()
}

func (r MarketRecord) Symbol() string {
	return strings.ToLower(r.Get(SectionTokenInfo + ".symbol").String())
}

// GetMarketBatch requests market data for a batch of tickers under BatchPolicy.
func (client *Client) GetMarketBatch(ctx context.Context, chain string, tickers []string) ([]MarketRecord, error) {
	return client.getMarketData(ctx, chain, tickers, client.BatchPolicy, metrics.EndpointMarketBatch)
}

// GetTokenMarketData requests market data for a single ticker under IndividualPolicy.
func (client *Client) GetTokenMarketData(ctx context.Context, chain, ticker string) ([]MarketRecord, error) {
	return client.getMarketData(ctx, chain, []string{ticker}, client.IndividualPolicy, metrics.EndpointMarketToken)
}

func (client *Client) getMarketData(ctx context.Context, chain string, tickers []string,
	policy RetryPolicy, endpoint string) ([]MarketRecord, error) {

	logEntry := logrus.WithFields(logrus.Fields{"chain": chain, "endpoint": endpoint})
	for attempt := 1; ; attempt++ {
		records, err := client.requestMarket(ctx, chain, tickers, policy.Timeout)
		client.metrics.ObserveRequest(endpoint, outcome(err))
		if err == nil {
			return records, nil
		}
		if !IsBadGateway(err) {
			return nil, err
		}
		if attempt >= policy.Attempts {
			logEntry.Warnf("502 Server Error - max retries exceeded after %d attempts", attempt)
			return nil, err
		}
		delay := policy.delay(attempt - 1)
		logEntry.Warnf("502 Server Error (attempt %d/%d), retrying in %s", attempt, policy.Attempts, delay)
		client.metrics.ObserveRetry(endpoint)
		if err := client.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (client *Client) requestMarket(ctx context.Context, chain string, tickers []string,
	timeout time.Duration) ([]MarketRecord, error) {

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	respBytes, err := client.Get(ctx, client.MarketURL, map[string]string{
		"api_key":       client.APIKey,
		"chain":         chain,
		"token_tickers": strings.Join(tickers, ","),
	})
	if err != nil {
		return nil, errors.Wrap(err, "market request")
	}
	return parseMarketResponse(respBytes)
}

func parseMarketResponse(body []byte) ([]MarketRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, &DecodeError{Err: errors.Errorf("invalid JSON body %q", truncate(body))}
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.Get("success").Bool() {
		return nil, &APIError{Body: truncate(body)}
	}

	var records []MarketRecord
	for _, item := range parsed.Get("data").Array() {
		if item.IsObject() {
			records = append(records, MarketRecord{item})
		}
	}
	return records, nil
}
