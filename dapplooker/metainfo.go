package dapplooker

import (
	"context"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github.com/polyrabbit/market-collector/metrics"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// ListTokens pages through the metadata endpoint and returns the lowercased
// symbols of chain. Pagination stops at the first short or empty page. On a
// failed page it returns what was collected so far together with the error.
func (client *Client) ListTokens(ctx context.Context, chain string) ([]string, error) {
	var tokens []string
	logEntry := logrus.WithField("chain", chain)

	for page := 1; ; page++ {
		if err := client.pageLimiter.Wait(ctx); err != nil {
			return tokens, err
		}
		respBytes, err := client.Get(ctx, client.MetainfoURL, map[string]string{
			"api_key": client.APIKey,
			"chain":   chain,
			"page":    strconv.Itoa(page),
		})
		var (
			symbols []string
			entries int
		)
		if err == nil {
			symbols, entries, err = parseMetainfoPage(respBytes)
		}
		client.metrics.ObserveRequest(metrics.EndpointMetainfo, outcome(err))
		if err != nil {
			return tokens, errors.Wrapf(err, "fetch tokens page %d", page)
		}
		if entries == 0 {
			logEntry.Infof("No more tokens found after page %d", page-1)
			break
		}

		tokens = append(tokens, symbols...)
		client.metrics.ObserveTokensListed(chain, len(symbols))
		logEntry.Infof("Page %d: %d tokens found (Total: %d)", page, entries, len(tokens))
		if entries < client.PageSize { // Less than a full page means we're done
			break
		}
	}
	return tokens, nil
}

// parseMetainfoPage returns the symbols found in a page and the number of
// entries in its data array, which drives pagination.
func parseMetainfoPage(body []byte) ([]string, int, error) {
	if !gjson.ValidBytes(body) {
		return nil, 0, &DecodeError{Err: errors.Errorf("invalid JSON body %q", truncate(body))}
	}
	success, err := jsonparser.GetBoolean(body, "success")
	if err != nil || !success {
		return nil, 0, &APIError{Body: truncate(body)}
	}

	var (
		symbols []string
		entries int
	)
	// A missing or null data array is an empty page
	jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		entries++
		if dataType != jsonparser.Object {
			return
		}
		if symbol, err := jsonparser.GetString(value, "symbol"); err == nil && symbol != "" {
			symbols = append(symbols, strings.ToLower(symbol))
		}
	}, "data")
	return symbols, entries, nil
}
