// Package collector drives one collection run: it lists the tokens of each
// chain, requests their market data in batches and records what it gets.
package collector

import (
	"context"

	"github.com/polyrabbit/market-collector/config"
	"github.com/polyrabbit/market-collector/dapplooker"
	"github.com/polyrabbit/market-collector/metrics"
	"github.com/polyrabbit/market-collector/writer"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Collector owns the state of a single run. The market writer inside it
// carries the de-duplication set, so one Collector must not be shared
// between runs.
type Collector struct {
	client  *dapplooker.Client
	records *writer.MarketWriter
	missing *writer.MissingLedger
	metrics *metrics.Metrics

	CleanBatchSize       int
	ProblematicBatchSize int

	batchPacer *rate.Limiter
	tokenPacer *rate.Limiter
}

func New(cfg *config.Config, client *dapplooker.Client, records *writer.MarketWriter,
	missing *writer.MissingLedger, m *metrics.Metrics) *Collector {
	return &Collector{
		client:               client,
		records:              records,
		missing:              missing,
		metrics:              m,
		CleanBatchSize:       cfg.CleanBatchSize,
		ProblematicBatchSize: cfg.ProblematicBatchSize,
		batchPacer:           dapplooker.NewPacer(cfg.BatchDelay),
		tokenPacer:           dapplooker.NewPacer(cfg.TokenDelay),
	}
}

// Run processes chains in order. A failing chain is reported in its result
// and does not prevent the next one from running.
func (c *Collector) Run(ctx context.Context, chains []string) []writer.ChainResult {
	results := make([]writer.ChainResult, 0, len(chains))
	for _, chain := range chains {
		if ctx.Err() != nil {
			logrus.Warnf("Run interrupted, skipping chain %s", chain)
			results = append(results, writer.ChainResult{Chain: chain, Err: ctx.Err()})
			continue
		}
		results = append(results, c.ProcessChain(ctx, chain))
	}
	return results
}

// ProcessChain lists the tokens of chain and fetches market data for them,
// clean symbols first and problematic ones in smaller batches afterwards.
func (c *Collector) ProcessChain(ctx context.Context, chain string) writer.ChainResult {
	result := writer.ChainResult{Chain: chain}
	logEntry := logrus.WithField("chain", chain)
	logEntry.Infof("Processing chain %s", chain)

	tokens, err := c.client.ListTokens(ctx, chain)
	if err != nil {
		logEntry.WithError(err).Errorf("Token listing aborted after %d tokens", len(tokens))
		result.Err = err
	}
	result.Tokens = len(tokens)
	if len(tokens) == 0 {
		logEntry.Warn("No tokens found")
		return result
	}

	clean, problematic := dapplooker.ClassifyTokens(tokens)
	result.Clean, result.Problematic = len(clean), len(problematic)
	logEntry.Infof("Token classification: %d clean, %d problematic", len(clean), len(problematic))

	tiers := []struct {
		name      string
		symbols   []string
		batchSize int
	}{
		{"clean", clean, c.CleanBatchSize},
		{"problematic", problematic, c.ProblematicBatchSize},
	}
	for _, tier := range tiers {
		if len(tier.symbols) == 0 {
			continue
		}
		if err := c.fetchTier(ctx, chain, tier.name, tier.symbols, tier.batchSize, &result); err != nil {
			logEntry.WithError(err).Warnf("Stopped fetching %s tokens", tier.name)
			if result.Err == nil {
				result.Err = err
			}
			break
		}
	}

	logEntry.Infof("Chain %s done: %d records, %d duplicates, %d missing",
		chain, result.Records, result.Duplicates, result.Missing)
	return result
}

// fetchTier only returns an error when ctx is done, every other failure is
// downgraded to missing-token entries.
func (c *Collector) fetchTier(ctx context.Context, chain, tier string, symbols []string,
	batchSize int, result *writer.ChainResult) error {

	batches := splitBatches(symbols, batchSize)
	for i, batch := range batches {
		if err := c.batchPacer.Wait(ctx); err != nil {
			return err
		}
		logEntry := logrus.WithFields(logrus.Fields{
			"chain": chain,
			"tier":  tier,
			"batch": i + 1,
		})
		logEntry.Infof("Fetching %s batch %d/%d (%d tokens)", tier, i+1, len(batches), len(batch))

		records, err := c.client.GetMarketBatch(ctx, chain, batch)
		if err == nil {
			c.store(chain, records, result)
			c.recordMissing(chain, absentSymbols(batch, records), dapplooker.ReasonNoData, nil, result)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logEntry.WithError(err).Warn("Batch failed, falling back to individual requests")
		if err := c.fetchIndividually(ctx, chain, batch, result); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) fetchIndividually(ctx context.Context, chain string, symbols []string,
	result *writer.ChainResult) error {

	for _, symbol := range symbols {
		if err := c.tokenPacer.Wait(ctx); err != nil {
			return err
		}
		records, err := c.client.GetTokenMarketData(ctx, chain, symbol)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.WithFields(logrus.Fields{"chain": chain, "symbol": symbol}).
				WithError(err).Debug("Individual request failed")
			c.recordMissing(chain, []string{symbol}, dapplooker.MissingReason(err), err, result)
		case len(records) == 0:
			c.recordMissing(chain, []string{symbol}, dapplooker.ReasonNoData, nil, result)
		default:
			c.store(chain, records, result)
		}
	}
	return nil
}

func (c *Collector) store(chain string, records []dapplooker.MarketRecord, result *writer.ChainResult) {
	if len(records) == 0 {
		return
	}
	added, skipped, err := c.records.Write(records)
	if err != nil {
		logrus.WithField("chain", chain).WithError(err).Errorf("Failed to write %d records", len(records))
	}
	result.Records += added
	result.Duplicates += skipped
	c.metrics.ObserveWrite(chain, added, skipped)
}

// recordMissing appends symbols to the missing-token ledger. cause is the
// request error, nil when the API simply had nothing for them.
func (c *Collector) recordMissing(chain string, symbols []string, reason string, cause error,
	result *writer.ChainResult) {

	if len(symbols) == 0 {
		return
	}
	if err := c.missing.Log(symbols, chain, reason); err != nil {
		logrus.WithField("chain", chain).WithError(err).Errorf("Failed to log %d missing tokens", len(symbols))
	}
	result.Missing += len(symbols)
	c.metrics.ObserveMissing(chain, dapplooker.ReasonKind(cause), len(symbols))
	logrus.WithField("chain", chain).Debugf("%d tokens without market data: %s", len(symbols), reason)
}

// absentSymbols returns the requested symbols no record was returned for,
// in request order.
func absentSymbols(requested []string, records []dapplooker.MarketRecord) []string {
	returned := make(map[string]struct{}, len(records))
	for _, record := range records {
		returned[record.Symbol()] = struct{}{}
	}
	var absent []string
	for _, symbol := range requested {
		if _, ok := returned[symbol]; !ok {
			absent = append(absent, symbol)
		}
	}
	return absent
}

func splitBatches(symbols []string, size int) [][]string {
	if size <= 0 {
		size = len(symbols)
	}
	batches := make([][]string, 0, (len(symbols)+size-1)/size)
	for start := 0; start < len(symbols); start += size {
		end := min(start+size, len(symbols))
		batches = append(batches, symbols[start:end])
	}
	return batches
}
