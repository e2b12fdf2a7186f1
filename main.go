package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/polyrabbit/market-collector/collector"
	"github.com/polyrabbit/market-collector/config"
	"github.com/polyrabbit/market-collector/dapplooker"
	"github.com/polyrabbit/market-collector/http"
	"github.com/polyrabbit/market-collector/metrics"
	"github.com/polyrabbit/market-collector/retention"
	"github.com/polyrabbit/market-collector/storage/postgres"
	"github.com/polyrabbit/market-collector/upload"
	"github.com/polyrabbit/market-collector/writer"
	"github.com/sirupsen/logrus"
)

const fileTimestampLayout = "20060102_150405"

// runReport is everything the summary and the run ledger need.
type runReport struct {
	started      time.Time
	finished     time.Time
	chains       []string
	results      []writer.ChainResult
	marketFile   string
	missingFile  string
	written      int
	skipped      int
	missing      int
	filesRemoved int
	receipt      *upload.Receipt
}

func main() {
	cfg := config.Parse()
	logFile, err := config.SetupLogging(cfg)
	if err != nil {
		logrus.Warnf("Logging to terminal only: %v", err)
	} else {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := run(ctx, cfg)
	printSummary(cfg, report)
	export(cfg, report)
}

func run(ctx context.Context, cfg *config.Config) *runReport {
	report := &runReport{started: time.Now(), chains: cfg.Chains}
	m := metrics.New("")
	defer func() {
		report.finished = time.Now()
		m.Finish(report.started, report.finished)
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logrus.Warn(err)
		}
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.Push(pushCtx, cfg.Metrics.Pushgateway, cfg.Metrics.Job); err != nil {
			logrus.Warn(err)
		}
	}()

	logrus.Infof("Market collector started, chains: %v", cfg.Chains)

	cleaner := retention.NewCleaner(cfg.OutputDir, cfg.LogPath(), cfg.Retention())
	report.filesRemoved = cleaner.Clean()
	m.ObserveRemoved(report.filesRemoved)

	stamp := report.started.Format(fileTimestampLayout)
	report.marketFile = filepath.Join(cfg.OutputDir, "market_data_"+stamp+".csv")
	report.missingFile = filepath.Join(cfg.OutputDir, "missing_tokens_"+stamp+".csv")
	records, err := writer.NewMarketWriter(report.marketFile)
	if err != nil {
		logrus.Fatalf("Failed to initialize %s: %v", report.marketFile, err)
	}
	missing, err := writer.NewMissingLedger(report.missingFile)
	if err != nil {
		logrus.Fatalf("Failed to initialize %s: %v", report.missingFile, err)
	}

	client := dapplooker.NewClient(cfg, http.New(cfg), m)
	report.results = collector.New(cfg, client, records, missing, m).Run(ctx, cfg.Chains)
	report.written = records.Written()
	report.skipped = records.Skipped()
	report.missing = missing.Count()

	receipt, err := upload.New(cfg).Upload(ctx, report.marketFile)
	switch {
	case errors.Is(err, upload.ErrDisabled):
		logrus.Info("Upload disabled")
	case err != nil:
		logrus.WithError(err).Error("Upload failed")
	}
	report.receipt = receipt
	m.ObserveUpload(receipt != nil)
	return report
}

func printSummary(cfg *config.Config, report *runReport) {
	duration := report.finished.Sub(report.started).Round(time.Second)
	logrus.Info("Collection completed")
	logrus.Infof("Duration: %s", duration)
	logrus.Infof("Total records: %d", report.written)
	logrus.Infof("Duplicates skipped: %d", report.skipped)
	logrus.Infof("Missing tokens: %d", report.missing)
	logrus.Infof("Market data file: %s", report.marketFile)
	logrus.Infof("Missing tokens file: %s", report.missingFile)

	switch {
	case report.receipt.Known():
		logrus.Infof("Uploaded, transaction %s", report.receipt.TxID)
		logrus.Infof("Access link: %s", report.receipt.AccessURL)
		logrus.Infof("Explorer link: %s", report.receipt.ExplorerURL)
	case report.receipt != nil:
		logrus.Info("Uploaded, transaction ID unknown")
	default:
		logrus.Info("Not uploaded")
	}
	logrus.Infof("Files older than %d days are removed on each run (%d removed this time)",
		cfg.RetentionDays, report.filesRemoved)

	summary := writer.NewSummaryWriter(colorable.NewColorableStdout()) // For Windows
	summary.Render(report.results)
}

// export records the run in the database when one is configured.
func export(cfg *config.Config, report *runReport) {
	if cfg.Database.DSN == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		logrus.WithError(err).Warn("Run not recorded")
		return
	}
	defer pool.Close()
	if err := pool.Migrate(ctx); err != nil {
		logrus.WithError(err).Warn("Run not recorded")
		return
	}

	entry := &postgres.Run{
		StartedAt:      report.started,
		FinishedAt:     report.finished,
		Chains:         report.chains,
		RecordsWritten: report.written,
		Duplicates:     report.skipped,
		MissingTokens:  report.missing,
		FilesRemoved:   report.filesRemoved,
		MarketFile:     filepath.Base(report.marketFile),
		MissingFile:    filepath.Base(report.missingFile),
		Uploaded:       report.receipt != nil,
	}
	if report.receipt.Known() {
		entry.UploadTxID = &report.receipt.TxID
	}
	id, err := postgres.NewRunStore(pool).Insert(ctx, entry)
	if err != nil {
		logrus.WithError(err).Warn("Run not recorded")
		return
	}
	logrus.Debugf("Run recorded with id %d", id)
}
