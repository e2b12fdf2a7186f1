package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when no run has been recorded yet.
var ErrNotFound = errors.New("run not found")

// Run is one row of the collection_runs ledger.
type Run struct {
	ID             int64
	StartedAt      time.Time
	FinishedAt     time.Time
	Chains         []string
	RecordsWritten int
	Duplicates     int
	MissingTokens  int
	FilesRemoved   int
	MarketFile     string
	MissingFile    string
	// UploadTxID is nil unless the upload returned a transaction id.
	UploadTxID *string
	Uploaded   bool
}

type RunStore struct {
	pool *Pool
}

func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Insert records run and returns its generated id.
func (s *RunStore) Insert(ctx context.Context, run *Run) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO collection_runs (
			started_at, finished_at, chains, records_written, duplicates,
			missing_tokens, files_removed, market_file, missing_file,
			upload_tx_id, uploaded
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, run.StartedAt, run.FinishedAt, run.Chains, run.RecordsWritten, run.Duplicates,
		run.MissingTokens, run.FilesRemoved, run.MarketFile, run.MissingFile,
		run.UploadTxID, run.Uploaded).Scan(&id)
	if err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

// Latest returns the most recently started run.
func (s *RunStore) Latest(ctx context.Context) (*Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, started_at, finished_at, chains, records_written, duplicates,
		       missing_tokens, files_removed, market_file, missing_file,
		       upload_tx_id, uploaded
		FROM collection_runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`)

	var run Run
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Chains, &run.RecordsWritten,
		&run.Duplicates, &run.MissingTokens, &run.FilesRemoved, &run.MarketFile, &run.MissingFile,
		&run.UploadTxID, &run.Uploaded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}
