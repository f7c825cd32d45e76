package core

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/giftapi/internal/logging"
	"github.com/JonMunkholm/giftapi/internal/metrics"
)

// DefaultImportBatchSize is used when a job is created with a non-positive batch size.
const DefaultImportBatchSize = 1000

// ImportJob is one staged file waiting for or undergoing import.
// It lives only in memory and is owned by the worker running it.
type ImportJob struct {
	ID        string
	Path      string
	FileName  string
	BatchSize int

	rows int64
}

// NewImportJob creates a job for a staged file.
func NewImportJob(staged StagedFile, batchSize int) *ImportJob {
	if batchSize <= 0 {
		batchSize = DefaultImportBatchSize
	}
	return &ImportJob{
		ID:        uuid.NewString(),
		Path:      staged.Path,
		FileName:  staged.FileName,
		BatchSize: batchSize,
	}
}

// Rows returns the number of rows inserted so far.
func (j *ImportJob) Rows() int64 {
	return j.rows
}

// KidsImportWorker loads staged kid files into the store.
type KidsImportWorker struct {
	store   Store
	metrics *metrics.Metrics
}

// NewKidsImportWorker creates a worker writing to store.
func NewKidsImportWorker(store Store, m *metrics.Metrics) *KidsImportWorker {
	return &KidsImportWorker{store: store, metrics: m}
}

// Run imports job in a single transaction. Rows are inserted in batches of
// job.BatchSize; any failure rolls back every batch of the file and is
// returned as an *ImportError. The staged file is removed in all cases.
func (w *KidsImportWorker) Run(ctx context.Context, job *ImportJob, worker string) error {
	logger := logging.WithFields(ctx,
		"job_id", job.ID,
		"file", job.FileName,
		"worker", worker,
	)
	defer removeStaged(logger, job.Path)

	start := time.Now()
	logger.Info("import started", "batch_size", job.BatchSize)

	err := w.store.InTx(ctx, func(tx Tx) error {
		return w.load(ctx, tx, job, logger)
	})
	duration := time.Since(start)

	if err != nil {
		w.metrics.ImportFinished("failed")
		logger.Error("import failed",
			"error", err,
			"rows_sent", job.rows,
			"duration", duration,
		)
		return &ImportError{FileName: job.FileName, Err: err}
	}

	w.metrics.ImportFinished("ok")
	logger.Info("import completed",
		"rows", job.rows,
		"duration", duration,
	)
	return nil
}

func (w *KidsImportWorker) load(ctx context.Context, tx Tx, job *ImportJob, logger *slog.Logger) error {
	f, err := os.Open(job.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := newKidRowReader(f)
	batch := make([]KidRow, 0, job.BatchSize)

	for {
		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		batch = append(batch, row)
		if len(batch) == job.BatchSize {
			if err := w.flush(ctx, tx, job, batch, logger); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		return w.flush(ctx, tx, job, batch, logger)
	}
	return nil
}

func (w *KidsImportWorker) flush(ctx context.Context, tx Tx, job *ImportJob, batch []KidRow, logger *slog.Logger) error {
	start := time.Now()
	n, err := tx.InsertKidRows(ctx, batch)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	job.rows += n
	w.metrics.ObserveBatch(n, elapsed)
	logger.Info("batch inserted",
		"rows", n,
		"total", job.rows,
		"elapsed", elapsed,
	)
	return nil
}

// removeStaged deletes a staged file. Failures are logged, never returned.
func removeStaged(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to remove staged file", "path", path, "error", err)
	}
}
