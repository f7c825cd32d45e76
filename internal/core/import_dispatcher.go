package core

import (
	"context"

	"github.com/JonMunkholm/giftapi/internal/logging"
)

// ImportDispatcher hands staged files to the executor and returns at once.
type ImportDispatcher struct {
	executor  *Executor
	worker    *KidsImportWorker
	batchSize int
}

// NewImportDispatcher creates a dispatcher running worker on executor.
func NewImportDispatcher(executor *Executor, worker *KidsImportWorker, batchSize int) *ImportDispatcher {
	return &ImportDispatcher{
		executor:  executor,
		worker:    worker,
		batchSize: batchSize,
	}
}

// Dispatch submits staged for background import. The job outlives ctx but
// keeps its values, so worker logs carry the request id of the upload.
// When the executor refuses the job the staged file is removed and the
// executor error is returned.
func (d *ImportDispatcher) Dispatch(ctx context.Context, staged StagedFile) (*ImportJob, error) {
	job := NewImportJob(staged, d.batchSize)
	logger := logging.WithFields(ctx, "job_id", job.ID, "file", job.FileName)

	jobCtx := context.WithoutCancel(ctx)
	err := d.executor.Submit(func(worker string) {
		// The outcome is only observable through logs and metrics.
		_ = d.worker.Run(jobCtx, job, worker)
	})
	if err != nil {
		removeStaged(logger, staged.Path)
		logger.Warn("import rejected", "error", err)
		return nil, err
	}

	logger.Info("import dispatched", "bytes", staged.Size)
	return job, nil
}
