package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/JonMunkholm/giftapi/internal/config"
	"github.com/JonMunkholm/giftapi/internal/logging"
	"github.com/JonMunkholm/giftapi/internal/metrics"
)

// Service provides the core business logic for kids, gifts and kid imports.
type Service struct {
	store    Store
	kidTypes *KidTypeRegistry
	metrics  *metrics.Metrics

	stager     *ImportStager
	executor   *Executor
	dispatcher *ImportDispatcher
}

// NewService creates a Service and starts nothing; import workers are
// spawned on demand by the executor.
func NewService(store Store, cfg *config.Config, kidTypes *KidTypeRegistry, m *metrics.Metrics) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("new service: store is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("new service: config is required")
	}
	if kidTypes == nil {
		kidTypes = DefaultKidTypes()
	}

	executor := NewExecutor(ExecutorOptions{
		CoreSize:      cfg.Executor.CorePoolSize,
		MaxSize:       cfg.Executor.MaxPoolSize,
		QueueCapacity: cfg.Executor.QueueCapacity,
		NamePrefix:    cfg.Executor.ThreadNamePrefix,
		KeepAlive:     cfg.Executor.KeepAlive,
		Policy:        RejectionPolicy(cfg.Executor.RejectionPolicy),
		BlockTimeout:  cfg.Executor.BlockTimeout,
	}, m)
	worker := NewKidsImportWorker(store, m)

	return &Service{
		store:      store,
		kidTypes:   kidTypes,
		metrics:    m,
		stager:     NewImportStager(cfg.Import.StagingDir),
		executor:   executor,
		dispatcher: NewImportDispatcher(executor, worker, cfg.Import.BatchSize),
	}, nil
}

// KidTypes returns the registry used for typed kid creation.
func (s *Service) KidTypes() *KidTypeRegistry {
	return s.kidTypes
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ImportKids stages r synchronously and dispatches the staged file for
// background import. A nil error means the file was accepted, not that the
// import succeeded.
func (s *Service) ImportKids(ctx context.Context, r io.Reader, fileName string) (*ImportJob, error) {
	staged, err := s.stager.Stage(ctx, r, fileName)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Dispatch(ctx, staged)
}

// ExecutorStatus returns the import pool state.
func (s *Service) ExecutorStatus() ExecutorStatus {
	return s.executor.Status()
}

// Shutdown stops accepting imports and waits for running ones to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.executor.Shutdown(ctx)
}

// observe records a mutation outcome and returns err unchanged.
func (s *Service) observe(op string, err error) error {
	s.metrics.ObserveMutation(op, ErrorKind(err))
	return err
}

// mutationLogger returns a request-scoped logger tagged with client metadata.
func mutationLogger(ctx context.Context) *slog.Logger {
	logger := logging.FromContext(ctx)
	if ip := GetIPAddressFromContext(ctx); ip != "" {
		logger = logger.With("client_ip", ip)
	}
	return logger
}
