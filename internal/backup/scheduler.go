package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/juju/clock"
	"gopkg.in/tomb.v2"
)

// Scheduler periodically backs up the results held in its store and applies
// the retention policy. It is the surface collaborators talk to: producers
// call UpdateResults, hosts call Start/Stop, ForceBackup, GetBackups and
// RestoreBackup.
type Scheduler struct {
	config  *Config
	clock   clock.Clock
	logger  *BackupLogger
	metrics *Metrics

	store     *ResultStore
	writer    *SnapshotWriter
	retention *RetentionPolicy
	loader    *RestoreLoader
	exporter  *Exporter

	// writeMu serializes backup writes and retention passes.
	writeMu sync.Mutex

	// lifecycleMu serializes Start and Stop.
	lifecycleMu sync.Mutex
	tomb        *tomb.Tomb

	stateMu sync.RWMutex
	state   SchedulerState
}

// NewScheduler validates config and wires up the backup components. A nil
// clock, logger or metrics falls back to the wall clock, a default logger
// and no metrics.
func NewScheduler(config *Config, clk clock.Clock, logger *BackupLogger, metrics *Metrics) (*Scheduler, error) {
	if config == nil {
		return nil, NewConfigurationError("backup configuration is required", nil)
	}
	cfg := *config
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigurationError("invalid backup configuration", err)
	}

	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = defaultBackupLogger()
	}

	store := NewResultStore()
	compression := NewCompressionManager()
	loader := NewRestoreLoader(compression, logger, metrics)

	return &Scheduler{
		config:    &cfg,
		clock:     clk,
		logger:    logger,
		metrics:   metrics,
		store:     store,
		writer:    NewSnapshotWriter(store, &cfg, clk, logger),
		retention: NewRetentionPolicy(&cfg, logger, metrics),
		loader:    loader,
		exporter:  NewExporter(&cfg, compression, logger),
		state:     SchedulerStopped,
	}, nil
}

// Config returns a copy of the effective configuration.
func (s *Scheduler) Config() Config {
	return *s.config
}

// State reports the lifecycle state.
func (s *Scheduler) State() SchedulerState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Scheduler) setState(state SchedulerState) {
	s.stateMu.Lock()
	from := s.state
	s.state = state
	s.stateMu.Unlock()

	s.logger.LogSchedulerState(from, state)
}

// Start launches the background loop. Calling Start on a running scheduler
// logs a warning and does nothing else.
func (s *Scheduler) Start() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.State() == SchedulerRunning {
		s.logger.Logger().Warn("Backup scheduler is already running")
		return
	}

	t := &tomb.Tomb{}
	s.tomb = t
	s.setState(SchedulerRunning)
	t.Go(func() error {
		return s.loop(t)
	})

	s.logger.Logger().WithFields(map[string]interface{}{
		"directory":   s.config.BackupDir(),
		"interval":    s.config.Interval.String(),
		"max_backups": s.config.Retention.MaxBackups,
	}).Info("Backup scheduler started")
}

// Stop signals the loop to exit and waits for it. It is a no-op when the
// scheduler is not running.
func (s *Scheduler) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.State() != SchedulerRunning {
		return
	}

	s.setState(SchedulerStopping)
	s.tomb.Kill(nil)
	if err := s.tomb.Wait(); err != nil {
		s.logger.Logger().WithField("error", err.Error()).Error("Backup scheduler exited with error")
	}
	s.tomb = nil
	s.setState(SchedulerStopped)
}

// Run starts the scheduler, calls fn and stops the scheduler on every way
// out of fn, panics included.
func (s *Scheduler) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	s.Start()
	defer s.Stop()

	return fn(ctx)
}

func (s *Scheduler) loop(t *tomb.Tomb) error {
	ctx := t.Context(context.Background())

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		s.tick(ctx)

		select {
		case <-t.Dying():
			return nil
		case <-s.clock.After(s.config.Interval):
		}
	}
}

// tick runs one backup followed by one retention pass. Failures are logged
// and never end the loop.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Logger().WithField("panic", fmt.Sprint(r)).Error("Recovered from panic in backup tick")
		}
	}()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.backupLocked(ctx, TriggerScheduled); err != nil && !errors.Is(err, ErrNothingToBackup) {
		entry := s.logger.Logger().WithFields(map[string]interface{}{
			"error":     err.Error(),
			"retryable": IsRetryable(err),
		})
		if IsPermanent(err) {
			entry.Error("Scheduled backup failed")
		} else {
			entry.Warn("Scheduled backup failed")
		}
	}

	if _, err := s.retention.Cleanup(ctx); err != nil {
		s.logger.Logger().WithField("error", err.Error()).Warn("Scheduled retention cleanup failed")
	}
}

func (s *Scheduler) backupLocked(ctx context.Context, trigger Trigger) (record *BackupRecord, err error) {
	start := s.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = NewStorageError(fmt.Sprintf("backup panicked: %v", r), nil)
		}

		switch {
		case err == nil:
			s.metrics.BackupWritten(trigger, record, s.clock.Now().Sub(start), s.clock.Now())
		case errors.Is(err, ErrNothingToBackup):
			s.metrics.BackupSkipped(trigger)
		default:
			s.metrics.BackupFailed(trigger)
		}
	}()

	return s.writer.CreateBackup(ctx, trigger)
}

// UpdateResults replaces the snapshot that the next backup will persist.
func (s *Scheduler) UpdateResults(snapshot Snapshot) {
	s.store.Update(snapshot)
}

// ForceBackup writes a backup immediately and returns its path. It works
// whether or not the loop is running and never overlaps a scheduled backup.
// ErrNothingToBackup is returned when no results were ever stored.
func (s *Scheduler) ForceBackup(ctx context.Context) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	record, err := s.backupLocked(ctx, TriggerForced)
	if err != nil {
		if errors.Is(err, ErrNothingToBackup) {
			s.logger.Logger().Info("Forced backup skipped, no results stored yet")
		}
		return "", err
	}
	return record.Path, nil
}

// Cleanup runs a retention pass outside of the schedule.
func (s *Scheduler) Cleanup(ctx context.Context) (*CleanupResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retention.Cleanup(ctx)
}

// PlanCleanup reports what the next retention pass would keep and delete
// without removing anything.
func (s *Scheduler) PlanCleanup(ctx context.Context) (*CleanupResult, error) {
	return s.retention.Plan(ctx)
}

// GetBackups lists persisted backups, newest first.
func (s *Scheduler) GetBackups(ctx context.Context) ([]BackupRecord, error) {
	return s.retention.ListBackups(ctx)
}

// RestoreBackup loads the snapshot stored at path.
func (s *Scheduler) RestoreBackup(ctx context.Context, path string) (Snapshot, error) {
	return s.loader.Restore(ctx, path)
}

// Export writes a compressed copy of a backup to destination.
func (s *Scheduler) Export(ctx context.Context, path, destination string, compression CompressionType) (*ExportResult, error) {
	return s.exporter.Export(ctx, path, destination, compression)
}
