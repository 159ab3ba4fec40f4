// Package worker contains the background worker that keeps the per-user
// statistics cache fresh. The incremental update on save never re-ranks
// strong and weak topics; the worker runs a full recompute for every known
// user on a fixed interval and reports its run history over HTTP.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"examprep/internal/config"
	"examprep/internal/observability"
	"examprep/internal/services"

	"github.com/go-co-op/gocron"
	"go.opentelemetry.io/otel/attribute"
)

// Status represents the current state of the worker
type Status struct {
	IsRunning       bool      `json:"is_running"`
	IsPaused        bool      `json:"is_paused"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	LastRunStart    time.Time `json:"last_run_start"`
	LastRunFinish   time.Time `json:"last_run_finish"`
	LastRunError    string    `json:"last_run_error,omitempty"`
	UsersRefreshed  int       `json:"users_refreshed"`
	NextRun         time.Time `json:"next_run"`
}

// RunRecord tracks individual worker runs
type RunRecord struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"` // Success, Failure, Skipped
	Details   string        `json:"details"`
}

// Worker refreshes cached statistics on a gocron schedule
type Worker struct {
	statisticsService services.StatisticsServiceInterface
	instance          string
	cfg               *config.Config
	logger            *observability.Logger

	scheduler *gocron.Scheduler
	job       *gocron.Job

	mu      sync.RWMutex
	status  Status
	history []RunRecord
	// runMu keeps scheduled and manual runs from overlapping
	runMu sync.Mutex

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
}

// NewWorker creates a new Worker instance
func NewWorker(statisticsService services.StatisticsServiceInterface, instance string, cfg *config.Config, logger *observability.Logger) *Worker {
	if statisticsService == nil || cfg == nil || logger == nil {
		panic("worker: statistics service, config and logger are required")
	}
	if instance == "" {
		instance = "default"
	}

	return &Worker{
		statisticsService: statisticsService,
		instance:          instance,
		cfg:               cfg,
		logger:            logger,
		scheduler:         gocron.NewScheduler(time.UTC),
		status:            Status{CurrentActivity: "Initialized"},
		history:           make([]RunRecord, 0, config.MaxWorkerHistory),
		timeNow:           time.Now,
	}
}

// Start schedules the refresh job and starts the scheduler without blocking.
// With refresh disabled the worker stays idle but still answers status queries.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	w.status.IsRunning = true
	w.mu.Unlock()

	if !w.cfg.Statistics.RefreshEnabled {
		w.logger.Info(ctx, "Statistics refresh disabled, worker idle", map[string]interface{}{
			"instance": w.instance,
		})
		w.updateActivity("Refresh disabled")
		return nil
	}

	interval := w.cfg.Statistics.RefreshInterval
	w.scheduler.SingletonModeAll()
	job, err := w.scheduler.Every(interval).Do(w.run)
	if err != nil {
		w.mu.Lock()
		w.status.IsRunning = false
		w.mu.Unlock()
		return fmt.Errorf("schedule statistics refresh every %s: %w", interval, err)
	}
	w.job = job
	w.scheduler.StartAsync()

	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance": w.instance,
		"interval": interval.String(),
	})
	w.updateActivity("Waiting for next run")
	return nil
}

// run is the scheduled entry point
func (w *Worker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), config.StatisticsRefreshTimeout)
	defer cancel()

	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error(ctx, "Worker run failed", err, map[string]interface{}{
			"instance": w.instance,
		})
	}
}

// RunOnce recomputes statistics for every known user and records the run.
// A paused worker records a skipped run and returns zero.
func (w *Worker) RunOnce(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "run",
		attribute.String("worker.instance", w.instance),
	)
	defer observability.FinishSpan(span, &err)

	w.runMu.Lock()
	defer w.runMu.Unlock()

	start := w.timeNow()
	if w.GetStatus().IsPaused {
		span.SetAttributes(attribute.String("pause_reason", "Worker instance paused"))
		w.recordRun(RunRecord{StartTime: start, EndTime: start, Status: "Skipped", Details: "Worker instance paused"})
		return 0, nil
	}

	w.mu.Lock()
	w.status.LastRunStart = start
	w.status.CurrentActivity = "Refreshing statistics"
	w.mu.Unlock()

	refreshed, err := w.statisticsService.RefreshAll(ctx)
	finish := w.timeNow()

	w.mu.Lock()
	w.status.LastRunFinish = finish
	w.status.UsersRefreshed = refreshed
	w.status.CurrentActivity = "Waiting for next run"
	if err != nil {
		w.status.LastRunError = err.Error()
	} else {
		w.status.LastRunError = ""
	}
	w.mu.Unlock()

	record := RunRecord{
		StartTime: start,
		EndTime:   finish,
		Duration:  finish.Sub(start),
		Status:    "Success",
		Details:   fmt.Sprintf("refreshed statistics for %d users", refreshed),
	}
	if err != nil {
		record.Status = "Failure"
		record.Details = fmt.Sprintf("refreshed %d users before failing: %v", refreshed, err)
	}
	w.recordRun(record)

	span.SetAttributes(observability.AttributeCount(refreshed))
	w.logger.Info(ctx, "Statistics refresh finished", map[string]interface{}{
		"instance":    w.instance,
		"users":       refreshed,
		"duration_ms": record.Duration.Milliseconds(),
		"status":      record.Status,
	})
	return refreshed, err
}

// recordRun appends to the history and trims it to MaxWorkerHistory
func (w *Worker) recordRun(record RunRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, record)
	if len(w.history) > config.MaxWorkerHistory {
		w.history = w.history[len(w.history)-config.MaxWorkerHistory:]
	}
}

func (w *Worker) updateActivity(activity string) {
	w.mu.Lock()
	w.status.CurrentActivity = activity
	w.mu.Unlock()
}

// GetStatus returns the current worker status
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	status := w.status
	job := w.job
	w.mu.RUnlock()

	if job != nil {
		status.NextRun = job.NextRun()
	}
	return status
}

// GetHistory returns the worker's run history, oldest first
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	history := make([]RunRecord, len(w.history))
	copy(history, w.history)
	return history
}

// GetInstance returns the worker instance name
func (w *Worker) GetInstance() string {
	return w.instance
}

// TriggerManualRun runs a refresh immediately, outside the schedule
func (w *Worker) TriggerManualRun(ctx context.Context) (int, error) {
	w.logger.Info(ctx, "Worker triggered manually", map[string]interface{}{
		"instance": w.instance,
	})
	return w.RunOnce(ctx)
}

// Pause makes scheduled runs no-ops until Resume
func (w *Worker) Pause(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = true
	w.status.CurrentActivity = "Paused"
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker paused", map[string]interface{}{
		"instance": w.instance,
	})
}

// Resume re-enables scheduled runs
func (w *Worker) Resume(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = false
	w.status.CurrentActivity = "Waiting for next run"
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker resumed", map[string]interface{}{
		"instance": w.instance,
	})
}

// Shutdown stops the scheduler and waits for an in-flight run to finish or ctx to expire
func (w *Worker) Shutdown(ctx context.Context) error {
	w.logger.Info(ctx, "Worker starting shutdown", map[string]interface{}{
		"instance": w.instance,
	})

	w.scheduler.Stop()

	done := make(chan struct{})
	go func() {
		w.runMu.Lock()
		defer w.runMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}

	w.mu.Lock()
	w.status.IsRunning = false
	w.status.CurrentActivity = "Stopped"
	w.mu.Unlock()

	w.logger.Info(ctx, "Worker shutdown completed", map[string]interface{}{
		"instance": w.instance,
	})
	return nil
}
