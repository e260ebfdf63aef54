// Package cleanup provides background worker
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// Task is one periodic cleanup step. Run returns how many items it removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// TaskResult is the outcome of one task in one pass.
type TaskResult struct {
	Name    string
	Removed int64
	Err     error
}

// Worker runs cleanup tasks on a ticker: expired local cache entries, stale
// QR sessions and idle user sessions.
type Worker struct {
	tasks    []Task
	config   *Config
	logger   *logging.ChanneledLogger
	reporter *Reporter
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(config *Config, logger *logging.ChanneledLogger, reporter *Reporter, tasks ...Task) *Worker {
	return &Worker{
		tasks:    tasks,
		config:   config,
		logger:   logger,
		reporter: reporter,
	}
}

// Start begins the cleanup worker routine, using the configured interval
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.System().Info("Cleanup worker started", "interval", w.config.CleanupInterval, "verbose", w.config.VerboseReporting, "tasks", len(w.tasks))

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown().Info("Cleanup worker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes every task once and returns the results.
func (w *Worker) RunOnce(ctx context.Context) []TaskResult {
	start := time.Now()
	results := make([]TaskResult, 0, len(w.tasks))

	var total int64
	for _, task := range w.tasks {
		select {
		case <-ctx.Done():
			return results
		default:
		}

		removed, err := w.runTask(ctx, task)
		results = append(results, TaskResult{Name: task.Name, Removed: removed, Err: err})
		if err != nil {
			w.logger.System().Error("Cleanup task failed", "task", task.Name, "error", err)
			continue
		}
		total += removed
	}

	duration := time.Since(start)
	if w.config.VerboseReporting && w.reporter != nil {
		w.reporter.LogStage("PERIODIC CLEANUP")
		fmt.Fprint(w.reporter.out, w.reporter.GenerateReport(results))
	}
	if total > 0 {
		w.logger.System().Info("Cleanup finished", "removed", total, "duration", duration)
	} else {
		w.logger.System().Debug("Cleanup completed, nothing expired", "duration", duration)
	}
	return results
}

func (w *Worker) runTask(ctx context.Context, task Task) (removed int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in cleanup task %s: %v", task.Name, r)
		}
	}()
	return task.Run(ctx)
}
