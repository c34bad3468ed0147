package scheduler

import (
	"context"
	"errors"
	"fmt"
	"realestate-platform/internal/database"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/metrics"
	"realestate-platform/internal/models"
	"realestate-platform/internal/search"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IndexWorker drains search_index_tasks into the search engine, retrying
// failed tasks with exponential backoff
type IndexWorker struct {
	db           *gorm.DB
	engine       search.Engine
	metrics      *metrics.Metrics
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time

	mu        sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	isRunning bool
}

// NewIndexWorker creates a new index worker
func NewIndexWorker(db *gorm.DB, engine search.Engine, pollInterval time.Duration, m *metrics.Metrics) *IndexWorker {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &IndexWorker{
		db:           db,
		engine:       engine,
		metrics:      m,
		pollInterval: pollInterval,
		batchSize:    50,
		now:          time.Now,
	}
}

// Start starts the worker loop
func (w *IndexWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return
	}
	w.isRunning = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})

	logger.FromContext(ctx).Info("index worker started", zap.Duration("poll_interval", w.pollInterval))
	go w.run(ctx)
}

// Stop stops the worker and waits for the current batch to finish
func (w *IndexWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()
	<-done
}

func (w *IndexWorker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			logger.FromContext(ctx).Info("index worker stopped")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				logger.FromContext(ctx).Error("index batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch handles pending tasks and failed tasks whose retry time has
// passed. It returns the number of tasks completed.
func (w *IndexWorker) ProcessBatch(ctx context.Context) (int, error) {
	var tasks []models.SearchIndexTask
	err := w.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?)",
			models.TaskStatusPending, models.TaskStatusFailed, w.now()).
		Order("id ASC").
		Limit(w.batchSize).
		Find(&tasks).Error
	if err != nil {
		return 0, err
	}

	completed := 0
	for i := range tasks {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		if w.process(ctx, &tasks[i]) {
			completed++
		}
	}
	return completed, nil
}

func (w *IndexWorker) process(ctx context.Context, task *models.SearchIndexTask) bool {
	log := logger.FromContext(ctx).With(zap.Int64("task_id", task.ID), zap.String("property_id", task.PropertyID))

	task.Status = models.TaskStatusProcessing
	task.Attempts++
	if err := w.db.WithContext(ctx).Save(task).Error; err != nil {
		log.Error("failed to mark task processing", zap.Error(err))
		return false
	}

	err := w.apply(ctx, task)
	w.metrics.JobRun("search_index", err)
	if err != nil {
		w.handleError(ctx, task, err)
		return false
	}

	completedAt := w.now()
	task.Status = models.TaskStatusDone
	task.LastError = ""
	task.CompletedAt = &completedAt
	task.NextRetryAt = nil
	if err := w.db.WithContext(ctx).Save(task).Error; err != nil {
		log.Error("failed to mark task done", zap.Error(err))
		return false
	}
	log.Debug("index task done", zap.String("action", task.Action))
	return true
}

func (w *IndexWorker) apply(ctx context.Context, task *models.SearchIndexTask) error {
	switch task.Action {
	case models.IndexActionDelete:
		return w.engine.DeleteDocument(task.PropertyID)
	case models.IndexActionUpsert:
		var property models.Property
		err := w.db.WithContext(ctx).Where("id = ?", task.PropertyID).First(&property).Error
		if database.IsNotFound(err) {
			// removed since the task was queued
			return w.engine.DeleteDocument(task.PropertyID)
		}
		if err != nil {
			return err
		}
		return w.engine.IndexDocuments([]search.Document{search.NewDocument(&property)})
	default:
		return errPermanent{fmt.Errorf("unknown index action %q", task.Action)}
	}
}

type errPermanent struct{ error }

func (w *IndexWorker) handleError(ctx context.Context, task *models.SearchIndexTask, err error) {
	log := logger.FromContext(ctx).With(zap.Int64("task_id", task.ID), zap.Error(err))

	var permanent errPermanent
	switch {
	case errors.As(err, &permanent) || task.Attempts >= models.MaxRetryAttempts:
		completedAt := w.now()
		task.Status = models.TaskStatusPermanentFail
		task.LastError = fmt.Sprintf("giving up after %d attempts: %v", task.Attempts, err)
		task.CompletedAt = &completedAt
		task.NextRetryAt = nil
		log.Error("index task failed permanently", zap.Int("attempts", task.Attempts))
	default:
		delay := models.GetNextRetryDelay(task.Attempts - 1)
		nextRetry := w.now().Add(delay)
		task.Status = models.TaskStatusFailed
		task.LastError = err.Error()
		task.NextRetryAt = &nextRetry
		log.Warn("index task failed, retry scheduled",
			zap.Duration("delay", delay),
			zap.Int("attempt", task.Attempts),
			zap.Int("max_attempts", models.MaxRetryAttempts))
	}

	if err := w.db.WithContext(ctx).Save(task).Error; err != nil {
		log.Error("failed to save task failure", zap.Error(err))
	}
}

// GetQueueStats returns task counts per status
func (w *IndexWorker) GetQueueStats(ctx context.Context) (map[string]interface{}, error) {
	var rows []struct {
		Status string
		N      int64
	}
	if err := w.db.WithContext(ctx).Model(&models.SearchIndexTask{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		models.TaskStatusPending:       int64(0),
		models.TaskStatusProcessing:    int64(0),
		models.TaskStatusDone:          int64(0),
		models.TaskStatusFailed:        int64(0),
		models.TaskStatusPermanentFail: int64(0),
	}
	for _, r := range rows {
		stats[r.Status] = r.N
	}
	w.mu.Lock()
	stats["is_running"] = w.isRunning
	w.mu.Unlock()
	return stats, nil
}
