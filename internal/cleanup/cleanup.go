package cleanup

import (
	"context"
	"fmt"
	"realestate-platform/internal/config"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service physically deletes rows that have outlived their usefulness:
// read notifications past retention, expired sessions and finished index tasks
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a new cleanup service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Options holds configuration for one cleanup run
type Options struct {
	RetentionDays    int  // read notifications and finished tasks older than this are deleted
	MaxDeletionCount int  // safety limit per target
	DryRun           bool // count only
	Reason           string
}

// OptionsFrom builds run options from configuration
func OptionsFrom(cfg config.CleanupConfig) Options {
	return Options{
		RetentionDays:    cfg.NotificationRetentionDays,
		MaxDeletionCount: cfg.MaxDeletionCount,
		Reason:           models.PurgeReasonExpired,
	}
}

// TargetResult is the outcome for one table
type TargetResult struct {
	Target       string `json:"target"`
	TargetCount  int64  `json:"targetCount"`
	DeletedCount int64  `json:"deletedCount"`
	Error        string `json:"error,omitempty"`
}

// Result holds the result of a cleanup run
type Result struct {
	DryRun     bool           `json:"dryRun"`
	ExecutedAt time.Time      `json:"executedAt"`
	Targets    []TargetResult `json:"targets"`
}

type target struct {
	name  string
	model interface{}
	where func(cutoff, now time.Time) (string, []interface{})
}

var targets = []target{
	{
		name:  models.PurgeTargetNotifications,
		model: &models.Notification{},
		where: func(cutoff, _ time.Time) (string, []interface{}) {
			return "is_read = ? AND created_at < ?", []interface{}{true, cutoff}
		},
	},
	{
		name:  models.PurgeTargetSessions,
		model: &models.Session{},
		where: func(_, now time.Time) (string, []interface{}) {
			return "expires_at < ?", []interface{}{now}
		},
	},
	{
		name:  models.PurgeTargetIndexTasks,
		model: &models.SearchIndexTask{},
		where: func(cutoff, _ time.Time) (string, []interface{}) {
			return "status IN ? AND updated_at < ?",
				[]interface{}{[]string{models.TaskStatusDone, models.TaskStatusPermanentFail}, cutoff}
		},
	},
}

// Run purges every target. A target over the safety limit is skipped and
// reported; the others still run.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", opts.RetentionDays)
	}
	if opts.Reason == "" {
		opts.Reason = models.PurgeReasonManual
	}
	log := logger.FromContext(ctx)
	now := s.now()
	cutoff := now.AddDate(0, 0, -opts.RetentionDays)
	result := &Result{DryRun: opts.DryRun, ExecutedAt: now}

	for _, t := range targets {
		query, args := t.where(cutoff, now)
		tr := TargetResult{Target: t.name}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(t.model).Where(query, args...).Count(&tr.TargetCount).Error; err != nil {
				return err
			}
			if tr.TargetCount == 0 || opts.DryRun {
				return nil
			}
			if opts.MaxDeletionCount > 0 && tr.TargetCount > int64(opts.MaxDeletionCount) {
				return fmt.Errorf("safety check failed: %d rows exceed max deletion limit of %d",
					tr.TargetCount, opts.MaxDeletionCount)
			}

			res := tx.Where(query, args...).Delete(t.model)
			if res.Error != nil {
				return res.Error
			}
			tr.DeletedCount = res.RowsAffected

			return tx.Create(&models.PurgeLog{
				Target:        t.name,
				TargetCount:   int(tr.TargetCount),
				DeletedCount:  int(tr.DeletedCount),
				RetentionDays: opts.RetentionDays,
				Reason:        opts.Reason,
			}).Error
		})
		if err != nil {
			tr.Error = err.Error()
			log.Error("cleanup target failed", zap.String("target", t.name), zap.Error(err))
		}
		result.Targets = append(result.Targets, tr)
	}

	for _, tr := range result.Targets {
		log.Info("cleanup target done",
			zap.String("target", tr.Target),
			zap.Int64("target_count", tr.TargetCount),
			zap.Int64("deleted_count", tr.DeletedCount),
			zap.Bool("dry_run", opts.DryRun))
	}
	return result, nil
}

// Stats returns totals of past purges per target
func (s *Service) Stats(ctx context.Context) (map[string]interface{}, error) {
	var byTarget []struct {
		Target string
		Runs   int64
		Total  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.PurgeLog{}).
		Select("target, COUNT(*) AS runs, COALESCE(SUM(deleted_count), 0) AS total").
		Group("target").
		Scan(&byTarget).Error; err != nil {
		return nil, err
	}

	targets := make(map[string]interface{}, len(byTarget))
	for _, t := range byTarget {
		targets[t.Target] = map[string]int64{"runs": t.Runs, "deleted": t.Total}
	}

	var recent []models.PurgeLog
	if err := s.db.WithContext(ctx).Order("executed_at DESC").Limit(10).Find(&recent).Error; err != nil {
		return nil, err
	}
	return map[string]interface{}{"byTarget": targets, "recent": recent}, nil
}
