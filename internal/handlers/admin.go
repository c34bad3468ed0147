package handlers

import (
	"context"
	"net/http"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/cleanup"
	"realestate-platform/internal/leads"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"realestate-platform/internal/referrals"
	"realestate-platform/internal/scheduler"
	"realestate-platform/internal/search"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles admin-related requests
type AdminHandler struct {
	db          *gorm.DB
	scheduler   *scheduler.Scheduler
	cleanup     *cleanup.Service
	cleanupOpts cleanup.Options
	referrals   *referrals.Service
	leads       *leads.Service
	indexWorker *scheduler.IndexWorker
}

// NewAdminHandler creates a new admin handler. sched and worker may be nil
// when the scheduler or search are disabled.
func NewAdminHandler(db *gorm.DB, sched *scheduler.Scheduler, c *cleanup.Service, opts cleanup.Options, r *referrals.Service, l *leads.Service, worker *scheduler.IndexWorker) *AdminHandler {
	return &AdminHandler{
		db:          db,
		scheduler:   sched,
		cleanup:     c,
		cleanupOpts: opts,
		referrals:   r,
		leads:       l,
		indexWorker: worker,
	}
}

type countRow struct {
	Bucket string
	N      int64
}

func (h *AdminHandler) countBy(ctx context.Context, model interface{}, column string) (map[string]int64, error) {
	var rows []countRow
	if err := h.db.WithContext(ctx).Model(model).
		Select(column + " AS bucket, COUNT(*) AS n").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Bucket] = r.N
	}
	return out, nil
}

// GetStats returns platform statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)
	stats := make(map[string]interface{})

	groups := []struct {
		name   string
		model  interface{}
		column string
	}{
		{"users", &models.User{}, "role"},
		{"properties", &models.Property{}, "status"},
		{"transactions", &models.Transaction{}, "stage"},
		{"tickets", &models.SupportTicket{}, "status"},
		{"connections", &models.BuyerAgentConnection{}, "status"},
		{"viewings", &models.ViewingRequest{}, "status"},
	}
	for _, g := range groups {
		counts, err := h.countBy(ctx, g.model, g.column)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		stats[g.name] = counts
	}

	// Activity (last 24 hours)
	last24h := time.Now().AddDate(0, 0, -1)
	var newUsers, newProperties, newNotifications int64
	h.db.WithContext(ctx).Model(&models.User{}).Where("created_at >= ?", last24h).Count(&newUsers)
	h.db.WithContext(ctx).Model(&models.Property{}).Where("created_at >= ?", last24h).Count(&newProperties)
	h.db.WithContext(ctx).Model(&models.Notification{}).Where("created_at >= ?", last24h).Count(&newNotifications)
	stats["recent_activity"] = map[string]int64{
		"users_last_24h":         newUsers,
		"properties_last_24h":    newProperties,
		"notifications_last_24h": newNotifications,
	}

	var pointsIssued int64
	h.db.WithContext(ctx).Model(&models.ReferralPoints{}).Select("COALESCE(SUM(points), 0)").Scan(&pointsIssued)
	stats["points_issued"] = pointsIssued

	if purges, err := h.cleanup.Stats(ctx); err != nil {
		log.Warn("failed to get purge stats", zap.Error(err))
	} else {
		stats["purges"] = purges
	}
	stats["otp_limits"] = h.leads.LimiterStats()
	if h.indexWorker != nil {
		if queue, err := h.indexWorker.GetQueueStats(ctx); err != nil {
			log.Warn("failed to get index queue stats", zap.Error(err))
		} else {
			stats["search_queue"] = queue
		}
	}

	c.JSON(http.StatusOK, stats)
}

// GetRecentActivity returns the newest listings
func (h *AdminHandler) GetRecentActivity(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var list []models.Property
	err := h.db.WithContext(c.Request.Context()).Order("created_at DESC").Limit(limit).Find(&list).Error
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"properties": list,
		"count":      len(list),
	})
}

// Jobs lists the registered background jobs and their schedules
func (h *AdminHandler) Jobs(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "jobs": map[string]string{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "jobs": h.scheduler.Jobs()})
}

// RunJob triggers a background job by name without waiting for it
func (h *AdminHandler) RunJob(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is disabled"})
		return
	}
	name := c.Param("name")
	if _, ok := h.scheduler.Jobs()[name]; !ok {
		apperror.Respond(c, apperror.NotFound("Unknown job %q", name))
		return
	}

	log := logger.FromGin(c).With(zap.String("job", name))
	log.Info("manual job trigger requested")

	go func() {
		if err := h.scheduler.RunNow(name); err != nil {
			log.Error("manual job failed", zap.Error(err))
		} else {
			log.Info("manual job completed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Job started",
		"job":     name,
		"status":  "running",
	})
}

// RunCleanup purges stale rows; dry run unless told otherwise
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	req := struct {
		RetentionDays    int  `json:"retention_days"`
		MaxDeletionCount int  `json:"max_deletion_count"`
		DryRun           bool `json:"dry_run"`
	}{DryRun: true}

	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}

	opts := h.cleanupOpts
	if req.RetentionDays > 0 {
		opts.RetentionDays = req.RetentionDays
	}
	if req.MaxDeletionCount > 0 {
		opts.MaxDeletionCount = req.MaxDeletionCount
	}
	opts.DryRun = req.DryRun
	opts.Reason = models.PurgeReasonManual

	log := logger.FromGin(c)
	log.Info("running cleanup",
		zap.Int("retention_days", opts.RetentionDays),
		zap.Int("max_deletion_count", opts.MaxDeletionCount),
		zap.Bool("dry_run", opts.DryRun))

	result, err := h.cleanup.Run(c.Request.Context(), opts)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPurgeLogs returns recent cleanup log entries
func (h *AdminHandler) GetPurgeLogs(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var logs []models.PurgeLog
	if err := h.db.WithContext(c.Request.Context()).Order("executed_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// Reconcile recomputes balances and referral totals from the ledger
func (h *AdminHandler) Reconcile(c *gin.Context) {
	report, err := h.referrals.Reconcile(c.Request.Context())
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Reindex queues every property for the search index
func (h *AdminHandler) Reindex(c *gin.Context) {
	var queued int64
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		queued, err = search.EnqueueAll(tx)
		return err
	})
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	logger.FromGin(c).Info("full reindex queued", zap.Int64("properties", queued))
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

// AdjustPoints credits or debits a user's points balance
func (h *AdminHandler) AdjustPoints(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		Points int64  `json:"points"`
		Note   string `json:"note"`
	}
	if !bind(c, &req) {
		return
	}
	adj, err := h.referrals.AdjustPoints(c.Request.Context(), p.UserID, c.Param("userId"), req.Points, req.Note)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, adj)
}

// GetLocationStats returns listing counts by location
func (h *AdminHandler) GetLocationStats(c *gin.Context) {
	type LocationStat struct {
		Location string `json:"location"`
		Count    int64  `json:"count"`
	}

	var stats []LocationStat
	err := h.db.WithContext(c.Request.Context()).Model(&models.Property{}).
		Select("location, count(*) as count").
		Where("status = ? AND location <> ''", models.PropertyStatusActive).
		Group("location").
		Order("count DESC").
		Limit(20).
		Scan(&stats).Error

	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"location_stats": stats,
		"count":          len(stats),
	})
}

// GetPriceDistribution returns asking price distribution of active listings
func (h *AdminHandler) GetPriceDistribution(c *gin.Context) {
	type PriceRange struct {
		RangeLabel string `json:"range_label"`
		MinPrice   int64  `json:"min_price"`
		MaxPrice   int64  `json:"max_price"`
		Count      int64  `json:"count"`
	}

	ranges := []PriceRange{
		{RangeLabel: "< 100.000 €", MinPrice: 0, MaxPrice: 100000},
		{RangeLabel: "100.000 - 200.000 €", MinPrice: 100000, MaxPrice: 200000},
		{RangeLabel: "200.000 - 350.000 €", MinPrice: 200000, MaxPrice: 350000},
		{RangeLabel: "350.000 - 500.000 €", MinPrice: 350000, MaxPrice: 500000},
		{RangeLabel: "500.000 - 1.000.000 €", MinPrice: 500000, MaxPrice: 1000000},
		{RangeLabel: "> 1.000.000 €", MinPrice: 1000000, MaxPrice: 1 << 53},
	}

	for i := range ranges {
		var count int64
		if err := h.db.WithContext(c.Request.Context()).Model(&models.Property{}).
			Where("status = ? AND price >= ? AND price < ?",
				models.PropertyStatusActive, ranges[i].MinPrice, ranges[i].MaxPrice).
			Count(&count).Error; err != nil {
			apperror.Respond(c, err)
			return
		}
		ranges[i].Count = count
	}

	c.JSON(http.StatusOK, gin.H{
		"price_distribution": ranges,
	})
}
