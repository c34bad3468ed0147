package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/cleanup"
	"realestate-platform/internal/config"
	"realestate-platform/internal/database"
	"realestate-platform/internal/handlers"
	"realestate-platform/internal/leads"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/messaging"
	"realestate-platform/internal/metrics"
	"realestate-platform/internal/notify"
	"realestate-platform/internal/properties"
	"realestate-platform/internal/referrals"
	"realestate-platform/internal/scheduler"
	"realestate-platform/internal/search"
	"realestate-platform/internal/support"
	"realestate-platform/internal/transactions"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	configPath := getEnv("CONFIG_PATH", "config/config.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		// logger is not up yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Logging.Level,
		Environment: appConfig.Environment,
		ServiceName: "realestate-api",
	}); err != nil {
		os.Stderr.WriteString("failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.GetLogger()

	if err := run(appConfig, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(appConfig *config.Config, log *zap.Logger) error {
	// Database
	gormDB, err := database.Open(appConfig.Database)
	if err != nil {
		return err
	}
	defer gormDB.Close()
	if err := gormDB.InitSchema(); err != nil {
		return err
	}
	db := gormDB.DB()
	log.Info("database ready", zap.String("type", appConfig.Database.Type))

	var m *metrics.Metrics
	if appConfig.Metrics.Enabled {
		m = metrics.New(appConfig.Metrics.Prefix)
	}

	// OTP delivery channels; a disabled channel stays a nil interface
	var mailer messaging.EmailSender
	if appConfig.Mail.Enabled {
		mailer = messaging.NewSMTPMailer(appConfig.Mail)
	}
	var sms messaging.TextSender
	if appConfig.SMS.Enabled {
		sms = messaging.NewSMSGateway(appConfig.SMS)
	}
	dispatcher := messaging.NewDispatcher(mailer, sms, m)

	// Search
	var engine search.Engine
	var searchClient *search.SearchClient
	if appConfig.Search.Enabled {
		searchClient = search.NewSearchClient(appConfig.Search.Meilisearch)
		if err := searchClient.InitIndex(); err != nil {
			log.Warn("failed to initialize search index, continuing with database search", zap.Error(err))
		}
		engine = searchClient
	}

	// Services
	notifications := notify.NewService(db, m)
	referralService := referrals.NewService(db, appConfig.Referral, m)
	transactionService := transactions.NewService(db, notifications, m)
	leadService := leads.NewService(db, notifications, dispatcher, appConfig.OTP, m)
	supportService := support.NewService(db, notifications)
	propertyService := properties.NewService(db, referralService, notifications, engine)
	cleanupService := cleanup.NewService(db)
	cleanupOpts := cleanup.OptionsFrom(appConfig.Cleanup)

	tokens := auth.NewTokenIssuer(appConfig.Auth.JWTSecret, appConfig.Auth.GetTokenTTL())
	sessions := auth.NewSessionStore(db, appConfig.Auth.GetSessionTTL())
	authn := auth.NewAuthenticator(tokens, sessions, appConfig.Auth.SessionCookie, appConfig.Auth.InternalAPIToken)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Search index worker
	var indexWorker *scheduler.IndexWorker
	if engine != nil {
		poll := time.Duration(appConfig.Search.WorkerPollSeconds) * time.Second
		indexWorker = scheduler.NewIndexWorker(db, engine, poll, m)
		indexWorker.Start(ctx)
		defer indexWorker.Stop()
	}

	// Background jobs
	var appScheduler *scheduler.Scheduler
	if appConfig.Scheduler.Enabled {
		loc, err := time.LoadLocation(appConfig.Timezone)
		if err != nil {
			log.Warn("unknown timezone, using local time", zap.String("timezone", appConfig.Timezone), zap.Error(err))
			loc = time.Local
		}
		appScheduler = scheduler.NewScheduler(loc, 10*time.Minute, m)
		if err := registerJobs(appScheduler, appConfig.Scheduler, leadService, referralService, cleanupService, cleanupOpts, indexWorker); err != nil {
			return err
		}
		appScheduler.Start()
		defer appScheduler.Stop()
	}

	// Router
	if !appConfig.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(appConfig.Logging.LogRequests))
	if m != nil {
		r.Use(m.Middleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     appConfig.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", healthCheck(gormDB, searchClient))

	handlers.RegisterRoutes(r.Group("/api"), authn, handlers.Handlers{
		Auth:          handlers.NewAuthHandler(auth.NewAccounts(db, appConfig.Auth.BcryptCost), tokens, sessions, referralService, appConfig.Auth.SessionCookie, appConfig.Auth.SecureCookie),
		Notifications: handlers.NewNotificationHandler(notifications),
		Connections:   handlers.NewConnectionHandler(leadService),
		Transactions:  handlers.NewTransactionHandler(transactionService),
		Referrals:     handlers.NewReferralHandler(referralService),
		Support:       handlers.NewSupportHandler(supportService),
		Properties:    handlers.NewPropertyHandler(propertyService),
		Admin:         handlers.NewAdminHandler(db, appScheduler, cleanupService, cleanupOpts, referralService, leadService, indexWorker),
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), appConfig.Server.GetShutdownTimeout())
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

// registerJobs wires the cron jobs. worker is nil when search is disabled.
func registerJobs(s *scheduler.Scheduler, cfg config.SchedulerConfig, l *leads.Service, r *referrals.Service, c *cleanup.Service, opts cleanup.Options, worker *scheduler.IndexWorker) error {
	if err := s.Add("expire_otp", cfg.OTPExpirySpec, func(ctx context.Context) error {
		n, err := l.ExpireStaleCodes(ctx)
		if err != nil {
			return err
		}
		pruned := 0
		for _, limiter := range l.Limiters() {
			pruned += limiter.Prune()
		}
		logger.FromContext(ctx).Info("stale OTP codes cleared", zap.Int64("codes", n), zap.Int("limiter_keys", pruned))
		return nil
	}); err != nil {
		return err
	}

	if err := s.Add("reconcile_points", cfg.ReconcileSpec, func(ctx context.Context) error {
		_, err := r.Reconcile(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := s.Add("cleanup", cfg.CleanupSpec, func(ctx context.Context) error {
		_, err := c.Run(ctx, opts)
		return err
	}); err != nil {
		return err
	}

	if worker != nil {
		if err := s.Add("search_retry", cfg.SearchRetrySpec, func(ctx context.Context) error {
			_, err := worker.ProcessBatch(ctx)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func healthCheck(gdb *database.GormDB, searchClient *search.SearchClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":   "ok",
			"time":     time.Now(),
			"database": "ok",
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := gdb.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
		if searchClient != nil {
			if searchClient.Healthy() {
				body["search"] = "ok"
			} else {
				body["search"] = "unavailable"
			}
		}
		c.JSON(status, body)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
