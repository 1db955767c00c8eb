package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/straye-as/pipeline-api/docs"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/database"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/http/middleware"
	"github.com/straye-as/pipeline-api/internal/http/router"
	"github.com/straye-as/pipeline-api/internal/jobs"
	"github.com/straye-as/pipeline-api/internal/lock"
	"github.com/straye-as/pipeline-api/internal/logger"
	"github.com/straye-as/pipeline-api/internal/mail"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title Straye Pipeline API
// @version 1.0
// @description Opportunity pipeline, stage aging and sales goal tracking
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@straye.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if basicCfg.App.Environment == "development" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Load full configuration with secrets
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Redis backs the opportunity lock and the mail queue; without it both stay in-process
	var (
		rdb     *redis.Client
		locker  lock.Locker
		mailer  mail.Mailer
		mailJob *mail.Worker
	)
	sender := mail.NewSender(&cfg.Mail, log)
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTLDuration(), cfg.Redis.LockRetries)
		log.Info("Redis locker initialized", zap.String("addr", cfg.Redis.Addr))

		if cfg.Mail.QueueEnabled {
			opts := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
			queue := mail.NewQueueMailer(opts, &cfg.Mail, log)
			defer queue.Close()
			mailer = queue
			mailJob = mail.NewWorker(opts, &cfg.Mail, mail.NewTaskHandler(sender, log), log)
		}
	} else {
		locker = lock.NewMemoryLocker()
		log.Warn("Redis not configured, using in-process locks")
	}
	if mailer == nil {
		mailer = mail.NewDirectMailer(sender)
	}

	// Initialize repositories
	orgRepo := repository.NewOrganizationRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	oppRepo := repository.NewOpportunityRepository(db)
	historyRepo := repository.NewOpportunityStageHistoryRepository(db)
	lineItemRepo := repository.NewLineItemRepository(db)
	productRepo := repository.NewProductRepository(db)
	agingRepo := repository.NewAgingConfigRepository(db)
	goalRepo := repository.NewGoalRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	// Initialize services
	opportunityService := service.NewOpportunityService(db, oppRepo, historyRepo, profileRepo, agingRepo, log)
	lineItemService := service.NewLineItemService(db, oppRepo, lineItemRepo, productRepo, locker, log)
	agingService := service.NewAgingService(agingRepo, log)
	goalService := service.NewGoalService(goalRepo, oppRepo, profileRepo, log)
	commentService := service.NewCommentService(commentRepo, profileRepo, log)
	productService := service.NewProductService(productRepo, log)

	// Background jobs
	scheduler := jobs.NewScheduler(log)
	staleJob := jobs.NewStaleOpportunitiesJob(orgRepo, oppRepo, agingService, profileRepo, mailer, log,
		cfg.Jobs.StaleOpportunitiesTimeoutDuration(), cfg.App.PublicURL)
	milestoneJob := jobs.NewGoalMilestonesJob(orgRepo, goalRepo, goalService, profileRepo, mailer, log,
		cfg.Jobs.GoalMilestonesTimeoutDuration())

	if cfg.Jobs.Enabled {
		if err := scheduler.Schedule(staleJob, cfg.Jobs.StaleOpportunitiesCron); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", staleJob.Name(), err)
		}
		if err := scheduler.Schedule(milestoneJob, cfg.Jobs.GoalMilestonesCron); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", milestoneJob.Name(), err)
		}
		scheduler.Start()
		log.Info("Scheduler started",
			zap.String("stale_cron", cfg.Jobs.StaleOpportunitiesCron),
			zap.String("milestone_cron", cfg.Jobs.GoalMilestonesCron),
		)
		if cfg.Jobs.RunOnStartup {
			go staleJob.Run()
			go milestoneJob.Run()
		}
	} else {
		// Jobs stay runnable on demand through the API
		scheduler.Register(staleJob)
		scheduler.Register(milestoneJob)
		log.Info("Scheduled jobs disabled")
	}

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(&cfg.Auth, log)
	tenantGuard := middleware.NewTenantGuard(orgRepo, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	auditMiddleware := middleware.NewAuditMiddleware(middleware.DefaultAuditConfig(), log)

	rt := router.NewRouter(cfg, log, db, authMiddleware, tenantGuard, rateLimiter, auditMiddleware, router.Handlers{
		Auth:        handler.NewAuthHandler(profileRepo, log),
		Opportunity: handler.NewOpportunityHandler(opportunityService, log),
		LineItem:    handler.NewLineItemHandler(lineItemService, log),
		AgingConfig: handler.NewAgingConfigHandler(agingService, log),
		Product:     handler.NewProductHandler(productService, log),
		Goal:        handler.NewGoalHandler(goalService, log),
		Comment:     handler.NewCommentHandler(commentService, log),
		Job:         handler.NewJobHandler(scheduler, log),
	})
	if rdb != nil {
		rt.AddHealthCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if mailJob != nil {
		g.Go(func() error {
			return mailJob.Run(gCtx)
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutdown signal received")

		<-scheduler.Stop().Done()
		log.Info("Scheduler stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
		log.Info("Server stopped gracefully")
		return nil
	})

	return g.Wait()
}
