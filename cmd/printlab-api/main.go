package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/printlab/printlab-api/api/swagger"
	"github.com/printlab/printlab-api/internal/handler"
	"github.com/printlab/printlab-api/internal/middleware"
	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/internal/repository"
	"github.com/printlab/printlab-api/internal/service"
	"github.com/printlab/printlab-api/pkg/cache"
	"github.com/printlab/printlab-api/pkg/config"
	"github.com/printlab/printlab-api/pkg/database"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
	"github.com/printlab/printlab-api/pkg/export"
	jobqueue "github.com/printlab/printlab-api/pkg/jobs"
	"github.com/printlab/printlab-api/pkg/logger"
	corsmiddleware "github.com/printlab/printlab-api/pkg/middleware/cors"
	reqidmiddleware "github.com/printlab/printlab-api/pkg/middleware/requestid"
	"github.com/printlab/printlab-api/pkg/response"
	"github.com/printlab/printlab-api/pkg/storage"
)

// @title PrintLab API
// @version 1.0.0
// @description Print job lifecycle and printer assignment engine for the school 3D printing lab
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caches disabled", "error", err)
		redisClient = nil
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewJobRepository(db)
	printerRepo := repository.NewPrinterRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	engineStore := repository.NewEngineStore(db, cfg.Database.QueryTimeout)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, cfg.Cache, logr)
	policy := service.NewRateCardPolicy(cfg.Pricing)
	lifecycleSvc := service.NewLifecycleService(engineStore, policy, cfg.Pricing, cacheSvc, metricsSvc, logr)
	jobSvc := service.NewJobService(jobRepo, uploads, signer, export.NewReceiptRenderer("PrintLab"), cfg.Uploads, validate, logr)
	printerSvc := service.NewPrinterService(printerRepo, cacheSvc, cfg.Maintenance, validate, logr)
	balanceSvc := service.NewBalanceService(ledgerRepo, userRepo, jobRepo, cacheSvc, cfg.Pricing, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)

	reportRepo := repository.NewReportRepository(db)
	reportWorker := service.NewReportWorker(reportRepo, jobRepo, export.NewUsageRenderer("PrintLab"), uploads, cfg.Reports.MaxRetries, logr)
	reportQueue := jobqueue.NewQueue("reports", reportWorker.Handle, jobqueue.Options{
		Workers:    cfg.Reports.Workers,
		MaxRetries: cfg.Reports.MaxRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, uploads, signer, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.ResultTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "printlab-api",
		Audience:           []string{"printlab"},
		DefaultCreditLimit: cfg.Pricing.DefaultCreditLimit,
		DefaultMaxJobs:     cfg.Pricing.DefaultMaxJobs,
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc, userSvc)
	jobHandler := handler.NewJobHandler(jobSvc, lifecycleSvc)
	printerHandler := handler.NewPrinterHandler(printerSvc)
	balanceHandler := handler.NewBalanceHandler(balanceSvc)
	userHandler := handler.NewUserHandler(userSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	reportQueue.Start(workerCtx)
	defer reportQueue.Stop()
	reportSvc.RecoverPending(workerCtx)
	reportSvc.StartCleanup(workerCtx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInternal, "database unreachable"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	// Unauthenticated by design: possession of a valid signed token is the
	// authorization.
	api.GET("/downloads", jobHandler.Download)

	jobs := api.Group("/jobs", middleware.JWT(authSvc))
	{
		jobs.POST("", jobHandler.Create)
		jobs.GET("", jobHandler.List)
		jobs.GET("/:id", jobHandler.Get)
		jobs.GET("/:id/receipt", jobHandler.Receipt)
		jobs.GET("/:id/download", jobHandler.DownloadURL)

		staff := middleware.RequireStaff()
		jobs.POST("/:id/review", staff, jobHandler.Review)
		jobs.POST("/:id/approve", staff, jobHandler.Approve)
		jobs.POST("/:id/reject", staff, jobHandler.Reject)
		jobs.POST("/:id/assign", staff, jobHandler.Assign)
		jobs.POST("/:id/start", staff, jobHandler.Start)
		jobs.POST("/:id/pause", staff, jobHandler.Pause)
		jobs.POST("/:id/resume", staff, jobHandler.Resume)
		jobs.POST("/:id/complete", staff, jobHandler.Complete)
		jobs.POST("/:id/fail", staff, jobHandler.Fail)

		// Owners cancel their own jobs; the lifecycle guards sort out who
		// may cancel what.
		jobs.POST("/:id/cancel", jobHandler.Cancel)
	}

	printers := api.Group("/printers", middleware.JWT(authSvc))
	{
		printers.GET("", printerHandler.List)
		printers.GET("/:id", printerHandler.Get)

		staff := middleware.RequireStaff()
		printers.POST("", staff, printerHandler.Register)
		printers.PUT("/:id/status", staff, printerHandler.SetStatus)
		printers.POST("/:id/maintenance", staff, printerHandler.CompleteMaintenance)
	}

	// Report downloads follow the same signed-token rule as job files.
	api.GET("/reports/download", reportHandler.Download)

	reports := api.Group("/reports", middleware.JWT(authSvc), middleware.RequireStaff())
	{
		reports.POST("/usage", reportHandler.Create)
		reports.GET("/:id", reportHandler.Status)
	}

	balance := api.Group("/balance", middleware.JWT(authSvc))
	{
		balance.GET("", balanceHandler.Summary)
		balance.GET("/detail", balanceHandler.Detail)
		balance.GET("/history", balanceHandler.History)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		admin := middleware.RequireRoles(models.RoleAdmin)
		users.GET("", admin, userHandler.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTechnician), "SELF"), userHandler.Get)
		users.PUT("/:id", admin, userHandler.Update)
		users.DELETE("/:id", admin, userHandler.Deactivate)
		users.POST("/:id/recharge", admin, balanceHandler.Recharge)
		users.POST("/:id/refund", admin, balanceHandler.Refund)
		users.GET("/:id/balance", middleware.RBAC(string(models.RoleAdmin), "SELF"), balanceHandler.Summary)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
