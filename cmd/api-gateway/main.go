package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutor-ledger-api/api/swagger"
	"github.com/noah-isme/tutor-ledger-api/internal/handler"
	"github.com/noah-isme/tutor-ledger-api/internal/middleware"
	"github.com/noah-isme/tutor-ledger-api/internal/models"
	"github.com/noah-isme/tutor-ledger-api/internal/repository"
	"github.com/noah-isme/tutor-ledger-api/internal/service"
	"github.com/noah-isme/tutor-ledger-api/pkg/cache"
	"github.com/noah-isme/tutor-ledger-api/pkg/config"
	"github.com/noah-isme/tutor-ledger-api/pkg/database"
	"github.com/noah-isme/tutor-ledger-api/pkg/export"
	"github.com/noah-isme/tutor-ledger-api/pkg/jobs"
	"github.com/noah-isme/tutor-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-ledger-api/pkg/middleware/requestid"
)

// @title Tutor Ledger API
// @version 1.0.0
// @description Teacher billing ledger: pending charges, FIFO payment settlement and reporting
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const accountingResource = "accounting"

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			logr.Fatal("failed to migrate schema", zap.Error(err))
		}
	}

	redisClient, err := cache.NewOptionalRedis(cfg.Redis, cfg.Accounting.CacheEnabled)
	if err != nil {
		logr.Warn("redis unavailable, accounting cache disabled", zap.String("addr", cache.Addr(cfg.Redis)), zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	entryRepo := repository.NewAccountingRepository(db)
	feeRepo := repository.NewFeeSettingRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	directoryRepo := repository.NewTeacherDirectoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTxManager(db, cfg.Accounting.TxIsolation)

	metricsSvc := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Accounting.CacheTTL, logr, cacheRepo != nil)

	validate := validator.New()
	ledgerSvc := service.NewLedgerService(entryRepo, feeRepo, studentRepo, directoryRepo, txManager, cacheSvc, metricsSvc, validate, logr)
	reportSvc := service.NewAccountingReportService(entryRepo, feeRepo, studentRepo, directoryRepo, cacheSvc,
		export.NewCSVExporter(), export.NewPDFExporter(), service.AccountingReportConfig{CacheTTL: cfg.Accounting.CacheTTL}, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, userRepo)

	auditSvc := service.NewAuditService(auditRepo, nil, logr)
	auditQueue := jobs.NewQueue("audit", auditSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		MaxRetries: cfg.Audit.Retries,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logr,
	})
	auditSvc.SetQueue(auditQueue)
	queueCtx, stopQueue := context.WithCancel(context.Background())
	auditQueue.Start(queueCtx)

	accountingHandler := handler.NewAccountingHandler(ledgerSvc, reportSvc)
	dependencies := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		dependencies["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, dependencies, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins, MaxAge: cfg.CORS.MaxAge}))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSubAdmin)
	audit := func(action string) gin.HandlerFunc {
		return middleware.Audit(auditSvc, logr, action, accountingResource)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc), middleware.ActiveAccount(authSvc))

	accounting := api.Group("/accounting")
	{
		accounting.GET("/teachers", staff, accountingHandler.ListStats)
		accounting.GET("/teachers/export", staff, accountingHandler.ExportStats)
		accounting.GET("/teachers/:id", middleware.StaffOrSelf(), accountingHandler.Details)
		accounting.GET("/teachers/:id/entries", middleware.StaffOrSelf(), accountingHandler.Entries)
		accounting.GET("/teachers/:id/fee", middleware.StaffOrSelf(), accountingHandler.GetFee)
		accounting.PUT("/teachers/:id/fee", adminOnly, audit(models.AuditActionFeeUpdate), accountingHandler.SetFee)
		accounting.POST("/teachers/:id/payments", adminOnly, audit(models.AuditActionPaymentApply), accountingHandler.ApplyPayment)
		accounting.DELETE("/teachers/:id/pending", adminOnly, audit(models.AuditActionPendingDelete), accountingHandler.DeletePending)
		accounting.POST("/teachers/:id/cleanup", staff, audit(models.AuditActionPendingCleanup), accountingHandler.Cleanup)
		accounting.POST("/teachers/:id/default-fee", adminOnly, audit(models.AuditActionDefaultFeeInit), accountingHandler.InitializeTeacher)
		accounting.POST("/default-fee", adminOnly, audit(models.AuditActionDefaultFeeInitAll), accountingHandler.InitializeAll)
		accounting.POST("/charges", staff, audit(models.AuditActionChargeCreate), accountingHandler.AddCharge)
		accounting.POST("/students/:id/charge-default", staff, audit(models.AuditActionChargeCreate), accountingHandler.ChargeDefault)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("db_driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	auditQueue.Stop()
	stopQueue()
}
