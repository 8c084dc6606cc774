package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutor-ops-api/api/swagger"
	"github.com/noah-isme/tutor-ops-api/internal/handler"
	"github.com/noah-isme/tutor-ops-api/internal/middleware"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	"github.com/noah-isme/tutor-ops-api/internal/repository"
	"github.com/noah-isme/tutor-ops-api/internal/service"
	"github.com/noah-isme/tutor-ops-api/pkg/cache"
	"github.com/noah-isme/tutor-ops-api/pkg/config"
	"github.com/noah-isme/tutor-ops-api/pkg/database"
	"github.com/noah-isme/tutor-ops-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-ops-api/pkg/middleware/requestid"
)

// @title Tutor Ops API
// @version 1.0.0
// @description Session ledger and payroll settlement for the tutoring roster
// @BasePath /
// @schemes http

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
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(cfg.Database); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, integrity reports will not be cached", zap.Error(err))
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	payPeriodRepo := repository.NewPayPeriodRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// Services.
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, auditRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	assignmentService := service.NewAssignmentService(assignmentRepo, tutorRepo, auditRepo, nil, logr)
	sessionService := service.NewSessionService(sessionRepo, assignmentRepo, payPeriodRepo, auditRepo, nil, logr, service.SessionRules{
		MinMinutes: cfg.Payroll.MinSessionMinutes,
		MaxMinutes: cfg.Payroll.MaxSessionMinutes,
	}).WithMetrics(metricsService)
	approvalService := service.NewApprovalService(sessionRepo, payPeriodRepo, auditRepo, logr).WithMetrics(metricsService)
	payPeriodService := service.NewPayPeriodService(payPeriodRepo, sessionRepo, tutorRepo, auditRepo, nil, logr)
	payrollService := service.NewPayrollService(sessionRepo, payPeriodRepo, assignmentRepo, tutorRepo, invoiceRepo, auditRepo, nil, logr).WithMetrics(metricsService)
	integrityService := service.NewIntegrityService(sessionRepo, payPeriodRepo, assignmentRepo, tutorRepo, invoiceRepo, cacheRepo, cfg.Payroll.IntegrityCacheTTL, logr).WithMetrics(metricsService)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	approvalHandler := handler.NewApprovalHandler(approvalService)
	payrollHandler := handler.NewPayrollHandler(payPeriodService, payrollService, integrityService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	authed.GET("/auth/me", authHandler.Me)

	admin := middleware.RBAC(models.RoleAdmin)
	staff := middleware.RBAC(models.RoleAdmin, models.RoleTutor)

	assignments := authed.Group("/assignments")
	assignments.GET("", staff, assignmentHandler.List)
	assignments.GET("/:id", staff, assignmentHandler.Get)
	assignments.POST("", admin, assignmentHandler.Create)
	assignments.PUT("/:id", admin, assignmentHandler.UpdateSchedule)
	assignments.DELETE("/:id", admin, assignmentHandler.Deactivate)

	sessions := authed.Group("/sessions")
	sessions.POST("", staff, sessionHandler.Create)
	sessions.GET("", staff, sessionHandler.List)
	sessions.GET("/:id", staff, sessionHandler.Get)
	sessions.GET("/:id/events", staff, sessionHandler.Events)
	sessions.PUT("/:id", staff, sessionHandler.Amend)
	sessions.POST("/:id/void", staff, sessionHandler.Void)
	sessions.POST("/:id/submit", staff, approvalHandler.Submit)
	sessions.POST("/:id/approve", admin, approvalHandler.Approve)
	sessions.POST("/:id/reject", admin, approvalHandler.Reject)
	sessions.POST("/bulk-approve", admin, approvalHandler.BulkApprove)
	sessions.POST("/bulk-reject", admin, approvalHandler.BulkReject)

	payPeriods := authed.Group("/pay-periods")
	payPeriods.POST("/lock", admin, payrollHandler.LockPeriod)
	payPeriods.GET("/locks", staff, payrollHandler.ListLocks)
	payPeriods.POST("/adjustments", admin, payrollHandler.CreateAdjustment)
	payPeriods.GET("/adjustments", admin, payrollHandler.ListAdjustments)
	payPeriods.DELETE("/adjustments/:id", admin, payrollHandler.DeleteAdjustment)

	payroll := authed.Group("/payroll")
	payroll.POST("/generate", admin, payrollHandler.Generate)
	payroll.GET("/invoices", admin, payrollHandler.ListInvoices)
	payroll.POST("/invoices/:id/pay", admin, payrollHandler.MarkPaid)
	payroll.GET("/export", admin, middleware.Audit(auditRepo, models.AuditActionPayrollExport, "pay_period"), payrollHandler.Export)
	payroll.GET("/integrity", admin, payrollHandler.Integrity)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
