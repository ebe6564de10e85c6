package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "voucherpro/api/swagger" // swagger docs
	"voucherpro/internal/config"
	"voucherpro/internal/database"
	"voucherpro/internal/handler"
	"voucherpro/internal/logger"
	"voucherpro/internal/middleware"
	"voucherpro/internal/repository"
	"voucherpro/internal/service"
	"voucherpro/internal/session"
	"voucherpro/internal/websocket"
	"voucherpro/pkg/validation"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const sessionCleanupInterval = time.Hour

// @title           VoucherPro API
// @version         1.0
// @description     Multi-tenant payment vouchers, invoices and approvals.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger is configured from cfg, so fall back to a bare one
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.Register(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	db, err := database.NewConnection(cfg.Database.DSN(), log, cfg.Database.LogLevel)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	log.Info("Connected to PostgreSQL successfully")

	var cache session.Cache = session.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		redisCache, err := session.NewRedisCache(session.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Session cache unavailable", zap.Error(err))
		}
		defer redisCache.Close()
		cache = redisCache
		log.Info("Using Redis session cache", zap.String("addr", cfg.Redis.Addr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	companyRepo := repository.NewCompanyRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	crmRepo := repository.NewCRMRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	voucherRepo := repository.NewVoucherRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	reportRepo := repository.NewReportRepository(db)

	auditService := service.NewAuditService(auditRepo, log)
	authService := service.NewAuthService(txManager, companyRepo, userRepo, sessionRepo, cache, auditService, service.AuthSettings{
		Secret:            []byte(cfg.Auth.JWTSecret),
		SessionTTL:        cfg.Auth.SessionTTL,
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		LockDuration:      cfg.Auth.LockDuration,
		CacheTTL:          cfg.Auth.SessionCacheTTL,
	}, log)
	companyService := service.NewCompanyService(txManager, companyRepo, auditService)
	userService := service.NewUserService(txManager, userRepo, authService, auditService)
	crmService := service.NewCRMService(txManager, crmRepo, auditService, cfg.CRM.DefaultRegion)
	invoiceService := service.NewInvoiceService(txManager, invoiceRepo, crmRepo, crmService, auditService)
	voucherService := service.NewVoucherService(txManager, voucherRepo, companyRepo, crmService, auditService, wsHub, log)
	reportService := service.NewReportService(reportRepo, invoiceRepo)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(authService, companyService, cfg.Auth.SessionTTL, cfg.IsProduction())
	userHandler := handler.NewUserHandler(userService)
	crmHandler := handler.NewCRMHandler(crmService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	voucherHandler := handler.NewVoucherHandler(voucherService)
	reportHandler := handler.NewReportHandler(reportService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.New()
	router.MaxMultipartMemory = handler.MaxAttachmentSize
	router.Use(logger.GinMiddleware(log), logger.Recovery(log))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, authService.Authenticate)
	})

	// API Routing
	authHandler.RegisterPublicRoutes(router.Group(""))
	protected := router.Group("", middleware.RequireAuth(authService))
	authHandler.RegisterRoutes(protected)
	userHandler.RegisterRoutes(protected)
	crmHandler.RegisterRoutes(protected)
	invoiceHandler.RegisterRoutes(protected)
	voucherHandler.RegisterRoutes(protected)
	reportHandler.RegisterRoutes(protected)
	auditHandler.RegisterRoutes(protected)

	go cleanupSessions(ctx, sessionRepo, log)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// cleanupSessions purges expired sessions until ctx ends.
func cleanupSessions(ctx context.Context, repo repository.SessionRepository, log *zap.Logger) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := repo.DeleteExpired(ctx, now)
			if err != nil {
				log.Warn("Session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("Expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
