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

	_ "github.com/noah-isme/church-class-api/api/swagger"
	"github.com/noah-isme/church-class-api/internal/handler"
	internalmiddleware "github.com/noah-isme/church-class-api/internal/middleware"
	"github.com/noah-isme/church-class-api/internal/repository"
	"github.com/noah-isme/church-class-api/internal/router"
	"github.com/noah-isme/church-class-api/internal/service"
	"github.com/noah-isme/church-class-api/pkg/cache"
	"github.com/noah-isme/church-class-api/pkg/config"
	"github.com/noah-isme/church-class-api/pkg/database"
	"github.com/noah-isme/church-class-api/pkg/export"
	"github.com/noah-isme/church-class-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/church-class-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/church-class-api/pkg/middleware/requestid"
)

// @title Church Class API
// @version 1.0.0
// @description Class progression, session scheduling and enrollment engine
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	var (
		redisClient *cache.Client
		cacheRepo   service.CacheRepository
	)
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			logr.Info("redis connected", zap.String("addr", redisClient.Addr()))
			cacheRepo = repository.NewCacheRepository(redisClient.Client, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cacheRepo != nil)

	classRepo := repository.NewClassRepository(db)
	levelRepo := repository.NewLevelRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	validate := validator.New()
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret})

	classSvc := service.NewClassService(classRepo, levelRepo, sessionRepo, cacheSvc, validate, logr)
	levelSvc := service.NewLevelService(levelRepo, classRepo, cacheSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, enrollmentRepo, metricsSvc, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, classRepo, levelRepo, memberRepo, attendanceSvc, cacheSvc, metricsSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, levelRepo, memberRepo, service.PolicyFromConfig(cfg.Classes), cacheSvc, metricsSvc, validate, logr)
	batchSvc := service.NewBatchEnrollmentService(memberRepo, classRepo, levelRepo, enrollmentSvc, service.BatchLimits{
		SearchDefault: cfg.Classes.SearchDefaultLimit,
		SearchMax:     cfg.Classes.SearchMaxLimit,
		MaxMembers:    cfg.Classes.BatchMaxMembers,
	}, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(attendanceSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, callerFields))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metricsSvc != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.Register(r.Group(cfg.APIPrefix), tokenSvc, router.Handlers{
		Classes:          handler.NewClassHandler(classSvc),
		Levels:           handler.NewLevelHandler(levelSvc),
		Sessions:         handler.NewSessionHandler(sessionSvc),
		Enrollments:      handler.NewEnrollmentHandler(enrollmentSvc),
		Attendance:       handler.NewAttendanceHandler(attendanceSvc, exportSvc),
		BatchEnrollments: handler.NewBatchEnrollmentHandler(batchSvc),
	}, logr)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func callerFields(c *gin.Context) []zap.Field {
	claims := internalmiddleware.CurrentUser(c)
	if claims == nil {
		return nil
	}
	return []zap.Field{zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role))}
}
