package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sia_backend/internal/config"
	"sia_backend/internal/controller"
	"sia_backend/internal/repository"
	"sia_backend/internal/service"
	"sia_backend/internal/util"
	"sia_backend/pkg/database"
	"sia_backend/pkg/logger"
	"sia_backend/pkg/monitoring"
	"sia_backend/pkg/security"
	"sia_backend/pkg/tracing"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
	tracer   *sdktrace.TracerProvider
	stop     context.CancelFunc

	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user     *repository.UserRepository
	profile  *repository.ProfileRepository
	activity *repository.ActivityRepository
	quota    *repository.QuotaRepository
}

type services struct {
	auth      *service.AuthService
	profile   *service.ProfileService
	activity  *service.ActivityService
	answer    *service.AnswerService
	storage   *service.StorageService
	recording *service.RecordingService
}

type controllers struct {
	auth     *controller.AuthController
	profile  *controller.ProfileController
	activity *controller.ActivityController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 配置文件变更后由 configwatcher 调用
func (a *App) ReloadConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		profile:  repository.NewProfileRepository(db, rdb),
		activity: repository.NewActivityRepository(db),
		quota:    repository.NewQuotaRepository(rdb),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) (*services, error) {
	ai := service.NewAIService(cfg.AI)

	var generator service.ContentGenerator
	switch cfg.Activity.Generator {
	case util.GeneratorLLM:
		generator = service.NewLLMContentGenerator(ai)
	default:
		static, err := service.NewStaticContentGenerator(cfg.Activity.ExerciseBankPath)
		if err != nil {
			return nil, err
		}
		generator = static
	}

	var grader service.Grader = service.ExactMatchGrader{}
	if cfg.Activity.Grader == util.GraderLLM {
		grader = service.NewLLMGrader(ai)
	}

	var hintGen service.HintGenerator
	if cfg.Activity.HintsEnabled {
		hintGen = service.NewLLMHintGenerator(ai)
	}

	activity := service.NewActivityService(db, repos.activity, repos.profile, repos.quota, generator,
		service.GenerationSettingsFrom(cfg.Activity))
	storage := service.NewStorageService(cfg)

	// 题量、默认重试次数、每日上限支持热更新
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		activity.UpdateGenerationConfig(service.GenerationSettingsFrom(newCfg.Activity))
		logger.Log.Info("activity generation settings updated",
			zap.Int("default_max_retries", newCfg.Activity.DefaultMaxRetries),
			zap.Int("items_per_activity", newCfg.Activity.ItemsPerActivity),
			zap.Int("daily_generation_limit", newCfg.Activity.DailyGenerationLimit))
	})

	return &services{
		auth:      service.NewAuthService(repos.user, cfg),
		profile:   service.NewProfileService(repos.profile),
		activity:  activity,
		answer:    service.NewAnswerService(db, repos.activity, grader, hintGen),
		storage:   storage,
		recording: service.NewRecordingService(activity, storage),
	}, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		profile:  controller.NewProfileController(s.profile),
		activity: controller.NewActivityController(s.activity, s.answer, s.recording),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(ctx context.Context, router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 600
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(ctx, maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// NewApp wires storage, services and routes. The returned app has already
// migrated the schema.
func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: db}
	if cfg.MigrateOnly {
		return app, nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, err
	}
	app.Redis = rdb

	repos := app.initRepositories(db, rdb)
	services, err := app.initServices(repos, cfg, db)
	if err != nil {
		return nil, err
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	bg, stop := context.WithCancel(context.Background())
	app.stop = stop
	app.setupMiddlewares(bg, router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("sia-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, err
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app, nil
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.stop()
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
