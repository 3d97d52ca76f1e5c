package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/clock"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/config"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/emailer"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/entitlement"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/generator"
	subscriberHandler "github.com/davydenko-ucu/lesson-subscription-api/internal/handlers/subscriber"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/handlers/trigger"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/pipeline"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/repository/cache"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/repository/sqlite"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/scheduler"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/services/email"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/services/httplog"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/token"
)

const (
	timeoutDuration = 5 * time.Second

	fileMode = 0o644

	cacheTTL = 26 * time.Hour
)

type lessonLedger interface {
	FindByLocalDate(ctx context.Context, userID, date string) (*models.Lesson, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]models.Lesson, error)
	Count(ctx context.Context, userID string) (int, error)
	Record(ctx context.Context, lesson models.Lesson) (*models.Lesson, error)
}

type ServiceContainer struct {
	Engine   *scheduler.Engine
	Pipeline *pipeline.Pipeline

	Router *gin.Engine
	Srv    *http.Server
	Db     *sql.DB
	Cron   *cron.Cron
	M      *metrics.Metrics

	fileLogger *zap.Logger
}

type App struct {
	cfg config.Config
	l   zerolog.Logger
}

func New(cfg config.Config, logger zerolog.Logger) *App {
	logger = logger.With().Str("service", "lesson-subscription").Timestamp().Logger()
	return &App{cfg: cfg, l: logger}
}

func (a *App) Start(ctx context.Context) error {
	srvContainer, err := a.Init()
	if err != nil {
		return err
	}

	srvContainer.Router.Use(gin.Recovery(), srvContainer.M.HTTPMiddleware())

	triggerH := trigger.NewHandler(srvContainer.Engine, a.cfg.Scheduler.CronSecret, a.l)
	subH := subscriberHandler.NewHandler(
		token.NewSigner(a.cfg.UnsubscribeSecret),
		sqlite.NewUnsubscribeRepository(srvContainer.Db, a.l, srvContainer.M),
		sqlite.NewSubscriberRepository(srvContainer.Db, a.l, srvContainer.M),
		a.l,
		srvContainer.M,
	)

	api := srvContainer.Router.Group("/api")
	{
		api.GET("/cron/run", triggerH.Run)
		api.POST("/cron/run", triggerH.Run)
		api.GET("/unsubscribe", subH.Unsubscribe)
		api.GET("/pause", subH.Pause)
	}
	srvContainer.Router.GET("/metrics", gin.WrapH(srvContainer.M.Handler()))

	if a.cfg.Scheduler.InternalCron {
		if _, err := srvContainer.Cron.AddFunc(a.cfg.Scheduler.CronSpec, func() {
			runCtx, cancel := context.WithTimeout(ctx, timeoutDuration*12)
			defer cancel()
			if _, err := srvContainer.Engine.Run(runCtx, time.Now()); err != nil {
				a.l.Error().Err(err).Msg("internal cron run failed")
			}
		}); err != nil {
			a.l.Error().Err(err).Msg("failed to schedule internal cron")
			return err
		}
		srvContainer.Cron.Start()
		a.l.Info().Str("spec", a.cfg.Scheduler.CronSpec).Msg("internal cron started")
	}

	errCh := make(chan error, 1)
	go func() {
		a.l.Info().Str("http_addr", a.cfg.ServerAddress()).Msg("HTTP server listening")
		if err := srvContainer.Srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.l.Error().Err(err).Msg("HTTP server error")
		return err
	case <-ctx.Done():
		a.l.Info().Msg("Shutdown signal received")
		return a.Stop(srvContainer)
	}
}

func (a *App) Stop(srvContainer ServiceContainer) error {
	a.l.Info().Msg("Stopping application")

	if a.cfg.Scheduler.InternalCron {
		stopCtx := srvContainer.Cron.Stop()
		<-stopCtx.Done()
		a.l.Info().Msg("Internal cron stopped")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeoutDuration)
	defer cancel()
	if err := srvContainer.Srv.Shutdown(ctx); err != nil {
		a.l.Error().Err(err).Msg("HTTP shutdown error")
	} else {
		a.l.Info().Msg("HTTP server stopped")
	}

	if err := srvContainer.Db.Close(); err != nil {
		a.l.Error().Err(err).Msg("Database close error")
	} else {
		a.l.Info().Msg("Database closed")
	}

	if err := srvContainer.fileLogger.Sync(); err != nil {
		a.l.Warn().Err(err).Msg("file logger sync error")
	}

	a.l.Info().Msg("Application shutdown complete")
	return nil
}

func (a *App) Init() (ServiceContainer, error) {
	a.l.Info().Msg("Initializing application")

	db, err := CreateSqliteDb(a.cfg.DB.Dialect, a.cfg.DB.Source)
	if err != nil {
		a.l.Error().Err(err).Msg("DB open error")
		return ServiceContainer{}, err
	}
	if err := InitSqliteDb(db, a.cfg.DB.Dialect, a.cfg.DB.MigrationsPath); err != nil {
		a.l.Error().Err(err).Msg("DB migration error")
		return ServiceContainer{}, err
	}

	m := metrics.NewMetrics("lesson_subscription", db, a.cfg.DB.Source)

	router := gin.New()
	httpSrv := &http.Server{
		Addr:        a.cfg.ServerAddress(),
		Handler:     router,
		ReadTimeout: time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
	}

	// Repositories
	subscriberRepo := sqlite.NewSubscriberRepository(db, a.l, m)
	subscriptionRepo := sqlite.NewSubscriptionRepository(db, a.l, m)
	unsubscribeRepo := sqlite.NewUnsubscribeRepository(db, a.l, m)
	feedbackRepo := sqlite.NewFeedbackRepository(db, a.l, m)

	var lessons lessonLedger = sqlite.NewLessonRepository(db, a.l, m)
	if a.cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		lessonCache := cache.NewRedisClient[models.Lesson](redisClient, a.l, cacheTTL)
		lessons = cache.NewCachedLessonRepository(lessons, lessonCache, a.l)
		a.l.Info().Str("addr", a.cfg.Redis.Addr).Msg("lesson ledger cache enabled")
	}

	// Outbound HTTP logging for the model API
	fileLogger, err := newFileLogger(a.cfg.HTTPLogsPath)
	if err != nil {
		a.l.Error().Err(err).Msg("failed to create outbound HTTP logger")
		return ServiceContainer{}, err
	}
	httpLogClient := &http.Client{
		Transport: httplog.NewRoundTripper(fileLogger),
	}

	openAIClient := generator.NewOpenAIClient(
		a.cfg.OpenAI.APIKey,
		a.cfg.OpenAI.BaseURL,
		a.cfg.OpenAI.Model,
		httpLogClient,
		a.l,
	)
	contentGen := generator.NewBreakerClient("openai", openAIClient)

	smtpService := emailer.NewSMTPService(&a.cfg, a.l)
	emailService := email.NewService(smtpService, a.cfg.TemplatesDir)
	signer := token.NewSigner(a.cfg.UnsubscribeSecret)

	lessonPipeline := pipeline.New(
		lessons,
		feedbackRepo,
		contentGen,
		emailService,
		signer,
		a.cfg.AppURL,
		a.l,
		m,
	)

	engine := scheduler.New(
		subscriberRepo,
		unsubscribeRepo,
		lessons,
		subscriptionRepo,
		entitlement.NewEvaluator(),
		lessonPipeline,
		clock.LocalNow,
		a.l,
		m,
		a.cfg.Scheduler.Workers,
		time.Duration(a.cfg.Scheduler.PipelineTimeout)*time.Second,
	)

	return ServiceContainer{
		Engine:     engine,
		Pipeline:   lessonPipeline,
		Router:     router,
		Srv:        httpSrv,
		Db:         db,
		Cron:       cron.New(cron.WithSeconds()),
		M:          m,
		fileLogger: fileLogger,
	}, nil
}

func CreateSqliteDb(dialect, name string) (*sql.DB, error) {
	if name == "" {
		return nil, errors.New("database name cannot be empty")
	}
	connectionString := "file:" + name + "?cache=shared&mode=rwc"
	db, err := sql.Open(dialect, connectionString)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func InitSqliteDb(db *sql.DB, dialect, migrationPath string) error {
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	if err := goose.Up(db, migrationPath); err != nil {
		return err
	}

	return nil
}

func newFileLogger(filePath string) (*zap.Logger, error) {
	file, err := os.OpenFile(filepath.Clean(filePath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return nil, err
	}

	writer := zapcore.AddSync(file)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		writer,
		zap.InfoLevel,
	)
	return zap.New(core), nil
}
