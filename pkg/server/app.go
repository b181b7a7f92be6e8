package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/arnavshah/covers-scheduler-api/pkg/auth"
	"github.com/arnavshah/covers-scheduler-api/pkg/config"
	"github.com/arnavshah/covers-scheduler-api/pkg/database"
	"github.com/arnavshah/covers-scheduler-api/pkg/forecast"
	"github.com/arnavshah/covers-scheduler-api/pkg/handlers"
	"github.com/arnavshah/covers-scheduler-api/pkg/notify"
	"github.com/arnavshah/covers-scheduler-api/pkg/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is a fully wired service
type App struct {
	Router  *gin.Engine
	DB      *gorm.DB
	closers []func()
}

// Close drains queued notifications and releases connections, newest first
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// secret returns value, or a random secret outside production
func secret(cfg *config.Config, name, value string, log *zap.Logger) (string, error) {
	if value != "" {
		return value, nil
	}
	if cfg.IsProduction() {
		return "", fmt.Errorf("%s must be set in production", name)
	}
	log.Warn("secret not set, using a random value for this process", zap.String("name", name))
	return randomSecret(), nil
}

// NewSender builds the notification backend named by cfg.NotifyBackend
func NewSender(cfg *config.Config, log *zap.Logger) (notify.Sender, func(), error) {
	switch cfg.NotifyBackend {
	case "", "log":
		return notify.NewLogSender(log), func() {}, nil
	case "amqp":
		s, err := notify.DialAMQP(cfg.AMQPURL, cfg.NotifyQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		return s, s.Close, nil
	case "asynq":
		s := notify.NewAsynqSender(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisQueueDB,
		})
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
	}
}

// New loads artifacts, opens storage and wires every service behind the router
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{}
	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseURL, cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app.DB = db
	app.closers = append(app.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	jwtSecret, err := secret(cfg, "JWT_SECRET", cfg.JWTSecret, log)
	if err != nil {
		return fail(err)
	}
	masterSecret, err := secret(cfg, "API_MASTER_SECRET", cfg.APIMasterSecret, log)
	if err != nil {
		return fail(err)
	}
	authenticator, err := auth.New(jwtSecret, masterSecret)
	if err != nil {
		return fail(err)
	}
	created, err := auth.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fail(fmt.Errorf("bootstrap admin: %w", err))
	}
	if created {
		log.Info("created default admin", zap.String("username", cfg.AdminUsername))
	}

	enc, err := forecast.LoadEncoders(cfg.EncodersPath)
	if err != nil {
		return fail(fmt.Errorf("load encoders: %w", err))
	}
	features, err := forecast.LoadFeatures(cfg.FeaturesPath, enc)
	if err != nil {
		return fail(fmt.Errorf("load features: %w", err))
	}
	model, err := forecast.LoadTreeEnsemble(cfg.ModelPath)
	if err != nil {
		return fail(fmt.Errorf("load model: %w", err))
	}
	log.Info("forecast artifacts loaded",
		zap.Int("feature_rows", features.Len()),
		zap.String("model", model.Name()),
		zap.String("version", cfg.ModelVersion),
	)

	planner := scheduler.NewPlanner(scheduler.DefaultRatios)

	var opts []forecast.Option
	if cfg.RedisAddr != "" {
		client, err := forecast.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisCacheDB)
		if err != nil {
			log.Warn("forecast cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			app.closers = append(app.closers, func() { _ = client.Close() })
			opts = append(opts, forecast.WithCache(forecast.NewRedisCache(client, cfg.ForecastCacheTTL), cfg.ModelVersion))
		}
	}
	forecaster := forecast.NewService(features, model, planner, log, opts...)

	sender, closeSender, err := NewSender(cfg, log)
	if err != nil {
		return fail(err)
	}
	app.closers = append(app.closers, closeSender)
	backend := cfg.NotifyBackend
	if backend == "" {
		backend = "log"
	}
	dispatcher := notify.NewDispatcher(sender, backend, cfg.NotifyWorkers, cfg.NotifyBuffer, log)
	// registered after the sender so queued messages drain before it closes
	app.closers = append(app.closers, dispatcher.Close)

	sched := scheduler.NewScheduler(planner, scheduler.NewMatcher(database.NewStaffDirectory(db)), log)

	h := &handlers.Handler{
		DB:         db,
		Auth:       authenticator,
		Forecaster: forecaster,
		Planner:    planner,
		Scheduler:  sched,
		Notifier:   dispatcher,
		Limiter:    handlers.NewKeyLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Log:        log,
	}
	app.Router = NewRouter(h, cfg.AllowedOrigins(), log)
	return app, nil
}
