package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/travel-availability/internal/config"
	"github.com/iliyamo/travel-availability/internal/database"
	"github.com/iliyamo/travel-availability/internal/handler"
	"github.com/iliyamo/travel-availability/internal/jobs"
	"github.com/iliyamo/travel-availability/internal/logger"
	"github.com/iliyamo/travel-availability/internal/middleware"
	"github.com/iliyamo/travel-availability/internal/queue"
	"github.com/iliyamo/travel-availability/internal/repository"
	"github.com/iliyamo/travel-availability/internal/router"
	"github.com/iliyamo/travel-availability/internal/service"
	"github.com/iliyamo/travel-availability/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config
	lg := logger.New("travel-availability", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Params{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		lg.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := database.Migrate(mctx, db)
		cancel()
		if err != nil {
			lg.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		lg.Warn("redis unavailable: rate limiting and response cache off, blacklist sweep unguarded")
	} else {
		defer rdb.Close()
	}

	issuer, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AdminJWTSecret, cfg.AccessTTL(), cfg.AdminAccessTTL())
	if err != nil {
		lg.Fatalf("token issuer: %v", err)
	}

	users := repository.NewUserRepo(db)
	blacklist := service.NewTokenBlacklist(repository.NewTokenBlacklistRepo(db))
	authSvc := service.NewAuthService(users, issuer, blacklist, cfg.BcryptCost)

	var pub service.Publisher
	if cfg.EventsEnabled {
		pub = &service.AMQPPublisher{URL: cfg.AMQPURL, Log: lg}
		consumer := &queue.Consumer{URL: cfg.AMQPURL, LogDir: cfg.EventLogDir, Log: lg}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Errorf("event consumer stopped: %v", err)
			}
		}()
	}
	unavailSvc := service.NewUnavailabilityService(
		repository.NewUnavailabilityRepo(db),
		repository.NewUnavailabilitySearch(db, cfg.ResolveReferenceNames),
		pub, lg,
	)

	sched, err := jobs.Schedule(cfg.BlacklistSweepSpec, jobs.NewBlacklistSweep(blacklist, rdb, lg))
	if err != nil {
		lg.Fatalf("scheduler: %v", err)
	}

	cacheCfg := config.LoadCacheConfig()
	e := newEcho(lg)
	router.Register(e, router.Deps{
		Health:         &handler.HealthHandler{DB: db},
		Auth:           handler.NewAuthHandler(authSvc),
		Unavailability: handler.NewUnavailabilityHandler(unavailSvc),
		Guard:          middleware.NewAuthGuard(issuer, blacklist, users),
		RateLimit:      middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:          middleware.NewRedisCache(cacheCfg, rdb),
		Invalidate:     middleware.InvalidateCache(cacheCfg, rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		lg.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	<-sched.Stop().Done()
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		lg.Errorf("shutdown: %v", err)
	}
}

func newEcho(lg *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger = lg
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			j := log.JSON{
				"id":      v.RequestID,
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
				"ip":      v.RemoteIP,
			}
			if v.Error != nil {
				j["error"] = v.Error.Error()
				lg.Errorj(j)
				return nil
			}
			lg.Infoj(j)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	return e
}
