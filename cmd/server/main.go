package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aditya/go-carpool/internal/bot"
	"github.com/aditya/go-carpool/internal/cache"
	"github.com/aditya/go-carpool/internal/config"
	"github.com/aditya/go-carpool/internal/database"
	"github.com/aditya/go-carpool/internal/events"
	"github.com/aditya/go-carpool/internal/handler"
	"github.com/aditya/go-carpool/internal/logger"
	"github.com/aditya/go-carpool/internal/middleware"
	"github.com/aditya/go-carpool/internal/notify"
	"github.com/aditya/go-carpool/internal/repository"
	"github.com/aditya/go-carpool/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	// Initialize New Relic (optional)
	var nrApp *newrelic.Application
	if cfg.NewRelicEnabled && cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn("new relic disabled", zap.Error(err))
			nrApp = nil
		} else if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
			log.Warn("new relic connection timeout", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Checker{}

	// Stores: Postgres, or in-process when DATABASE_URL is empty
	var (
		requestRepo repository.RequestRepository
		profileRepo repository.ProfileRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections, nrApp != nil)
		if err != nil {
			log.Fatal("connect postgres", zap.Error(err))
		}
		defer db.Close()
		if cfg.RunMigrations {
			if err := db.Migrate(ctx); err != nil {
				log.Fatal("run migrations", zap.Error(err))
			}
		}
		requestRepo = repository.NewRequestRepository(db.DB)
		profileRepo = repository.NewProfileRepository(db.DB)
		checks["database"] = db
		log.Info("connected to postgres")
	} else {
		requestRepo = repository.NewMemoryRequestStore()
		profileRepo = repository.NewMemoryProfileStore()
		log.Warn("DATABASE_URL is empty, requests and profiles are kept in memory")
	}

	// Redis backs the session cache, throttles and idempotency keys
	var redisDB *database.RedisDB
	if cfg.RedisURL != "" {
		redisDB, err = database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			log.Fatal("connect redis", zap.Error(err))
		}
		defer redisDB.Close()
		checks["redis"] = redisDB
		log.Info("connected to redis")
	}

	var sessions cache.SessionCache
	switch {
	case cfg.SessionBackend == "redis" && redisDB != nil:
		sessions = cache.NewRedisSessionCache(redisDB.Client, cfg.SessionTTL)
	case cfg.SessionBackend == "redis":
		log.Fatal("SESSION_BACKEND=redis needs REDIS_URL")
	default:
		sessions = cache.NewMemorySessionCache(cfg.SessionCapacity, cfg.SessionTTL)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	// Chat platform
	var (
		messenger notify.Messenger
		botAPI    *tgbotapi.BotAPI
	)
	if cfg.BotToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			log.Fatal("connect telegram", zap.Error(err))
		}
		messenger = notify.NewTelegramMessenger(botAPI)
		log.Info("telegram bot authorized", zap.String("username", botAPI.Self.UserName))
	} else {
		messenger = notify.NewLogMessenger(log)
		log.Warn("BOT_TOKEN is empty, outgoing messages are only logged")
	}
	operators := notify.NewOperatorNotifier(messenger, cfg.OperatorChatIDs, log)

	// Initialize services
	routes := service.NewRouteTable(cfg.Routes)
	settings := service.Settings{
		DeclineBlockThreshold: cfg.DeclineBlockThreshold,
		DeclineCooldown:       cfg.DeclineCooldown,
		ClaimCap:              cfg.ClaimCap,
		FanoutExcludeBlocked:  cfg.FanoutExcludeBlocked,
	}
	broadcastService := service.NewBroadcastService(requestRepo, profileRepo, messenger, settings, log)
	requestService := service.NewRequestService(requestRepo, profileRepo, broadcastService, messenger, publisher, routes, settings, log)
	negotiationService := service.NewNegotiationService(requestRepo, profileRepo, broadcastService, messenger, publisher, settings, log)
	claimService := service.NewClaimService(requestRepo, profileRepo, broadcastService, messenger, publisher, settings, log)
	profileService := service.NewProfileService(profileRepo, routes, operators, log)

	// Create router
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.IdempotencyHeader, middleware.OperatorKeyHeader},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))
	if nrApp != nil {
		r.Use(middleware.NewRelicMiddleware(nrApp))
	}

	r.Handle("/health", handler.NewHealthHandler(checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.OperatorAuth(cfg.OperatorAPIKey))
		if redisDB != nil {
			r.Use(middleware.NewRateLimiter(redisDB.Client, 100, time.Minute).Handler)
			r.Use(middleware.NewIdempotencyMiddleware(redisDB.Client, log).Handler)
		}
		handler.NewRequestHandler(requestService, log).RegisterRoutes(r)
		handler.NewCarrierHandler(profileService, log).RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if botAPI != nil {
		var limiter bot.Limiter
		if redisDB != nil {
			limiter = cache.NewInteractionLimiter(redisDB.Client, cfg.InteractionRateLimit, time.Minute)
		}
		dispatcher := bot.NewDispatcher(bot.Deps{
			Requests:    requestService,
			Negotiation: negotiationService,
			Claims:      claimService,
			Profiles:    profileService,
			Routes:      routes,
			Sessions:    sessions,
			Messenger:   messenger,
			Limiter:     limiter,
			Diagnostics: operators,
			Logger:      log,
		})
		poller := bot.NewTelegramPoller(botAPI, log)
		g.Go(func() error {
			err := dispatcher.Run(ctx, poller.Updates(ctx))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped gracefully")
}
