package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/areut/bookmarket/backend/internal/config"
	s3infra "github.com/areut/bookmarket/backend/internal/infra/s3"
	"github.com/areut/bookmarket/backend/internal/infra/telegram"
	"github.com/areut/bookmarket/backend/internal/jobs/cleanup"
	"github.com/areut/bookmarket/backend/internal/pkg/ttlcache"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
	redisrepo "github.com/areut/bookmarket/backend/internal/repo/redis"
	authsvc "github.com/areut/bookmarket/backend/internal/services/auth"
	botgatewaysvc "github.com/areut/bookmarket/backend/internal/services/botgateway"
	catalogsvc "github.com/areut/bookmarket/backend/internal/services/catalog"
	"github.com/areut/bookmarket/backend/internal/services/currency"
	dispatchsvc "github.com/areut/bookmarket/backend/internal/services/dispatch"
	notificationsvc "github.com/areut/bookmarket/backend/internal/services/notifications"
	purchasesvc "github.com/areut/bookmarket/backend/internal/services/purchases"
	requestsvc "github.com/areut/bookmarket/backend/internal/services/requests"
)

type App struct {
	cfg           config.Config
	logger        *zap.Logger
	server        *http.Server
	postgres      *pgxpool.Pool
	redis         *goredis.Client
	s3            *minio.Client
	httpRouter    http.Handler
	notifications *notificationsvc.Service
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	var redisClient *goredis.Client
	if c, err := redisrepo.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Warn("redis init failed, continuing in degraded mode", zap.Error(err))
	} else {
		redisClient = c
	}

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	requestRepo := pgrepo.NewPurchaseRequestRepo(pool)
	paymentConfigRepo := pgrepo.NewPaymentConfigRepo(pool)
	contactRepo := pgrepo.NewAdminContactRepo(pool)
	catalogRepo := pgrepo.NewCatalogRepo(pool)
	progressRepo := pgrepo.NewProgressRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)
	streamRepo := redisrepo.NewStreamRepo(redisClient)
	proofStorage := purchasesvc.NewProofStorage(s3Client, cfg.S3.Bucket)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	rate := cfg.Currency.Rate
	if !currency.IsValidRate(rate) {
		log.Warn("invalid currency rate, using default", zap.Float64("rate", rate))
		rate = currency.DefaultRate
	}
	converter := currency.NewConverter(rate, cfg.Currency.DisplayCurrency)

	var adminNotifier *telegram.Notifier
	if n, err := telegram.NewNotifier(cfg.AdminNotify.BotToken, cfg.AdminNotify.ChatID); err != nil {
		log.Warn("admin notifier init failed, continuing without it", zap.Error(err))
	} else {
		adminNotifier = n
	}

	purchaseService := purchasesvc.NewService(purchasesvc.Dependencies{
		Purchases: purchaseRepo,
		Items:     catalogRepo,
		Proofs:    proofStorage,
		Stream:    streamRepo,
		Logger:    log,
	})
	requestDeps := requestsvc.Dependencies{
		Requests: requestRepo,
		Items:    catalogRepo,
		Contacts: contactRepo,
		Stream:   streamRepo,
		Logger:   log,
	}
	if adminNotifier != nil {
		requestDeps.Notifier = adminNotifier
	}
	requestService := requestsvc.NewService(requestDeps)
	botGateway := botgatewaysvc.NewService(botgatewaysvc.Dependencies{
		Secret:    cfg.BotGateway.Secret,
		Purchases: purchaseRepo,
		Configs:   paymentConfigRepo,
		Users:     userRepo,
		Converter: converter,
		Logger:    log,
	})
	var dispatchNotifier dispatchsvc.Notifier
	if adminNotifier != nil {
		dispatchNotifier = adminNotifier
	}
	dispatchService := dispatchsvc.NewService(dispatchNotifier, log)
	cache := ttlcache.New()
	cache.StartSweep(ctx, cfg.Cache.SweepInterval)
	catalogService := catalogsvc.NewService(catalogsvc.Dependencies{
		Books:   catalogRepo,
		Cache:   cache,
		ItemTTL: cfg.Cache.ItemTTL,
		ListTTL: cfg.Cache.ListTTL,
		Logger:  log,
	})
	notificationService := notificationsvc.NewService(notificationsvc.Dependencies{
		Stream: streamRepo,
		Users:  userRepo,
		Items:  catalogRepo,
		Toggles: notificationsvc.Toggles{
			PurchaseStatus: cfg.Notifications.PurchaseUpdates,
			AdminApproval:  cfg.Notifications.AdminApprovals,
			ProgressSync:   cfg.Notifications.ProgressSync,
			ActivityFeed:   cfg.Notifications.ActivityFeed,
		},
		Logger: log,
	})
	if redisClient != nil {
		go func() {
			if err := notificationService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("notification fan-out stopped", zap.Error(err))
			}
		}()
	}

	if pool != nil {
		cleanupJob := cleanup.NewJob(purchaseRepo, cache, cfg.Cleanup.InitiationTokenTTL, log)
		go cleanupJob.RunLoop(ctx, cfg.Cleanup.Interval)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		JWTManager:        jwtManager,
		PurchaseService:   purchaseService,
		RequestService:    requestService,
		BotGateway:        botGateway,
		DispatchService:   dispatchService,
		CatalogService:    catalogService,
		PaymentConfigRepo: paymentConfigRepo,
		ProgressRepo:      progressRepo,
		StreamPublisher:   streamRepo,
		Logger:            log,
	})

	return &App{
		cfg:           cfg,
		logger:        log,
		server:        server,
		postgres:      pool,
		redis:         redisClient,
		s3:            s3Client,
		httpRouter:    r,
		notifications: notificationService,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.notifications != nil {
		a.notifications.UnsubscribeAll()
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

// Notifications exposes the fan-out service so callers can attach in-process
// subscribers.
func (a *App) Notifications() *notificationsvc.Service {
	return a.notifications
}
