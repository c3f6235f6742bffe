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

	"github.com/nikitagusev/learnhub/backend/internal/config"
	"github.com/nikitagusev/learnhub/backend/internal/infra/httpclient"
	s3infra "github.com/nikitagusev/learnhub/backend/internal/infra/s3"
	pgrepo "github.com/nikitagusev/learnhub/backend/internal/repo/postgres"
	redrepo "github.com/nikitagusev/learnhub/backend/internal/repo/redis"
	authsvc "github.com/nikitagusev/learnhub/backend/internal/services/auth"
	coursesvc "github.com/nikitagusev/learnhub/backend/internal/services/courses"
	mediasvc "github.com/nikitagusev/learnhub/backend/internal/services/media"
	progresssvc "github.com/nikitagusev/learnhub/backend/internal/services/progress"
	purchasesvc "github.com/nikitagusev/learnhub/backend/internal/services/purchases"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, cfg, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	cacheRepo := redrepo.NewCacheRepo(redisClient)

	userRepo := pgrepo.NewUserRepo(pool)
	courseRepo := pgrepo.NewCourseRepo(pool)
	lectureRepo := pgrepo.NewLectureRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	enrollmentRepo := pgrepo.NewEnrollmentRepo(pool)
	progressRepo := pgrepo.NewProgressRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(authsvc.Dependencies{
		JWT:      jwtManager,
		Users:    userRepo,
		Sessions: sessionRepo,
	}, cfg.Auth.RefreshTTL)

	courseService := coursesvc.NewService(coursesvc.Dependencies{
		Courses:  courseRepo,
		Lectures: lectureRepo,
		Cache:    cacheRepo,
	}, cfg.Catalog.CacheTTL)

	var gateway purchasesvc.Gateway
	if g, err := purchasesvc.NewStripeGateway(purchasesvc.StripeGatewayConfig{
		SecretKey:      cfg.Payments.SecretKey,
		WebhookSecret:  cfg.Payments.WebhookSecret,
		Currency:       cfg.Payments.Currency,
		AllowedCountry: cfg.Payments.AllowedCountry,
		HTTPClient:     httpclient.New(cfg.Payments.ClientTimeout),
	}); err != nil {
		log.Warn("stripe init failed, continuing in degraded mode", zap.Error(err))
	} else {
		gateway = g
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

	mediaStorage := mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket)
	mediaService := mediasvc.NewService(mediaStorage)

	purchaseService := purchasesvc.NewService(purchasesvc.Dependencies{
		Purchases:   purchaseRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Lectures:    lectureRepo,
		Gateway:     gateway,
		Thumbnails:  mediaService,
		Logger:      log,
	}, cfg.Payments.RedirectBaseURL)

	progressService := progresssvc.NewService(progresssvc.Dependencies{
		Progress:    progressRepo,
		Lectures:    lectureRepo,
		Enrollments: enrollmentRepo,
	})

	RegisterRoutes(r, Dependencies{
		AuthService:     authService,
		CourseService:   courseService,
		MediaService:    mediaService,
		ProgressService: progressService,
		PurchaseService: purchaseService,
		Logger:          log,
		Config:          cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
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
