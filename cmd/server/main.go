package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/admin"
	"github.com/RaviShinde19/StackIt/internal/auth"
	"github.com/RaviShinde19/StackIt/internal/config"
	"github.com/RaviShinde19/StackIt/internal/forum"
	"github.com/RaviShinde19/StackIt/internal/logger"
	"github.com/RaviShinde19/StackIt/internal/metrics"
	"github.com/RaviShinde19/StackIt/internal/middleware"
	"github.com/RaviShinde19/StackIt/internal/notification"
	"github.com/RaviShinde19/StackIt/internal/server"
	"github.com/RaviShinde19/StackIt/internal/store"
	"github.com/RaviShinde19/StackIt/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "stackit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, store.RedisOptions{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		ConnectTries: cfg.ConnectTries,
	})
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer rdb.Close()
	sessions := auth.NewSessionStore(rdb)

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(ctx, store.MinioOptions{
		Endpoint:     cfg.MinioEndpoint,
		AccessKey:    cfg.MinioAccessKey,
		SecretKey:    cfg.MinioSecretKey,
		Bucket:       cfg.MinioBucket,
		UseSSL:       cfg.MinioUseSSL,
		ConnectTries: cfg.ConnectTries,
	})
	if err != nil {
		return fmt.Errorf("minio connect: %w", err)
	}

	// ── Services ─────────────────────────────────────────────
	m := metrics.New()
	tokens := token.NewService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)

	authSvc := auth.NewService(pgStore, sessions, tokens, minioStore, log.Named("auth"))
	authSvc.SetHashCost(cfg.BcryptCost)
	notes := notification.NewService(mongoStore, log.Named("notification"))
	forumSvc := forum.NewService(mongoStore, pgStore, notes, m, log.Named("forum"))
	adminSvc := admin.NewService(pgStore, mongoStore, sessions, log.Named("admin"))

	// ── Router ───────────────────────────────────────────────
	handler := server.NewRouter(server.Deps{
		Users:         auth.NewHandler(authSvc, log, m, cfg.MaxUploadSize),
		Forum:         forum.NewHandler(forumSvc, log),
		Notifications: notification.NewHandler(notes, log),
		Admin:         admin.NewHandler(adminSvc, log),
		Tokens:        tokens,
		AuthLimiter:   middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst),
		Metrics:       m,
		Log:           log,
		CORSOrigins:   cfg.CORSOrigins,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("backend listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
