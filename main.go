// File: /main.go
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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"trailcatalog-api/config"
	"trailcatalog-api/database"
	"trailcatalog-api/jobs"
	"trailcatalog-api/logger"
	"trailcatalog-api/middleware"
	"trailcatalog-api/repositories"
	"trailcatalog-api/routes"
	"trailcatalog-api/services"
)

const (
	oauthStateTTL   = 10 * time.Minute
	limiterIdleTime = 10 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	root := &cobra.Command{
		Use:           "trailcatalog",
		Short:         "Hiking route catalog API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP API", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Create or update the database schema", RunE: runMigrate},
		&cobra.Command{Use: "seed", Short: "Insert sample routes for development", RunE: runSeed},
	)
	addClientCommands(root)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// boot loads configuration and builds the process logger.
func boot() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func openDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}
	db, err := database.Initialize(cfg.DBDriver, cfg.DatabaseURL, level)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := boot()
	if err != nil {
		return err
	}
	defer log.Sync()

	if _, err := openDatabase(cfg, log); err != nil {
		return err
	}
	log.Info("database migrated", zap.String("driver", cfg.DBDriver))
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, log, err := boot()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	return database.SeedData(db, log)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := boot()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
	}

	feed := repositories.NewChangeFeed(redisClient, log)

	var (
		store repositories.RouteStore
		queue *repositories.WriteQueue
	)
	switch cfg.StoreBackend {
	case config.BackendLocal:
		var slot repositories.Slot = repositories.NewFileSlot(cfg.LocalSlotPath)
		if cfg.LocalSlot == config.SlotRedis {
			slot = repositories.NewRedisSlot(redisClient, cfg.LocalSlotKey)
		}
		store = repositories.NewLocalStore(slot, feed, log)
	default:
		if cfg.WriteMode == config.WriteNonBlocking {
			queue = repositories.NewWriteQueue(cfg.WriteQueueSize, cfg.WriteTimeout, log)
			queue.Start()
		}
		store = repositories.NewDocumentStore(db, feed, queue, log)
	}

	states := services.NewStateStore(oauthStateTTL)
	purgers := map[string]jobs.Purger{"oauth_states": states}

	var denylist services.Denylist
	if redisClient != nil {
		denylist = services.NewRedisDenylist(redisClient)
	} else {
		memory := services.NewMemoryDenylist()
		purgers["revoked_tokens"] = memory
		denylist = memory
	}

	var mailer services.WelcomeMailer
	if cfg.SMTPEnabled() {
		mailer = services.NewEmailService(cfg, log)
	}

	auth := services.NewAuthService(cfg,
		repositories.NewProfileRepository(db),
		repositories.NewRoleRepository(db),
		denylist, states, mailer, log)

	var generator services.TextGenerator = services.DisabledGenerator{}
	if cfg.GenAIAPIKey != "" {
		genai, err := services.NewGenAIGenerator(ctx, cfg.GenAIAPIKey, cfg.GenAITextModel, cfg.GenAIVisionModel)
		if err != nil {
			return err
		}
		generator = genai
	} else {
		log.Warn("GENAI_API_KEY not set, assist endpoints will fail")
	}

	limiter := middleware.NewRateLimiter(cfg.AssistRatePerMinute, cfg.AssistBurst)
	purgers["rate_limiters"] = jobs.PurgeFunc(func() int { return limiter.CleanupLimiters(limiterIdleTime) })

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(log),
		middleware.ErrorHandler(log),
		middleware.SecurityHeaders(),
		routes.SetupCORS(cfg.CORSOrigin),
	)
	routes.SetupRoutes(router, routes.Dependencies{
		Config:      cfg,
		Log:         log,
		Store:       store,
		Auth:        auth,
		Assist:      services.NewAssistService(generator, log),
		RateLimiter: limiter,
	})

	cleanup := jobs.NewSessionCleanupJob(cfg.OAuthStateInterval, log, purgers)
	cleanup.Start()
	defer cleanup.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting trail catalog API",
			zap.String("port", cfg.Port),
			zap.String("backend", cfg.StoreBackend),
			zap.Bool("blocking_writes", store.Blocking()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return feed.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if queue != nil {
			queue.Stop()
		}
		log.Info("server stopped")
		return err
	})

	return g.Wait()
}
