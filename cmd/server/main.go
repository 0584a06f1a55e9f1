package main

import (
	"context"   // Shutdown and probe contexts
	"errors"    // http.ErrServerClosed check
	"io"        // Closers
	"net/http"  // HTTP server
	"os"        // Exit code
	"os/signal" // Graceful shutdown
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"golang.org/x/sync/errgroup"   // Server and shutdown goroutines

	"core_bank/internal/api"             // HTTP handlers
	"core_bank/internal/auth"            // Login and tokens
	"core_bank/internal/cache"           // Account summary cache
	"core_bank/internal/config"          // Configuration
	"core_bank/internal/db"              // Demo data
	"core_bank/internal/ledger"          // Ledger engine
	"core_bank/internal/logging"         // Logger setup
	"core_bank/internal/metrics"         // HTTP metrics
	"core_bank/internal/middleware"      // Request id, access log
	"core_bank/internal/ratelimit"       // Login and registration limiter
	"core_bank/internal/registration"    // Client registration
	"core_bank/internal/store"           // Store contract
	"core_bank/internal/store/gormstore" // MySQL store
	"core_bank/internal/store/memstore"  // In-process store
)

const shutdownTimeout = 15 * time.Second

// Main function to set up and run the server
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.WithError(err).Error("Server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx) // Load configuration
	if err != nil {
		return err
	}

	// Setup logger
	log, logCloser, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.IsProd, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	st, ready, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore.Close()

	// Setup Redis client, optional
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,     // Redis server address
			Password: cfg.Redis.Password, // Redis password
			DB:       cfg.Redis.DB,       // Redis database number
		})
		defer rdb.Close()
		// Test Redis connection, the cache and limiter degrade without it
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable at startup, cache and rate limiter will fail open")
		}
	}

	var summaries *cache.Cache
	var limiter ratelimit.Limiter
	if rdb != nil {
		summaries = cache.New(rdb, cfg.Redis.CacheTTL)
		limiter = ratelimit.NewRedisLimiter(rdb, "rl:", cfg.RateLimit.Max, cfg.RateLimit.Window)
	} else {
		log.Info("REDIS_ADDR not set, using in-process rate limiter and no summary cache")
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	services := api.Services{
		Store:        st,
		Auth:         auth.NewService(st, tokens, log),
		Registration: registration.NewService(st, cfg.Ledger.DefaultCreditLimit, log),
		Ledger: ledger.NewEngine(st, ledger.Config{
			Policy: ledger.Policy{
				EnforceCreditLimit:  cfg.Ledger.EnforceCreditLimit,
				CheckClampedPayment: cfg.Ledger.CheckClampedPayment,
			},
			Timeout: cfg.TxTimeout,
		}, log),
		Cache:   summaries,
		Limiter: limiter,
		Ready:   ready,
		Log:     log,
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLog(log), metrics.Middleware(), gin.Recovery())

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return err
	}
	api.RegisterRoutes(r, services)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":  srv.Addr,        // Listen address
			"store": cfg.StoreDriver, // Store driver
		}).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// openStore connects the configured store. The memory store is seeded with
// the demo users since it starts empty on every run.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.Store, func(context.Context) error, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		st := memstore.New()
		if _, err := db.Seed(ctx, st, db.DefaultSeedOptions, log); err != nil {
			return nil, nil, nil, err
		}
		log.Warn("Using the in-memory store, data is lost on exit")
		return st, nil, nopCloser{}, nil
	default:
		st, err := gormstore.Open(gormstore.Config{
			User:            cfg.DB.User,
			Password:        cfg.DB.Password,
			Host:            cfg.DB.Host,
			Port:            cfg.DB.Port,
			Name:            cfg.DB.Name,
			LockWaitTimeout: cfg.DB.LockWaitTimeout,
			MaxOpenConns:    cfg.DB.MaxOpenConns,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		ready := func(ctx context.Context) error {
			sqlDB, err := st.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		return st, ready, st, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
