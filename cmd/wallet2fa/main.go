package main

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/wallet2fa/adapters/events"
	"github.com/layer-3/wallet2fa/adapters/ledger"
	"github.com/layer-3/wallet2fa/adapters/store"
	"github.com/layer-3/wallet2fa/adapters/tokenizer"
	"github.com/layer-3/wallet2fa/internal/config"
	"github.com/layer-3/wallet2fa/internal/infra"
	"github.com/layer-3/wallet2fa/internal/logging"
	"github.com/layer-3/wallet2fa/internal/metrics"
	"github.com/layer-3/wallet2fa/ports"
	"github.com/layer-3/wallet2fa/service"
	transport "github.com/layer-3/wallet2fa/transport/http"
)

func main() {
	if err := run(); err != nil {
		logrus.Fatalf("main: error: %s", err.Error())
	}
}

func run() error {
	configPath, present := os.LookupEnv(config.ConfigPathEnv)
	if present {
		logrus.Infof("loading config from env var path: %s", configPath)
	}
	cfg, err := config.Load(configPath, os.Args[1:])
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	log.Infof("main: config:\n%v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()

	signKey, err := signingKey(cfg.Auth.SigningKeyPath, log)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() || cfg.Auth.RateLimit > 0 {
		redisClient, err = infra.NewRedisClient(ctx, cfg.Storage.RedisURL)
		switch {
		case err == nil:
			defer redisClient.Close()
		case cfg.NeedsRedis():
			return errors.Wrap(err, "connecting to redis")
		default:
			log.WithError(err).Warn("redis unavailable, rate limiting disabled")
		}
	}

	var nonceStore ports.NonceStore = store.NewMemoryStore()
	if cfg.Storage.NonceStore == config.BackendRedis {
		nonceStore = store.NewRedisStore(redisClient)
	}

	authLedger, closeLedger, err := openLedger(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeLedger()

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			return errors.Wrap(err, "creating redis stream publisher")
		}
		defer publisher.Close()
		eventPub = events.NewWatermillPublisher(publisher, cfg.Events.Topic)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	nonces := service.NewNonceRegistry(nonceStore, clk, cfg.Auth.NonceTTL, log)
	authService := service.NewAuthService(
		nonces,
		tokenizer.NewJWTTokenizer(signKey, cfg.Auth.Issuer, clk),
		authLedger,
		eventPub,
		service.Options{
			ServiceID:      cfg.Auth.ServiceID,
			Domain:         cfg.Server.Domain,
			SessionTTL:     cfg.Auth.SessionTTL,
			ProfileHistory: cfg.Auth.HistoryLimit,
			Clock:          clk,
			Logger:         log,
			Metrics:        metrics.New(registry),
		},
	)

	routerOpts := transport.RouterOptions{
		Clock:          clk,
		Logger:         log,
		CORSOrigins:    cfg.Server.Origins(),
		TrustedProxies: cfg.Server.Proxies(),
		Redis:          redisClient,
		RateLimit:      cfg.Auth.RateLimit,
	}
	if cfg.Server.EnableMetrics {
		routerOpts.Gatherer = registry
	}

	go nonces.Run(ctx, cfg.Auth.SweepInterval)

	srv := &http.Server{
		Addr:         cfg.Server.APIHost,
		Handler:      transport.SetupRouter(authService, routerOpts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("main: server started and listening on -> %s", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
		log.Info("main: shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("main: failed to stop server gracefully, forcing shutdown")
			if err := srv.Close(); err != nil {
				log.WithError(err).Error("main: failed to close server")
			}
		}
	}

	return nil
}

func signingKey(path string, log logrus.FieldLogger) (*ecdsa.PrivateKey, error) {
	if path != "" {
		return tokenizer.LoadKey(path)
	}
	log.Warn("no signing key configured, sessions will not survive a restart")
	return tokenizer.GenerateKey()
}

func openLedger(ctx context.Context, cfg config.StorageConfig) (ports.Ledger, func(), error) {
	switch cfg.Ledger {
	case config.BackendBolt:
		l, err := ledger.NewBoltLedger(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return l, func() { _ = l.Close() }, nil
	case config.BackendPostgres:
		pool, err := infra.NewPostgresPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connecting to postgres")
		}
		l := ledger.NewPostgresLedger(pool)
		if err := l.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return l, pool.Close, nil
	default:
		return ledger.NewMemoryLedger(), func() {}, nil
	}
}
