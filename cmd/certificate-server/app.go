package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	certactivity "github.com/goliatone/go-certificate/adapters/activity"
	certhttp "github.com/goliatone/go-certificate/adapters/http"
	certjob "github.com/goliatone/go-certificate/adapters/job"
	lockredis "github.com/goliatone/go-certificate/adapters/lock/redis"
	certpdf "github.com/goliatone/go-certificate/adapters/pdf"
	certqr "github.com/goliatone/go-certificate/adapters/qr"
	storefs "github.com/goliatone/go-certificate/adapters/store/fs"
	storeminio "github.com/goliatone/go-certificate/adapters/store/minio"
	trackerbun "github.com/goliatone/go-certificate/adapters/tracker/bun"
	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/command"
	"github.com/goliatone/go-certificate/internal/config"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
)

// server holds the wired application and the resources to release on exit.
type server struct {
	app     *fiber.App
	closers []func() error
}

func (s *server) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newServer(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*server, error) {
	srv := &server{}
	fail := func(err error) (*server, error) {
		_ = srv.Close()
		return nil, err
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fail(err)
	}
	srv.closers = append(srv.closers, db.Close)

	tracker := trackerbun.NewTracker(db)
	if err := tracker.CreateSchema(ctx); err != nil {
		return fail(fmt.Errorf("create tracker schema: %w", err))
	}

	store, verifier, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return fail(err)
	}

	locker, closeLocker := newLocker(cfg.Redis, log)
	if closeLocker != nil {
		srv.closers = append(srv.closers, closeLocker)
	}

	engine, err := newEngine(cfg.Chromium)
	if err != nil {
		return fail(err)
	}
	srv.closers = append(srv.closers, engine.Close)

	exporter := certificate.NewExporter(certificate.ExporterConfig{
		Assembler: certpdf.FPDFAssembler{},
		Capturer:  engine,
		Loader:    &certqr.HTTPLoader{Client: &http.Client{Timeout: cfg.QR.Timeout}, UserAgent: cfg.App.Name},
		Sink:      certificate.StoreSink{Store: store, Prefix: cfg.Storage.Prefix},
		Locker:    locker,
		Tracker:   tracker,
		Emitter:   certactivity.NewEmitter(certactivity.Config{Sink: certactivity.LogSink{Logger: log}}),
		Metrics:   logMetrics{log: log.Desugar()},
		Logger:    log,
		QR: certificate.QRConfig{
			ServiceURL:    cfg.QR.ServiceURL,
			VerifyBaseURL: cfg.QR.VerifyBaseURL,
		},
		QRConcurrency: cfg.QR.Concurrency,
	})

	sub := dispatcher.SubscribeCommand(command.NewGenerateBatchHandler(exporter))
	srv.closers = append(srv.closers, func() error {
		sub.Unsubscribe()
		return nil
	})
	batchTask := certjob.NewBatchTask(certjob.TaskConfig{
		Tracker:    tracker,
		Rasterizer: engine,
		Logger:     log,
	})
	batches := certjob.NewScheduler(certjob.Config{
		Enqueuer: certjob.NewLocalEnqueuer(batchTask, cfg.Batch.Timeout, log),
		Tracker:  tracker,
		Logger:   log,
	})

	handler := certhttp.NewHandler(certhttp.Config{
		Service:      exporter,
		Batches:      batches,
		Rasterizer:   engine,
		Store:        store,
		Tracker:      tracker,
		Verifier:     verifier,
		BasePath:     cfg.App.BasePath,
		SignedURLTTL: signedURLTTL(cfg.Storage, verifier),
		Logger:       log,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ErrorHandler:          certhttp.ErrorHandler,
		DisableStartupMessage: !cfg.IsDevelopment(),
		BodyLimit:             32 << 20,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	handler.RegisterRoutes(app)

	srv.app = app
	return srv, nil
}

func newEngine(cfg config.ChromiumConfig) (*certpdf.ChromiumEngine, error) {
	assets, err := certpdf.ParseExternalAssetsPolicy(cfg.ExternalAssets)
	if err != nil {
		return nil, err
	}
	return &certpdf.ChromiumEngine{
		BrowserPath:    cfg.BrowserPath,
		Headless:       cfg.Headless,
		Timeout:        cfg.Timeout,
		Args:           cfg.Args,
		ExternalAssets: assets,
		AllowedHosts:   cfg.AllowedHosts,
	}, nil
}

func openDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// newStore returns the artifact store and, for the fs driver with a signing
// secret, the verifier for signed artifact URLs.
func newStore(ctx context.Context, cfg config.StorageConfig) (certificate.ArtifactStore, certhttp.Verifier, error) {
	switch cfg.Driver {
	case config.StorageMinio:
		store, err := storeminio.New(storeminio.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		store := storefs.NewStore(cfg.Root)
		if cfg.SigningSecret == "" || cfg.BaseURL == "" {
			return store, nil, nil
		}
		signer := storefs.HMACSigner{Secret: []byte(cfg.SigningSecret)}
		store.BaseURL = cfg.BaseURL
		store.Signer = signer
		return store, signer, nil
	}
}

func newLocker(cfg config.RedisConfig, log *zap.SugaredLogger) (certificate.DocumentLocker, func() error) {
	if cfg.Addr == "" {
		return certificate.NewMemoryLocker(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	locker := lockredis.NewLocker(client)
	if cfg.LockPrefix != "" {
		locker.Prefix = cfg.LockPrefix
	}
	if cfg.LockTTL > 0 {
		locker.TTL = cfg.LockTTL
	}
	locker.Logger = log
	return locker, client.Close
}

func signedURLTTL(cfg config.StorageConfig, verifier certhttp.Verifier) time.Duration {
	if cfg.Driver == config.StorageMinio || verifier != nil {
		return cfg.SignedURLTTL
	}
	return 0
}
