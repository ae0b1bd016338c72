package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hasib2k/online-store/internal/admin"
	"github.com/hasib2k/online-store/internal/aws"
	"github.com/hasib2k/online-store/internal/config"
	"github.com/hasib2k/online-store/internal/handlers"
	"github.com/hasib2k/online-store/internal/idempotency"
	"github.com/hasib2k/online-store/internal/logger"
	"github.com/hasib2k/online-store/internal/metrics"
	"github.com/hasib2k/online-store/internal/orders"
	"github.com/hasib2k/online-store/internal/reconcile"
	"github.com/hasib2k/online-store/internal/session"
	"github.com/hasib2k/online-store/internal/timestamp"
)

// routerDeps is what setupRouter needs besides the admin handlers.
type routerDeps struct {
	Logger  *zap.Logger
	Admin   handlers.HandlerConfig
	Metrics http.Handler // nil when metrics are not scraped
}

func setupRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(logger.RequestID())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(logger.Recovery(deps.Logger))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	handlers.RegisterAdminRoutes(r, deps.Admin)
	return r
}

// needsAWS reports whether any configured component talks to AWS.
func needsAWS(cfg *config.Config) bool {
	return cfg.StructuredBackend() == "dynamodb" ||
		cfg.DynamoDB.IdempotencyTable != "" ||
		cfg.SQS.QueueURL != "" ||
		cfg.Metrics.Backend == "cloudwatch"
}

// buildRouter wires stores, services and handlers from cfg. The returned
// cleanup releases the database connection.
func buildRouter(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gin.Engine, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	normalizer := timestamp.New(loc)

	var clients *aws.AWSClients
	if needsAWS(cfg) {
		clients, err = aws.NewAWSClients(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, fmt.Errorf("init aws clients: %w", err)
		}
	}
	var (
		dynamo aws.DynamoDBAPI
		cw     aws.CloudWatchAPI
	)
	if clients != nil {
		dynamo, cw = clients.DynamoDB, clients.CloudWatch
	}

	structured, closeDB, err := orders.OpenStructured(cfg, dynamo)
	if err != nil {
		// the file store still serves reads and writes
		log.Warn("structured order store misconfigured", zap.Error(err))
		structured = nil
	}
	cleanup := func() {
		if err := closeDB(); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}

	var fileOpts []orders.FileOption
	if !cfg.FileStore.Lock {
		fileOpts = append(fileOpts, orders.WithoutLock())
	}
	file := orders.NewFileStore(cfg.FileStore.Path, fileOpts...)

	recorder, err := metrics.New(cfg.Metrics, cw, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if c, ok := recorder.(io.Closer); ok {
		closeStores := cleanup
		cleanup = func() {
			// flush queued metrics before the process exits
			if err := c.Close(); err != nil {
				log.Warn("close metrics", zap.Error(err))
			}
			closeStores()
		}
	}

	var structuredStore orders.Store
	if structured != nil {
		structuredStore = structured
	}

	reconciler := reconcile.New(structuredStore, file, normalizer,
		reconcile.WithKeyLength(cfg.Reconcile.KeyLength),
		reconcile.WithStrictSignature(cfg.Reconcile.StrictSignature),
		reconcile.WithLogger(log),
		reconcile.WithRecorder(recorder),
	)

	codec := session.NewCodec(session.Config{
		SessionSecret: cfg.Admin.SessionSecret,
		GenericSecret: cfg.Admin.GenericSecret,
		Credential:    cfg.Admin.Password,
	})
	if !codec.Configured() {
		log.Warn("admin password not set, admin API refuses every request")
	}

	svcOpts := []admin.Option{admin.WithLogger(log), admin.WithRecorder(recorder)}
	if cfg.SQS.QueueURL != "" {
		svcOpts = append(svcOpts, admin.WithPublisher(aws.NewPublisher(clients.SQS, cfg.SQS.QueueURL)))
	}
	svc := admin.NewService(admin.Config{SessionTTL: cfg.Admin.SessionTTL}, codec, reconciler, structuredStore, file, svcOpts...)

	adminCfg := handlers.HandlerConfig{
		Service:      svc,
		SecureCookie: cfg.IsProduction(),
		MaxBodySize:  cfg.HTTP.MaxBodySize,
	}
	if cfg.DynamoDB.IdempotencyTable != "" {
		adminCfg.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.DynamoDB.IdempotencyTable, cfg.DynamoDB.IdempotencyTTL)
	}

	deps := routerDeps{Logger: log, Admin: adminCfg}
	if p, ok := recorder.(*metrics.Prometheus); ok {
		deps.Metrics = p.Handler()
	}

	log.Info("order stores ready",
		zap.String("structured", cfg.StructuredBackend()),
		zap.Bool("structured_available", structuredStore != nil),
		zap.String("file", file.Path()),
		zap.String("metrics", cfg.Metrics.Backend),
		zap.Bool("idempotency", adminCfg.Idempotency != nil),
	)
	return setupRouter(deps), cleanup, nil
}
