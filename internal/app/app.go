package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/avetikov/GalleryWorker/internal/config"
	"github.com/avetikov/GalleryWorker/internal/metadata"
	"github.com/avetikov/GalleryWorker/internal/observability"
	"github.com/avetikov/GalleryWorker/internal/rendition"
	"github.com/avetikov/GalleryWorker/internal/repo"
	"github.com/avetikov/GalleryWorker/internal/service"
	httptransport "github.com/avetikov/GalleryWorker/internal/transport/http"
	queuetransport "github.com/avetikov/GalleryWorker/internal/transport/queue"
)

type App struct {
	cfg          *config.Config
	logger       *slog.Logger
	db           *mongo.Database
	httpServer   *httptransport.Server
	consumer     queuetransport.Consumer
	processorSvc service.ProcessorService
	gallerySvc   service.GalleryService
}

func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logger)

	ctx := context.Background()

	// Initialize database
	db, err := repo.ConnectMongo(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := repo.EnsureIndexes(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	logger.Info("database initialized", "name", cfg.Database.Name)

	// Initialize object storage and queue clients
	s3Client, err := repo.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage client: %w", err)
	}
	sqsClient, err := queuetransport.NewSQSClient(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize queue client: %w", err)
	}

	// A missing queue is fatal at startup, not at first receive.
	queueURL, err := queuetransport.ResolveQueueURL(ctx, sqsClient, cfg.Queue.Name)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	imageRepo := repo.NewImageRepository(db)
	galleryRepo := repo.NewGalleryRepository(db)
	storageRepo := repo.NewStorageRepository(s3Client)

	// Initialize services
	extractor := metadata.NewExtractor(logger)
	generator := rendition.NewGenerator(cfg.Processing.MaxDimension, cfg.Processing.MaxPixels, logger)

	processorSvc := service.NewProcessorService(imageRepo, storageRepo, extractor, generator, cfg, logger)
	gallerySvc := service.NewGalleryService(imageRepo, galleryRepo, logger)
	orderingSvc := service.NewOrderingService(imageRepo, galleryRepo, logger)

	// Initialize queue transport
	consumer := queuetransport.NewConsumer(sqsClient, queueURL, cfg.Queue, logger)
	producer := queuetransport.NewProducer(sqsClient, queueURL)

	// Initialize HTTP server
	handler := httptransport.NewHandler(producer, gallerySvc, orderingSvc)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := httptransport.NewServer(addr, handler, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	return &App{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		httpServer:   httpServer,
		consumer:     consumer,
		processorSvc: processorSvc,
		gallerySvc:   gallerySvc,
	}, nil
}

func (a *App) Start() error {
	a.logger.Info("starting application",
		"addr", a.httpServer.Addr(),
		"queue", a.cfg.Queue.Name,
		"workers", a.cfg.Queue.WorkerCount,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start queue workers in background
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := a.consumer.Start(ctx, a.processorSvc, a.gallerySvc); err != nil && ctx.Err() == nil {
			a.logger.Error("queue consumer error", "error", err)
		}
	}()

	// Start HTTP server
	go func() {
		if err := a.httpServer.Start(); err != nil {
			a.logger.Error("http server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.logger.Info("shutting down application")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel() // Stop queue workers; in-flight messages redeliver after the visibility timeout.

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("queue workers did not drain before the shutdown deadline")
	}

	if err := a.db.Client().Disconnect(shutdownCtx); err != nil {
		return fmt.Errorf("failed to disconnect database: %w", err)
	}

	return nil
}
