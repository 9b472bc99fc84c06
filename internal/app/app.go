// Package app wires configuration into a running attendance core: storage
// gateway, face pipeline, camera source and services. Both the HTTP server
// and the command line tool start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/camera"
	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/database"
	"github.com/saturnino-fabrica-de-software/chamada/internal/face"
	"github.com/saturnino-fabrica-de-software/chamada/internal/matcher"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository/memory"
	mongostore "github.com/saturnino-fabrica-de-software/chamada/internal/repository/mongo"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository/s3blob"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

// App holds the wired services and the resources they own.
type App struct {
	Gateway     repository.Gateway
	Pipeline    *face.Pipeline
	Camera      *camera.Source // nil when the camera is disabled
	Enrollment  *service.EnrollmentService
	Students    *service.StudentService
	Recognition *service.RecognitionService
	Attendance  *service.AttendanceService

	logger  *slog.Logger
	closers []func() error
}

// Options adjust what Open wires.
type Options struct {
	// Publisher receives domain events; nil discards them.
	Publisher service.Publisher
	// StartCamera opens the camera device when the config enables it.
	StartCamera bool
}

// Open builds the App described by cfg. On error every resource opened so
// far is released.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	gateway, err := a.openGateway(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Gateway = repository.NewRetryingGateway(gateway, repository.RetryPolicy{
		Attempts:        cfg.PersistenceRetries,
		InitialInterval: repository.DefaultRetryPolicy().InitialInterval,
		MaxInterval:     repository.DefaultRetryPolicy().MaxInterval,
	}, logger)

	auditLogger := audit.NewSlogLogger(logger)

	a.Pipeline, err = face.NewPipelineFromConfig(ctx, cfg, auditLogger, logger)
	if err != nil {
		return nil, fmt.Errorf("face pipeline: %w", err)
	}

	metric, err := matcher.ParseMetric(cfg.MatchMetric)
	if err != nil {
		return nil, err
	}

	svcOpts := []service.Option{service.WithAuditLogger(auditLogger)}
	if opts.Publisher != nil {
		svcOpts = append(svcOpts, service.WithPublisher(opts.Publisher))
	}

	a.Enrollment = service.NewEnrollmentService(a.Gateway, a.Pipeline, logger, svcOpts...)
	a.Students = service.NewStudentService(a.Gateway)
	a.Recognition = service.NewRecognitionService(a.Gateway, a.Pipeline, logger, svcOpts...).
		WithMatcherConfig(matcher.Config{Metric: metric, Threshold: cfg.MatchThreshold})
	a.Attendance = service.NewAttendanceService(a.Recognition, a.Gateway, logger, svcOpts...)

	if opts.StartCamera && cfg.CameraEnabled {
		a.openCamera(ctx, cfg)
	}

	return a, nil
}

// openGateway returns the configured persistence, composing separate blob
// and record stores when they differ.
func (a *App) openGateway(ctx context.Context, cfg *config.Config) (repository.Gateway, error) {
	var (
		pg *repository.Postgres
		mg *mongostore.Store
	)

	if cfg.UsesPostgres() {
		pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, closePool(pool))
		pg = repository.NewPostgres(pool)
	}

	if cfg.UsesMongo() {
		client, err := mongostore.Connect(ctx, cfg.MongoURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, disconnect(client))
		mg = mongostore.New(client.Database(cfg.MongoDatabase))
		if err := mg.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
	}

	var mem *memory.Store
	if cfg.RecordStore == config.StoreMemory || cfg.BlobStore == config.StoreMemory {
		mem = memory.New()
	}

	var records repository.RecordStore
	switch cfg.RecordStore {
	case config.StorePostgres:
		records = pg
	case config.StoreMongo:
		records = mg
	case config.StoreMemory:
		records = mem
	default:
		return nil, fmt.Errorf("unknown record store %q", cfg.RecordStore)
	}

	var blobs repository.BlobStore
	switch cfg.BlobStore {
	case config.StorePostgres:
		blobs = pg
	case config.StoreMongo:
		blobs = mg
	case config.StoreMemory:
		blobs = mem
	case config.StoreS3:
		api, err := s3blob.NewAPI(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		blobs = s3blob.New(api, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown blob store %q", cfg.BlobStore)
	}

	a.logger.Info("persistence ready",
		slog.String("records", cfg.RecordStore),
		slog.String("blobs", cfg.BlobStore),
	)

	return repository.Compose(blobs, records), nil
}

// openCamera starts the frame source. A device that fails to open leaves the
// camera endpoints answering CAMERA_UNAVAILABLE until the next restart.
func (a *App) openCamera(ctx context.Context, cfg *config.Config) {
	var dev camera.Device
	switch cfg.CameraDevice {
	case config.CameraFile:
		dev = camera.NewFileDevice(cfg.CameraInput, cfg.CameraFPS)
	default:
		dev = camera.NewFFmpegDevice(cfg.CameraInput, cfg.CameraFormat, cfg.CameraFPS)
	}

	src := camera.NewSource(dev, camera.Options{CaptureTimeout: cfg.CaptureTimeout}, a.logger)
	if err := src.Start(ctx); err != nil {
		a.logger.Warn("camera unavailable at startup",
			slog.String("device", cfg.CameraDevice),
			slog.String("input", cfg.CameraInput),
			slog.Any("error", err),
		)
	}
	a.Camera = src
	a.closers = append(a.closers, src.Close)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func closePool(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}

func disconnect(client *mongo.Client) func() error {
	return func() error {
		return client.Disconnect(context.Background())
	}
}
