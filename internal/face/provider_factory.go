package face

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/align"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/pigo"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/rekognition"
)

// NewPipelineFromConfig wires the detector and extractor selected by config.
//
// Environment variables:
//   - DETECTOR: "pigo", "deepface", "rekognition" or "mock" (default: "pigo")
//   - EXTRACTOR: "deepface" or "mock" (default: "deepface")
//   - PIGO_CASCADE_PATH: facefinder cascade file for pigo
//   - DEEPFACE_URL, DEEPFACE_MODEL: DeepFace API
//   - AWS_REGION: AWS region for Rekognition (credentials via the AWS SDK chain)
func NewPipelineFromConfig(ctx context.Context, cfg *config.Config, auditLogger audit.Logger, logger *slog.Logger) (*Pipeline, error) {
	var df *deepface.Provider
	deepFace := func() *deepface.Provider {
		if df == nil {
			df = createDeepFaceProvider(cfg)
		}
		return df
	}

	detector, err := newDetector(ctx, cfg, auditLogger, deepFace)
	if err != nil {
		return nil, err
	}

	extractor, err := newExtractor(cfg, deepFace)
	if err != nil {
		return nil, err
	}

	logger.Info("face pipeline ready",
		slog.String("detector", cfg.Detector),
		slog.String("extractor", cfg.Extractor),
		slog.Int("embedding_dim", cfg.EmbeddingDim),
	)

	return NewPipeline(detector, align.New(align.DefaultConfig()), extractor, cfg.EmbeddingDim), nil
}

func newDetector(ctx context.Context, cfg *config.Config, auditLogger audit.Logger, deepFace func() *deepface.Provider) (provider.Detector, error) {
	switch cfg.Detector {
	case config.DetectorPigo, "":
		pigoCfg := pigo.DefaultConfig()
		if cfg.PigoCascadePath != "" {
			pigoCfg.CascadePath = cfg.PigoCascadePath
		}
		d, err := pigo.NewDetector(pigoCfg)
		if err != nil {
			return nil, fmt.Errorf("create pigo detector: %w", err)
		}
		return d, nil

	case config.DetectorDeepFace:
		return deepFace(), nil

	case config.DetectorRekognition:
		return createRekognitionDetector(ctx, cfg, auditLogger)

	case config.DetectorMock:
		return mock.New(cfg.EmbeddingDim), nil

	default:
		return nil, fmt.Errorf("unknown detector type: %s (supported: %s, %s, %s, %s)",
			cfg.Detector, config.DetectorPigo, config.DetectorDeepFace, config.DetectorRekognition, config.DetectorMock)
	}
}

func newExtractor(cfg *config.Config, deepFace func() *deepface.Provider) (provider.Extractor, error) {
	switch cfg.Extractor {
	case config.ExtractorDeepFace, "":
		return deepFace(), nil

	case config.ExtractorMock:
		return mock.New(cfg.EmbeddingDim), nil

	default:
		return nil, fmt.Errorf("unknown extractor type: %s (supported: %s, %s)",
			cfg.Extractor, config.ExtractorDeepFace, config.ExtractorMock)
	}
}

// createRekognitionDetector creates an AWS Rekognition detector
func createRekognitionDetector(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (provider.Detector, error) {
	rekogConfig := rekognition.DefaultConfig()
	if cfg.AWSRegion != "" {
		rekogConfig.Region = cfg.AWSRegion
	}

	api, err := rekognition.NewAPI(ctx, rekogConfig)
	if err != nil {
		return nil, fmt.Errorf("create rekognition detector: %w", err)
	}

	return rekognition.NewDetector(api, rekogConfig, rekognition.WithAuditLogger(auditLogger)), nil
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()
	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}

	return deepface.NewProvider(deepfaceConfig)
}
