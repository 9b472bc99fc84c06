package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Backends
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreS3       = "s3"
	StoreMemory   = "memory"

	DetectorPigo        = "pigo"
	DetectorDeepFace    = "deepface"
	DetectorRekognition = "rekognition"
	DetectorMock        = "mock"

	ExtractorDeepFace = "deepface"
	ExtractorMock     = "mock"

	CameraFFmpeg = "ffmpeg"
	CameraFile   = "file"
)

type Config struct {
	// Server
	Port           int           `envconfig:"PORT" default:"3000"`
	Environment    string        `envconfig:"ENV" default:"development"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	RateLimit      int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	// Persistence
	RecordStore        string `envconfig:"RECORD_STORE" default:"postgres"`
	BlobStore          string `envconfig:"BLOB_STORE" default:"postgres"`
	DatabaseURL        string `envconfig:"DATABASE_URL"`
	MongoURL           string `envconfig:"MONGO_URL" default:"mongodb://localhost:27017"`
	MongoDatabase      string `envconfig:"MONGO_DATABASE" default:"chamada"`
	S3Bucket           string `envconfig:"S3_BUCKET"`
	S3Prefix           string `envconfig:"S3_PREFIX" default:"students/"`
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	PersistenceRetries int    `envconfig:"PERSISTENCE_RETRIES" default:"3"`

	// Face pipeline
	Detector        string  `envconfig:"DETECTOR" default:"pigo"`
	Extractor       string  `envconfig:"EXTRACTOR" default:"deepface"`
	PigoCascadePath string  `envconfig:"PIGO_CASCADE_PATH" default:"cascade/facefinder"`
	DeepFaceURL     string  `envconfig:"DEEPFACE_URL" default:"http://localhost:5000"`
	DeepFaceModel   string  `envconfig:"DEEPFACE_MODEL" default:"Facenet512"`
	EmbeddingDim    int     `envconfig:"EMBEDDING_DIM" default:"512"`
	MatchMetric     string  `envconfig:"MATCH_METRIC" default:"cosine"`
	MatchThreshold  float64 `envconfig:"MATCH_THRESHOLD" default:"0.30"`

	// Camera
	CameraEnabled  bool          `envconfig:"CAMERA_ENABLED" default:"true"`
	CameraDevice   string        `envconfig:"CAMERA_DEVICE" default:"ffmpeg"`
	CameraInput    string        `envconfig:"CAMERA_INPUT" default:"/dev/video0"`
	CameraFormat   string        `envconfig:"CAMERA_FORMAT" default:"v4l2"`
	CameraFPS      int           `envconfig:"CAMERA_FPS" default:"10"`
	CaptureTimeout time.Duration `envconfig:"CAPTURE_TIMEOUT" default:"5s"`

	// Webhooks
	WebhookURLs        []string `envconfig:"WEBHOOK_URLS"`
	WebhookSecret      string   `envconfig:"WEBHOOK_SECRET"`
	WebhookEvents      []string `envconfig:"WEBHOOK_EVENTS"`
	WebhookMaxAttempts int      `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects combinations the bootstrap cannot wire.
func (c *Config) Validate() error {
	var errs []error

	switch c.RecordStore {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown RECORD_STORE %q", c.RecordStore))
	}
	switch c.BlobStore {
	case StorePostgres, StoreMongo, StoreS3, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_STORE %q", c.BlobStore))
	}
	if c.UsesPostgres() && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
	}
	if c.BlobStore == StoreS3 && c.S3Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required for the s3 blob store"))
	}

	switch c.Detector {
	case DetectorPigo, DetectorDeepFace, DetectorRekognition, DetectorMock:
	default:
		errs = append(errs, fmt.Errorf("unknown DETECTOR %q", c.Detector))
	}
	switch c.Extractor {
	case ExtractorDeepFace, ExtractorMock:
	default:
		errs = append(errs, fmt.Errorf("unknown EXTRACTOR %q", c.Extractor))
	}
	switch c.MatchMetric {
	case "cosine", "euclidean":
	default:
		errs = append(errs, fmt.Errorf("unknown MATCH_METRIC %q", c.MatchMetric))
	}
	if c.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim))
	}
	if c.MatchThreshold < 0 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must not be negative, got %v", c.MatchThreshold))
	}
	if c.PersistenceRetries < 1 {
		errs = append(errs, fmt.Errorf("PERSISTENCE_RETRIES must be at least 1, got %d", c.PersistenceRetries))
	}

	if c.CameraEnabled {
		switch c.CameraDevice {
		case CameraFFmpeg, CameraFile:
		default:
			errs = append(errs, fmt.Errorf("unknown CAMERA_DEVICE %q", c.CameraDevice))
		}
		if c.CameraFPS <= 0 {
			errs = append(errs, fmt.Errorf("CAMERA_FPS must be positive, got %d", c.CameraFPS))
		}
	}
	if c.CaptureTimeout <= 0 {
		errs = append(errs, errors.New("CAPTURE_TIMEOUT must be positive"))
	}
	for _, u := range c.WebhookURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("WEBHOOK_URLS entry %q is not an http(s) url", u))
		}
	}

	return errors.Join(errs...)
}

// UsesPostgres reports whether either store needs the database pool.
func (c *Config) UsesPostgres() bool {
	return c.RecordStore == StorePostgres || c.BlobStore == StorePostgres
}

// UsesMongo reports whether either store needs a mongo client.
func (c *Config) UsesMongo() bool {
	return c.RecordStore == StoreMongo || c.BlobStore == StoreMongo
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
