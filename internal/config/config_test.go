package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*Config) bool
	}{
		{
			name: "loads explicit values",
			envVars: map[string]string{
				"PORT":            "8080",
				"ENV":             "production",
				"DATABASE_URL":    "postgres://localhost/test",
				"MATCH_METRIC":    "euclidean",
				"MATCH_THRESHOLD": "0.6",
				"CAPTURE_TIMEOUT": "2s",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 8080 &&
					c.Environment == "production" &&
					c.DatabaseURL == "postgres://localhost/test" &&
					c.MatchMetric == "euclidean" &&
					c.MatchThreshold == 0.6 &&
					c.CaptureTimeout == 2*time.Second
			},
		},
		{
			name: "uses defaults when optional vars missing",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://localhost/test",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 3000 &&
					c.Environment == "development" &&
					c.RecordStore == StorePostgres &&
					c.BlobStore == StorePostgres &&
					c.Detector == DetectorPigo &&
					c.Extractor == ExtractorDeepFace &&
					c.EmbeddingDim == 512 &&
					c.MatchMetric == "cosine" &&
					c.MatchThreshold == 0.30 &&
					c.CameraFPS == 10 &&
					c.CaptureTimeout == 5*time.Second &&
					c.PersistenceRetries == 3
			},
		},
		{
			name: "memory stores need no database",
			envVars: map[string]string{
				"RECORD_STORE": "memory",
				"BLOB_STORE":   "memory",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return !c.UsesPostgres() && !c.UsesMongo()
			},
		},
		{
			name:    "fails when postgres selected without DATABASE_URL",
			envVars: map[string]string{},
			wantErr: true,
		},
		{
			name: "fails on unknown record store",
			envVars: map[string]string{
				"RECORD_STORE": "firebase",
				"BLOB_STORE":   "memory",
			},
			wantErr: true,
		},
		{
			name: "fails on s3 without bucket",
			envVars: map[string]string{
				"RECORD_STORE": "memory",
				"BLOB_STORE":   "s3",
			},
			wantErr: true,
		},
		{
			name: "fails on negative threshold",
			envVars: map[string]string{
				"RECORD_STORE":    "memory",
				"BLOB_STORE":      "memory",
				"MATCH_THRESHOLD": "-0.1",
			},
			wantErr: true,
		},
		{
			name: "parses webhook lists",
			envVars: map[string]string{
				"RECORD_STORE":   "memory",
				"BLOB_STORE":     "memory",
				"WEBHOOK_URLS":   "https://a.example/hook,http://b.example/hook",
				"WEBHOOK_EVENTS": "attendance.marked",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return len(c.WebhookURLs) == 2 &&
					c.WebhookURLs[1] == "http://b.example/hook" &&
					len(c.WebhookEvents) == 1 &&
					c.WebhookMaxAttempts == 5
			},
		},
		{
			name: "fails on webhook url without scheme",
			envVars: map[string]string{
				"RECORD_STORE": "memory",
				"BLOB_STORE":   "memory",
				"WEBHOOK_URLS": "a.example/hook",
			},
			wantErr: true,
		},
		{
			name: "fails on unknown metric",
			envVars: map[string]string{
				"RECORD_STORE": "memory",
				"BLOB_STORE":   "memory",
				"MATCH_METRIC": "manhattan",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Load() config check failed, got: %+v", cfg)
			}
		})
	}
}

func TestConfig_Validate_Camera(t *testing.T) {
	base := func() *Config {
		return &Config{
			RecordStore:        StoreMemory,
			BlobStore:          StoreMemory,
			Detector:           DetectorMock,
			Extractor:          ExtractorMock,
			MatchMetric:        "cosine",
			EmbeddingDim:       512,
			PersistenceRetries: 3,
			CameraEnabled:      true,
			CameraDevice:       CameraFile,
			CameraFPS:          10,
			CaptureTimeout:     time.Second,
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	c := base()
	c.CameraDevice = "webcam"
	if err := c.Validate(); err == nil {
		t.Errorf("Validate() expected error for unknown camera device")
	}

	c = base()
	c.CameraEnabled = false
	c.CameraDevice = "ignored"
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() should ignore camera settings when disabled: %v", err)
	}

	c = base()
	c.CaptureTimeout = 0
	if err := c.Validate(); err == nil {
		t.Errorf("Validate() expected error for zero capture timeout")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"development", "development", true},
		{"production", "production", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			if got := c.IsDevelopment(); got != tt.want {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"production", "production", true},
		{"development", "development", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			if got := c.IsProduction(); got != tt.want {
				t.Errorf("IsProduction() = %v, want %v", got, tt.want)
			}
		})
	}
}
