package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avetikov/GalleryWorker/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("expected defaults to load without a config file, got %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Queue.BatchSize != 10 {
		t.Errorf("expected default batch size 10, got %d", cfg.Queue.BatchSize)
	}
	if cfg.Queue.VisibilityTimeout != 2*time.Minute {
		t.Errorf("expected default visibility timeout 2m, got %v", cfg.Queue.VisibilityTimeout)
	}
	if cfg.Processing.ReadRetryAttempts != 5 {
		t.Errorf("expected default retry attempts 5, got %d", cfg.Processing.ReadRetryAttempts)
	}
	if len(cfg.Renditions) == 0 {
		t.Fatal("expected the built-in rendition table")
	}

	found := false
	for _, spec := range cfg.Renditions {
		if spec.Name == domain.LowResSpecName {
			found = true
		}
	}
	if !found {
		t.Error("expected the lowres spec in the default table")
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  port: 9090
queue:
  name: custom-queue
  batchSize: 5
renditions:
  - name: w1000
    pixelLength: 1000
    quality: 80
    format: jpeg
    bucket: custom-renditions
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Queue.Name != "custom-queue" || cfg.Queue.BatchSize != 5 {
		t.Errorf("unexpected queue config %+v", cfg.Queue)
	}
	if len(cfg.Renditions) != 1 || cfg.Renditions[0].Name != "w1000" {
		t.Errorf("expected the file's rendition table, got %+v", cfg.Renditions)
	}
	// defaults still fill what the file omits
	if cfg.Database.URI == "" {
		t.Error("expected the default database uri")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(t.TempDir())
		if err != nil {
			t.Fatalf("failed to load defaults: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Queue.BatchSize = 11
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for batch size above 10")
	}

	cfg = base()
	cfg.Queue.WorkerCount = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for zero workers")
	}

	cfg = base()
	cfg.Renditions[0].Format = "bmp"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an unknown rendition format")
	}

	cfg = base()
	cfg.Renditions[0].Bucket = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for a spec without a bucket")
	}
}
