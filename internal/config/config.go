package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/avetikov/GalleryWorker/internal/domain"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Logger     LoggerConfig     `mapstructure:"logger"`

	// Renditions is the static specification table; when the config file
	// omits it the built-in table is used.
	Renditions []domain.RenditionSpec `mapstructure:"renditions"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type QueueConfig struct {
	Name              string        `mapstructure:"name"`
	BatchSize         int           `mapstructure:"batchSize"`
	VisibilityTimeout time.Duration `mapstructure:"visibilityTimeout"`
	WaitTime          time.Duration `mapstructure:"waitTime"`
	WorkerCount       int           `mapstructure:"workerCount"`
}

type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	OriginalsBucket string `mapstructure:"originalsBucket"`
}

type ProcessingConfig struct {
	// ReadRetryAttempts bounds the point-read retry loop that tolerates
	// read-after-write lag in the document store.
	ReadRetryAttempts int           `mapstructure:"readRetryAttempts"`
	ReadRetryDelay    time.Duration `mapstructure:"readRetryDelay"`

	// Decode safety bounds; sources beyond these are rejected outright.
	MaxDimension int   `mapstructure:"maxDimension"`
	MaxPixels    int64 `mapstructure:"maxPixels"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("galleryworker")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus environment cover the
		// full surface.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Renditions) == 0 {
		cfg.Renditions = domain.DefaultRenditionSpecs()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URI == "" {
		return fmt.Errorf("database uri is required")
	}
	if c.Queue.Name == "" {
		return fmt.Errorf("queue name is required")
	}
	if c.Storage.OriginalsBucket == "" {
		return fmt.Errorf("originals bucket is required")
	}
	if c.Queue.BatchSize < 1 || c.Queue.BatchSize > 10 {
		return fmt.Errorf("queue batch size must be between 1 and 10")
	}
	if c.Queue.WorkerCount < 1 {
		return fmt.Errorf("queue worker count must be positive")
	}
	for _, spec := range c.Renditions {
		if spec.Name == "" || spec.PixelLength <= 0 || spec.Bucket == "" {
			return fmt.Errorf("rendition spec %q is incomplete", spec.Name)
		}
		if !spec.Format.Valid() {
			return fmt.Errorf("rendition spec %q has unknown format %q", spec.Name, spec.Format)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)

	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "gallery")

	v.SetDefault("queue.name", "image-processing")
	v.SetDefault("queue.batchSize", 10)
	v.SetDefault("queue.visibilityTimeout", 2*time.Minute)
	v.SetDefault("queue.waitTime", 10*time.Second)
	v.SetDefault("queue.workerCount", 4)

	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.originalsBucket", "originals")

	v.SetDefault("processing.readRetryAttempts", 5)
	v.SetDefault("processing.readRetryDelay", 250*time.Millisecond)
	v.SetDefault("processing.maxDimension", 12000)
	v.SetDefault("processing.maxPixels", int64(120_000_000))

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
