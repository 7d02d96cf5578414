package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"satinel-backend/internal/core/types"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Root     string `env:"ROOT" envDefault:"./satinel-data"`
	Port     int    `env:"PORT" envDefault:"8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Empty DatabaseURL uses sqlite under Root, empty RabbitMQURL uses the in
	// memory queue.
	DatabaseURL string `env:"DATABASE_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`

	AreasFile     string  `env:"AREAS_FILE"`
	DefaultAreaId string  `env:"DEFAULT_AREA_ID"`
	SnapThreshold float64 `env:"SNAP_THRESHOLD_DEG" envDefault:"0.5"`

	StorageType       string `env:"STORAGE_TYPE" envDefault:"local"`
	ImageryBucket     string `env:"IMAGERY_BUCKET" envDefault:"imagery"`
	OverlayBucket     string `env:"OVERLAY_BUCKET"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION"`

	DefaultImagerySource string `env:"DEFAULT_IMAGERY_SOURCE" envDefault:"static"`
	DynamicImageryURL    string `env:"DYNAMIC_IMAGERY_URL"`
	SentinelHubAPIKey    string `env:"SENTINEL_HUB_API_KEY"`

	SegmentationURL       string `env:"SEGMENTATION_URL"`
	MasksDir              string `env:"MASKS_DIR"`
	UsePrecomputedMasks   bool   `env:"USE_PRECOMPUTED_MASKS" envDefault:"true"`
	MinBuildingSizePixels int    `env:"MIN_BUILDING_SIZE_PIXELS" envDefault:"10"`
	MaskThreshold         uint8  `env:"MASK_THRESHOLD" envDefault:"120"`
	DefaultPrompt         string `env:"DEFAULT_PROMPT" envDefault:"buildings infrastructure"`
	OverlaysEnabled       bool   `env:"OVERLAYS_ENABLED" envDefault:"true"`

	PixelResolutionM float64 `env:"PIXEL_RESOLUTION_M" envDefault:"10"`
	IoUThreshold     float64 `env:"IOU_THRESHOLD" envDefault:"0.3"`
	HotspotThreshold float64 `env:"HOTSPOT_THRESHOLD" envDefault:"70"`

	BatchConcurrency int           `env:"BATCH_CONCURRENCY" envDefault:"4"`
	TaskTimeout      time.Duration `env:"TASK_TIMEOUT" envDefault:"2m"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageType {
	case "local", "s3":
	default:
		return fmt.Errorf("invalid STORAGE_TYPE '%s': must be 'local' or 's3'", c.StorageType)
	}

	switch types.ImagerySourceMode(c.DefaultImagerySource) {
	case types.ImageryStatic:
	case types.ImageryDynamic:
		if c.DynamicImageryURL == "" {
			return fmt.Errorf("DYNAMIC_IMAGERY_URL is required when DEFAULT_IMAGERY_SOURCE is 'dynamic'")
		}
	default:
		return fmt.Errorf("invalid DEFAULT_IMAGERY_SOURCE '%s': must be 'static' or 'dynamic'", c.DefaultImagerySource)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.PixelResolutionM <= 0 {
		return fmt.Errorf("PIXEL_RESOLUTION_M must be positive")
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("IOU_THRESHOLD must be in (0, 1]")
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive")
	}

	if c.S3EndpointURL != "" && (c.S3AccessKeyID == "" || c.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return nil
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL '%s': %w", c.LogLevel, err)
	}
	return level, nil
}

func (c Config) DatabasePath() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return filepath.Join(c.Root, "db", "satinel.db")
}

func (c Config) StorageDir() string {
	return filepath.Join(c.Root, "storage")
}

func (c Config) CacheDir() string {
	return filepath.Join(c.Root, "cache")
}

func (c Config) OverlayDir() string {
	return filepath.Join(c.Root, "overlays")
}

func (c Config) MaskDir() string {
	if c.MasksDir != "" {
		return c.MasksDir
	}
	return filepath.Join(c.Root, "masks")
}

func (c Config) DefaultImagerySourceMode() types.ImagerySourceMode {
	return types.ImagerySourceMode(c.DefaultImagerySource)
}
