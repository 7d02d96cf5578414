package cmd

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"satinel-backend/internal/areas"
	"satinel-backend/internal/config"
	"satinel-backend/internal/core"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/database"
	"satinel-backend/internal/detection"
	"satinel-backend/internal/imagery"
	"satinel-backend/internal/messaging"
	"satinel-backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	LoadEnvFileFrom(configPath)
}

func LoadEnvFileFrom(configPath string) {
	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	if err := godotenv.Load(configPath); err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// InitLogging sends log and slog output to stderr and <root>/satinel.log. The
// returned file must be closed on exit.
func InitLogging(cfg config.Config) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "satinel.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	out := io.MultiWriter(f, os.Stderr)
	log.SetOutput(out)

	level, err := cfg.SlogLevel()
	if err != nil {
		log.Fatalf("invalid log level: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))

	return f
}

func CreateDatabase(cfg config.Config) *gorm.DB {
	db, err := database.NewDatabase(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}

func CreateStorage(ctx context.Context, cfg config.Config) storage.Provider {
	var provider storage.Provider
	switch cfg.StorageType {
	case "s3":
		s3p, err := storage.NewS3Provider(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("failed to create s3 storage provider: %v", err)
		}
		if err := s3p.ValidateAccess(ctx, cfg.ImageryBucket, ""); err != nil {
			slog.Warn("unable to access imagery bucket", "bucket", cfg.ImageryBucket, "error", err)
		}
		provider = s3p
	default:
		local, err := storage.NewLocalProvider(cfg.StorageDir())
		if err != nil {
			log.Fatalf("failed to create local storage provider: %v", err)
		}
		if err := local.CreateBucket(ctx, cfg.ImageryBucket); err != nil {
			log.Fatalf("failed to create imagery bucket: %v", err)
		}
		provider = local
	}

	if cfg.OverlayBucket != "" {
		if err := provider.CreateBucket(ctx, cfg.OverlayBucket); err != nil {
			log.Fatalf("failed to create overlay bucket %s: %v", cfg.OverlayBucket, err)
		}
	}

	return provider
}

// CreateAreaRepository loads areas from AREAS_FILE when set, otherwise from
// the areas table after seeding it with the built in areas.
func CreateAreaRepository(ctx context.Context, cfg config.Config, db *gorm.DB) areas.Repository {
	if cfg.AreasFile != "" {
		repo, err := areas.LoadYAML(cfg.AreasFile)
		if err != nil {
			log.Fatalf("failed to load areas file: %v", err)
		}
		return repo
	}

	if err := areas.SeedAreas(ctx, db, areas.BuiltinAreas()); err != nil {
		log.Fatalf("failed to seed areas: %v", err)
	}

	repo, err := areas.NewDBRepository(ctx, db)
	if err != nil {
		log.Fatalf("failed to load areas: %v", err)
	}
	return repo
}

func CreateResolver(cfg config.Config, repo areas.Repository) *areas.Resolver {
	opts := []areas.ResolverOption{areas.WithSnapThreshold(cfg.SnapThreshold)}
	if cfg.DefaultAreaId != "" {
		opts = append(opts, areas.WithDefaultArea(cfg.DefaultAreaId))
	}
	return areas.NewResolver(repo, opts...)
}

// CreateImagerySource registers the static source and, when configured, the
// dynamic source with static as its fallback.
func CreateImagerySource(cfg config.Config, provider storage.Provider) imagery.Source {
	cache, err := imagery.NewTileCache(cfg.CacheDir())
	if err != nil {
		log.Fatalf("failed to create tile cache: %v", err)
	}

	static := imagery.NewStaticSource(provider, cfg.ImageryBucket, cache)
	router := imagery.NewRouter(cfg.DefaultImagerySourceMode()).
		Register(types.ImageryStatic, static)

	if cfg.DynamicImageryURL != "" {
		dynamic := imagery.NewDynamicSource(cfg.DynamicImageryURL, cfg.SentinelHubAPIKey, cache)
		router.Register(types.ImageryDynamic, imagery.NewFallbackSource(dynamic, static))
	}

	return router
}

func CreateDetector(cfg config.Config) core.DetectionProvider {
	if cfg.SegmentationURL != "" {
		slog.Info("using remote segmentation service", "url", cfg.SegmentationURL)
		return detection.NewSegmentationClient(cfg.SegmentationURL, cfg.TaskTimeout)
	}

	threshold := detection.NewThresholdDetector(cfg.MaskThreshold, cfg.MinBuildingSizePixels)
	if !cfg.UsePrecomputedMasks {
		return threshold
	}
	return detection.NewMaskDetector(cfg.MaskDir(), cfg.MinBuildingSizePixels, threshold)
}

func CreatePipeline(cfg config.Config, resolver *areas.Resolver, source imagery.Source, provider storage.Provider) *core.TaskPipeline {
	opts := []core.PipelineOption{
		core.WithDefaultPrompt(cfg.DefaultPrompt),
		core.WithTaskTimeout(cfg.TaskTimeout),
	}
	if cfg.OverlaysEnabled {
		opts = append(opts, core.WithOverlays(detection.NewOverlayRenderer(cfg.OverlayDir(), provider, cfg.OverlayBucket)))
	}

	return core.NewTaskPipeline(
		resolver,
		source,
		CreateDetector(cfg),
		core.NewChangeMatcher(cfg.IoUThreshold),
		core.NewStatisticsAggregator(cfg.PixelResolutionM),
		opts...,
	)
}

func CreateBatchCoordinator(cfg config.Config, pipeline *core.TaskPipeline) *core.BatchCoordinator {
	return core.NewBatchCoordinator(pipeline, cfg.BatchConcurrency, cfg.HotspotThreshold)
}

// CreateInMemoryQueue republishes jobs left unfinished by a previous run. The
// publishing happens in the background so a backlog larger than the queue
// buffer does not block startup before the processor is consuming.
func CreateInMemoryQueue(db *gorm.DB) *messaging.InMemoryQueue {
	var jobs []database.BatchJob
	if err := db.Where("status IN ?", []string{database.JobQueued, database.JobRunning}).Find(&jobs).Error; err != nil {
		log.Fatalf("failed to fetch queued batch jobs from database: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	if len(jobs) > 0 {
		slog.Info("requeueing unfinished batch jobs", "count", len(jobs))
	}

	go func() {
		for _, job := range jobs {
			if err := queue.PublishBatchTask(context.Background(), messaging.BatchTaskPayload{BatchId: job.Id}); err != nil {
				slog.Error("failed to requeue batch job", "batch_id", job.Id, "error", err)
			}
		}
	}()

	return queue
}
