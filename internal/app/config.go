package app

import (
	"time"

	"github.com/harshaverse/karmic/internal/platform/envutil"
	"github.com/harshaverse/karmic/internal/platform/logger"
	"github.com/harshaverse/karmic/internal/voxel"
)

// Config carries every tunable of the service. The voxel resolution formula
// and the simplification targets are deliberately configuration, not
// constants: there is no single value that suits all inputs.
type Config struct {
	Port    string
	LogMode string

	ScratchRoot    string
	QuotaBytes     int64
	MaxUploadBytes int64
	IdleTTL        time.Duration
	JanitorPeriod  time.Duration

	WorkerConcurrency int
	JobQueueSize      int

	Voxel voxel.ResolutionPolicy

	// Simplification kicks in above SimplifyThreshold triangles; the target
	// is count*SimplifyTargetRatio capped at SimplifyMaxTriangles.
	SimplifyThreshold    int
	SimplifyTargetRatio  float64
	SimplifyMaxTriangles int

	// Weld epsilon as a fraction of the bounding-box diagonal, and the
	// factor applied on the single local repair retry.
	RepairEpsilonFrac  float64
	RepairRetryFactor  float64
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:           envutil.Str("PORT", "8000"),
		LogMode:        envutil.Str("LOG_MODE", "development"),
		ScratchRoot:    envutil.Str("SCRATCH_ROOT", "/tmp/karmic-scratch"),
		QuotaBytes:     envutil.Int64("QUOTA_BYTES", 200*1024*1024),
		MaxUploadBytes: envutil.Int64("MAX_UPLOAD_BYTES", 50*1024*1024),
		IdleTTL:        envutil.Duration("IDLE_TTL", 30*time.Minute),
		JanitorPeriod:  envutil.Duration("JANITOR_PERIOD", time.Minute),

		WorkerConcurrency: envutil.Int("WORKER_CONCURRENCY", 4),
		JobQueueSize:      envutil.Int("JOB_QUEUE_SIZE", 128),

		Voxel: voxel.ResolutionPolicy{
			BaseResolution:    envutil.Int("VOXEL_BASE_RESOLUTION", 64),
			MaxResolution:     envutil.Int("VOXEL_MAX_RESOLUTION", 256),
			EscalateTriangles: envutil.Int("VOXEL_ESCALATE_TRIANGLES", 20000),
			MaxVoxelCount:     envutil.Int64("VOXEL_MAX_COUNT", 48*1024*1024),
		},

		SimplifyThreshold:    envutil.Int("SIMPLIFY_THRESHOLD", 50000),
		SimplifyTargetRatio:  envutil.Float("SIMPLIFY_TARGET_RATIO", 0.5),
		SimplifyMaxTriangles: envutil.Int("SIMPLIFY_MAX_TRIANGLES", 20000),

		RepairEpsilonFrac: envutil.Float("REPAIR_EPSILON_FRAC", 1e-6),
		RepairRetryFactor: envutil.Float("REPAIR_RETRY_FACTOR", 10),
	}
	log.Info("Config loaded",
		"port", cfg.Port,
		"scratch_root", cfg.ScratchRoot,
		"quota_bytes", cfg.QuotaBytes,
		"worker_concurrency", cfg.WorkerConcurrency,
		"voxel_base_resolution", cfg.Voxel.BaseResolution,
	)
	return cfg
}
