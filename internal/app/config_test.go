package app

import (
	"testing"
	"time"

	"github.com/harshaverse/karmic/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(logger.NewNop())
	if cfg.Port != "8000" {
		t.Fatalf("unexpected default port %q", cfg.Port)
	}
	if cfg.QuotaBytes != 200*1024*1024 {
		t.Fatalf("unexpected default quota %d", cfg.QuotaBytes)
	}
	if cfg.MaxUploadBytes != 50*1024*1024 {
		t.Fatalf("unexpected default upload cap %d", cfg.MaxUploadBytes)
	}
	if cfg.IdleTTL != 30*time.Minute {
		t.Fatalf("unexpected default TTL %v", cfg.IdleTTL)
	}
	if cfg.Voxel.BaseResolution != 64 || cfg.Voxel.MaxResolution != 256 {
		t.Fatalf("unexpected voxel policy %+v", cfg.Voxel)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("QUOTA_BYTES", "1048576")
	t.Setenv("IDLE_TTL", "5m")
	t.Setenv("VOXEL_BASE_RESOLUTION", "32")
	t.Setenv("VOXEL_ESCALATE_TRIANGLES", "5000")
	cfg := LoadConfig(logger.NewNop())
	if cfg.Port != "9090" {
		t.Fatalf("PORT override ignored: %q", cfg.Port)
	}
	if cfg.QuotaBytes != 1048576 {
		t.Fatalf("QUOTA_BYTES override ignored: %d", cfg.QuotaBytes)
	}
	if cfg.IdleTTL != 5*time.Minute {
		t.Fatalf("IDLE_TTL override ignored: %v", cfg.IdleTTL)
	}
	if cfg.Voxel.BaseResolution != 32 {
		t.Fatalf("VOXEL_BASE_RESOLUTION override ignored: %d", cfg.Voxel.BaseResolution)
	}
	if cfg.Voxel.EscalateTriangles != 5000 {
		t.Fatalf("VOXEL_ESCALATE_TRIANGLES override ignored: %d", cfg.Voxel.EscalateTriangles)
	}
}
