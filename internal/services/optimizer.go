package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harshaverse/karmic/internal/app"
	"github.com/harshaverse/karmic/internal/codec"
	"github.com/harshaverse/karmic/internal/glb"
	"github.com/harshaverse/karmic/internal/mesh"
	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
	"github.com/harshaverse/karmic/internal/platform/logger"
	"github.com/harshaverse/karmic/internal/repair"
	"github.com/harshaverse/karmic/internal/session"
	"github.com/harshaverse/karmic/internal/simplify"
	"github.com/harshaverse/karmic/internal/voxel"
)

// Optimizer drives the full pipeline: parse, repair, voxelize, extract the
// outer shell, simplify, repair again, pack as glTF binary.
type Optimizer struct {
	mgr  *session.Manager
	pool *session.Pool
	cfg  app.Config
	log  *logger.Logger
}

func NewOptimizer(mgr *session.Manager, pool *session.Pool, cfg app.Config, log *logger.Logger) *Optimizer {
	return &Optimizer{
		mgr:  mgr,
		pool: pool,
		cfg:  cfg,
		log:  log.With("component", "Optimizer"),
	}
}

// Upload validates an incoming model and admits it as a new session. The
// geometry must parse before any quota is reserved: rejected uploads must
// not consume storage.
func (o *Optimizer) Upload(fileName string, data []byte) (session.Snapshot, error) {
	if int64(len(data)) > o.cfg.MaxUploadBytes {
		return session.Snapshot{}, fmt.Errorf("upload of %d bytes exceeds limit of %d: %w",
			len(data), o.cfg.MaxUploadBytes, kerr.ErrResourceExceeded)
	}
	if _, err := codec.Parse(data, fileName); err != nil {
		return session.Snapshot{}, err
	}
	return o.mgr.Admit(fileName, data)
}

// StartOptimize transitions the session to Processing and hands the run to
// the worker pool. The HTTP caller gets an answer as soon as the state
// change lands; the pipeline runs in the background.
func (o *Optimizer) StartOptimize(id string) error {
	if err := o.mgr.BeginProcessing(id); err != nil {
		return err
	}
	o.pool.Submit(session.Job{
		AssetID: id,
		Run:     func(ctx context.Context) error { return o.run(ctx, id) },
		Fail:    o.mgr.Fail,
	})
	return nil
}

func (o *Optimizer) run(ctx context.Context, id string) error {
	start := time.Now()
	data, fileName, err := o.mgr.ReadUpload(id)
	if err != nil {
		return err
	}
	m, err := codec.Parse(data, fileName)
	if err != nil {
		return err
	}

	m, err = o.repairWithRetry(m)
	if err != nil {
		return err
	}

	resolution := o.cfg.Voxel.ResolutionFor(m.TriangleCount())
	grid, err := voxel.Voxelize(ctx, m, resolution, o.cfg.Voxel.MaxVoxelCount)
	if err != nil {
		return err
	}
	shell, err := voxel.ExtractShell(grid)
	if err != nil {
		return err
	}
	o.log.Info("shell extracted",
		"asset_id", id,
		"resolution", resolution,
		"input_triangles", m.TriangleCount(),
		"shell_triangles", shell.TriangleCount(),
	)

	if shell.TriangleCount() > o.cfg.SimplifyThreshold {
		target := int(float64(shell.TriangleCount()) * o.cfg.SimplifyTargetRatio)
		if target > o.cfg.SimplifyMaxTriangles {
			target = o.cfg.SimplifyMaxTriangles
		}
		shell = simplify.Simplify(shell, target)
	}

	shell, err = o.repairWithRetry(shell)
	if err != nil {
		return err
	}

	art, err := glb.Serialize(shell)
	if err != nil {
		return err
	}
	if err := o.mgr.Complete(id, art.Bytes); err != nil {
		// Complete already moved the session to Failed; nothing to redo.
		return nil
	}
	o.log.Info("optimization finished",
		"asset_id", id,
		"triangles", art.TriangleCount,
		"artifact_bytes", art.ByteLen(),
		"elapsed", time.Since(start),
	)
	return nil
}

// repairWithRetry welds and closes holes at the configured epsilon, retrying
// once with a coarser epsilon when the first pass hits geometry it cannot
// close. Resource limits are never retried.
func (o *Optimizer) repairWithRetry(m *mesh.Mesh) (*mesh.Mesh, error) {
	eps := m.BoundsDiagonal() * o.cfg.RepairEpsilonFrac
	out, err := repair.Repair(m, eps)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, kerr.ErrNonManifoldInput) {
		return nil, err
	}
	return repair.Repair(m, eps*o.cfg.RepairRetryFactor)
}
