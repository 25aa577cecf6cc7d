package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yangsenessa/univoice-dapp/internal/metrics"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// Checkpointer compacts persistent storage to its live contents.
type Checkpointer interface {
	Checkpoint() error
}

// CheckpointRunner compacts the arena on a cron schedule so region logs
// do not grow without bound.
type CheckpointRunner struct {
	target  Checkpointer
	spec    string
	cron    *cron.Cron
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewCheckpointRunner creates a runner with a cron spec such as
// "@every 10m".
func NewCheckpointRunner(target Checkpointer, spec string, m *metrics.Metrics, log *logger.Logger) *CheckpointRunner {
	if log == nil {
		log = logger.NewDefault("checkpoint")
	}
	if spec == "" {
		spec = "@every 10m"
	}
	return &CheckpointRunner{target: target, spec: spec, log: log, metrics: m}
}

// Name implements system.Service.
func (r *CheckpointRunner) Name() string { return "arena-checkpoint" }

// Start schedules the checkpoints.
func (r *CheckpointRunner) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.spec, r.run); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	r.log.WithField("spec", r.spec).Info("checkpoint runner started")
	return nil
}

// Stop waits for an in-flight checkpoint to finish.
func (r *CheckpointRunner) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (r *CheckpointRunner) run() {
	start := time.Now()
	if err := r.target.Checkpoint(); err != nil {
		r.log.WithError(err).Error("checkpoint failed")
		return
	}
	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.ObserveCheckpoint(elapsed)
	}
	r.log.WithField("duration", elapsed.String()).Info("checkpoint completed")
}
