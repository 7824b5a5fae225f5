package cron

import (
	"context"
	"fmt"

	"github.com/lucalabs/luca-backend/internal/attribution"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

// AttributionSweepJobParams configure the attribution sweep job.
type AttributionSweepJobParams struct {
	Logger *logger.Logger
	Engine attributionSweeper
}

type attributionSweeper interface {
	Sweep(ctx context.Context) (*attribution.SweepStats, error)
}

// NewAttributionSweepJob builds the job that matches pending purchases
// against stored clicks.
func NewAttributionSweepJob(params AttributionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("attribution engine required")
	}
	return &attributionSweepJob{
		logg:   params.Logger,
		engine: params.Engine,
	}, nil
}

type attributionSweepJob struct {
	logg   *logger.Logger
	engine attributionSweeper
}

func (j *attributionSweepJob) Name() string { return "attribution-sweep" }

func (j *attributionSweepJob) Run(ctx context.Context) error {
	stats, err := j.engine.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("attribution sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"examined":  stats.Examined,
		"matched":   stats.Matched,
		"unmatched": stats.Unmatched,
		"skipped":   stats.Skipped,
	})
	j.logg.Info(logCtx, "attribution sweep complete")
	return nil
}
