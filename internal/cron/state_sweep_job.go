package cron

import (
	"context"
	"fmt"

	"github.com/lucalabs/luca-backend/pkg/logger"
)

// StateSweepJobParams configure the OAuth state cleanup job.
type StateSweepJobParams struct {
	Logger *logger.Logger
	States stateSweeper
}

type stateSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// NewStateSweepJob builds the job that deletes expired OAuth handshake
// states. Expired states are already rejected on consume; the sweep only
// keeps the table from growing.
func NewStateSweepJob(params StateSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.States == nil {
		return nil, fmt.Errorf("state store required")
	}
	return &stateSweepJob{
		logg:   params.Logger,
		states: params.States,
	}, nil
}

type stateSweepJob struct {
	logg   *logger.Logger
	states stateSweeper
}

func (j *stateSweepJob) Name() string { return "oauth-state-sweep" }

func (j *stateSweepJob) Run(ctx context.Context) error {
	removed, err := j.states.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("oauth state sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"rows_deleted": removed})
	j.logg.Info(logCtx, "oauth state sweep complete")
	return nil
}
