package cron

import (
	"context"
	"fmt"

	"github.com/lucalabs/luca-backend/internal/adspend"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

// SpendSyncJobParams configure the ad spend sync job.
type SpendSyncJobParams struct {
	Logger *logger.Logger
	Syncer spendSyncer
}

type spendSyncer interface {
	SyncAll(ctx context.Context) (*adspend.SyncStats, error)
}

// NewSpendSyncJob builds the job that pulls daily spend from the ad
// platforms. Individual integration failures are logged and reported but
// never stop the rest of the pass.
func NewSpendSyncJob(params SpendSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("spend syncer required")
	}
	return &spendSyncJob{
		logg:   params.Logger,
		syncer: params.Syncer,
	}, nil
}

type spendSyncJob struct {
	logg   *logger.Logger
	syncer spendSyncer
}

func (j *spendSyncJob) Name() string { return "ad-spend-sync" }

func (j *spendSyncJob) Run(ctx context.Context) error {
	stats, err := j.syncer.SyncAll(ctx)
	if stats != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"integrations": stats.Integrations,
			"rows":         stats.Rows,
			"failed":       stats.Failed,
		})
		j.logg.Info(logCtx, "ad spend sync complete")
	}
	if err != nil {
		return fmt.Errorf("ad spend sync: %w", err)
	}
	return nil
}
