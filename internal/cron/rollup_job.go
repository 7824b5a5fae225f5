package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/lucalabs/luca-backend/pkg/logger"
)

const defaultRollupDays = 35

// RollupJobParams configure the daily metrics rollup job.
type RollupJobParams struct {
	Logger     *logger.Logger
	Tenants    activeTenantLister
	Rollup     metricsRoller
	RollupDays int
}

type activeTenantLister interface {
	ListTenantsWithEvents(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

type metricsRoller interface {
	Rollup(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error)
}

// NewRollupJob builds the job that recomputes daily metric snapshots for
// every tenant with recent financial activity. The window trails today so
// late webhooks and refunds land in already-computed days.
func NewRollupJob(params RollupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant lister required")
	}
	if params.Rollup == nil {
		return nil, fmt.Errorf("rollup service required")
	}
	days := params.RollupDays
	if days <= 0 {
		days = defaultRollupDays
	}
	return &rollupJob{
		logg:    params.Logger,
		tenants: params.Tenants,
		rollup:  params.Rollup,
		days:    days,
		now:     time.Now,
	}, nil
}

type rollupJob struct {
	logg    *logger.Logger
	tenants activeTenantLister
	rollup  metricsRoller
	days    int
	now     func() time.Time
}

func (j *rollupJob) Name() string { return "metrics-rollup" }

func (j *rollupJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -(j.days - 1))

	tenants, err := j.tenants.ListTenantsWithEvents(ctx, from)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}

	snapshots := 0
	var errs error
	for _, tenantID := range tenants {
		written, err := j.rollup.Rollup(ctx, tenantID, from, to)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rollup tenant %s: %w", tenantID, err))
			logCtx := j.logg.WithTenantID(ctx, tenantID.String())
			j.logg.Error(logCtx, "metrics rollup failed for tenant", err)
			continue
		}
		snapshots += written
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"tenants":   len(tenants),
		"snapshots": snapshots,
		"from":      from.Format("2006-01-02"),
		"to":        to.Format("2006-01-02"),
	})
	j.logg.Info(logCtx, "metrics rollup complete")
	return errs
}
