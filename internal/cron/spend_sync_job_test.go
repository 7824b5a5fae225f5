package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/lucalabs/luca-backend/internal/adspend"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

type stubSpendSyncer struct {
	stats *adspend.SyncStats
	err   error
}

func (s *stubSpendSyncer) SyncAll(context.Context) (*adspend.SyncStats, error) {
	return s.stats, s.err
}

func TestSpendSyncJobReportsStats(t *testing.T) {
	job, err := NewSpendSyncJob(SpendSyncJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Syncer: &stubSpendSyncer{stats: &adspend.SyncStats{Integrations: 3, Rows: 21}},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "ad-spend-sync" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestSpendSyncJobSurfacesPartialFailure(t *testing.T) {
	job, err := NewSpendSyncJob(SpendSyncJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Syncer: &stubSpendSyncer{
			stats: &adspend.SyncStats{Integrations: 2, Rows: 7, Failed: 1},
			err:   errors.New("one integration failed"),
		},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("partial failures must surface to the cron loop")
	}
}
