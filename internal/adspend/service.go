package adspend

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/lucalabs/luca-backend/internal/integrations"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

const defaultSyncDays = 7

type credentialSource interface {
	Credentials(ctx context.Context, integration *models.Integration) (integrations.TokenSet, error)
}

type tokenRefresher interface {
	RefreshTokens(ctx context.Context, integration *models.Integration) (integrations.TokenSet, error)
}

// ServiceParams wires the spend sync dependencies.
type ServiceParams struct {
	Repo        Repository
	Clients     []SpendClient
	Credentials credentialSource
	Refresher   tokenRefresher
	SyncDays    int
	Logger      *logger.Logger
	Now         func() time.Time
}

// Service pulls daily spend from the ad platforms into AdSpendDaily rows.
// Expired tokens are refreshed lazily: the first 401 triggers one refresh
// through the single-flight connector and one retry.
type Service struct {
	repo        Repository
	clients     map[enums.Platform]SpendClient
	credentials credentialSource
	refresher   tokenRefresher
	syncDays    int
	logg        *logger.Logger
	now         func() time.Time
}

// SyncStats summarizes one sync pass.
type SyncStats struct {
	Integrations int
	Rows         int
	Failed       int
}

// NewService validates dependencies and builds the spend sync service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ad spend repo required")
	}
	if len(params.Clients) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "spend clients required")
	}
	if params.Credentials == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credential source required")
	}
	if params.Refresher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "token refresher required")
	}
	clients := make(map[enums.Platform]SpendClient, len(params.Clients))
	for _, client := range params.Clients {
		clients[client.Platform()] = client
	}
	syncDays := params.SyncDays
	if syncDays <= 0 {
		syncDays = defaultSyncDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:        params.Repo,
		clients:     clients,
		credentials: params.Credentials,
		refresher:   params.Refresher,
		syncDays:    syncDays,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// SyncAll pulls spend for every active ad platform integration. One failing
// integration never blocks the rest; failures are combined into one error.
func (s *Service) SyncAll(ctx context.Context) (*SyncStats, error) {
	platforms := make([]enums.Platform, 0, len(s.clients))
	for platform := range s.clients {
		platforms = append(platforms, platform)
	}

	syncable, err := s.repo.ListSyncable(ctx, platforms)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list syncable integrations")
	}

	stats := &SyncStats{}
	var errs error
	for _, integration := range syncable {
		stats.Integrations++
		rows, err := s.SyncIntegration(ctx, integration)
		if err != nil {
			stats.Failed++
			errs = multierr.Append(errs, err)
			s.error(s.withIntegration(ctx, integration), "adspend.sync_failed", err)
			continue
		}
		stats.Rows += rows
	}
	return stats, errs
}

// SyncIntegration pulls the trailing window of daily spend for one account
// and upserts it on the (tenant, date, platform, account) bucket.
func (s *Service) SyncIntegration(ctx context.Context, integration *models.Integration) (int, error) {
	client, ok := s.clients[integration.Platform]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeConfig, "no spend client for platform "+integration.Platform.String())
	}

	tokens, err := s.credentials.Credentials(ctx, integration)
	if err != nil {
		return 0, err
	}

	syncedAt := s.now().UTC()
	to := dateOf(syncedAt)
	from := to.AddDate(0, 0, -(s.syncDays - 1))

	spend, err := client.DailySpend(ctx, tokens.AccessToken, integration.AccountID, from, to)
	if err != nil {
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
			return 0, err
		}
		refreshed, refreshErr := s.refresher.RefreshTokens(ctx, integration)
		if refreshErr != nil {
			return 0, refreshErr
		}
		spend, err = client.DailySpend(ctx, refreshed.AccessToken, integration.AccountID, from, to)
		if err != nil {
			return 0, err
		}
	}

	for _, day := range spend {
		row := &models.AdSpendDaily{
			TenantID:      integration.TenantID,
			IntegrationID: integration.ID,
			Platform:      integration.Platform,
			AccountID:     integration.AccountID,
			Date:          dateOf(day.Date),
			Spend:         day.Spend,
			Impressions:   day.Impressions,
			Clicks:        day.Clicks,
			Currency:      day.Currency,
			SyncedAt:      syncedAt,
		}
		if err := s.repo.UpsertSpend(ctx, row); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert spend row")
		}
	}

	if err := s.repo.StampLastSync(ctx, integration.ID, syncedAt); err != nil {
		return len(spend), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp last sync")
	}
	return len(spend), nil
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) withIntegration(ctx context.Context, integration *models.Integration) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithTenantID(ctx, integration.TenantID.String())
	return s.logg.WithPlatform(ctx, integration.Platform.String())
}

func (s *Service) error(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(ctx, msg, err)
}
