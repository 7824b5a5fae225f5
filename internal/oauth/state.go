package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

const stateEntropyBytes = 32

// StateRepository persists single-use OAuth CSRF states.
type StateRepository struct {
	db *gorm.DB
}

// NewStateRepository constructs a state repository tied to the provided GORM DB.
func NewStateRepository(db *gorm.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Create inserts a pending state row.
func (r *StateRepository) Create(ctx context.Context, state *models.OAuthState) (*models.OAuthState, error) {
	if err := r.db.WithContext(ctx).Create(state).Error; err != nil {
		return nil, err
	}
	return state, nil
}

// Consume atomically deletes the row for state and returns it. Expired rows
// never match, so correctness does not depend on sweep timing. Concurrent
// consumes of the same state produce one winner; the rest see RecordNotFound.
func (r *StateRepository) Consume(ctx context.Context, state string, now time.Time) (*models.OAuthState, error) {
	var rows []models.OAuthState
	res := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("state = ? AND expires_at > ?", state, now).
		Delete(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// SweepExpired deletes rows past their TTL and reports how many went away.
func (r *StateRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.OAuthState{})
	return res.RowsAffected, res.Error
}

// StateStore issues and consumes single-use CSRF states with a bounded TTL.
type StateStore struct {
	repo *StateRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewStateStore validates dependencies and builds the store.
func NewStateStore(repo *StateRepository, ttl time.Duration, now func() time.Time) (*StateStore, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "state repository required")
	}
	if ttl <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "state ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &StateStore{repo: repo, ttl: ttl, now: now}, nil
}

// Create mints a random state (256 bits of entropy) bound to
// {tenant, user, platform} and persists it with the configured TTL.
func (s *StateStore) Create(ctx context.Context, tenantID, userID uuid.UUID, platform enums.Platform, shopDomain *string) (string, error) {
	if tenantID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	buf := make([]byte, stateEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate state")
	}
	value := base64.RawURLEncoding.EncodeToString(buf)

	row := &models.OAuthState{
		State:      value,
		TenantID:   tenantID,
		UserID:     userID,
		Platform:   platform,
		ShopDomain: shopDomain,
		ExpiresAt:  s.now().Add(s.ttl),
	}
	if _, err := s.repo.Create(ctx, row); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist oauth state")
	}
	return value, nil
}

// Consume redeems a state exactly once. Unknown, already-consumed, and
// expired states are indistinguishable to the caller: NOT_FOUND.
func (s *StateStore) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	if state == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state is required")
	}
	row, err := s.repo.Consume(ctx, state, s.now())
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "oauth state not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume oauth state")
	}
	return row, nil
}

// SweepExpired removes expired rows.
func (s *StateStore) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.SweepExpired(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sweep oauth states")
	}
	return removed, nil
}
