package attribution

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/pkg/config"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

// windowCap bounds tenant-configured attribution windows.
const windowCap = 28 * 24 * time.Hour

const (
	defaultBatchSize = 200
	candidateLimit   = 25
)

var (
	confidenceClickID = decimal.RequireFromString("0.95")
	confidenceUTMBase = decimal.RequireFromString("0.70")
	confidenceUTMStep = decimal.RequireFromString("0.05")
	confidenceUTMMax  = decimal.RequireFromString("0.85")
	confidenceDecayLo = decimal.RequireFromString("0.30")
	confidenceDecayHi = decimal.RequireFromString("0.20")
)

var (
	errClaimLost      = errors.New("touchpoint claimed by another conversion")
	errAlreadyClaimed = errors.New("conversion claimed by another sweeper")
)

// referrerPlatforms maps known advertising referrer domains to the platform
// they belong to. Click-redirect domains score higher than organic surfaces.
var (
	referrerDirect  = decimal.RequireFromString("0.70")
	referrerOrganic = decimal.RequireFromString("0.50")
)

var referrerPlatforms = map[string]referrerRule{
	"l.facebook.com":        {platform: enums.PlatformMeta, confidence: referrerDirect},
	"lm.facebook.com":       {platform: enums.PlatformMeta, confidence: referrerDirect},
	"facebook.com":          {platform: enums.PlatformMeta, confidence: referrerOrganic},
	"instagram.com":         {platform: enums.PlatformMeta, confidence: referrerOrganic},
	"l.instagram.com":       {platform: enums.PlatformMeta, confidence: referrerDirect},
	"googleadservices.com":  {platform: enums.PlatformGoogle, confidence: referrerDirect},
	"googlesyndication.com": {platform: enums.PlatformGoogle, confidence: referrerDirect},
	"google.com":            {platform: enums.PlatformGoogle, confidence: referrerOrganic},
	"youtube.com":           {platform: enums.PlatformGoogle, confidence: referrerOrganic},
	"tiktok.com":            {platform: enums.PlatformTikTok, confidence: referrerOrganic},
	"ads.tiktok.com":        {platform: enums.PlatformTikTok, confidence: referrerDirect},
	"snapchat.com":          {platform: enums.PlatformSnapchat, confidence: referrerOrganic},
}

type referrerRule struct {
	platform   enums.Platform
	confidence decimal.Decimal
}

type transactionRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SweepStats summarizes one pass over the pending backlog.
type SweepStats struct {
	Examined  int
	Matched   int
	Unmatched int
	Skipped   int
}

// EngineParams wires the sweep dependencies.
type EngineParams struct {
	Repo      Repository
	Tx        transactionRunner
	Config    config.AttributionConfig
	BatchSize int
	Logger    *logger.Logger
	Now       func() time.Time
}

// Engine links pending purchases to the advertising click that caused them,
// walking the fallback hierarchy in order. Every write is a conditional claim
// so concurrent sweeps never double-attribute.
type Engine struct {
	repo      Repository
	tx        transactionRunner
	cfg       config.AttributionConfig
	batchSize int
	logg      *logger.Logger
	now       func() time.Time
}

// NewEngine validates dependencies and builds the sweep engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "attribution repo required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		repo:      params.Repo,
		tx:        params.Tx,
		cfg:       params.Config,
		batchSize: batchSize,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Sweep examines one batch of pending purchases. Safe to run from multiple
// workers at once; losing a claim race is counted as skipped, not failed.
func (e *Engine) Sweep(ctx context.Context) (*SweepStats, error) {
	pending, err := e.repo.ListPending(ctx, e.batchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending purchases")
	}

	stats := &SweepStats{}
	for _, event := range pending {
		stats.Examined++
		outcome, err := e.attribute(ctx, event)
		if err != nil {
			e.error(e.withEvent(ctx, event), "attribution.event_failed", err)
			continue
		}
		switch outcome {
		case outcomeMatched:
			stats.Matched++
		case outcomeUnmatched:
			stats.Unmatched++
		case outcomeSkipped:
			stats.Skipped++
		}
	}
	return stats, nil
}

type sweepOutcome int

const (
	outcomeStillPending sweepOutcome = iota
	outcomeMatched
	outcomeUnmatched
	outcomeSkipped
)

func (e *Engine) attribute(ctx context.Context, event *models.PixelEvent) (sweepOutcome, error) {
	windows, err := e.resolveWindows(ctx, event)
	if err != nil {
		return outcomeStillPending, err
	}

	candidates, err := e.findCandidates(ctx, event, windows)
	if err != nil {
		return outcomeStillPending, err
	}

	for _, candidate := range candidates {
		claimed, err := e.claim(ctx, event, candidate)
		if err != nil {
			return outcomeStillPending, err
		}
		switch claimed {
		case claimWon:
			e.info(e.withEvent(ctx, event), "attribution.matched", string(candidate.outcome.Method))
			return outcomeMatched, nil
		case claimEventLost:
			// another sweeper finished this purchase
			return outcomeSkipped, nil
		case claimClickLost:
			continue
		}
	}

	// no tier produced a match; expire the purchase once the longest window passed
	if e.now().Sub(event.OccurredAt) > e.maxWindow() {
		marked, err := e.repo.MarkUnmatched(ctx, event.ID)
		if err != nil {
			return outcomeStillPending, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark unmatched")
		}
		if !marked {
			return outcomeSkipped, nil
		}
		return outcomeUnmatched, nil
	}
	return outcomeStillPending, nil
}

// candidate is one potential attribution, in fallback order. Referrer matches
// carry no click record.
type candidate struct {
	outcome MatchOutcome
	click   *models.ClickRecord
}

func (e *Engine) findCandidates(ctx context.Context, event *models.PixelEvent, windows attributionWindows) ([]candidate, error) {
	until := event.OccurredAt
	var candidates []candidate

	// tier 1: platform click identifier
	if event.ClickID != nil && event.Platform != nil {
		click, err := e.repo.FindClickByClickID(ctx, event.TenantID, *event.Platform, *event.ClickID, until.Add(-windows.click), until)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find click by id")
		}
		if click != nil {
			candidates = append(candidates, candidate{
				outcome: e.outcome(enums.AttributionMethodClickID, confidenceClickID, click),
				click:   click,
			})
		}
	}

	// tier 2: UTM equality on the fields the session carries
	if event.UTMSource != nil {
		clicks, err := e.repo.FindClicksByUTM(ctx, event.TenantID, event.UTMSource, event.UTMMedium, event.UTMCampaign, until.Add(-windows.click), until, candidateLimit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find clicks by utm")
		}
		confidence := utmConfidence(event)
		for _, click := range clicks {
			candidates = append(candidates, candidate{
				outcome: e.outcome(enums.AttributionMethodUTM, confidence, click),
				click:   click,
			})
		}
	}

	if len(candidates) > 0 {
		return candidates, nil
	}

	// tier 3: referrer domain names a known ad platform, no click available
	if event.ReferrerDomain != nil {
		if rule, ok := referrerPlatforms[*event.ReferrerDomain]; ok {
			platform := rule.platform
			candidates = append(candidates, candidate{
				outcome: MatchOutcome{
					Method:     enums.AttributionMethodReferrer,
					Confidence: rule.confidence,
					Platform:   &platform,
					MatchedAt:  e.now(),
				},
			})
			return candidates, nil
		}
	}

	// tier 4: time decay over recent touchpoints, trusted only inside the
	// short view window
	clicks, err := e.repo.ListCandidateClicks(ctx, event.TenantID, until.Add(-windows.view), until, candidateLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list candidate clicks")
	}
	for _, click := range clicks {
		age := until.Sub(click.OccurredAt)
		recency := 1 - float64(age)/float64(windows.view)
		if recency < 0 {
			recency = 0
		}
		confidence := confidenceDecayLo.Add(confidenceDecayHi.Mul(decimal.NewFromFloat(recency)))
		candidates = append(candidates, candidate{
			outcome: e.outcome(enums.AttributionMethodTimeDecay, confidence, click),
			click:   click,
		})
	}
	return candidates, nil
}

func (e *Engine) outcome(method enums.AttributionMethod, confidence decimal.Decimal, click *models.ClickRecord) MatchOutcome {
	clickID := click.ID
	return MatchOutcome{
		Method:     method,
		Confidence: confidence,
		Platform:   click.Platform,
		ClickID:    &clickID,
		MatchedAt:  e.now(),
	}
}

// utmConfidence starts at the base and rewards each additional UTM field the
// session carries beyond the source.
func utmConfidence(event *models.PixelEvent) decimal.Decimal {
	confidence := confidenceUTMBase
	if event.UTMMedium != nil {
		confidence = confidence.Add(confidenceUTMStep)
	}
	if event.UTMCampaign != nil {
		confidence = confidence.Add(confidenceUTMStep)
	}
	if confidence.GreaterThan(confidenceUTMMax) {
		confidence = confidenceUTMMax
	}
	return confidence
}

type claimResult int

const (
	claimWon claimResult = iota
	claimEventLost
	claimClickLost
)

// claim takes the click and the purchase in one transaction. Losing either
// conditional update rolls the whole claim back.
func (e *Engine) claim(ctx context.Context, event *models.PixelEvent, cand candidate) (claimResult, error) {
	var result claimResult
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)

		if cand.click != nil {
			won, err := repo.ClaimClick(ctx, cand.click.ID, event.OrderID, event.OrderValue, cand.outcome.MatchedAt)
			if err != nil {
				return err
			}
			if !won {
				return errClaimLost
			}
		}

		won, err := repo.ClaimPurchase(ctx, event.ID, cand.outcome)
		if err != nil {
			return err
		}
		if !won {
			return errAlreadyClaimed
		}
		result = claimWon
		return nil
	})
	if err != nil {
		if errors.Is(err, errClaimLost) {
			return claimClickLost, nil
		}
		if errors.Is(err, errAlreadyClaimed) {
			return claimEventLost, nil
		}
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim attribution")
	}
	return result, nil
}

type attributionWindows struct {
	click time.Duration
	view  time.Duration
}

// resolveWindows applies the tenant's per-integration overrides, capped at 28
// days, falling back to the configured defaults.
func (e *Engine) resolveWindows(ctx context.Context, event *models.PixelEvent) (attributionWindows, error) {
	windows := attributionWindows{
		click: capWindow(e.cfg.ClickWindow),
		view:  capWindow(e.cfg.ViewWindow),
	}
	if event.Platform == nil {
		return windows, nil
	}
	integration, err := e.repo.FindIntegration(ctx, event.TenantID, *event.Platform)
	if err != nil {
		return windows, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve attribution windows")
	}
	if integration == nil {
		return windows, nil
	}
	if integration.ClickWindowHr != nil && *integration.ClickWindowHr > 0 {
		windows.click = capWindow(time.Duration(*integration.ClickWindowHr) * time.Hour)
	}
	if integration.ViewWindowHr != nil && *integration.ViewWindowHr > 0 {
		windows.view = capWindow(time.Duration(*integration.ViewWindowHr) * time.Hour)
	}
	return windows, nil
}

func capWindow(window time.Duration) time.Duration {
	if window <= 0 {
		return time.Hour
	}
	if window > windowCap {
		return windowCap
	}
	return window
}

func (e *Engine) maxWindow() time.Duration {
	if e.cfg.MaxWindow > 0 {
		return e.cfg.MaxWindow
	}
	return windowCap
}

func (e *Engine) withEvent(ctx context.Context, event *models.PixelEvent) context.Context {
	if e.logg == nil {
		return ctx
	}
	ctx = e.logg.WithTenantID(ctx, event.TenantID.String())
	return e.logg.WithField(ctx, "pixel_event_id", event.ID.String())
}

func (e *Engine) info(ctx context.Context, msg, method string) {
	if e.logg == nil {
		return
	}
	e.logg.Info(e.logg.WithField(ctx, "method", method), msg)
}

func (e *Engine) error(ctx context.Context, msg string, err error) {
	if e.logg == nil {
		return
	}
	e.logg.Error(ctx, msg, err)
}
