package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/varsitymarkets/campusmarket/internal/directory"
	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// ArchiveTrigger lets the resolution path nudge the archiver without waiting
// for its next scheduled pass.
type ArchiveTrigger interface {
	Nudge()
}

// ResolutionService commits a market's final outcome exactly once. The admin
// gate is a claim check against the account directory, not a username
// comparison.
type ResolutionService struct {
	ledger   domain.Ledger
	dir      directory.Directory
	cache    domain.SeriesCache // may be nil
	bus      domain.SignalBus   // may be nil
	archiver ArchiveTrigger     // may be nil
	logger   *slog.Logger
}

// NewResolutionService creates a ResolutionService. cache, bus, and archiver
// are optional.
func NewResolutionService(
	ledger domain.Ledger,
	dir directory.Directory,
	cache domain.SeriesCache,
	bus domain.SignalBus,
	archiver ArchiveTrigger,
	logger *slog.Logger,
) *ResolutionService {
	return &ResolutionService{
		ledger:   ledger,
		dir:      dir,
		cache:    cache,
		bus:      bus,
		archiver: archiver,
		logger:   logger,
	}
}

// Resolve fixes the market's outcome. It fails with ErrForbidden for callers
// without the admin claim, ErrNotFound for unknown markets, and
// ErrAlreadyResolved when the market is no longer open; a rejected call never
// alters the stored outcome.
func (s *ResolutionService) Resolve(ctx context.Context, marketID int64, outcome domain.Outcome, username string) (domain.Market, error) {
	id, err := s.dir.Lookup(ctx, username)
	if err != nil {
		return domain.Market{}, fmt.Errorf("resolution_service: lookup %q: %w", username, err)
	}
	if !id.Admin {
		return domain.Market{}, domain.ErrForbidden
	}

	m, err := s.ledger.Resolve(ctx, marketID, outcome)
	if err != nil {
		return domain.Market{}, fmt.Errorf("resolution_service: resolve market %d: %w", marketID, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, marketID); err != nil {
			s.logger.WarnContext(ctx, "resolution_service: cache invalidate failed",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(domain.ResolutionEvent{MarketID: m.ID, Outcome: outcome})
		if err == nil {
			if err := s.bus.Publish(ctx, domain.ChannelResolutions, payload); err != nil {
				s.logger.WarnContext(ctx, "resolution_service: publish resolution event failed",
					slog.Int64("market_id", marketID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if s.archiver != nil {
		s.archiver.Nudge()
	}

	s.logger.InfoContext(ctx, "resolution_service: market resolved",
		slog.Int64("market_id", m.ID),
		slog.String("outcome", string(outcome)),
		slog.String("resolved_by", username),
	)
	return m, nil
}
