package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// HistoryService is the read side of the ledger. It holds no state of its
// own: every view is recomputed from the bet log, with an optional cache in
// front of the count series.
type HistoryService struct {
	ledger domain.Ledger
	cache  domain.SeriesCache // may be nil
	logger *slog.Logger
}

// NewHistoryService creates a HistoryService. cache is optional.
func NewHistoryService(ledger domain.Ledger, cache domain.SeriesCache, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		ledger: ledger,
		cache:  cache,
		logger: logger,
	}
}

// CountSeries returns the market's cumulative (yes, no) tally, one point per
// bet in sequence order. A market with no bets yields a single zero point so
// charting never receives an empty series.
func (s *HistoryService) CountSeries(ctx context.Context, marketID int64) ([]domain.SeriesPoint, error) {
	if s.cache != nil {
		series, err := s.cache.Get(ctx, marketID)
		if err == nil {
			return series, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "history_service: cache get failed",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	bets, err := s.ledger.BetsForMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("history_service: bets for market %d: %w", marketID, err)
	}

	series := make([]domain.SeriesPoint, 0, len(bets)+1)
	var point domain.SeriesPoint
	for _, b := range bets {
		if b.Side == domain.SideYes {
			point.Yes++
		} else {
			point.No++
		}
		series = append(series, point)
	}
	if len(series) == 0 {
		series = append(series, domain.SeriesPoint{})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, marketID, series); err != nil {
			s.logger.WarnContext(ctx, "history_service: cache set failed",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	return series, nil
}

// UserHistory replays the user's bets into chronological positions, grouped
// by market in ID order.
func (s *HistoryService) UserHistory(ctx context.Context, user string) ([]domain.Position, error) {
	bets, err := s.ledger.BetsForUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("history_service: bets for user %q: %w", user, err)
	}

	positions := make([]domain.Position, 0, len(bets))
	for _, b := range bets {
		positions = append(positions, domain.Position{
			MarketID: b.MarketID,
			Side:     b.Side,
			Seq:      b.Seq,
		})
	}
	return positions, nil
}

// GroupedHistory is UserHistory reshaped for the history endpoint: market ID
// (as a decimal string, matching the JSON object keys the gateway expects)
// mapped to the user's sides in the order placed. A user with no bets yields
// an empty, non-nil map.
func (s *HistoryService) GroupedHistory(ctx context.Context, user string) (map[string][]domain.Side, error) {
	positions, err := s.UserHistory(ctx, user)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]domain.Side)
	for _, p := range positions {
		key := strconv.FormatInt(p.MarketID, 10)
		grouped[key] = append(grouped[key], p.Side)
	}
	return grouped, nil
}
