package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// TradeService records directional bets against the ledger. There is no
// pricing or stake model: a "buy" only appends a YES or NO record.
type TradeService struct {
	ledger domain.Ledger
	cache  domain.SeriesCache // may be nil
	bus    domain.SignalBus   // may be nil
	logger *slog.Logger
}

// NewTradeService creates a TradeService. cache and bus are optional.
func NewTradeService(
	ledger domain.Ledger,
	cache domain.SeriesCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		ledger: ledger,
		cache:  cache,
		bus:    bus,
		logger: logger,
	}
}

// PlaceBet appends a bet to the market's ledger. The ledger enforces that the
// market is open at the instant the sequence number is assigned; the service
// only layers cache invalidation and event fan-out on top.
func (s *TradeService) PlaceBet(ctx context.Context, marketID int64, user string, side domain.Side) (domain.BetRecord, error) {
	rec, err := s.ledger.AppendBet(ctx, marketID, user, side)
	if err != nil {
		return domain.BetRecord{}, fmt.Errorf("trade_service: append bet market %d: %w", marketID, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, marketID); err != nil {
			s.logger.WarnContext(ctx, "trade_service: cache invalidate failed",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
			// Non-fatal: the cache entry expires on its own.
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(domain.BetEvent{
			MarketID: rec.MarketID,
			User:     rec.User,
			Side:     rec.Side,
			Seq:      rec.Seq,
		})
		if err == nil {
			if err := s.bus.Publish(ctx, domain.ChannelBets, payload); err != nil {
				s.logger.WarnContext(ctx, "trade_service: publish bet event failed",
					slog.Int64("market_id", marketID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	s.logger.InfoContext(ctx, "trade_service: bet recorded",
		slog.Int64("market_id", rec.MarketID),
		slog.String("user", rec.User),
		slog.String("side", string(rec.Side)),
		slog.Int64("seq", rec.Seq),
	)
	return rec, nil
}
