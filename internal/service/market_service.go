package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/varsitymarkets/campusmarket/internal/directory"
	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// MarketService handles market listing, lookup, and admin-gated creation.
type MarketService struct {
	markets domain.MarketStore
	dir     directory.Directory
	bus     domain.SignalBus
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	dir directory.Directory,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: markets,
		dir:     dir,
		bus:     bus,
		logger:  logger,
	}
}

// List returns a snapshot of all markets ordered by ID.
func (s *MarketService) List(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.markets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}
	return markets, nil
}

// Get returns a single market by ID.
func (s *MarketService) Get(ctx context.Context, id int64) (domain.Market, error) {
	m, err := s.markets.Get(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %d: %w", id, err)
	}
	return m, nil
}

// Create opens a new market. Only identities carrying the admin claim may
// create markets.
func (s *MarketService) Create(ctx context.Context, title, username string) (domain.Market, error) {
	id, err := s.dir.Lookup(ctx, username)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: lookup %q: %w", username, err)
	}
	if !id.Admin {
		return domain.Market{}, domain.ErrForbidden
	}

	m, err := s.markets.Create(ctx, title)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}

	s.publishCreated(ctx, m)

	s.logger.InfoContext(ctx, "market_service: market created",
		slog.Int64("market_id", m.ID),
		slog.String("title", m.Title),
		slog.String("created_by", username),
	)
	return m, nil
}

// publishCreated pushes a market-created event to chart clients. Event
// delivery is best-effort and never fails the create.
func (s *MarketService) publishCreated(ctx context.Context, m domain.Market) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.MarketCreatedEvent{MarketID: m.ID, Title: m.Title})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelMarkets, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish created event failed",
			slog.Int64("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}
