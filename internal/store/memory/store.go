// Package memory implements the market store and bet ledger in process
// memory. It is the default storage driver; the postgres driver provides the
// same interfaces with durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// marketState is the unit of mutual exclusion: one lock per market guards the
// lifecycle pair (resolved, outcome) and the bet log with its sequence
// counter, so appends and resolution on the same market are serialized while
// distinct markets never contend.
type marketState struct {
	mu     sync.Mutex
	market domain.Market
	bets   []domain.BetRecord
}

// Store implements domain.MarketStore and domain.Ledger over an in-memory
// arena of markets.
type Store struct {
	mu      sync.RWMutex // guards the map and the ID counter only
	markets map[int64]*marketState
	nextID  int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		markets: make(map[int64]*marketState),
		nextID:  1,
	}
}

// Create adds a new open market. IDs are allocated from a monotonically
// increasing counter and never reused.
func (s *Store) Create(ctx context.Context, title string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := domain.Market{
		ID:        s.nextID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	s.nextID++
	s.markets[m.ID] = &marketState{market: m}
	return m, nil
}

// get returns the live state record for a market, or ErrNotFound.
func (s *Store) get(id int64) (*marketState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms, ok := s.markets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ms, nil
}

// Get returns a snapshot of a single market.
func (s *Store) Get(ctx context.Context, id int64) (domain.Market, error) {
	ms, err := s.get(id)
	if err != nil {
		return domain.Market{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.market, nil
}

// List returns a snapshot of all markets ordered by ID. Each market is read
// under its own lock, so no partially-applied resolve is ever observed.
func (s *Store) List(ctx context.Context) ([]domain.Market, error) {
	s.mu.RLock()
	states := make([]*marketState, 0, len(s.markets))
	for _, ms := range s.markets {
		states = append(states, ms)
	}
	s.mu.RUnlock()

	markets := make([]domain.Market, 0, len(states))
	for _, ms := range states {
		ms.mu.Lock()
		markets = append(markets, ms.market)
		ms.mu.Unlock()
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return markets, nil
}

// AppendBet records a bet on an open market. The open-state check and the
// sequence assignment happen under the market's lock, so a concurrent resolve
// is ordered fully before or fully after the append.
func (s *Store) AppendBet(ctx context.Context, marketID int64, user string, side domain.Side) (domain.BetRecord, error) {
	ms, err := s.get(marketID)
	if err != nil {
		return domain.BetRecord{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.market.Resolved {
		return domain.BetRecord{}, domain.ErrMarketClosed
	}

	rec := domain.BetRecord{
		MarketID: marketID,
		User:     user,
		Side:     side,
		Seq:      int64(len(ms.bets)) + 1,
		PlacedAt: time.Now().UTC(),
	}
	ms.bets = append(ms.bets, rec)
	return rec, nil
}

// Resolve commits the final outcome exactly once. A second call fails with
// ErrAlreadyResolved and leaves the stored outcome untouched.
func (s *Store) Resolve(ctx context.Context, marketID int64, outcome domain.Outcome) (domain.Market, error) {
	ms, err := s.get(marketID)
	if err != nil {
		return domain.Market{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.market.Resolved {
		return domain.Market{}, domain.ErrAlreadyResolved
	}

	now := time.Now().UTC()
	ms.market.Resolved = true
	ms.market.Outcome = &outcome
	ms.market.ResolvedAt = &now
	return ms.market, nil
}

// BetsForMarket returns a copy of the market's bet log in sequence order.
func (s *Store) BetsForMarket(ctx context.Context, marketID int64) ([]domain.BetRecord, error) {
	ms, err := s.get(marketID)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	bets := make([]domain.BetRecord, len(ms.bets))
	copy(bets, ms.bets)
	return bets, nil
}

// BetsForUser returns the user's bets across all markets, iterating markets
// in ID order and keeping sequence order within each market.
func (s *Store) BetsForUser(ctx context.Context, user string) ([]domain.BetRecord, error) {
	markets, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.BetRecord
	for _, m := range markets {
		bets, err := s.BetsForMarket(ctx, m.ID)
		if err != nil {
			// The market was listed a moment ago; markets are never deleted.
			return nil, err
		}
		for _, b := range bets {
			if b.User == user {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ domain.MarketStore = (*Store)(nil)
	_ domain.Ledger      = (*Store)(nil)
)
