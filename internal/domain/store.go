package domain

import (
	"context"
	"io"
)

// MarketStore owns the set of markets and their lifecycle state.
type MarketStore interface {
	// Create adds a new open market with a unique, never-reused ID.
	Create(ctx context.Context, title string) (Market, error)

	// Get returns a market by ID, or ErrNotFound.
	Get(ctx context.Context, id int64) (Market, error)

	// List returns a snapshot of all markets ordered by ID.
	List(ctx context.Context) ([]Market, error)
}

// Ledger is the append-only per-market bet log plus the resolution commit.
// Append and Resolve share the per-market mutation gate, so a single concrete
// type implements both this interface and MarketStore.
type Ledger interface {
	// AppendBet checks that the market is open and assigns the next sequence
	// number atomically with that check. It fails with ErrNotFound for an
	// unknown market and ErrMarketClosed for a resolved one.
	AppendBet(ctx context.Context, marketID int64, user string, side Side) (BetRecord, error)

	// Resolve commits the market's final outcome exactly once. It fails with
	// ErrNotFound for an unknown market and ErrAlreadyResolved if the market
	// is no longer open; a rejected resolve never alters the stored outcome.
	Resolve(ctx context.Context, marketID int64, outcome Outcome) (Market, error)

	// BetsForMarket returns the market's bets ordered by sequence.
	BetsForMarket(ctx context.Context, marketID int64) ([]BetRecord, error)

	// BetsForUser returns the user's bets across all markets, grouped by
	// market in ID order and by sequence within each market.
	BetsForUser(ctx context.Context, user string) ([]BetRecord, error)
}

// SeriesCache caches computed count series per market. Caching is an
// optimization only; every implementation may miss at any time.
type SeriesCache interface {
	Get(ctx context.Context, marketID int64) ([]SeriesPoint, error)
	Set(ctx context.Context, marketID int64, series []SeriesPoint) error
	Invalidate(ctx context.Context, marketID int64) error
}

// SignalBus is an ephemeral publish/subscribe transport for market events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a channel of raw payloads. The subscription ends and
	// the channel closes when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error

	// PutMultipart uploads a large payload in parts of partSize bytes.
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
