package domain

// SignalBus channel names for market events pushed to chart clients.
const (
	ChannelMarkets     = "markets"
	ChannelBets        = "bets"
	ChannelResolutions = "resolutions"
)

// BetEvent is published on ChannelBets after every accepted bet.
type BetEvent struct {
	MarketID int64  `json:"marketId"`
	User     string `json:"user"`
	Side     Side   `json:"side"`
	Seq      int64  `json:"seq"`
}

// ResolutionEvent is published on ChannelResolutions when a market resolves.
type ResolutionEvent struct {
	MarketID int64   `json:"marketId"`
	Outcome  Outcome `json:"outcome"`
}

// MarketCreatedEvent is published on ChannelMarkets when a market is created.
type MarketCreatedEvent struct {
	MarketID int64  `json:"marketId"`
	Title    string `json:"title"`
}
