package domain

import "time"

// Side is the direction of a single bet.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// SideFromYes converts the wire-level "buyYes" boolean into a Side.
func SideFromYes(yes bool) Side {
	if yes {
		return SideYes
	}
	return SideNo
}

// BetRecord is one immutable entry in a market's ledger. Seq is market-local,
// starts at 1, and is assigned atomically with the open-state check, so the
// sequence numbers of a market always form a contiguous run.
type BetRecord struct {
	MarketID int64
	User     string
	Side     Side
	Seq      int64
	PlacedAt time.Time
}

// SeriesPoint is one point of a market's cumulative tally series: the total
// YES and NO counts after a given bet.
type SeriesPoint struct {
	Yes int64 `json:"yes"`
	No  int64 `json:"no"`
}

// Position is one entry of a user's replayed bet history.
type Position struct {
	MarketID int64
	Side     Side
	Seq      int64
}
