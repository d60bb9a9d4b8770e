package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// Store implements domain.MarketStore and domain.Ledger using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given client's connection pool.
func NewStore(c *Client) *Store {
	return &Store{pool: c.Pool()}
}

const marketCols = `id, title, resolved, outcome, created_at, resolved_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var outcome *string
	err := row.Scan(&m.ID, &m.Title, &m.Resolved, &outcome, &m.CreatedAt, &m.ResolvedAt)
	if err != nil {
		return domain.Market{}, err
	}
	if outcome != nil {
		o := domain.Outcome(*outcome)
		m.Outcome = &o
	}
	return m, nil
}

// Create inserts a new open market. IDs come from the sequence backing the
// primary key, so they are unique and never reused.
func (s *Store) Create(ctx context.Context, title string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO markets (title) VALUES ($1) RETURNING `+marketCols, title)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: create market: %w", err)
	}
	return m, nil
}

// Get retrieves a market by its primary key.
func (s *Store) Get(ctx context.Context, id int64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// List returns all markets ordered by ID.
func (s *Store) List(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// lockMarket takes the row lock that serializes appends and resolution for
// one market. It returns the market's current resolved flag.
func lockMarket(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	var resolved bool
	err := tx.QueryRow(ctx,
		`SELECT resolved FROM markets WHERE id = $1 FOR UPDATE`, id).Scan(&resolved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrNotFound
		}
		return false, fmt.Errorf("postgres: lock market %d: %w", id, err)
	}
	return resolved, nil
}

// AppendBet records a bet on an open market. The row lock holds from the
// open-state check through the sequence assignment, so a concurrent resolve
// lands fully before or fully after the append.
func (s *Store) AppendBet(ctx context.Context, marketID int64, user string, side domain.Side) (domain.BetRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.BetRecord{}, fmt.Errorf("postgres: begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	resolved, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return domain.BetRecord{}, err
	}
	if resolved {
		return domain.BetRecord{}, domain.ErrMarketClosed
	}

	rec := domain.BetRecord{MarketID: marketID, User: user, Side: side}
	err = tx.QueryRow(ctx, `
		INSERT INTO bets (market_id, username, side, seq)
		SELECT $1, $2, $3, COALESCE(MAX(seq), 0) + 1 FROM bets WHERE market_id = $1
		RETURNING seq, placed_at`,
		marketID, user, string(side),
	).Scan(&rec.Seq, &rec.PlacedAt)
	if err != nil {
		return domain.BetRecord{}, fmt.Errorf("postgres: append bet market %d: %w", marketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.BetRecord{}, fmt.Errorf("postgres: commit append: %w", err)
	}
	return rec, nil
}

// Resolve commits the market's final outcome exactly once under the same row
// lock that gates bet appends.
func (s *Store) Resolve(ctx context.Context, marketID int64, outcome domain.Outcome) (domain.Market, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: begin resolve: %w", err)
	}
	defer tx.Rollback(ctx)

	resolved, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	if resolved {
		return domain.Market{}, domain.ErrAlreadyResolved
	}

	row := tx.QueryRow(ctx, `
		UPDATE markets
		SET resolved = TRUE, outcome = $2, resolved_at = NOW()
		WHERE id = $1
		RETURNING `+marketCols,
		marketID, string(outcome),
	)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: resolve market %d: %w", marketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: commit resolve: %w", err)
	}
	return m, nil
}

const betCols = `market_id, username, side, seq, placed_at`

func scanBets(rows pgx.Rows) ([]domain.BetRecord, error) {
	var bets []domain.BetRecord
	for rows.Next() {
		var b domain.BetRecord
		var side string
		if err := rows.Scan(&b.MarketID, &b.User, &side, &b.Seq, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		b.Side = domain.Side(side)
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: bet rows: %w", err)
	}
	return bets, nil
}

// BetsForMarket returns the market's bets ordered by sequence. An unknown
// market is reported as ErrNotFound rather than an empty log.
func (s *Store) BetsForMarket(ctx context.Context, marketID int64) ([]domain.BetRecord, error) {
	if _, err := s.Get(ctx, marketID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 ORDER BY seq`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: bets for market %d: %w", marketID, err)
	}
	defer rows.Close()
	return scanBets(rows)
}

// BetsForUser returns the user's bets grouped by market in ID order, ordered
// by sequence within each market.
func (s *Store) BetsForUser(ctx context.Context, user string) ([]domain.BetRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE username = $1 ORDER BY market_id, seq`, user)
	if err != nil {
		return nil, fmt.Errorf("postgres: bets for user %s: %w", user, err)
	}
	defer rows.Close()
	return scanBets(rows)
}

// Compile-time interface checks.
var (
	_ domain.MarketStore = (*Store)(nil)
	_ domain.Ledger      = (*Store)(nil)
)
