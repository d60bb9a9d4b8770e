package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// multipartThreshold is the payload size above which ledger exports switch to
// multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// ArchiveService exports the full bet ledger of each resolved market to blob
// storage as JSONL, one object per market. Archival is a convenience export:
// a failed pass is retried on the next one and never affects the ledger.
type ArchiveService struct {
	markets domain.MarketStore
	ledger  domain.Ledger
	blob    domain.BlobWriter
	logger  *slog.Logger

	interval time.Duration
	nudge    chan struct{}

	mu       sync.Mutex
	archived map[int64]bool
}

// NewArchiveService creates an ArchiveService that scans every interval and
// whenever Nudge is called.
func NewArchiveService(
	markets domain.MarketStore,
	ledger domain.Ledger,
	blob domain.BlobWriter,
	interval time.Duration,
	logger *slog.Logger,
) *ArchiveService {
	return &ArchiveService{
		markets:  markets,
		ledger:   ledger,
		blob:     blob,
		logger:   logger,
		interval: interval,
		nudge:    make(chan struct{}, 1),
		archived: make(map[int64]bool),
	}
}

// Nudge requests an archive pass soon. It never blocks; a pass already
// pending absorbs the request.
func (s *ArchiveService) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Run scans for unarchived resolved markets until ctx is cancelled.
func (s *ArchiveService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.nudge:
		}

		if err := s.archivePass(ctx); err != nil {
			s.logger.ErrorContext(ctx, "archive_service: pass failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// archivePass exports every resolved market that has not been archived in
// this process's lifetime. Objects are keyed per market and pass, so a
// re-export after restart overwrites nothing.
func (s *ArchiveService) archivePass(ctx context.Context) error {
	markets, err := s.markets.List(ctx)
	if err != nil {
		return fmt.Errorf("list markets: %w", err)
	}

	for _, m := range markets {
		if !m.Resolved {
			continue
		}
		s.mu.Lock()
		done := s.archived[m.ID]
		s.mu.Unlock()
		if done {
			continue
		}

		if err := s.archiveMarket(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "archive_service: market export failed",
				slog.Int64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.mu.Lock()
		s.archived[m.ID] = true
		s.mu.Unlock()
	}
	return nil
}

// ledgerExport is the JSONL header line written before the bet records.
type ledgerExport struct {
	MarketID   int64          `json:"marketId"`
	Title      string         `json:"title"`
	Outcome    domain.Outcome `json:"outcome"`
	ResolvedAt *time.Time     `json:"resolvedAt"`
	Bets       int            `json:"bets"`
}

// exportedBet is one JSONL line per bet record.
type exportedBet struct {
	Seq      int64       `json:"seq"`
	User     string      `json:"user"`
	Side     domain.Side `json:"side"`
	PlacedAt time.Time   `json:"placedAt"`
}

func (s *ArchiveService) archiveMarket(ctx context.Context, m domain.Market) error {
	bets, err := s.ledger.BetsForMarket(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("bets for market %d: %w", m.ID, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	var outcome domain.Outcome
	if m.Outcome != nil {
		outcome = *m.Outcome
	}
	if err := enc.Encode(ledgerExport{
		MarketID:   m.ID,
		Title:      m.Title,
		Outcome:    outcome,
		ResolvedAt: m.ResolvedAt,
		Bets:       len(bets),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, b := range bets {
		if err := enc.Encode(exportedBet{
			Seq:      b.Seq,
			User:     b.User,
			Side:     b.Side,
			PlacedAt: b.PlacedAt,
		}); err != nil {
			return fmt.Errorf("encode bet %d: %w", b.Seq, err)
		}
	}

	key := fmt.Sprintf("ledgers/market-%d-%s.jsonl", m.ID, uuid.NewString())
	if buf.Len() > multipartThreshold {
		err = s.blob.PutMultipart(ctx, key, &buf, 0)
	} else {
		err = s.blob.Put(ctx, key, &buf, "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	s.logger.InfoContext(ctx, "archive_service: ledger exported",
		slog.Int64("market_id", m.ID),
		slog.String("key", key),
		slog.Int("bets", len(bets)),
	)
	return nil
}

// Compile-time interface check.
var _ ArchiveTrigger = (*ArchiveService)(nil)
