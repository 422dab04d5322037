package s3blob

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alanyoungcy/depthview/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// TradeArchiveStore is the slice of the trade store the archiver needs.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver implements domain.Archiver. It exports trades older than a cutoff
// as JSON lines, one object per symbol and UTC day, and deletes them from the
// primary store only after every upload succeeded.
type Archiver struct {
	writer domain.BlobWriter
	trades TradeArchiveStore
	logger *slog.Logger

	// multipartThreshold switches uploads to the multipart manager.
	multipartThreshold int
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, trades TradeArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:             writer,
		trades:             trades,
		logger:             logger.With(slog.String("component", "archiver")),
		multipartThreshold: int(minPartSize),
	}
}

// ArchiveTrades moves every trade older than before to object storage and
// returns how many were archived.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	for _, part := range partitionTrades(trades) {
		buf, err := marshalJSONL(part.trades)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
		}
		path := archivePath(part.symbol, part.day, before)
		if len(buf) >= a.multipartThreshold {
			err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
		} else {
			err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
		}
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
		}
		a.logger.Info("archived trades",
			slog.String("path", path),
			slog.Int("count", len(part.trades)),
		)
	}

	deleted, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(trades)), fmt.Errorf("s3blob: archive trades delete: %w", err)
	}
	if deleted != int64(len(trades)) {
		a.logger.Warn("archived and deleted trade counts differ",
			slog.Int("archived", len(trades)),
			slog.Int64("deleted", deleted),
		)
	}
	return int64(len(trades)), nil
}

type tradePartition struct {
	symbol string
	day    time.Time
	trades []domain.Trade
}

// partitionTrades groups trades by symbol and UTC day, sorted by both, with
// the input order kept inside each group.
func partitionTrades(trades []domain.Trade) []tradePartition {
	index := make(map[string]int)
	var parts []tradePartition
	for _, t := range trades {
		day := t.Timestamp.UTC().Truncate(24 * time.Hour)
		key := t.Symbol + "/" + day.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(parts)
			index[key] = i
			parts = append(parts, tradePartition{symbol: t.Symbol, day: day})
		}
		parts[i].trades = append(parts[i].trades, t)
	}
	slices.SortFunc(parts, func(a, b tradePartition) int {
		return cmp.Or(cmp.Compare(a.symbol, b.symbol), a.day.Compare(b.day))
	})
	return parts
}

// archivePath builds the object key for one partition:
//
//	trades/BTCUSDT/2025/01/31/1738368000.jsonl
//
// The trailing cutoff keeps repeated runs from overwriting each other.
func archivePath(symbol string, day, before time.Time) string {
	return fmt.Sprintf("trades/%s/%s/%d.jsonl", symbol, day.Format("2006/01/02"), before.Unix())
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
