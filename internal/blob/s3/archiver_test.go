package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

type memWriter struct {
	objects   map[string][]byte
	multipart []string
	err       error
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.err != nil {
		return w.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.objects == nil {
		w.objects = map[string][]byte{}
	}
	w.objects[path] = b
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	w.multipart = append(w.multipart, path)
	return w.Put(ctx, path, data, jsonlContentType)
}

type memTrades struct {
	trades  []domain.Trade
	deleted bool
}

func (s *memTrades) ListBefore(_ context.Context, before time.Time) ([]domain.Trade, error) {
	var out []domain.Trade
	for _, t := range s.trades {
		if t.Timestamp.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTrades) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.deleted = true
	var kept []domain.Trade
	var n int64
	for _, t := range s.trades {
		if t.Timestamp.Before(before) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	s.trades = kept
	return n, nil
}

func newTrade(symbol, id string, ts time.Time) domain.Trade {
	return domain.Trade{
		Symbol:    symbol,
		TradeID:   id,
		Side:      "Buy",
		Price:     decimal.RequireFromString("100.25"),
		Size:      decimal.RequireFromString("0.5"),
		Direction: domain.DirectionUp,
		Timestamp: ts,
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestArchiveTradesPartitionsBySymbolAndDay(t *testing.T) {
	day1 := time.Date(2025, 1, 30, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2025, 1, 31, 0, 1, 0, 0, time.UTC)
	before := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	store := &memTrades{trades: []domain.Trade{
		newTrade("BTCUSDT", "1", day1),
		newTrade("BTCUSDT", "2", day2),
		newTrade("ETHUSDT", "3", day2),
		newTrade("BTCUSDT", "4", day2.Add(time.Minute)),
		newTrade("BTCUSDT", "5", before.Add(time.Hour)), // kept
	}}
	writer := &memWriter{}

	n, err := NewArchiver(writer, store, discard()).ArchiveTrades(context.Background(), before)
	if err != nil {
		t.Fatalf("ArchiveTrades: %v", err)
	}
	if n != 4 {
		t.Fatalf("archived %d, want 4", n)
	}
	if len(store.trades) != 1 || store.trades[0].TradeID != "5" {
		t.Fatalf("remaining trades = %+v", store.trades)
	}

	unix := "1738368000"
	want := map[string][]string{
		"trades/BTCUSDT/2025/01/30/" + unix + ".jsonl": {"1"},
		"trades/BTCUSDT/2025/01/31/" + unix + ".jsonl": {"2", "4"},
		"trades/ETHUSDT/2025/01/31/" + unix + ".jsonl": {"3"},
	}
	if len(writer.objects) != len(want) {
		t.Fatalf("uploaded %d objects: %v", len(writer.objects), keys(writer.objects))
	}
	for path, ids := range want {
		body, ok := writer.objects[path]
		if !ok {
			t.Fatalf("missing object %s; have %v", path, keys(writer.objects))
		}
		got := tradeIDs(t, body)
		if len(got) != len(ids) {
			t.Fatalf("%s ids = %v, want %v", path, got, ids)
		}
		for i := range ids {
			if got[i] != ids[i] {
				t.Fatalf("%s ids = %v, want %v", path, got, ids)
			}
		}
	}
}

func TestArchiveTradesKeepsRowsWhenUploadFails(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &memTrades{trades: []domain.Trade{newTrade("BTCUSDT", "1", ts)}}
	writer := &memWriter{err: errors.New("bucket gone")}

	_, err := NewArchiver(writer, store, discard()).ArchiveTrades(context.Background(), ts.Add(time.Hour))
	if err == nil {
		t.Fatal("expected upload error")
	}
	if store.deleted || len(store.trades) != 1 {
		t.Fatal("trades were deleted despite the failed upload")
	}
}

func TestArchiveTradesNothingToDo(t *testing.T) {
	store := &memTrades{}
	writer := &memWriter{}
	n, err := NewArchiver(writer, store, discard()).ArchiveTrades(context.Background(), time.Now())
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if store.deleted || len(writer.objects) != 0 {
		t.Fatal("empty run should not touch storage")
	}
}

func TestArchiveTradesUsesMultipartForLargeFiles(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &memTrades{trades: []domain.Trade{newTrade("BTCUSDT", "1", ts), newTrade("BTCUSDT", "2", ts)}}
	writer := &memWriter{}
	a := NewArchiver(writer, store, discard())
	a.multipartThreshold = 1

	if _, err := a.ArchiveTrades(context.Background(), ts.Add(time.Hour)); err != nil {
		t.Fatalf("ArchiveTrades: %v", err)
	}
	if len(writer.multipart) != 1 {
		t.Fatalf("multipart uploads = %v", writer.multipart)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	if got := normaliseEndpoint("localhost:9000", false); got != "http://localhost:9000" {
		t.Fatalf("got %s", got)
	}
	if got := normaliseEndpoint("s3.example.com", true); got != "https://s3.example.com" {
		t.Fatalf("got %s", got)
	}
	if got := normaliseEndpoint("http://minio:9000", true); got != "http://minio:9000" {
		t.Fatalf("got %s", got)
	}
	if got := normaliseEndpoint("minio:9000", true); got != "https://minio:9000" {
		t.Fatalf("got %s", got)
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func tradeIDs(t *testing.T, body []byte) []string {
	t.Helper()
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var rec struct {
			TradeID   string `json:"trade_id"`
			Direction string `json:"direction"`
			Price     string `json:"price"`
		}
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad jsonl line %q: %v", sc.Text(), err)
		}
		if rec.Direction != "up" || rec.Price != "100.25" {
			t.Fatalf("unexpected record %+v", rec)
		}
		ids = append(ids, rec.TradeID)
	}
	return ids
}
