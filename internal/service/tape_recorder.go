package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/depthview/internal/domain"
)

const (
	defaultTapeBatchSize     = 200
	defaultTapeFlushInterval = 2 * time.Second
	finalFlushTimeout        = 5 * time.Second
)

// TapeConfig tunes the trade tape recorder.
type TapeConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	// Stream is the signal bus stream each trade is appended to. Ignored
	// when the recorder has no bus.
	Stream string
}

// TapeRecorder collects observed trades and writes them in batches to the
// trade store, appending each one to a durable stream as well.
type TapeRecorder struct {
	trades domain.TradeStore
	bus    domain.SignalBus
	cfg    TapeConfig
	logger *slog.Logger

	mu      sync.Mutex
	pending []domain.Trade
	nudge   chan struct{}
}

// NewTapeRecorder creates a TapeRecorder. bus may be nil.
func NewTapeRecorder(trades domain.TradeStore, bus domain.SignalBus, cfg TapeConfig, logger *slog.Logger) *TapeRecorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultTapeBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultTapeFlushInterval
	}
	return &TapeRecorder{
		trades: trades,
		bus:    bus,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "tape_recorder")),
		nudge:  make(chan struct{}, 1),
	}
}

// Observe queues the update's trade, if any. A full batch wakes Run early.
func (r *TapeRecorder) Observe(_ context.Context, u domain.BookUpdate) error {
	if u.Trade == nil {
		return nil
	}
	t := *u.Trade
	if t.TradeID == "" {
		t.TradeID = uuid.New().String()
	}

	r.mu.Lock()
	r.pending = append(r.pending, t)
	full := len(r.pending) >= r.cfg.BatchSize
	r.mu.Unlock()

	if full {
		select {
		case r.nudge <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of trades waiting to be written.
func (r *TapeRecorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Run flushes on every interval tick and whenever a batch fills, until ctx is
// cancelled. Trades still queued at shutdown get one last flush.
func (r *TapeRecorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			if err := r.Flush(flushCtx); err != nil {
				r.logger.Error("final tape flush failed", slog.String("error", err.Error()))
			}
			cancel()
			return ctx.Err()
		case <-ticker.C:
		case <-r.nudge:
		}
		if err := r.Flush(ctx); err != nil {
			r.logger.WarnContext(ctx, "tape flush failed",
				slog.Int("pending", r.Pending()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Flush writes everything queued so far in batches. A batch the store
// rejects is put back at the front of the queue, bounded to ten batches so a
// long outage cannot grow memory without limit.
func (r *TapeRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	for len(batch) > 0 {
		n := min(len(batch), r.cfg.BatchSize)
		chunk := batch[:n]
		if err := r.trades.InsertBatch(ctx, chunk); err != nil {
			r.requeue(batch)
			return fmt.Errorf("tape_recorder: insert %d trades: %w", n, err)
		}
		r.appendStream(ctx, chunk)
		batch = batch[n:]
	}
	return nil
}

func (r *TapeRecorder) requeue(batch []domain.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := append(batch[:len(batch):len(batch)], r.pending...)
	if limit := r.cfg.BatchSize * 10; len(merged) > limit {
		dropped := len(merged) - limit
		merged = merged[dropped:]
		r.logger.Warn("tape buffer full, dropping oldest trades", slog.Int("dropped", dropped))
	}
	r.pending = merged
}

func (r *TapeRecorder) appendStream(ctx context.Context, trades []domain.Trade) {
	if r.bus == nil || r.cfg.Stream == "" {
		return
	}
	for _, t := range trades {
		payload, err := json.Marshal(t)
		if err != nil {
			continue
		}
		if err := r.bus.StreamAppend(ctx, r.cfg.Stream, payload); err != nil {
			r.logger.WarnContext(ctx, "tape_recorder: stream append failed",
				slog.String("stream", r.cfg.Stream),
				slog.String("trade_id", t.TradeID),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}
