// Package pipeline runs background maintenance jobs next to the live feed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// Archiver moves old trade rows from the database to object storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	logger        *slog.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
		now:           time.Now,
	}
}

// Cutoff returns the instant before which trades are archived.
func (a *Archiver) Cutoff() time.Time {
	return a.now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
}

// RunOnce executes a single archive run for trades older than the retention
// window.
func (a *Archiver) RunOnce(ctx context.Context) (int64, error) {
	cutoff := a.Cutoff()
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	archived, err := a.blobArchiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pipeline: archiving trades before %v: %w", cutoff, err)
	}
	a.logger.Info("archive run complete", slog.Int64("trades_archived", archived))
	return archived, nil
}

// Run archives once immediately and then on every interval until ctx is
// cancelled. Failed runs are logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("pipeline: archive interval must be positive, got %v", interval)
	}
	a.logger.Info("archiver started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("archive run failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
