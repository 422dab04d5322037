package service

import (
	"context"
	"sync/atomic"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// LiveBook keeps the most recent book state for concurrent readers such as
// the HTTP API.
type LiveBook struct {
	latest atomic.Pointer[domain.BookUpdate]
}

// NewLiveBook returns an empty holder.
func NewLiveBook() *LiveBook { return &LiveBook{} }

// Observe stores u as the latest state.
func (l *LiveBook) Observe(_ context.Context, u domain.BookUpdate) error {
	l.latest.Store(&u)
	return nil
}

// Latest returns the most recent state, or false before the first update.
func (l *LiveBook) Latest() (domain.BookUpdate, bool) {
	u := l.latest.Load()
	if u == nil {
		return domain.BookUpdate{}, false
	}
	return *u, true
}
