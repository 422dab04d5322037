package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrMalformedLevel = errors.New("malformed price level")
	ErrMalformedTrade = errors.New("malformed trade")
	ErrRenderFailed   = errors.New("render failed")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrFeedClosed     = errors.New("feed closed")

	// ErrSubscribeRejected means the exchange refused a topic, e.g. an
	// unknown symbol. Reconnecting cannot fix it.
	ErrSubscribeRejected = errors.New("subscription rejected")
)
