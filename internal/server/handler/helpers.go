package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// Pagination bounds for /api/trades.
const (
	defaultTradeLimit = 50
	maxTradeLimit     = 500
)

// errNoBook means the session has not rendered a snapshot yet.
var errNoBook = errors.New("no book received yet")

// queryError is a rejected query parameter. It maps to 400.
type queryError struct {
	param string
	msg   string
}

func (e *queryError) Error() string { return e.param + ": " + e.msg }

func badParam(param, format string, args ...any) error {
	return &queryError{param: param, msg: fmt.Sprintf(format, args...)}
}

// writeJSON writes v with status. Responses describe a live book, so nothing
// is cacheable.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(data)
}

// writeFailure maps err to a status code and a JSON error body. Only
// unexpected failures are logged; the client sees a generic message for
// those.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var qe *queryError
	switch {
	case errors.As(err, &qe):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": qe.msg, "param": qe.param})
	case errors.Is(err, errNoBook):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(r.Context(), "request timed out", slog.String("error", err.Error()))
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "backend timed out"})
	default:
		logger.ErrorContext(r.Context(), "request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// parseDepth reads the optional depth parameter. Zero means absent.
func parseDepth(r *http.Request) (int, error) {
	v := r.URL.Query().Get("depth")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, badParam("depth", "must be a positive integer, got %q", v)
	}
	return n, nil
}

// parseListOpts reads limit, offset, since and until. limit defaults to 50
// and is capped at 500. since and until accept RFC 3339 or unix
// milliseconds, the form Bybit stamps trades with.
func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()
	opts := domain.ListOpts{Limit: defaultTradeLimit}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, badParam("limit", "must be a positive integer, got %q", v)
		}
		opts.Limit = min(n, maxTradeLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, badParam("offset", "must be a non-negative integer, got %q", v)
		}
		opts.Offset = n
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &opts.Since}, {"until", &opts.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		ts, err := parseTime(v)
		if err != nil {
			return opts, badParam(p.name, "want RFC 3339 or unix milliseconds, got %q", v)
		}
		*p.dst = &ts
	}
	if opts.Since != nil && opts.Until != nil && opts.Until.Before(*opts.Since) {
		return opts, badParam("until", "must not be before since")
	}
	return opts, nil
}

func parseTime(v string) (time.Time, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
