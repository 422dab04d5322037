package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthview/internal/domain"
)

// OrderbookCache implements domain.OrderbookCache with Redis sorted sets and
// hashes holding the published top of book for each symbol.
//
// Key schema, under the client's key prefix:
//
//	book:{symbol}:asks     - sorted set of ask prices (score = price)
//	book:{symbol}:bids     - sorted set of bid prices (score = price)
//	book:{symbol}:ask:size - hash mapping price -> quantity for asks
//	book:{symbol}:bid:size - hash mapping price -> quantity for bids
//	book:{symbol}:meta     - hash with "ts" (unix nanos)
//
// Members keep the exact decimal text; scores are only used for ordering.
type OrderbookCache struct {
	rdb  *redis.Client
	keys Keyspace
	ttl  time.Duration
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
// Keys expire after ttl without a refresh; zero keeps them forever.
func NewOrderbookCache(c *Client, ttl time.Duration) *OrderbookCache {
	return &OrderbookCache{rdb: c.rdb, keys: c.keys, ttl: ttl}
}

// bookKeys lists the keys of one symbol's book: asks, bids, ask sizes, bid
// sizes, meta.
func (k Keyspace) bookKeys(symbol string) []string {
	return []string{
		k.Book(symbol, "asks"),
		k.Book(symbol, "bids"),
		k.Book(symbol, "ask:size"),
		k.Book(symbol, "bid:size"),
		k.Book(symbol, "meta"),
	}
}

// SetTop atomically replaces the cached view for symbol.
func (oc *OrderbookCache) SetTop(ctx context.Context, symbol string, view domain.BookView, ts time.Time) error {
	keys := oc.keys.bookKeys(symbol)
	pipe := oc.rdb.TxPipeline()

	pipe.Del(ctx, keys...)
	writeSide(ctx, pipe, keys[0], keys[2], view.Asks)
	writeSide(ctx, pipe, keys[1], keys[3], view.Bids)
	pipe.HSet(ctx, keys[4], "ts", strconv.FormatInt(ts.UnixNano(), 10))

	if oc.ttl > 0 {
		for _, k := range keys {
			pipe.Expire(ctx, k, oc.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set top %s: %w", symbol, err)
	}
	return nil
}

func writeSide(ctx context.Context, pipe redis.Pipeliner, zKey, hKey string, levels []domain.PriceLevel) {
	if len(levels) == 0 {
		return
	}
	members := make([]redis.Z, len(levels))
	sizes := make([]interface{}, 0, 2*len(levels))
	for i, lvl := range levels {
		price := lvl.Price.String()
		members[i] = redis.Z{Score: lvl.Price.InexactFloat64(), Member: price}
		sizes = append(sizes, price, lvl.Quantity.String())
	}
	pipe.ZAdd(ctx, zKey, members...)
	pipe.HSet(ctx, hKey, sizes...)
}

// GetTop reconstructs the cached view. It returns domain.ErrNotFound when
// nothing has been published for symbol.
func (oc *OrderbookCache) GetTop(ctx context.Context, symbol string) (domain.BookView, time.Time, error) {
	keys := oc.keys.bookKeys(symbol)
	pipe := oc.rdb.Pipeline()
	asksCmd := pipe.ZRangeWithScores(ctx, keys[0], 0, -1)
	bidsCmd := pipe.ZRevRangeWithScores(ctx, keys[1], 0, -1)
	askSizeCmd := pipe.HGetAll(ctx, keys[2])
	bidSizeCmd := pipe.HGetAll(ctx, keys[3])
	metaCmd := pipe.HGetAll(ctx, keys[4])

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.BookView{}, time.Time{}, fmt.Errorf("redis: get top %s: %w", symbol, err)
	}

	meta, _ := metaCmd.Result()
	if len(meta) == 0 {
		return domain.BookView{}, time.Time{}, domain.ErrNotFound
	}
	var ts time.Time
	if nanos, err := strconv.ParseInt(meta["ts"], 10, 64); err == nil {
		ts = time.Unix(0, nanos).UTC()
	}

	asksZ, _ := asksCmd.Result()
	bidsZ, _ := bidsCmd.Result()
	askSizes, _ := askSizeCmd.Result()
	bidSizes, _ := bidSizeCmd.Result()

	asks, err := readSide(asksZ, askSizes)
	if err != nil {
		return domain.BookView{}, time.Time{}, fmt.Errorf("redis: get top %s asks: %w", symbol, err)
	}
	bids, err := readSide(bidsZ, bidSizes)
	if err != nil {
		return domain.BookView{}, time.Time{}, fmt.Errorf("redis: get top %s bids: %w", symbol, err)
	}
	return domain.BookView{Asks: asks, Bids: bids}, ts, nil
}

// readSide pairs sorted members with their sizes. Members are kept in the
// order Redis returned them.
func readSide(members []redis.Z, sizes map[string]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(members))
	for _, z := range members {
		priceStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("%w: price %q", domain.ErrMalformedLevel, priceStr)
		}
		qty, err := decimal.NewFromString(sizes[priceStr])
		if err != nil {
			return nil, fmt.Errorf("%w: size for %q", domain.ErrMalformedLevel, priceStr)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

// Compile-time interface check.
var _ domain.OrderbookCache = (*OrderbookCache)(nil)
