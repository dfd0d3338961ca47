package redis

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// missSentinel marks a name+model key the marketplace reported no floor for,
// so repeated lookups within the TTL do not hammer the API either.
const missSentinel = "miss"

// FloorCache wraps a domain.FloorSource with a TTL read-through cache. The
// observed upstream behavior is a fresh lookup per listing per cycle; the
// cache makes that a deliberate, tunable trade between freshness and request
// volume. Cache errors degrade to a direct lookup, never to a failure.
type FloorCache struct {
	rdb    *redis.Client
	next   domain.FloorSource
	ttl    time.Duration
	logger *slog.Logger
}

// NewFloorCache creates a FloorCache in front of next with the given TTL.
func NewFloorCache(c *Client, next domain.FloorSource, ttl time.Duration, logger *slog.Logger) *FloorCache {
	return &FloorCache{
		rdb:    c.Underlying(),
		next:   next,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "floor_cache")),
	}
}

func floorKey(key string) string {
	return "floor:" + key
}

// FloorPrice returns the cached floor quote for a name+model key, falling
// through to the underlying source on miss and storing the result.
func (fc *FloorCache) FloorPrice(ctx context.Context, key string) (domain.FloorQuote, error) {
	val, err := fc.rdb.Get(ctx, floorKey(key)).Result()
	switch {
	case err == nil:
		if val == missSentinel {
			return domain.FloorQuote{}, nil
		}
		price, parseErr := strconv.ParseFloat(val, 64)
		if parseErr == nil {
			return domain.FloorQuote{Price: price, Found: true}, nil
		}
		fc.logger.WarnContext(ctx, "unparseable cached floor, refetching",
			slog.String("key", key),
			slog.String("value", val),
		)
	case !errors.Is(err, redis.Nil):
		fc.logger.WarnContext(ctx, "floor cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	quote, err := fc.next.FloorPrice(ctx, key)
	if err != nil {
		return domain.FloorQuote{}, err
	}

	stored := missSentinel
	if quote.Found {
		stored = strconv.FormatFloat(quote.Price, 'f', -1, 64)
	}
	if err := fc.rdb.Set(ctx, floorKey(key), stored, fc.ttl).Err(); err != nil {
		fc.logger.WarnContext(ctx, "floor cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return quote, nil
}

// Compile-time interface check.
var _ domain.FloorSource = (*FloorCache)(nil)
