package news

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"agreeme/app/models"
)

const cacheKey = "agreeme:news:v1"

// Feed serves scraped news, cached in Redis when a client is given.
type Feed struct {
	scraper *Scraper
	redis   redis.UniversalClient
	ttl     time.Duration
}

func NewFeed(scraper *Scraper, client redis.UniversalClient, ttl time.Duration) *Feed {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Feed{scraper: scraper, redis: client, ttl: ttl}
}

// Items returns the news list. Cache errors fall through to a live scrape.
func (f *Feed) Items(ctx context.Context) []models.NewsItem {
	if f.redis != nil {
		raw, err := f.redis.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			var items []models.NewsItem
			if jsonErr := json.Unmarshal(raw, &items); jsonErr == nil {
				return items
			}
		case !errors.Is(err, redis.Nil):
			slog.WarnContext(ctx, "news cache read failed", "error", err)
		}
	}

	items := f.scraper.Fetch(ctx)
	if f.redis != nil && len(items) > len(f.scraper.pinned) {
		if raw, err := json.Marshal(items); err == nil {
			if err := f.redis.Set(ctx, cacheKey, raw, f.ttl).Err(); err != nil {
				slog.WarnContext(ctx, "news cache write failed", "error", err)
			}
		}
	}
	return items
}
