package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blpopTimeout = 5 * time.Second

// Relay is the webhook delivery loop: BLPOP an event → deliver → repeat.
// On delivery failure the item is pushed back to the head of the list so
// ordering is preserved, then the loop backs off.
func Relay(ctx context.Context, rdb *redis.Client, sink *Sink, log *zap.Logger) {
	log.Info("event relay started")

	for {
		if ctx.Err() != nil {
			log.Info("event relay stopped")
			return
		}

		results, err := rdb.BLPop(ctx, blpopTimeout, ListKey).Result()
		if err != nil {
			if err == redis.Nil {
				continue // timeout, nothing queued
			}
			if ctx.Err() != nil {
				return
			}
			log.Error("relay: BLPOP", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// results[0] = key, results[1] = value
		raw := results[1]
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// Malformed items are dropped, not retried forever.
			log.Error("relay: unmarshal event", zap.String("raw", raw), zap.Error(err))
			continue
		}

		if err := sink.Deliver(ctx, rec); err != nil {
			log.Error("relay: deliver",
				zap.String("type", rec.Type),
				zap.String("digest", rec.Digest.Hex()),
				zap.Error(err),
			)
			_ = rdb.LPush(ctx, ListKey, raw)
			time.Sleep(5 * time.Second)
			continue
		}

		log.Info("event delivered",
			zap.String("type", rec.Type),
			zap.String("digest", rec.Digest.Hex()),
		)
	}
}
