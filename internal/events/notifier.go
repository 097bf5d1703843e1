// Package events publishes gateway notifications onto an append-only Redis
// list and optionally relays them to an external webhook sink. The list is
// the externally observable record; consumers read it, the gateway never
// does.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tokenforge/deploy-gateway/internal/gateway"
)

// ListKey is the Redis list holding serialized Records, oldest first.
const ListKey = "gateway:events"

// Record types.
const (
	TypePerform = "perform"
	TypeCancel  = "cancel"
)

// Record is the wire form of a notification.
type Record struct {
	Type   string          `json:"type"`
	Maker  common.Address  `json:"maker"`
	Taker  common.Address  `json:"taker"`
	Token  *common.Address `json:"token,omitempty"` // perform only
	Digest common.Hash     `json:"digest"`
	At     int64           `json:"at"`
}

// RedisNotifier implements gateway.Notifier. Publish failures are logged,
// never surfaced: a lost notification must not fail the operation.
type RedisNotifier struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisNotifier(rdb *redis.Client, log *zap.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, log: log}
}

func (n *RedisNotifier) Performed(ctx context.Context, ev gateway.PerformEvent) {
	token := ev.Token
	n.push(ctx, Record{
		Type:   TypePerform,
		Maker:  ev.Maker,
		Taker:  ev.Taker,
		Token:  &token,
		Digest: ev.Digest,
		At:     time.Now().Unix(),
	})
}

func (n *RedisNotifier) Cancelled(ctx context.Context, ev gateway.CancelEvent) {
	n.push(ctx, Record{
		Type:   TypeCancel,
		Maker:  ev.Maker,
		Taker:  ev.Taker,
		Digest: ev.Digest,
		At:     time.Now().Unix(),
	})
}

func (n *RedisNotifier) push(ctx context.Context, rec Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		n.log.Error("marshal event", zap.String("type", rec.Type), zap.Error(err))
		return
	}
	if err := n.rdb.RPush(ctx, ListKey, string(raw)).Err(); err != nil {
		n.log.Error("publish event",
			zap.String("type", rec.Type),
			zap.String("digest", rec.Digest.Hex()),
			zap.Error(err),
		)
	}
}
