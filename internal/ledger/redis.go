package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// Redis key template: one key per digest, value is the state name.
const stateKeyFmt = "claim:state:%s" // %s = digest hex

// Redis is the production ledger. All transitions out of Unseen go through
// SET NX, so two racing writers on the same digest resolve atomically — the
// loser reads the winner's value and fails with the matching error.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func stateKey(digest common.Hash) string {
	return fmt.Sprintf(stateKeyFmt, digest.Hex())
}

func (r *Redis) State(ctx context.Context, digest common.Hash) (State, error) {
	val, err := r.rdb.Get(ctx, stateKey(digest)).Result()
	if err == redis.Nil {
		return StateUnseen, nil
	}
	if err != nil {
		return StateUnseen, fmt.Errorf("ledger get %s: %w", digest.Hex(), err)
	}
	return parseState(val)
}

func (r *Redis) MarkCancelled(ctx context.Context, digest common.Hash) error {
	key := stateKey(digest)
	set, err := r.rdb.SetNX(ctx, key, StateCancelled.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("ledger setnx %s: %w", digest.Hex(), err)
	}
	if set {
		return nil
	}
	val, err := r.rdb.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("ledger get %s: %w", digest.Hex(), err)
	}
	if val == StateCancelled.String() {
		return nil // idempotent
	}
	return ErrPerformed
}

func (r *Redis) BeginPerform(ctx context.Context, digest common.Hash) error {
	key := stateKey(digest)
	set, err := r.rdb.SetNX(ctx, key, StatePerforming.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("ledger setnx %s: %w", digest.Hex(), err)
	}
	if set {
		return nil
	}
	val, err := r.rdb.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("ledger get %s: %w", digest.Hex(), err)
	}
	if val == StateCancelled.String() {
		return ErrCancelled
	}
	return ErrPerformed
}

func (r *Redis) CompletePerform(ctx context.Context, digest common.Hash) error {
	return r.rdb.Set(ctx, stateKey(digest), StatePerformed.String(), 0).Err()
}

func (r *Redis) AbortPerform(ctx context.Context, digest common.Hash) error {
	return r.rdb.Del(ctx, stateKey(digest)).Err()
}

func parseState(s string) (State, error) {
	for _, st := range []State{StateCancelled, StatePerforming, StatePerformed} {
		if s == st.String() {
			return st, nil
		}
	}
	return StateUnseen, fmt.Errorf("ledger: unrecognized state value %q", s)
}
