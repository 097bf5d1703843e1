package gateway

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// PerformEvent is emitted after a claim's transfer and deployment land.
// Taker is the account that executed the claim, which on the any-taker
// path differs from the claim's taker field.
type PerformEvent struct {
	Maker  common.Address
	Taker  common.Address
	Token  common.Address
	Digest common.Hash
}

// CancelEvent is emitted on every successful cancel call, including
// idempotent repeats.
type CancelEvent struct {
	Maker  common.Address
	Taker  common.Address
	Digest common.Hash
}

// Notifier receives gateway notifications. Delivery is best-effort and must
// not fail the operation that triggered it.
type Notifier interface {
	Performed(ctx context.Context, ev PerformEvent)
	Cancelled(ctx context.Context, ev CancelEvent)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Performed(context.Context, PerformEvent) {}
func (NopNotifier) Cancelled(context.Context, CancelEvent)  {}
