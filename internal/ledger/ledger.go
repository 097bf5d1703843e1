// Package ledger is the replay record: one lifecycle state per claim
// digest, append-only except for the transient Performing reservation.
package ledger

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// State is the lifecycle of a digest. Collapsing the cancelled/performed
// booleans into one enum makes "both at once" unrepresentable.
type State uint8

const (
	StateUnseen State = iota
	StateCancelled
	// StatePerforming is a reservation held while the transfer and deploy
	// run; it is promoted to Performed on success and released on failure.
	StatePerforming
	StatePerformed
)

func (s State) String() string {
	switch s {
	case StateUnseen:
		return "unseen"
	case StateCancelled:
		return "cancelled"
	case StatePerforming:
		return "performing"
	case StatePerformed:
		return "performed"
	default:
		return "unknown"
	}
}

// Transition failures. Callers translate these into their own taxonomy.
var (
	ErrCancelled = errors.New("ledger: digest is cancelled")
	ErrPerformed = errors.New("ledger: digest is already performed")
)

// Ledger enforces the transition table
//
//	Unseen     → Cancelled    MarkCancelled (idempotent on Cancelled)
//	Unseen     → Performing   BeginPerform
//	Performing → Performed    CompletePerform
//	Performing → Unseen       AbortPerform
//
// Nothing ever leaves Cancelled or Performed. MarkCancelled and
// BeginPerform are atomic with respect to each other: of two racing calls
// on the same digest exactly one wins.
type Ledger interface {
	State(ctx context.Context, digest common.Hash) (State, error)
	MarkCancelled(ctx context.Context, digest common.Hash) error
	BeginPerform(ctx context.Context, digest common.Hash) error
	CompletePerform(ctx context.Context, digest common.Hash) error
	AbortPerform(ctx context.Context, digest common.Hash) error
}
