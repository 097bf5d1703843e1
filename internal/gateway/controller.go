// Package gateway orchestrates claim execution: precondition checks in a
// fixed order, replay bookkeeping, then the transfer + deployment.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tokenforge/deploy-gateway/internal/claim"
	"github.com/tokenforge/deploy-gateway/internal/executor"
	"github.com/tokenforge/deploy-gateway/internal/ledger"
	"github.com/tokenforge/deploy-gateway/internal/sig"
)

// Controller is the sole writer of the replay ledger. addr is this
// instance's identity and is bound into every digest.
type Controller struct {
	addr   common.Address
	ledger ledger.Ledger
	exec   executor.ActionExecutor
	notify Notifier
	now    func() time.Time
	log    *zap.Logger
}

func New(addr common.Address, led ledger.Ledger, exec executor.ActionExecutor, notify Notifier, log *zap.Logger) *Controller {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Controller{
		addr:   addr,
		ledger: led,
		exec:   exec,
		notify: notify,
		now:    time.Now,
		log:    log,
	}
}

// DigestOf computes the claim's identity under this gateway instance.
func (g *Controller) DigestOf(c *claim.DeployClaim) common.Hash {
	return claim.Digest(g.addr, c)
}

// VerifySignature checks env against digest for signer without touching any
// state.
func (g *Controller) VerifySignature(signer common.Address, digest common.Hash, env sig.Envelope) (bool, error) {
	ok, err := sig.Verify(signer, digest, env)
	if errors.Is(err, sig.ErrUnknownKind) {
		return false, ErrInvalidSignatureKind
	}
	return ok, err
}

// Perform executes a claim addressed to the caller. The caller must be the
// claim's taker; the transfer recipient is used exactly as signed.
func (g *Controller) Perform(ctx context.Context, caller common.Address, c *claim.DeployClaim, env sig.Envelope) (common.Address, error) {
	if c.Taker != caller {
		return common.Address{}, ErrTakerMismatch
	}
	return g.perform(ctx, caller, c, env, c.Transfer.Recipient.Address())
}

// PerformAnyTaker executes an open claim: any caller is accepted, and a
// wildcard transfer recipient is substituted with the caller so an unknown
// future party can redeem the claim to themselves.
func (g *Controller) PerformAnyTaker(ctx context.Context, caller common.Address, c *claim.DeployClaim, env sig.Envelope) (common.Address, error) {
	return g.perform(ctx, caller, c, env, c.Transfer.Recipient.Resolve(caller))
}

func (g *Controller) perform(ctx context.Context, caller common.Address, c *claim.DeployClaim, env sig.Envelope, recipient common.Address) (common.Address, error) {
	if c.Expiration != 0 && g.now().Unix() > c.Expiration {
		return common.Address{}, ErrClaimExpired
	}

	digest := claim.Digest(g.addr, c)

	ok, err := sig.Verify(c.Maker, digest, env)
	switch {
	case errors.Is(err, sig.ErrUnknownKind):
		return common.Address{}, ErrInvalidSignatureKind
	case err != nil:
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case !ok:
		return common.Address{}, ErrInvalidSignature
	}

	// Reserve the digest before touching external state so a reentrant or
	// racing call observes it as taken and fails cleanly.
	if err := g.ledger.BeginPerform(ctx, digest); err != nil {
		switch {
		case errors.Is(err, ledger.ErrCancelled):
			return common.Address{}, ErrDeployCancelled
		case errors.Is(err, ledger.ErrPerformed):
			return common.Address{}, ErrDeployAlreadyPerformed
		default:
			return common.Address{}, fmt.Errorf("reserve digest %s: %w", digest.Hex(), err)
		}
	}

	token, err := g.exec.Execute(ctx, c.Transfer, c.Maker, c.Token, recipient)
	if err != nil {
		// No host rollback here: release the reservation so the claim can
		// be retried or cancelled.
		if aerr := g.ledger.AbortPerform(ctx, digest); aerr != nil {
			g.log.Error("release perform reservation",
				zap.String("digest", digest.Hex()),
				zap.Error(aerr),
			)
		}
		return common.Address{}, err
	}

	if err := g.ledger.CompletePerform(ctx, digest); err != nil {
		// The transfer and deployment already landed; surface the failure
		// with enough context for an operator to repair the record.
		return token, fmt.Errorf("record performed digest %s (token %s): %w", digest.Hex(), token.Hex(), err)
	}

	g.notify.Performed(ctx, PerformEvent{
		Maker:  c.Maker,
		Taker:  caller,
		Token:  token,
		Digest: digest,
	})
	g.log.Info("claim performed",
		zap.String("digest", digest.Hex()),
		zap.String("maker", c.Maker.Hex()),
		zap.String("taker", caller.Hex()),
		zap.String("token", token.Hex()),
	)
	return token, nil
}

// Cancel voids a claim before it is performed. Only the maker may cancel;
// cancelling an already-cancelled claim is a tolerated no-op and emits the
// event again.
func (g *Controller) Cancel(ctx context.Context, caller common.Address, c *claim.DeployClaim) (common.Hash, error) {
	if c.Maker != caller {
		return common.Hash{}, ErrMakerMismatch
	}

	digest := claim.Digest(g.addr, c)
	if err := g.ledger.MarkCancelled(ctx, digest); err != nil {
		if errors.Is(err, ledger.ErrPerformed) {
			return common.Hash{}, ErrDeployAlreadyPerformed
		}
		return common.Hash{}, fmt.Errorf("cancel digest %s: %w", digest.Hex(), err)
	}

	g.notify.Cancelled(ctx, CancelEvent{Maker: c.Maker, Taker: c.Taker, Digest: digest})
	g.log.Info("claim cancelled",
		zap.String("digest", digest.Hex()),
		zap.String("maker", c.Maker.Hex()),
	)
	return digest, nil
}

// IsCancelled reports whether digest was cancelled.
func (g *Controller) IsCancelled(ctx context.Context, digest common.Hash) (bool, error) {
	st, err := g.ledger.State(ctx, digest)
	return st == ledger.StateCancelled, err
}

// IsPerformed reports whether digest was performed. A digest whose
// execution is in flight counts as performed — that is exactly what a
// racing caller is rejected with.
func (g *Controller) IsPerformed(ctx context.Context, digest common.Hash) (bool, error) {
	st, err := g.ledger.State(ctx, digest)
	return st == ledger.StatePerformed || st == ledger.StatePerforming, err
}

// ClaimState returns the raw ledger state for digest.
func (g *Controller) ClaimState(ctx context.Context, digest common.Hash) (ledger.State, error) {
	return g.ledger.State(ctx, digest)
}
