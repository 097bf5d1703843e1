// Package executor runs the two side effects of an authorized claim:
// the payment leg through the transfer proxy, then the token deployment.
package executor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tokenforge/deploy-gateway/internal/claim"
)

// TransferProxy moves tokens on the maker's behalf. It must fail atomically:
// either the full amount moves or nothing does.
type TransferProxy interface {
	ExecuteTransfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error
}

// TokenFactory instantiates a new token contract and returns its address.
type TokenFactory interface {
	CreateToken(ctx context.Context, spec claim.TokenSpec) (common.Address, error)
}

// ActionExecutor is what the gateway controller invokes once a claim has
// passed every precondition.
type ActionExecutor interface {
	Execute(ctx context.Context, transfer claim.TransferSpec, maker common.Address, token claim.TokenSpec, recipient common.Address) (common.Address, error)
}

type Executor struct {
	proxy   TransferProxy
	factory TokenFactory
	log     *zap.Logger
}

func New(proxy TransferProxy, factory TokenFactory, log *zap.Logger) *Executor {
	return &Executor{proxy: proxy, factory: factory, log: log}
}

// Execute pays first, deploys second: a failed transfer must leave nothing
// deployed, and a failed deployment surfaces as an error the controller
// uses to release its ledger reservation.
func (e *Executor) Execute(
	ctx context.Context,
	transfer claim.TransferSpec,
	maker common.Address,
	token claim.TokenSpec,
	recipient common.Address,
) (common.Address, error) {
	if err := e.proxy.ExecuteTransfer(ctx, transfer.Token, maker, recipient, transfer.Amount); err != nil {
		return common.Address{}, fmt.Errorf("transfer leg: %w", err)
	}

	addr, err := e.factory.CreateToken(ctx, token)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy leg: %w", err)
	}

	e.log.Info("claim executed",
		zap.String("token", addr.Hex()),
		zap.String("maker", maker.Hex()),
		zap.String("recipient", recipient.Hex()),
	)
	return addr, nil
}
