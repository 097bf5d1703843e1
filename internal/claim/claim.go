// Package claim defines the deploy claim and its digest wire format.
//
// A DeployClaim is constructed and signed off-chain by the maker. The
// gateway never stores the claim itself — only its digest, which both
// sides must be able to compute independently. The byte layout in hash.go
// is therefore a wire contract, not an implementation detail.
package claim

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenSpec parameterizes the token contract the gateway deploys.
type TokenSpec struct {
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Supply   *big.Int       `json:"supply"`
	Decimals uint8          `json:"decimals"`
	Owner    common.Address `json:"owner"`
}

// Recipient is the destination of the payment leg. The zero value means
// "whoever executes the claim" and is wire-encoded as the zero address;
// substitution only happens on the any-taker path.
type Recipient common.Address

// FixedRecipient pins the payment leg to a specific account.
func FixedRecipient(a common.Address) Recipient { return Recipient(a) }

// CallerRecipient marks the recipient for substitution with the executing
// caller.
func CallerRecipient() Recipient { return Recipient{} }

// CallerSubstituted reports whether the recipient is the wildcard.
func (r Recipient) CallerSubstituted() bool { return common.Address(r) == (common.Address{}) }

// Resolve returns the account the transfer should pay: the fixed recipient,
// or caller when the recipient is the wildcard.
func (r Recipient) Resolve(caller common.Address) common.Address {
	if r.CallerSubstituted() {
		return caller
	}
	return common.Address(r)
}

// Address returns the wire-format address (zero for the wildcard).
func (r Recipient) Address() common.Address { return common.Address(r) }

func (r Recipient) MarshalText() ([]byte, error) { return common.Address(r).MarshalText() }

func (r *Recipient) UnmarshalText(b []byte) error { return (*common.Address)(r).UnmarshalText(b) }

// TransferSpec is the payment/escrow-release leg executed by the transfer
// proxy before the token is deployed.
type TransferSpec struct {
	Token     common.Address `json:"token"`
	Recipient Recipient      `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

// DeployClaim is a maker-authorized intent: deploy Token and pay Transfer
// in one unit. Seed salts the digest so a maker can issue several otherwise
// identical claims; Expiration of zero means the claim never expires.
type DeployClaim struct {
	Maker      common.Address `json:"maker"`
	Taker      common.Address `json:"taker"`
	Token      TokenSpec      `json:"token"`
	Transfer   TransferSpec   `json:"transfer"`
	Seed       common.Hash    `json:"seed"`
	Expiration int64          `json:"expiration"`
}

// OpenTaker reports whether any account may execute the claim
// (taker is the zero address).
func (c *DeployClaim) OpenTaker() bool { return c.Taker == (common.Address{}) }
