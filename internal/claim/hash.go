package claim

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wire format: every field is appended in declaration order with no
// separators. Integers are big-endian at fixed width (uint256 → 32 bytes,
// uint8 → 1 byte), addresses are their raw 20 bytes, strings their raw
// bytes. Off-chain signers reproduce these layouts byte for byte; do not
// reorder or re-encode fields.

// Hash returns keccak256 over the token-spec fields.
func (s TokenSpec) Hash() common.Hash {
	return crypto.Keccak256Hash(
		[]byte(s.Name),
		[]byte(s.Symbol),
		uint256Bytes(s.Supply),
		[]byte{s.Decimals},
		s.Owner.Bytes(),
	)
}

// Hash returns keccak256 over the transfer-spec fields.
func (t TransferSpec) Hash() common.Hash {
	return crypto.Keccak256Hash(
		t.Token.Bytes(),
		t.Recipient.Address().Bytes(),
		uint256Bytes(t.Amount),
	)
}

// Digest computes the unique identity of a claim as addressed to the
// gateway instance at gateway. Binding the gateway address into the digest
// keeps a claim signed for one instance from being replayed against
// another.
func Digest(gateway common.Address, c *DeployClaim) common.Hash {
	tokenHash := c.Token.Hash()
	transferHash := c.Transfer.Hash()

	exp := make([]byte, 32)
	big.NewInt(c.Expiration).FillBytes(exp)

	return crypto.Keccak256Hash(
		gateway.Bytes(),
		c.Maker.Bytes(),
		c.Taker.Bytes(),
		tokenHash.Bytes(),
		transferHash.Bytes(),
		c.Seed.Bytes(),
		exp,
	)
}

// uint256Bytes left-pads v into a 32-byte big-endian slot. nil encodes as
// zero so half-built claims still hash deterministically.
func uint256Bytes(v *big.Int) []byte {
	b := make([]byte, 32)
	if v != nil {
		v.FillBytes(b)
	}
	return b
}
