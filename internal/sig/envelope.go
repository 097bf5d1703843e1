// Package sig verifies deploy-claim signatures across the message-wrapping
// conventions wallets use for a 32-byte digest.
package sig

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind selects how the digest is wrapped before ECDSA recovery.
type Kind uint8

const (
	// KindEthSign is the eth_sign convention: the 32-byte length is
	// declared in ASCII decimal ("\n32").
	KindEthSign Kind = iota + 1
	// KindTrezor is the hardware-wallet variant: the same prefix but with
	// the length as a single raw byte ("\n\x20").
	KindTrezor
	// KindTypedData signs the digest directly with no wrapping.
	KindTypedData
)

var (
	ErrUnknownKind = errors.New("sig: unknown signature kind")
	ErrRecovery    = errors.New("sig: signature recovery failed")
)

func (k Kind) String() string {
	switch k {
	case KindEthSign:
		return "eth_sign"
	case KindTrezor:
		return "trezor"
	case KindTypedData:
		return "typed_data"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps the wire name onto a Kind. Unrecognized names are a hard
// error — there is no default scheme.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "eth_sign":
		return KindEthSign, nil
	case "trezor":
		return KindTrezor, nil
	case "typed_data":
		return KindTypedData, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindEthSign, KindTrezor, KindTypedData:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Envelope carries the three ECDSA scalars plus the wrapping convention the
// signer used. V follows the Ethereum convention {27,28}; {0,1} is also
// accepted.
type Envelope struct {
	V    uint8       `json:"v"`
	R    common.Hash `json:"r"`
	S    common.Hash `json:"s"`
	Kind Kind        `json:"kind"`
}

// Both prefixes are fixed constants, not computed from the message.
var (
	ethSignPrefix = []byte("\x19Ethereum Signed Message:\n32")
	trezorPrefix  = []byte("\x19Ethereum Signed Message:\n\x20")
)

// recoveryHash wraps digest per the envelope's kind.
func (e Envelope) recoveryHash(digest common.Hash) (common.Hash, error) {
	switch e.Kind {
	case KindEthSign:
		return crypto.Keccak256Hash(ethSignPrefix, digest.Bytes()), nil
	case KindTrezor:
		return crypto.Keccak256Hash(trezorPrefix, digest.Bytes()), nil
	case KindTypedData:
		return digest, nil
	default:
		return common.Hash{}, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(e.Kind))
	}
}

// Verify reports whether signer produced e over digest. An unrecognized
// kind or a signature that cannot be recovered is an error; a well-formed
// signature by a different key is simply (false, nil).
func Verify(signer common.Address, digest common.Hash, e Envelope) (bool, error) {
	hash, err := e.recoveryHash(digest)
	if err != nil {
		return false, err
	}

	raw := make([]byte, 65)
	copy(raw[0:32], e.R[:])
	copy(raw[32:64], e.S[:])
	v := e.V
	if v >= 27 {
		v -= 27
	}
	raw[64] = v

	pub, err := crypto.SigToPub(hash.Bytes(), raw)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRecovery, err)
	}
	return crypto.PubkeyToAddress(*pub) == signer, nil
}

// Sign produces an envelope over digest under the given kind. Used by the
// off-chain signer tool and by tests; the gateway itself only verifies.
func Sign(digest common.Hash, kind Kind, key *ecdsa.PrivateKey) (Envelope, error) {
	e := Envelope{Kind: kind}
	hash, err := e.recoveryHash(digest)
	if err != nil {
		return Envelope{}, err
	}
	raw, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return Envelope{}, fmt.Errorf("sign digest: %w", err)
	}
	copy(e.R[:], raw[0:32])
	copy(e.S[:], raw[32:64])
	e.V = raw[64] + 27
	return e, nil
}
