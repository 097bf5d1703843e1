// Package httpauth authenticates API callers by their wallet signature.
// The recovered address becomes the caller identity the gateway's
// maker/taker preconditions are checked against.
package httpauth

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// CallerKey is the gin context key holding the authenticated
// common.Address.
const CallerKey = "caller_address"

// Request headers.
const (
	HeaderAddress   = "X-Wallet-Address"
	HeaderMessage   = "X-Signed-Message"
	HeaderSignature = "X-Wallet-Signature"
)

// SignedRequest is the JSON payload inside X-Signed-Message. Nonce makes
// each signed request single-use; ExpiresAt bounds how long a captured
// request stays valid.
type SignedRequest struct {
	Action    string `json:"action"`
	ExpiresAt int64  `json:"expires_at"`
	Nonce     string `json:"nonce"`
}

const (
	maxFutureWindow = 5 * time.Minute
	nonceKeyFmt     = "auth:nonce:%s"
)

// PersonalHash applies the EIP-191 personal-message prefix with the
// ASCII-decimal length, the convention browser wallets use for signing
// arbitrary payloads.
func PersonalHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return crypto.Keccak256([]byte(prefix), msg)
}

// RecoverSigner returns the address that signed msg under the personal
// prefix. sig is 65 bytes R‖S‖V with V in {0,1} or {27,28}.
func RecoverSigner(msg, sigBytes []byte) (common.Address, error) {
	if len(sigBytes) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}
	normalized := make([]byte, 65)
	copy(normalized, sigBytes)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(PersonalHash(msg), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("ecrecover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Caller extracts the authenticated address set by Middleware.
func Caller(c *gin.Context) common.Address {
	return c.MustGet(CallerKey).(common.Address)
}

// Middleware validates the wallet-signature headers and stores the caller
// address in the gin context. Replays are rejected by a single-use nonce
// held in Redis for the request's remaining lifetime.
func Middleware(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		addrHex := c.GetHeader(HeaderAddress)
		msgB64 := c.GetHeader(HeaderMessage)
		sigHex := c.GetHeader(HeaderSignature)
		if addrHex == "" || msgB64 == "" || sigHex == "" {
			abort(c, "missing auth headers")
			return
		}

		msg, err := base64.StdEncoding.DecodeString(msgB64)
		if err != nil {
			abort(c, "invalid signed message encoding")
			return
		}
		var req SignedRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			abort(c, "invalid signed message JSON")
			return
		}

		now := time.Now().Unix()
		if req.ExpiresAt <= now {
			abort(c, "request expired")
			return
		}
		if req.ExpiresAt > now+int64(maxFutureWindow.Seconds()) {
			abort(c, "expires_at too far in future")
			return
		}
		if req.Nonce == "" {
			abort(c, "missing nonce")
			return
		}

		sigBytes, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
		if err != nil {
			abort(c, "invalid signature hex")
			return
		}
		recovered, err := RecoverSigner(msg, sigBytes)
		if err != nil || !strings.EqualFold(recovered.Hex(), addrHex) {
			abort(c, "invalid signature")
			return
		}

		// Single-use nonce: SET NX holds it until the request would have
		// expired anyway.
		ttl := time.Duration(req.ExpiresAt-now) * time.Second
		set, err := rdb.SetNX(context.Background(), fmt.Sprintf(nonceKeyFmt, req.Nonce), 1, ttl).Result()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !set {
			abort(c, "nonce already used")
			return
		}

		c.Set(CallerKey, recovered)
		c.Next()
	}
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
