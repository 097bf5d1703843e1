package httpauth

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// signedHeaders builds a valid header set for key, optionally overriding
// the request payload.
func signedHeaders(t *testing.T, key *ecdsa.PrivateKey, req SignedRequest) http.Header {
	t.Helper()
	msg, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	sigBytes, err := crypto.Sign(PersonalHash(msg), key)
	if err != nil {
		t.Fatal(err)
	}
	sigBytes[64] += 27

	h := http.Header{}
	h.Set(HeaderAddress, crypto.PubkeyToAddress(key.PublicKey).Hex())
	h.Set(HeaderMessage, base64.StdEncoding.EncodeToString(msg))
	h.Set(HeaderSignature, "0x"+hex.EncodeToString(sigBytes))
	return h
}

func freshRequest(nonce string) SignedRequest {
	return SignedRequest{
		Action:    "perform",
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
		Nonce:     nonce,
	}
}

// testRouter mounts the middleware plus a handler echoing the caller.
func testRouter(rdb *redis.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Middleware(rdb), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": Caller(c).Hex()})
	})
	return r
}

func do(r *gin.Engine, headers http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header = headers
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ValidRequest(t *testing.T) {
	key, _ := crypto.GenerateKey()
	r := testRouter(newTestRedis(t))

	w := do(r, signedHeaders(t, key, freshRequest("n-1")))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Caller string `json:"caller"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)
	if common.HexToAddress(resp.Caller) != want {
		t.Errorf("caller: got %s, want %s", resp.Caller, want.Hex())
	}
}

func TestMiddleware_NonceReplayRejected(t *testing.T) {
	key, _ := crypto.GenerateKey()
	r := testRouter(newTestRedis(t))
	headers := signedHeaders(t, key, freshRequest("n-replay"))

	if w := do(r, headers); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	if w := do(r, headers); w.Code != http.StatusUnauthorized {
		t.Fatalf("replayed request: got %d, want 401", w.Code)
	}
}

func TestMiddleware_ExpiredRequest(t *testing.T) {
	key, _ := crypto.GenerateKey()
	r := testRouter(newTestRedis(t))

	req := freshRequest("n-exp")
	req.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if w := do(r, signedHeaders(t, key, req)); w.Code != http.StatusUnauthorized {
		t.Fatalf("expired request: got %d, want 401", w.Code)
	}
}

func TestMiddleware_AddressMismatchRejected(t *testing.T) {
	key, _ := crypto.GenerateKey()
	r := testRouter(newTestRedis(t))

	headers := signedHeaders(t, key, freshRequest("n-mismatch"))
	headers.Set(HeaderAddress, "0x00000000000000000000000000000000000000ff")
	if w := do(r, headers); w.Code != http.StatusUnauthorized {
		t.Fatalf("address mismatch: got %d, want 401", w.Code)
	}
}

func TestMiddleware_MissingHeaders(t *testing.T) {
	r := testRouter(newTestRedis(t))
	if w := do(r, http.Header{}); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing headers: got %d, want 401", w.Code)
	}
}

func TestRecoverSigner_RoundTrip(t *testing.T) {
	key, _ := crypto.GenerateKey()
	want := crypto.PubkeyToAddress(key.PublicKey)

	msg := []byte(`{"action":"cancel","nonce":"abc"}`)
	sigBytes, err := crypto.Sign(PersonalHash(msg), key)
	if err != nil {
		t.Fatal(err)
	}
	// V left as the raw recovery id {0,1}: both encodings must work.
	got, err := RecoverSigner(msg, sigBytes)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if got != want {
		t.Errorf("got %s, want %s", got.Hex(), want.Hex())
	}
}

func TestRecoverSigner_BadLength(t *testing.T) {
	if _, err := RecoverSigner([]byte("msg"), []byte("short")); err == nil {
		t.Fatal("expected error for short signature")
	}
}
