package gateway

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/tokenforge/deploy-gateway/internal/claim"
	"github.com/tokenforge/deploy-gateway/internal/ledger"
	"github.com/tokenforge/deploy-gateway/internal/sig"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type execCall struct {
	maker     common.Address
	recipient common.Address
}

type fakeExec struct {
	mu    sync.Mutex
	calls []execCall
	fail  error
	addr  common.Address
}

func (f *fakeExec) Execute(_ context.Context, _ claim.TransferSpec, maker common.Address, _ claim.TokenSpec, recipient common.Address) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{maker: maker, recipient: recipient})
	if f.fail != nil {
		return common.Address{}, f.fail
	}
	return f.addr, nil
}

func (f *fakeExec) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type captureNotifier struct {
	performs []PerformEvent
	cancels  []CancelEvent
}

func (n *captureNotifier) Performed(_ context.Context, ev PerformEvent) {
	n.performs = append(n.performs, ev)
}

func (n *captureNotifier) Cancelled(_ context.Context, ev CancelEvent) {
	n.cancels = append(n.cancels, ev)
}

// ── fixture ───────────────────────────────────────────────────────────────────

var (
	gatewayAddr  = common.HexToAddress("0x4242424242424242424242424242424242424242")
	newTokenAddr = common.HexToAddress("0x1010101010101010101010101010101010101010")
	takerAddr    = common.HexToAddress("0x2020202020202020202020202020202020202020")
	strangerAddr = common.HexToAddress("0x3030303030303030303030303030303030303030")
)

type fixture struct {
	gw     *Controller
	exec   *fakeExec
	events *captureNotifier
	maker  common.Address
	sign   func(*claim.DeployClaim) sig.Envelope
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	maker := crypto.PubkeyToAddress(key.PublicKey)

	exec := &fakeExec{addr: newTokenAddr}
	events := &captureNotifier{}
	gw := New(gatewayAddr, ledger.NewMemory(), exec, events, zap.NewNop())

	return &fixture{
		gw:     gw,
		exec:   exec,
		events: events,
		maker:  maker,
		sign: func(c *claim.DeployClaim) sig.Envelope {
			env, err := sig.Sign(claim.Digest(gatewayAddr, c), sig.KindTypedData, key)
			if err != nil {
				t.Fatal(err)
			}
			return env
		},
	}
}

func (f *fixture) claim() *claim.DeployClaim {
	return &claim.DeployClaim{
		Maker: f.maker,
		Taker: takerAddr,
		Token: claim.TokenSpec{
			Name:     "Forge Token",
			Symbol:   "FRG",
			Supply:   big.NewInt(21_000_000),
			Decimals: 18,
			Owner:    f.maker,
		},
		Transfer: claim.TransferSpec{
			Token:     common.HexToAddress("0x5050505050505050505050505050505050505050"),
			Recipient: claim.FixedRecipient(f.maker),
			Amount:    big.NewInt(1000),
		},
		Seed: common.HexToHash("0x01"),
	}
}

// ── Perform ───────────────────────────────────────────────────────────────────

func TestPerform_Succeeds(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	ctx := context.Background()

	token, err := f.gw.Perform(ctx, takerAddr, c, f.sign(c))
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if token != newTokenAddr {
		t.Errorf("token: got %s, want %s", token.Hex(), newTokenAddr.Hex())
	}

	performed, err := f.gw.IsPerformed(ctx, f.gw.DigestOf(c))
	if err != nil || !performed {
		t.Errorf("IsPerformed: got (%v, %v), want (true, nil)", performed, err)
	}
	if len(f.events.performs) != 1 {
		t.Fatalf("perform events: got %d, want 1", len(f.events.performs))
	}
	ev := f.events.performs[0]
	if ev.Maker != f.maker || ev.Taker != takerAddr || ev.Token != newTokenAddr {
		t.Errorf("event fields wrong: %+v", ev)
	}
}

func TestPerform_SucceedsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	env := f.sign(c)
	ctx := context.Background()

	if _, err := f.gw.Perform(ctx, takerAddr, c, env); err != nil {
		t.Fatalf("first Perform: %v", err)
	}
	if _, err := f.gw.Perform(ctx, takerAddr, c, env); !errors.Is(err, ErrDeployAlreadyPerformed) {
		t.Errorf("second Perform: got %v, want ErrDeployAlreadyPerformed", err)
	}
	if _, err := f.gw.PerformAnyTaker(ctx, strangerAddr, c, env); !errors.Is(err, ErrDeployAlreadyPerformed) {
		t.Errorf("PerformAnyTaker after Perform: got %v, want ErrDeployAlreadyPerformed", err)
	}
	if f.exec.callCount() != 1 {
		t.Errorf("executor ran %d times, want 1", f.exec.callCount())
	}
}

func TestPerform_TakerMismatch_NoSideEffects(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	ctx := context.Background()

	_, err := f.gw.Perform(ctx, strangerAddr, c, f.sign(c))
	if !errors.Is(err, ErrTakerMismatch) {
		t.Fatalf("got %v, want ErrTakerMismatch", err)
	}
	if f.exec.callCount() != 0 {
		t.Error("executor must not run on a taker mismatch")
	}
	st, _ := f.gw.ClaimState(ctx, f.gw.DigestOf(c))
	if st != ledger.StateUnseen {
		t.Errorf("ledger touched on rejected call: state %s", st)
	}
}

func TestPerform_Expired(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	c.Expiration = time.Now().Add(-time.Hour).Unix()

	_, err := f.gw.Perform(context.Background(), takerAddr, c, f.sign(c))
	if !errors.Is(err, ErrClaimExpired) {
		t.Fatalf("got %v, want ErrClaimExpired", err)
	}
}

func TestPerform_ExpirationBoundary(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.gw.now = func() time.Time { return now }

	// expiration == currentTime is still valid.
	c := f.claim()
	c.Expiration = now.Unix()
	if _, err := f.gw.Perform(context.Background(), takerAddr, c, f.sign(c)); err != nil {
		t.Errorf("claim expiring now must still perform: %v", err)
	}

	// Zero means never expires.
	c2 := f.claim()
	c2.Seed = common.HexToHash("0x02")
	c2.Expiration = 0
	if _, err := f.gw.Perform(context.Background(), takerAddr, c2, f.sign(c2)); err != nil {
		t.Errorf("zero expiration must never expire: %v", err)
	}
}

func TestPerform_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	env := f.sign(c)
	env.S[0] ^= 0x01

	_, err := f.gw.Perform(context.Background(), takerAddr, c, env)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
	if f.exec.callCount() != 0 {
		t.Error("executor must not run on an invalid signature")
	}
}

func TestPerform_SignatureOverDifferentClaim(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	env := f.sign(c)
	c.Token.Supply = big.NewInt(999) // digest no longer matches the signature

	_, err := f.gw.Perform(context.Background(), takerAddr, c, env)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
}

func TestPerform_UnknownSignatureKind(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	env := f.sign(c)
	env.Kind = sig.Kind(42)

	_, err := f.gw.Perform(context.Background(), takerAddr, c, env)
	if !errors.Is(err, ErrInvalidSignatureKind) {
		t.Fatalf("got %v, want ErrInvalidSignatureKind", err)
	}
}

func TestPerform_AfterCancel(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	ctx := context.Background()

	if _, err := f.gw.Cancel(ctx, f.maker, c); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_, err := f.gw.Perform(ctx, takerAddr, c, f.sign(c))
	if !errors.Is(err, ErrDeployCancelled) {
		t.Fatalf("got %v, want ErrDeployCancelled", err)
	}
	if f.exec.callCount() != 0 {
		t.Error("executor must not run on a cancelled claim")
	}
}

func TestPerform_ExecutorFailureReleasesDigest(t *testing.T) {
	f := newFixture(t)
	f.exec.fail = errors.New("proxy reverted")
	c := f.claim()
	env := f.sign(c)
	ctx := context.Background()

	if _, err := f.gw.Perform(ctx, takerAddr, c, env); err == nil {
		t.Fatal("expected executor failure to propagate")
	}
	st, _ := f.gw.ClaimState(ctx, f.gw.DigestOf(c))
	if st != ledger.StateUnseen {
		t.Fatalf("state after failed execute: got %s, want unseen", st)
	}
	if len(f.events.performs) != 0 {
		t.Error("no perform event may be emitted on failure")
	}

	// The claim is retryable once the failure clears.
	f.exec.fail = nil
	if _, err := f.gw.Perform(ctx, takerAddr, c, env); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

// ── PerformAnyTaker ───────────────────────────────────────────────────────────

func TestPerformAnyTaker_WildcardRecipientGetsCaller(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	c.Taker = common.Address{}
	c.Transfer.Recipient = claim.CallerRecipient()
	ctx := context.Background()

	token, err := f.gw.PerformAnyTaker(ctx, strangerAddr, c, f.sign(c))
	if err != nil {
		t.Fatalf("PerformAnyTaker: %v", err)
	}
	if token != newTokenAddr {
		t.Errorf("token: got %s, want %s", token.Hex(), newTokenAddr.Hex())
	}
	if got := f.exec.calls[0].recipient; got != strangerAddr {
		t.Errorf("recipient: got %s, want caller %s", got.Hex(), strangerAddr.Hex())
	}
	if ev := f.events.performs[0]; ev.Taker != strangerAddr {
		t.Errorf("event taker: got %s, want caller %s", ev.Taker.Hex(), strangerAddr.Hex())
	}
}

func TestPerformAnyTaker_FixedRecipientUnchanged(t *testing.T) {
	f := newFixture(t)
	fixed := common.HexToAddress("0x6060606060606060606060606060606060606060")
	c := f.claim()
	c.Transfer.Recipient = claim.FixedRecipient(fixed)

	if _, err := f.gw.PerformAnyTaker(context.Background(), strangerAddr, c, f.sign(c)); err != nil {
		t.Fatalf("PerformAnyTaker: %v", err)
	}
	if got := f.exec.calls[0].recipient; got != fixed {
		t.Errorf("recipient: got %s, want fixed %s", got.Hex(), fixed.Hex())
	}
}

// ── Cancel ────────────────────────────────────────────────────────────────────

func TestCancel_MakerMismatch(t *testing.T) {
	f := newFixture(t)
	c := f.claim()

	_, err := f.gw.Cancel(context.Background(), strangerAddr, c)
	if !errors.Is(err, ErrMakerMismatch) {
		t.Fatalf("got %v, want ErrMakerMismatch", err)
	}
}

func TestCancel_IdempotentWithDuplicateEvents(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	ctx := context.Background()

	d1, err := f.gw.Cancel(ctx, f.maker, c)
	if err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	d2, err := f.gw.Cancel(ctx, f.maker, c)
	if err != nil {
		t.Fatalf("second cancel must succeed: %v", err)
	}
	if d1 != d2 {
		t.Error("cancel must return the same digest both times")
	}
	if len(f.events.cancels) != 2 {
		t.Fatalf("cancel events: got %d, want 2", len(f.events.cancels))
	}
	if f.events.cancels[0] != f.events.cancels[1] {
		t.Error("repeated cancel must emit identical events")
	}
}

func TestCancel_AfterPerform(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	ctx := context.Background()

	if _, err := f.gw.Perform(ctx, takerAddr, c, f.sign(c)); err != nil {
		t.Fatalf("Perform: %v", err)
	}
	_, err := f.gw.Cancel(ctx, f.maker, c)
	if !errors.Is(err, ErrDeployAlreadyPerformed) {
		t.Fatalf("got %v, want ErrDeployAlreadyPerformed", err)
	}
}

// ── queries ───────────────────────────────────────────────────────────────────

func TestVerifySignature_Query(t *testing.T) {
	f := newFixture(t)
	c := f.claim()
	env := f.sign(c)
	d := f.gw.DigestOf(c)

	ok, err := f.gw.VerifySignature(f.maker, d, env)
	if err != nil || !ok {
		t.Errorf("valid signature: got (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = f.gw.VerifySignature(strangerAddr, d, env)
	if err != nil || ok {
		t.Errorf("wrong signer: got (%v, %v), want (false, nil)", ok, err)
	}

	env.Kind = sig.Kind(7)
	if _, err := f.gw.VerifySignature(f.maker, d, env); !errors.Is(err, ErrInvalidSignatureKind) {
		t.Errorf("unknown kind: got %v, want ErrInvalidSignatureKind", err)
	}
}

func TestQueries_FreshDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.gw.DigestOf(f.claim())

	if cancelled, _ := f.gw.IsCancelled(ctx, d); cancelled {
		t.Error("fresh digest must not be cancelled")
	}
	if performed, _ := f.gw.IsPerformed(ctx, d); performed {
		t.Error("fresh digest must not be performed")
	}
}
