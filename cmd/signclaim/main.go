// cmd/signclaim/main.go — builds and signs a deploy claim off-chain.
//
// The maker runs this locally with their private key; the output JSON is
// what a taker submits to POST /api/claims/perform.
//
// Usage:
//   go run ./cmd/signclaim/ --key <hex> --gateway <addr> \
//     --name "Forge Token" --symbol FRG --supply 1000000 --decimals 18 \
//     --pay-token <addr> --amount 500 [--taker <addr>] [--recipient <addr>] \
//     [--expires-in 24h] [--kind eth_sign]
package main

import (
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tokenforge/deploy-gateway/internal/claim"
	"github.com/tokenforge/deploy-gateway/internal/sig"
)

func main() {
	keyHex := flag.String("key", "", "maker private key (hex, with or without 0x)")
	gatewayHex := flag.String("gateway", "", "gateway instance address the claim is bound to")
	name := flag.String("name", "", "token name")
	symbol := flag.String("symbol", "", "token symbol")
	supply := flag.String("supply", "0", "token total supply")
	decimals := flag.Uint("decimals", 18, "token decimals")
	owner := flag.String("owner", "", "token owner (defaults to the maker)")
	payToken := flag.String("pay-token", "", "address of the token paying for the deploy")
	amount := flag.String("amount", "0", "payment amount")
	taker := flag.String("taker", "", "counterparty address (empty = open to any taker)")
	recipient := flag.String("recipient", "", "payment recipient (empty = whoever performs)")
	expiresIn := flag.Duration("expires-in", 0, "claim lifetime from now (0 = never expires)")
	kindName := flag.String("kind", "eth_sign", "signature kind: eth_sign, trezor or typed_data")
	flag.Parse()

	if *keyHex == "" || *gatewayHex == "" {
		fmt.Fprintln(os.Stderr, "error: --key and --gateway are required")
		os.Exit(1)
	}

	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(*keyHex, "0x"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse key: %v\n", err)
		os.Exit(1)
	}
	maker := crypto.PubkeyToAddress(privKey.PublicKey)

	kind, err := sig.ParseKind(*kindName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	parseBig := func(label, s string) *big.Int {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid %s: %s\n", label, s)
			os.Exit(1)
		}
		return v
	}

	ownerAddr := maker
	if *owner != "" {
		ownerAddr = common.HexToAddress(*owner)
	}
	rcpt := claim.CallerRecipient()
	if *recipient != "" {
		rcpt = claim.FixedRecipient(common.HexToAddress(*recipient))
	}

	var seed common.Hash
	if _, err := rand.Read(seed[:]); err != nil {
		fmt.Fprintf(os.Stderr, "generate seed: %v\n", err)
		os.Exit(1)
	}

	var expiration int64
	if *expiresIn > 0 {
		expiration = time.Now().Add(*expiresIn).Unix()
	}

	c := &claim.DeployClaim{
		Maker: maker,
		Taker: common.HexToAddress(*taker), // zero when --taker is empty
		Token: claim.TokenSpec{
			Name:     *name,
			Symbol:   *symbol,
			Supply:   parseBig("supply", *supply),
			Decimals: uint8(*decimals),
			Owner:    ownerAddr,
		},
		Transfer: claim.TransferSpec{
			Token:     common.HexToAddress(*payToken),
			Recipient: rcpt,
			Amount:    parseBig("amount", *amount),
		},
		Seed:       seed,
		Expiration: expiration,
	}

	digest := claim.Digest(common.HexToAddress(*gatewayHex), c)
	env, err := sig.Sign(digest, kind, privKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign digest: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(map[string]any{
		"digest":    digest,
		"claim":     c,
		"signature": env,
	}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
