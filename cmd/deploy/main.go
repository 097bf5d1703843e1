// cmd/deploy/main.go — deploys the gateway's collaborator contracts.
//
// Two-step deploy:
//   1. Deploy TransferProxy — the contract the operator calls to move
//      maker tokens (makers approve it separately)
//   2. Deploy TokenFactory — the contract that instantiates new tokens
//      and emits TokenCreated
//
// Usage:
//   go run ./cmd/deploy/ --rpc <url> --key <hex> --chain-id <id>
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tokenforge/deploy-gateway/internal/chain"
)

func main() {
	rpcURL := flag.String("rpc", "http://localhost:8545", "EVM RPC endpoint")
	keyHex := flag.String("key", "", "deployer private key (hex, with or without 0x)")
	chainID := flag.Int64("chain-id", 1, "chain ID")
	flag.Parse()

	if *keyHex == "" {
		fmt.Fprintln(os.Stderr, "error: --key is required")
		os.Exit(1)
	}

	// ── private key ───────────────────────────────────────────────────────────
	keyStr := strings.TrimPrefix(*keyHex, "0x")
	privKey, err := crypto.HexToECDSA(keyStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse key: %v\n", err)
		os.Exit(1)
	}
	deployer := crypto.PubkeyToAddress(privKey.PublicKey)
	fmt.Printf("Deployer : %s\n", deployer.Hex())

	// ── chain client ──────────────────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := ethclient.DialContext(ctx, *rpcURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial rpc: %v\n", err)
		os.Exit(1)
	}

	// ── transactor ────────────────────────────────────────────────────────────
	auth, err := bind.NewKeyedTransactorWithChainID(privKey, big.NewInt(*chainID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "transactor: %v\n", err)
		os.Exit(1)
	}
	auth.Context = ctx

	// ── helper: load bytecode from Foundry artifact ───────────────────────────
	loadBytecode := func(artifactPath string) []byte {
		raw, err := os.ReadFile(artifactPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read artifact %s: %v\n", artifactPath, err)
			os.Exit(1)
		}
		var artifact struct {
			Bytecode struct {
				Object string `json:"object"`
			} `json:"bytecode"`
		}
		if err := json.Unmarshal(raw, &artifact); err != nil {
			fmt.Fprintf(os.Stderr, "parse artifact %s: %v\n", artifactPath, err)
			os.Exit(1)
		}
		b, err := hex.DecodeString(strings.TrimPrefix(artifact.Bytecode.Object, "0x"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode bytecode %s: %v\n", artifactPath, err)
			os.Exit(1)
		}
		return b
	}

	deploy := func(label, rawABI, artifactPath string) string {
		parsed, err := abi.JSON(strings.NewReader(rawABI))
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse %s ABI: %v\n", label, err)
			os.Exit(1)
		}
		bytecode := loadBytecode(artifactPath)

		addr, tx, _, err := bind.DeployContract(auth, parsed, bytecode, client)
		if err != nil {
			fmt.Fprintf(os.Stderr, "deploy %s: %v\n", label, err)
			os.Exit(1)
		}
		fmt.Printf("  Tx hash : %s\n", tx.Hash().Hex())
		receipt, err := bind.WaitMined(ctx, client, tx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wait mined (%s): %v\n", label, err)
			os.Exit(1)
		}
		if receipt.Status == 0 {
			fmt.Fprintf(os.Stderr, "%s deploy tx reverted\n", label)
			os.Exit(1)
		}
		fmt.Printf("  Address : %s\n", addr.Hex())
		return addr.Hex()
	}

	// ── Step 1: TransferProxy ─────────────────────────────────────────────────
	fmt.Printf("\n[1/2] Deploying TransferProxy (chainID=%d)...\n", *chainID)
	proxyAddr := deploy("TransferProxy", chain.TransferProxyABI,
		"contracts/out/TransferProxy.sol/TransferProxy.json")

	// ── Step 2: TokenFactory ──────────────────────────────────────────────────
	fmt.Printf("\n[2/2] Deploying TokenFactory...\n")
	factoryAddr := deploy("TokenFactory", chain.TokenFactoryABI,
		"contracts/out/TokenFactory.sol/TokenFactory.json")

	// ── Summary ───────────────────────────────────────────────────────────────
	fmt.Printf(`
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
DEPLOY COMPLETE
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
TransferProxy : %s
TokenFactory  : %s

Set in .env:
  TRANSFER_PROXY=%s
  TOKEN_FACTORY=%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, proxyAddr, factoryAddr, proxyAddr, factoryAddr)
}
