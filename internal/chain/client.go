// Package chain provides the on-chain collaborators the gateway invokes:
// the transfer proxy that moves maker tokens and the factory that deploys
// new token contracts.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tokenforge/deploy-gateway/internal/claim"
	"github.com/tokenforge/deploy-gateway/internal/config"
)

// TransferProxyABI is the surface of the deployed transfer proxy. The proxy
// must already be authorized to move the maker's tokens.
const TransferProxyABI = `[
	{"type":"function","name":"executeTransfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"token","type":"address"},{"name":"from","type":"address"},
	           {"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[]}
]`

// TokenFactoryABI is the surface of the deployed token factory. The new
// token's address is read back from the TokenCreated event.
const TokenFactoryABI = `[
	{"type":"function","name":"createToken","stateMutability":"nonpayable",
	 "inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},
	           {"name":"supply","type":"uint256"},{"name":"decimals","type":"uint8"},
	           {"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"TokenCreated","anonymous":false,
	 "inputs":[{"name":"token","type":"address","indexed":true},
	           {"name":"owner","type":"address","indexed":true}]}
]`

// Client wraps go-ethereum and binds the two collaborator contracts. It
// satisfies executor.TransferProxy and executor.TokenFactory.
type Client struct {
	eth         *ethclient.Client
	proxy       *bind.BoundContract
	factory     *bind.BoundContract
	factoryABI  abi.ABI
	chainID     *big.Int
	operatorKey *ecdsa.PrivateKey
	gatewayAddr common.Address
}

func NewClient(cfg *config.Config) (*Client, error) {
	eth, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Chain.OperatorKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}

	proxyABI, err := abi.JSON(strings.NewReader(TransferProxyABI))
	if err != nil {
		return nil, fmt.Errorf("parse transfer proxy ABI: %w", err)
	}
	factoryABI, err := abi.JSON(strings.NewReader(TokenFactoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse token factory ABI: %w", err)
	}

	proxyAddr := common.HexToAddress(cfg.Chain.TransferProxy)
	factoryAddr := common.HexToAddress(cfg.Chain.TokenFactory)

	return &Client{
		eth:         eth,
		proxy:       bind.NewBoundContract(proxyAddr, proxyABI, eth, eth, eth),
		factory:     bind.NewBoundContract(factoryAddr, factoryABI, eth, eth, eth),
		factoryABI:  factoryABI,
		chainID:     big.NewInt(cfg.Chain.ChainID),
		operatorKey: key,
		gatewayAddr: common.HexToAddress(cfg.Chain.GatewayAddress),
	}, nil
}

// GatewayAddress is this instance's identity, bound into every claim digest.
func (c *Client) GatewayAddress() common.Address { return c.gatewayAddr }

// ChainID returns the configured chain ID.
func (c *Client) ChainID() *big.Int { return c.chainID }

// transactOpts builds a *bind.TransactOpts signed by the operator key.
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.operatorKey, c.chainID)
	if err != nil {
		return nil, err
	}
	auth.Context = ctx
	return auth, nil
}

// ExecuteTransfer submits executeTransfer on the proxy and waits for the
// receipt; a reverted transaction is an error.
func (c *Client) ExecuteTransfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return fmt.Errorf("build tx opts: %w", err)
	}
	if amount == nil {
		amount = new(big.Int)
	}

	tx, err := c.proxy.Transact(opts, "executeTransfer", token, from, to, amount)
	if err != nil {
		return fmt.Errorf("executeTransfer tx: %w", err)
	}
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status == 0 {
		return fmt.Errorf("executeTransfer reverted: %s", tx.Hash().Hex())
	}
	return nil
}

// CreateToken submits createToken on the factory and returns the deployed
// token's address, decoded from the TokenCreated event in the receipt.
func (c *Client) CreateToken(ctx context.Context, spec claim.TokenSpec) (common.Address, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("build tx opts: %w", err)
	}
	supply := spec.Supply
	if supply == nil {
		supply = new(big.Int)
	}

	tx, err := c.factory.Transact(opts, "createToken",
		spec.Name, spec.Symbol, supply, spec.Decimals, spec.Owner)
	if err != nil {
		return common.Address{}, fmt.Errorf("createToken tx: %w", err)
	}
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status == 0 {
		return common.Address{}, fmt.Errorf("createToken reverted: %s", tx.Hash().Hex())
	}

	addr, err := tokenCreatedAddress(c.factoryABI, receipt.Logs)
	if err != nil {
		return common.Address{}, fmt.Errorf("tx %s: %w", tx.Hash().Hex(), err)
	}
	return addr, nil
}

// tokenCreatedAddress scans receipt logs for the factory's TokenCreated
// event and returns the indexed token address.
func tokenCreatedAddress(factoryABI abi.ABI, logs []*types.Log) (common.Address, error) {
	eventID := factoryABI.Events["TokenCreated"].ID
	for _, lg := range logs {
		if len(lg.Topics) >= 2 && lg.Topics[0] == eventID {
			return common.BytesToAddress(lg.Topics[1].Bytes()), nil
		}
	}
	return common.Address{}, fmt.Errorf("no TokenCreated event in receipt")
}
