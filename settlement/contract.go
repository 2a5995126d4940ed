// Package settlement builds trade transactions against the on-chain
// flash-loan arbitrage contract and resolves the settlement pair's tokens.
// The contract itself is an external collaborator: the whole trade either
// lands atomically or reverts.
package settlement

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/michaelpento.lv/arbbot/types"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const arbitrageABIJson = `[{
	"inputs": [
		{"name": "startOnFirstVenue", "type": "bool"},
		{"name": "tokenA", "type": "address"},
		{"name": "tokenB", "type": "address"},
		{"name": "flashAmount", "type": "uint256"}
	],
	"name": "executeTrade",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

const erc20ABIJson = `[{
	"constant": true,
	"inputs": [],
	"name": "symbol",
	"outputs": [{"name": "", "type": "string"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "name",
	"outputs": [{"name": "", "type": "string"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "decimals",
	"outputs": [{"name": "", "type": "uint8"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [{"name": "owner", "type": "address"}],
	"name": "balanceOf",
	"outputs": [{"name": "", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}]`

// Contract binds the deployed arbitrage settlement contract.
type Contract struct {
	client  *ethclient.Client
	address common.Address
	abi     abi.ABI
	erc20   abi.ABI
}

// NewContract binds the settlement contract at address.
func NewContract(address common.Address, client *ethclient.Client) (*Contract, error) {
	arbABI, err := abi.JSON(strings.NewReader(arbitrageABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse arbitrage ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	return &Contract{
		client:  client,
		address: address,
		abi:     arbABI,
		erc20:   erc20ABI,
	}, nil
}

// Address returns the settlement contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// BuildTrade packs an executeTrade call into an unsigned transaction with
// the caller's next nonce and the supplied gas parameters.
func (c *Contract) BuildTrade(ctx context.Context, from common.Address, startOnFirstVenue bool, tokenA, tokenB common.Address, amount *big.Int, gasLimit uint64, gasPrice *big.Int) (*gethtypes.Transaction, error) {
	data, err := c.abi.Pack("executeTrade", startOnFirstVenue, tokenA, tokenB, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack executeTrade: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	return gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	}), nil
}

// ResolveToken reads a token's ERC-20 metadata. Called once at startup for
// each settlement pair leg.
func (c *Contract) ResolveToken(ctx context.Context, addr common.Address) (*types.Token, error) {
	contract := bind.NewBoundContract(addr, c.erc20, c.client, c.client, c.client)
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := contract.Call(opts, &out, "symbol"); err != nil {
		return nil, fmt.Errorf("failed to get symbol: %w", err)
	}
	symbol, _ := out[0].(string)

	out = out[:0]
	if err := contract.Call(opts, &out, "name"); err != nil {
		return nil, fmt.Errorf("failed to get name: %w", err)
	}
	name, _ := out[0].(string)

	out = out[:0]
	if err := contract.Call(opts, &out, "decimals"); err != nil {
		return nil, fmt.Errorf("failed to get decimals: %w", err)
	}
	decimals, _ := out[0].(uint8)

	return &types.Token{
		Address:  addr,
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}, nil
}

// BalanceOf reads an ERC-20 balance.
func (c *Contract) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	contract := bind.NewBoundContract(token, c.erc20, c.client, c.client, c.client)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse balance")
	}
	return balance, nil
}

// NativeBalance reads the account's native-asset balance.
func (c *Contract) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	return balance, nil
}
