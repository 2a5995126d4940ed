package univ2

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Pair binds a deployed V2 pair contract.
type Pair struct {
	contract *bind.BoundContract
	address  common.Address
}

const pairABIJson = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token0",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token1",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

const factoryABIJson = `[{
	"constant": true,
	"inputs": [
		{"name": "tokenA", "type": "address"},
		{"name": "tokenB", "type": "address"}
	],
	"name": "getPair",
	"outputs": [{"name": "pair", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

// NewPair binds the pair contract at address.
func NewPair(address common.Address, client *ethclient.Client) (*Pair, error) {
	parsedABI, err := abi.JSON(strings.NewReader(pairABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}

	return &Pair{
		contract: bind.NewBoundContract(address, parsedABI, client, client, client),
		address:  address,
	}, nil
}

// Address returns the pair contract address.
func (p *Pair) Address() common.Address {
	return p.address
}

// GetReserves returns the current reserves of the pair in contract order.
func (p *Pair) GetReserves(opts *bind.CallOpts) (reserve0, reserve1 *big.Int, err error) {
	var out []interface{}
	if err = p.contract.Call(opts, &out, "getReserves"); err != nil {
		return nil, nil, fmt.Errorf("failed to get reserves: %w", err)
	}

	reserve0, ok := out[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve0")
	}
	reserve1, ok = out[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve1")
	}

	return reserve0, reserve1, nil
}

// Token0 returns the address the pair stores as token0.
func (p *Pair) Token0(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	if err := p.contract.Call(opts, &out, "token0"); err != nil {
		return common.Address{}, fmt.Errorf("failed to get token0: %w", err)
	}

	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to parse token0 address")
	}

	return addr, nil
}
