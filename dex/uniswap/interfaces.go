package uniswap

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Router02 subset
const routerABIJson = `[{
	"inputs": [
		{"name": "amountIn", "type": "uint256"},
		{"name": "path", "type": "address[]"}
	],
	"name": "getAmountsOut",
	"outputs": [{"name": "amounts", "type": "uint256[]"}],
	"stateMutability": "view",
	"type": "function"
}]`

// V2 factory subset
const factoryABIJson = `[{
	"inputs": [
		{"name": "tokenA", "type": "address"},
		{"name": "tokenB", "type": "address"}
	],
	"name": "getPair",
	"outputs": [{"name": "pair", "type": "address"}],
	"stateMutability": "view",
	"type": "function"
}]`

// Pair contract ABI
const pairABIJson = `[{
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	],
	"stateMutability": "view",
	"type": "function"
}]`

// QuoterV2 subset
const quoterABIJson = `[{
	"inputs": [{
		"components": [
			{"name": "tokenIn", "type": "address"},
			{"name": "tokenOut", "type": "address"},
			{"name": "amountIn", "type": "uint256"},
			{"name": "fee", "type": "uint24"},
			{"name": "sqrtPriceLimitX96", "type": "uint160"}
		],
		"name": "params",
		"type": "tuple"
	}],
	"name": "quoteExactInputSingle",
	"outputs": [
		{"name": "amountOut", "type": "uint256"},
		{"name": "sqrtPriceX96After", "type": "uint160"},
		{"name": "initializedTicksCrossed", "type": "uint32"},
		{"name": "gasEstimate", "type": "uint256"}
	],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// V3 factory subset
const poolFactoryABIJson = `[{
	"inputs": [
		{"name": "tokenA", "type": "address"},
		{"name": "tokenB", "type": "address"},
		{"name": "fee", "type": "uint24"}
	],
	"name": "getPool",
	"outputs": [{"name": "pool", "type": "address"}],
	"stateMutability": "view",
	"type": "function"
}]`

const erc20ABIJson = `[{
	"inputs": [{"name": "account", "type": "address"}],
	"name": "balanceOf",
	"outputs": [{"name": "", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}]`

var (
	RouterABI      = mustParse(routerABIJson)
	FactoryABI     = mustParse(factoryABIJson)
	PairABI        = mustParse(pairABIJson)
	QuoterABI      = mustParse(quoterABIJson)
	PoolFactoryABI = mustParse(poolFactoryABIJson)
	ERC20ABI       = mustParse(erc20ABIJson)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
