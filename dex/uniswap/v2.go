package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"github.com/michaelpento.lv/arbkeeper/dex"
	"github.com/michaelpento.lv/arbkeeper/types"
)

const poolCacheSize = 256

// V2Router quotes a constant-product router through getAmountsOut
type V2Router struct {
	name    string
	router  common.Address
	caller  bind.ContractCaller
	routerC *bind.BoundContract
	factory *bind.BoundContract
	pairs   *lru.Cache
}

// NewV2Router creates a quote provider for a Router02-compatible venue
func NewV2Router(cfg types.VenueConfig, caller bind.ContractCaller) (*V2Router, error) {
	cache, err := lru.New(poolCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pair cache: %w", err)
	}

	return &V2Router{
		name:    cfg.Name,
		router:  cfg.Router,
		caller:  caller,
		routerC: bind.NewBoundContract(cfg.Router, RouterABI, caller, nil, nil),
		factory: bind.NewBoundContract(cfg.Factory, FactoryABI, caller, nil, nil),
		pairs:   cache,
	}, nil
}

// Name returns the venue name
func (u *V2Router) Name() string {
	return u.name
}

// Address returns the router contract address
func (u *V2Router) Address() common.Address {
	return u.router
}

// Quote returns getAmountsOut for a single hop and the pair's tokenOut reserve
func (u *V2Router) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	if err := dex.ValidateQuoteInput(tokenIn, tokenOut, amountIn); err != nil {
		return nil, err
	}

	var out []interface{}
	path := []common.Address{tokenIn, tokenOut}
	if err := u.routerC.Call(&bind.CallOpts{Context: ctx}, &out, "getAmountsOut", amountIn, path); err != nil {
		return nil, dex.ClassifyCallError(fmt.Errorf("getAmountsOut: %w", err))
	}

	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, fmt.Errorf("%w: unexpected getAmountsOut result", dex.ErrNoRoute)
	}
	amountOut := amounts[len(amounts)-1]
	if err := dex.NonZero(amountOut); err != nil {
		return nil, err
	}

	pair, err := u.getPair(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	liquidity, err := NewUniswapV2Pair(pair, u.caller).ReserveOf(ctx, tokenOut, tokenIn)
	if err != nil {
		return nil, dex.ClassifyCallError(err)
	}

	return &dex.Quote{
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Liquidity: liquidity,
	}, nil
}

// getPair resolves the pair address through the factory, caching hits
func (u *V2Router) getPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	key := pairKey(tokenA, tokenB)
	if cached, ok := u.pairs.Get(key); ok {
		return cached.(common.Address), nil
	}

	var out []interface{}
	if err := u.factory.Call(&bind.CallOpts{Context: ctx}, &out, "getPair", tokenA, tokenB); err != nil {
		return common.Address{}, dex.ClassifyCallError(fmt.Errorf("getPair: %w", err))
	}
	pair, ok := out[0].(common.Address)
	if !ok || pair == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: pair does not exist", dex.ErrNoRoute)
	}

	u.pairs.Add(key, pair)
	return pair, nil
}

func pairKey(tokenA, tokenB common.Address) string {
	token0 := SortTokens(tokenA, tokenB)
	token1 := tokenA
	if token0 == tokenA {
		token1 = tokenB
	}
	return token0.Hex() + token1.Hex()
}
