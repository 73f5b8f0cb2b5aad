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

type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// V3Quoter quotes a concentrated-liquidity pool through QuoterV2
type V3Quoter struct {
	name    string
	address common.Address
	fee     *big.Int
	caller  bind.ContractCaller
	quoter  *bind.BoundContract
	factory *bind.BoundContract
	pools   *lru.Cache
}

// NewV3Quoter creates a quote provider for one fee tier
func NewV3Quoter(cfg types.VenueConfig, caller bind.ContractCaller) (*V3Quoter, error) {
	cache, err := lru.New(poolCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool cache: %w", err)
	}

	// the executor swaps through the router when one is configured
	address := cfg.Router
	if address == (common.Address{}) {
		address = cfg.Quoter
	}

	return &V3Quoter{
		name:    cfg.Name,
		address: address,
		fee:     new(big.Int).SetUint64(uint64(cfg.Fee)),
		caller:  caller,
		quoter:  bind.NewBoundContract(cfg.Quoter, QuoterABI, caller, nil, nil),
		factory: bind.NewBoundContract(cfg.Factory, PoolFactoryABI, caller, nil, nil),
		pools:   cache,
	}, nil
}

func (q *V3Quoter) Name() string {
	return q.name
}

func (q *V3Quoter) Address() common.Address {
	return q.address
}

// Quote simulates an exact-input single-pool swap and reports the pool's tokenOut balance
func (q *V3Quoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	if err := dex.ValidateQuoteInput(tokenIn, tokenOut, amountIn); err != nil {
		return nil, err
	}

	pool, err := q.getPool(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	params := quoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               q.fee,
		SqrtPriceLimitX96: new(big.Int),
	}

	var out []interface{}
	if err := q.quoter.Call(&bind.CallOpts{Context: ctx}, &out, "quoteExactInputSingle", params); err != nil {
		return nil, dex.ClassifyCallError(fmt.Errorf("quoteExactInputSingle: %w", err))
	}
	amountOut, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected quoter result", dex.ErrNoRoute)
	}
	if err := dex.NonZero(amountOut); err != nil {
		return nil, err
	}

	liquidity, err := q.balanceOf(ctx, tokenOut, pool)
	if err != nil {
		return nil, err
	}

	return &dex.Quote{
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Liquidity: liquidity,
	}, nil
}

func (q *V3Quoter) getPool(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	key := pairKey(tokenA, tokenB)
	if cached, ok := q.pools.Get(key); ok {
		return cached.(common.Address), nil
	}

	var out []interface{}
	if err := q.factory.Call(&bind.CallOpts{Context: ctx}, &out, "getPool", tokenA, tokenB, q.fee); err != nil {
		return common.Address{}, dex.ClassifyCallError(fmt.Errorf("getPool: %w", err))
	}
	pool, ok := out[0].(common.Address)
	if !ok || pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no pool for fee tier %s", dex.ErrNoRoute, q.fee)
	}

	q.pools.Add(key, pool)
	return pool, nil
}

func (q *V3Quoter) balanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	erc20 := bind.NewBoundContract(token, ERC20ABI, q.caller, nil, nil)

	var out []interface{}
	if err := erc20.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account); err != nil {
		return nil, dex.ClassifyCallError(fmt.Errorf("balanceOf: %w", err))
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected balanceOf result", dex.ErrTransport)
	}
	return balance, nil
}
