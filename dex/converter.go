package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeConverter prices native-token amounts (gas costs) in another token
type NativeConverter struct {
	native    common.Address
	providers []QuoteProvider
}

// NewNativeConverter uses the wrapped native token address to quote against the given venues
func NewNativeConverter(native common.Address, providers []QuoteProvider) *NativeConverter {
	return &NativeConverter{
		native:    native,
		providers: providers,
	}
}

// ToToken converts amount wei into token units using the first venue that can quote it
func (c *NativeConverter) ToToken(ctx context.Context, token common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() == 0 {
		return new(big.Int), nil
	}
	if token == c.native {
		return new(big.Int).Set(amount), nil
	}

	lastErr := ErrNoRoute
	for _, p := range c.providers {
		q, err := p.Quote(ctx, c.native, token, amount)
		if err == nil {
			return q.AmountOut, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !errors.Is(err, ErrNoRoute) && !errors.Is(err, ErrTransport) {
			break
		}
	}

	return nil, fmt.Errorf("failed to price native amount in %s: %w", token.Hex(), lastErr)
}
