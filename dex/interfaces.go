package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrNoRoute means the venue has no pool or liquidity for the pair
	ErrNoRoute = errors.New("no route")
	// ErrTransport wraps RPC and network failures
	ErrTransport = errors.New("transport error")
	// ErrInvalidInput is returned before any call is made
	ErrInvalidInput = errors.New("invalid quote input")
)

// QuoteProvider is a read-only price source of one venue type
type QuoteProvider interface {
	// Name returns the configured venue name
	Name() string

	// Address returns the contract the executor routes through
	Address() common.Address

	// Quote returns the output of swapping amountIn of tokenIn for tokenOut
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*Quote, error)
}

// Quote is a venue's raw answer
type Quote struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	// Liquidity is the pool's tokenOut balance
	Liquidity *big.Int
}

// ValidateQuoteInput checks the arguments every provider must reject
func ValidateQuoteInput(tokenIn, tokenOut common.Address, amountIn *big.Int) error {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return fmt.Errorf("%w: amount in must be positive", ErrInvalidInput)
	}
	if tokenIn == tokenOut {
		return fmt.Errorf("%w: token in equals token out", ErrInvalidInput)
	}
	return nil
}

// ClassifyCallError maps a contract call failure onto ErrNoRoute or ErrTransport
func ClassifyCallError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoRoute) || errors.Is(err, ErrTransport) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	if IsRevert(err) || errors.Is(err, bind.ErrNoCode) || isEmptyOutput(err) {
		return fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// IsRevert reports whether err is an execution revert rather than a transport failure
func IsRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

func isEmptyOutput(err error) bool {
	return strings.Contains(err.Error(), "attempting to unmarshal an empty string") ||
		strings.Contains(err.Error(), "attempting to unmarshall an empty string")
}

// NonZero converts an empty or zero output into ErrNoRoute
func NonZero(amountOut *big.Int) error {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return fmt.Errorf("%w: zero output", ErrNoRoute)
	}
	return nil
}
