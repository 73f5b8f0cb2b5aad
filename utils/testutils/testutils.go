package testutils

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// RevertError mimics the JSON-RPC error returned for a reverted eth_call
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

func (e *RevertError) ErrorCode() int { return 3 }

// ErrorData returns the Error(string) payload a node attaches to the revert
func (e *RevertError) ErrorData() interface{} {
	if e.Reason == "" {
		return "0x"
	}
	str, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: str}}.Pack(e.Reason)
	if err != nil {
		return "0x"
	}
	return hexutil.Encode(append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...))
}

// Handler answers one contract method call
type Handler func(input []byte) ([]byte, error)

type callKey struct {
	to       common.Address
	selector [4]byte
}

// FakeCaller is an in-memory bind.ContractCaller keyed by contract address and method selector
type FakeCaller struct {
	mu       sync.Mutex
	t        testing.TB
	handlers map[callKey]Handler
	calls    map[callKey]int
	NoCode   bool
}

func NewFakeCaller(t testing.TB) *FakeCaller {
	return &FakeCaller{
		t:        t,
		handlers: make(map[callKey]Handler),
		calls:    make(map[callKey]int),
	}
}

// Handle registers h for method on contract to
func (f *FakeCaller) Handle(to common.Address, parsed abi.ABI, method string, h Handler) {
	m, ok := parsed.Methods[method]
	require.True(f.t, ok, "unknown method %s", method)

	var key callKey
	key.to = to
	copy(key.selector[:], m.ID)

	f.mu.Lock()
	f.handlers[key] = h
	f.mu.Unlock()
}

// Return makes method on contract to answer with the packed values
func (f *FakeCaller) Return(to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(f.t, err)
	f.Handle(to, parsed, method, func([]byte) ([]byte, error) { return out, nil })
}

// Revert makes method on contract to revert
func (f *FakeCaller) Revert(to common.Address, parsed abi.ABI, method, reason string) {
	f.Handle(to, parsed, method, func([]byte) ([]byte, error) { return nil, &RevertError{Reason: reason} })
}

// Fail makes method on contract to fail with a transport error
func (f *FakeCaller) Fail(to common.Address, parsed abi.ABI, method string, err error) {
	f.Handle(to, parsed, method, func([]byte) ([]byte, error) { return nil, err })
}

// Calls returns how many times method on contract to was called
func (f *FakeCaller) Calls(to common.Address, parsed abi.ABI, method string) int {
	var key callKey
	key.to = to
	copy(key.selector[:], parsed.Methods[method].ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *FakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	if f.NoCode {
		return nil, nil
	}
	return []byte{0x60, 0x80}, nil
}

func (f *FakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call.To == nil || len(call.Data) < 4 {
		return nil, fmt.Errorf("malformed call")
	}

	var key callKey
	key.to = *call.To
	copy(key.selector[:], call.Data[:4])

	f.mu.Lock()
	h, ok := f.handlers[key]
	f.calls[key]++
	f.mu.Unlock()

	if !ok {
		return nil, &RevertError{}
	}
	return h(call.Data[4:])
}

// NewTestKey returns a fresh signer key and its address
func NewTestKey(t testing.TB) (*ecdsa.PrivateKey, common.Address) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

// CreateMockTransaction creates a signed transaction for testing
func CreateMockTransaction(t testing.TB, chainID *big.Int, to common.Address, data []byte) *types.Transaction {
	key, _ := NewTestKey(t)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      1_500_000,
		GasPrice: big.NewInt(20_000_000_000),
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	require.NoError(t, err)

	return signed
}
