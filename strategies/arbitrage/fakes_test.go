package arbitrage

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/arbkeeper/contracts"
	"github.com/michaelpento.lv/arbkeeper/dex"
	"github.com/michaelpento.lv/arbkeeper/simulator"
	"github.com/michaelpento.lv/arbkeeper/types"
	"github.com/michaelpento.lv/arbkeeper/utils/testutils"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	venueX = common.HexToAddress("0x0000000000000000000000000000000000001001")
	venueY = common.HexToAddress("0x0000000000000000000000000000000000001002")
	venueZ = common.HexToAddress("0x0000000000000000000000000000000000001003")

	testPair = types.TradingPair{
		Symbol:    "A/B",
		TokenA:    tokenA,
		TokenB:    tokenB,
		DecimalsA: 18,
		DecimalsB: 18,
		MinProfit: ether(10),
	}
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func quote(venue string, addr common.Address, price string, liquidity *big.Int) types.PriceQuote {
	p := decimal.RequireFromString(price)
	in := ether(1000)
	return types.PriceQuote{
		Venue:        venue,
		VenueAddress: addr,
		AmountIn:     in,
		AmountOut:    p.Mul(decimal.NewFromBigInt(in, 0)).BigInt(),
		Price:        p,
		Liquidity:    liquidity,
	}
}

func testOpportunity(deadline time.Time) *types.ArbitrageOpportunity {
	opp := &types.ArbitrageOpportunity{
		Pair:            testPair.Symbol,
		InputToken:      tokenA,
		SwapPath:        []common.Address{tokenA, tokenB, tokenA},
		VenueSequence:   []string{"x", "y"},
		VenueAddresses:  []common.Address{venueX, venueY},
		FlashLoanAmount: ether(100),
		EstimatedProfit: ether(1),
		SpreadPercent:   decimal.RequireFromString("0.6"),
		Deadline:        deadline,
	}
	opp.ID = Fingerprint(opp)
	return opp
}

type stubQuotes struct {
	quotes []types.PriceQuote
	errs   []*dex.VenueError
}

func (s *stubQuotes) FetchQuotes(ctx context.Context, pair types.TradingPair, amountIn *big.Int) ([]types.PriceQuote, []*dex.VenueError) {
	return s.quotes, s.errs
}

type stubPause struct {
	paused bool
	err    error
	calls  int
}

func (s *stubPause) Paused(ctx context.Context) (bool, error) {
	s.calls++
	return s.paused, s.err
}

type stubGas struct {
	price *big.Int
	err   error
}

func (s *stubGas) GasPrice(ctx context.Context) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return new(big.Int).Set(s.price), nil
}

type stubSimulator struct {
	result *simulator.SimulationResult
	err    error
	calls  int
}

func (s *stubSimulator) SimulateArbitrage(ctx context.Context, opp *types.ArbitrageOpportunity) (*simulator.SimulationResult, error) {
	s.calls++
	return s.result, s.err
}

// identityConverter treats the native token and every other token as equal value
type identityConverter struct{}

func (identityConverter) ToToken(ctx context.Context, token common.Address, amount *big.Int) (*big.Int, error) {
	return new(big.Int).Set(amount), nil
}

// fakeChain plays the executor contract, the submitter, the nonce source and the receipt waiter
type fakeChain struct {
	mu        sync.Mutex
	built     []*bind.TransactOpts
	sent      []*ethtypes.Transaction
	cancelled []common.Hash
	nonce     uint64
	sendErr   error
	status    uint64
	profit    *big.Int
	noEvent   bool
	block     chan struct{}
	t         testing.TB
}

func newFakeChain(t testing.TB) *fakeChain {
	return &fakeChain{
		status: ethtypes.ReceiptStatusSuccessful,
		profit: ether(2),
		nonce:  7,
		t:      t,
	}
}

func (f *fakeChain) ExecuteArbitrage(opts *bind.TransactOpts, p contracts.Params) (*ethtypes.Transaction, error) {
	f.mu.Lock()
	f.built = append(f.built, opts)
	f.mu.Unlock()

	data, err := contracts.ExecutorABI.Pack("executeArbitrage", p.TokenIn, p.SwapPath, p.Venues, p.FlashLoanAmount, p.EstimatedProfit, p.Deadline)
	require.NoError(f.t, err)

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    opts.Nonce.Uint64(),
		GasPrice: opts.GasPrice,
		Gas:      opts.GasLimit,
		To:       &venueZ,
		Data:     data,
	})
	return opts.Signer(opts.From, tx)
}

func (f *fakeChain) ParseArbitrageExecuted(receipt *ethtypes.Receipt) (*contracts.ArbitrageExecuted, error) {
	if f.noEvent {
		return nil, contracts.ErrEventNotFound
	}
	return &contracts.ArbitrageExecuted{TokenIn: tokenA, Profit: f.profit}, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) CancelTransaction(ctx context.Context, hash common.Hash) (bool, error) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, hash)
	f.mu.Unlock()
	return true, nil
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeChain) WaitMined(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &ethtypes.Receipt{
		Status:      f.status,
		TxHash:      tx.Hash(),
		GasUsed:     210000,
		BlockNumber: big.NewInt(100),
	}, nil
}

func (f *fakeChain) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testTransactor(t *testing.T) *bind.TransactOpts {
	key, _ := testutils.NewTestKey(t)
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1))
	require.NoError(t, err)
	return auth
}
