package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbkeeper/api"
	"github.com/michaelpento.lv/arbkeeper/cmd/bot"
	"github.com/michaelpento.lv/arbkeeper/config"
	"github.com/michaelpento.lv/arbkeeper/contracts"
	"github.com/michaelpento.lv/arbkeeper/dex"
	"github.com/michaelpento.lv/arbkeeper/flashbots"
	"github.com/michaelpento.lv/arbkeeper/flashloan"
	"github.com/michaelpento.lv/arbkeeper/gas"
	"github.com/michaelpento.lv/arbkeeper/simulator"
	"github.com/michaelpento.lv/arbkeeper/strategies/arbitrage"
	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
	"github.com/michaelpento.lv/arbkeeper/utils/monitor"
)

const monitorInterval = 15 * time.Second

// keeper is the fully wired process
type keeper struct {
	client   *ethclient.Client
	chainID  *big.Int
	auth     *bind.TransactOpts
	executor *contracts.Executor
	adapter  *dex.Adapter
	strategy *arbitrage.Strategy
	bot      *bot.Bot
	monitor  *monitor.SystemMonitor
	server   *api.Server
	metrics  *metrics.KeeperMetrics
}

// dial connects to the RPC endpoint and checks it serves the configured chain
func dial(ctx context.Context, cfg *config.Config) (*ethclient.Client, *big.Int, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPCEndpoint, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if chainID.Uint64() != cfg.ChainID {
		client.Close()
		return nil, nil, fmt.Errorf("chain id mismatch: node reports %s, config expects %d", chainID, cfg.ChainID)
	}
	return client, chainID, nil
}

func buildKeeper(ctx context.Context, cfg *config.Config, secure *config.SecureConfig, log *zap.Logger) (*keeper, error) {
	client, chainID, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(secure.PrivateKey, chainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	m := metrics.NewKeeperMetrics()

	providers, err := bot.BuildProviders(cfg.VenueConfigs(), client)
	if err != nil {
		client.Close()
		return nil, err
	}
	adapter := dex.NewAdapter(providers, dex.AdapterConfig{
		QuoteTimeout:      cfg.QuoteTimeout,
		RequestsPerSecond: cfg.RPCRateLimit.RequestsPerSecond,
		BurstSize:         cfg.RPCRateLimit.BurstSize,
		WaitTimeout:       cfg.RPCRateLimit.WaitTimeout,
	}, m.Quotes, log.Named("quotes"))

	lender, err := flashloan.NewProvider(cfg.FlashLoan.Provider, cfg.FlashLoan.PremiumBps)
	if err != nil {
		client.Close()
		return nil, err
	}
	evaluator := arbitrage.NewEvaluator(arbitrage.EvaluatorConfig{
		MinSpreadPercent:     decimal.NewFromFloat(cfg.MinSpreadPercent),
		MaxLiquidityFraction: decimal.NewFromFloat(cfg.MaxLiquidityFraction),
		VenueFeePercent:      decimal.NewFromFloat(cfg.VenueFeePercent),
		OpportunityTTL:       cfg.OpportunityTTL,
	}, lender)

	executor := contracts.NewExecutor(cfg.Executor(), client, client)
	estimator := gas.NewEstimator(client, cfg.GasPriceTTL, m.Gas, log.Named("gas"))
	sim := simulator.NewSimulator(executor, client, auth.From, cfg.MaxGasLimit)
	converter := dex.NewNativeConverter(cfg.Native(), providers)

	gate := arbitrage.NewGate(arbitrage.GateConfig{
		MaxGasPrice:  cfg.MaxGasPrice(),
		CheckTimeout: cfg.GateTimeout,
	},
		executor, estimator, sim, converter, m.Strategy, log.Named("gate"))

	var submitter arbitrage.Submitter = client
	if cfg.Relay.Enabled {
		submitter = flashbots.NewClient(cfg.Relay.URL, secure.RelayKey)
		log.Info("Submitting through private relay", zap.String("relay", cfg.Relay.URL))
	}

	stats := arbitrage.NewStatistics(m.Strategy)
	exec := arbitrage.NewExecutor(arbitrage.ExecutorConfig{
		GasLimit:  cfg.MaxGasLimit,
		TxTimeout: cfg.TxTimeout,
	}, executor, submitter, arbitrage.WaitMinedWith(client), client, auth, stats, log.Named("executor"))

	strategy := arbitrage.NewStrategy(adapter, cfg.QuoteAmountFor, evaluator, gate, exec, stats, m.Strategy, log.Named("strategy"))

	b := bot.New(bot.Config{
		PollInterval:  cfg.PollInterval,
		StatsInterval: cfg.StatsInterval,
	}, cfg.TradingPairs(), strategy, exec, stats, m.Strategy, m.System, log)

	k := &keeper{
		client:   client,
		chainID:  chainID,
		auth:     auth,
		executor: executor,
		adapter:  adapter,
		strategy: strategy,
		bot:      b,
		monitor:  monitor.NewSystemMonitor(m.System, monitorInterval, log.Named("monitor")),
		metrics:  m,
	}

	if cfg.Status.Enabled {
		k.server = api.NewServer(cfg.Status.Listen, api.Deps{
			Pauser:    gate,
			Stats:     stats,
			Scheduler: b,
			Sampler:   k.monitor,
			Gatherer:  m.Registry,
			System:    m.System,
		}, log.Named("status"))
	}

	return k, nil
}

func (k *keeper) Close() {
	k.client.Close()
}
