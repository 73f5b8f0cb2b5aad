package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/michaelpento.lv/arbkeeper/types"
	mathutil "github.com/michaelpento.lv/arbkeeper/utils/math"
)

const DefaultConfigFile = "keeper.yaml"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// Chain and network settings
	ChainID         uint64 `yaml:"chain_id"`
	RPCEndpoint     string `yaml:"rpc_endpoint"`
	ExecutorAddress string `yaml:"executor_address"`
	NativeToken     string `yaml:"native_token"`

	// Scheduling
	PollInterval   time.Duration `yaml:"poll_interval"`
	StatsInterval  time.Duration `yaml:"stats_interval"`
	QuoteTimeout   time.Duration `yaml:"quote_timeout"`
	TxTimeout      time.Duration `yaml:"tx_timeout"`
	OpportunityTTL time.Duration `yaml:"opportunity_ttl"`
	GasPriceTTL    time.Duration `yaml:"gas_price_ttl"`
	GateTimeout    time.Duration `yaml:"gate_timeout"` // bounds the pre-submission chain reads

	// Evaluator thresholds
	MinSpreadPercent     float64 `yaml:"min_spread_percent"`
	MaxLiquidityFraction float64 `yaml:"max_liquidity_fraction"`
	VenueFeePercent      float64 `yaml:"venue_fee_percent"`
	MinProfit            string  `yaml:"min_profit"`   // human units of the pair's input token
	QuoteAmount          string  `yaml:"quote_amount"` // human units of the pair's quote token (token_b)

	// Execution limits
	MaxGasPriceGwei float64 `yaml:"max_gas_price_gwei"`
	MaxGasLimit     uint64  `yaml:"max_gas_limit"`

	FlashLoan    FlashLoanConfig `yaml:"flash_loan"`
	RPCRateLimit RateLimitConfig `yaml:"rpc_rate_limit"`
	Relay        RelayConfig     `yaml:"relay"`
	Status       StatusConfig    `yaml:"status"`

	Venues []VenueConfig `yaml:"venues"`
	Pairs  []PairConfig  `yaml:"pairs"`
}

type FlashLoanConfig struct {
	Provider   string  `yaml:"provider"`    // balancer or aave
	PremiumBps *uint32 `yaml:"premium_bps"` // overrides the provider default
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
	WaitTimeout       time.Duration `yaml:"wait_timeout"`
}

type RelayConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type VenueConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Router  string `yaml:"router"`
	Factory string `yaml:"factory"`
	Quoter  string `yaml:"quoter"`
	Fee     uint32 `yaml:"fee"`
	Stable  bool   `yaml:"stable"`
}

type PairConfig struct {
	Symbol    string `yaml:"symbol"`
	TokenA    string `yaml:"token_a"`
	TokenB    string `yaml:"token_b"`
	DecimalsA uint8  `yaml:"decimals_a"`
	DecimalsB uint8  `yaml:"decimals_b"`
	MinProfit string `yaml:"min_profit"`
}

type SecureConfig struct {
	PrivateKey *ecdsa.PrivateKey
	RelayKey   *ecdsa.PrivateKey
}

// DefaultConfig returns the keeper defaults. Chain, executor, venues and pairs have no defaults.
func DefaultConfig() *Config {
	return &Config{
		RPCEndpoint:          "http://localhost:8545",
		PollInterval:         5 * time.Second,
		StatsInterval:        60 * time.Second,
		QuoteTimeout:         3 * time.Second,
		TxTimeout:            2 * time.Minute,
		OpportunityTTL:       5 * time.Minute,
		GasPriceTTL:          2 * time.Second,
		GateTimeout:          5 * time.Second,
		MinSpreadPercent:     0.5,
		MaxLiquidityFraction: 0.30,
		VenueFeePercent:      0.30,
		MinProfit:            "10",
		QuoteAmount:          "1000",
		MaxGasPriceGwei:      100,
		MaxGasLimit:          1_500_000,
		FlashLoan: FlashLoanConfig{
			Provider: "balancer",
		},
		RPCRateLimit: RateLimitConfig{
			RequestsPerSecond: 25,
			BurstSize:         50,
			WaitTimeout:       time.Second,
		},
		Relay: RelayConfig{
			Enabled: false,
			URL:     "https://relay.flashbots.net",
		},
		Status: StatusConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
	}
}

// LoadConfig reads the YAML file over the defaults, applies environment overrides and validates
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		cfgFile = DefaultConfigFile
	}

	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	raw, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML over DefaultConfig without validating
func Parse(raw []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.RPCEndpoint = GetEnvWithDefault(EnvRPCURL, c.RPCEndpoint)
	c.ExecutorAddress = GetEnvWithDefault(EnvExecutorAddress, c.ExecutorAddress)
	c.MinProfit = GetEnvWithDefault(EnvMinProfit, c.MinProfit)
	c.Relay.URL = GetEnvWithDefault(EnvRelayURL, c.Relay.URL)

	if v := os.Getenv(EnvChainID); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvChainID, err)
		}
		c.ChainID = id
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPollInterval, err)
		}
		c.PollInterval = d
	}
	if v := os.Getenv(EnvMinSpreadPercent); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMinSpreadPercent, err)
		}
		c.MinSpreadPercent = f
	}
	if v := os.Getenv(EnvMaxGasPriceGwei); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxGasPriceGwei, err)
		}
		c.MaxGasPriceGwei = f
	}
	if v := os.Getenv(EnvMaxGasLimit); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxGasLimit, err)
		}
		c.MaxGasLimit = n
	}
	return nil
}

func (c *Config) ValidateConfig() error {
	var errs []string

	// Chain and network settings
	if c.ChainID == 0 {
		errs = append(errs, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errs = append(errs, "rpc_endpoint must be specified")
	}
	if !common.IsHexAddress(c.ExecutorAddress) {
		errs = append(errs, "executor_address must be a hex address")
	}
	if !common.IsHexAddress(c.NativeToken) {
		errs = append(errs, "native_token must be a hex address")
	}

	// Scheduling
	for name, d := range map[string]time.Duration{
		"poll_interval":   c.PollInterval,
		"stats_interval":  c.StatsInterval,
		"quote_timeout":   c.QuoteTimeout,
		"tx_timeout":      c.TxTimeout,
		"opportunity_ttl": c.OpportunityTTL,
		"gate_timeout":    c.GateTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive", name))
		}
	}

	// Thresholds
	if c.MinSpreadPercent <= 0 || c.MinSpreadPercent >= 100 {
		errs = append(errs, "min_spread_percent must be in (0, 100)")
	}
	if c.MaxLiquidityFraction <= 0 || c.MaxLiquidityFraction > 1 {
		errs = append(errs, "max_liquidity_fraction must be in (0, 1]")
	}
	if c.VenueFeePercent < 0 || c.VenueFeePercent >= 100 {
		errs = append(errs, "venue_fee_percent must be in [0, 100)")
	}
	if d, err := decimal.NewFromString(c.MinProfit); err != nil || d.IsNegative() {
		errs = append(errs, "min_profit must be a non-negative number")
	}
	if d, err := decimal.NewFromString(c.QuoteAmount); err != nil || !d.IsPositive() {
		errs = append(errs, "quote_amount must be a positive number")
	}
	if c.MaxGasPriceGwei <= 0 {
		errs = append(errs, "max_gas_price_gwei must be positive")
	}
	if c.MaxGasLimit < 21000 {
		errs = append(errs, "max_gas_limit must be at least 21000")
	}

	if err := c.FlashLoan.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("flash loan error: %v", err))
	}
	if err := c.RPCRateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("RPC rate limit error: %v", err))
	}
	if c.Relay.Enabled && c.Relay.URL == "" {
		errs = append(errs, "relay.url must be specified when the relay is enabled")
	}
	if c.Status.Enabled && c.Status.Listen == "" {
		errs = append(errs, "status.listen must be specified when the status server is enabled")
	}

	// Venues
	if len(c.Venues) < 2 {
		errs = append(errs, "at least 2 venues are required to arbitrage")
	}
	seen := make(map[string]bool, len(c.Venues))
	for i := range c.Venues {
		v := &c.Venues[i]
		if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("venue %q is declared twice", v.Name))
		}
		seen[v.Name] = true
		if err := v.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("venue %q: %v", v.Name, err))
		}
	}

	// Pairs
	if len(c.Pairs) == 0 {
		errs = append(errs, "at least one pair must be configured")
	}
	for i := range c.Pairs {
		p := &c.Pairs[i]
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("pair %q: %v", p.Symbol, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

func (f *FlashLoanConfig) Validate() error {
	switch strings.ToLower(f.Provider) {
	case "balancer", "aave":
	default:
		return fmt.Errorf("unknown provider %q", f.Provider)
	}
	if f.PremiumBps != nil && *f.PremiumBps >= 10000 {
		return fmt.Errorf("premium_bps must be below 10000")
	}
	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}

	return nil
}

func (v *VenueConfig) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("name must be specified")
	}
	switch types.VenueKind(v.Kind) {
	case types.VenueUniswapV2, types.VenueSolidly:
		if !common.IsHexAddress(v.Router) {
			return fmt.Errorf("router must be a hex address")
		}
		if !common.IsHexAddress(v.Factory) {
			return fmt.Errorf("factory must be a hex address")
		}
	case types.VenueUniswapV3:
		if !common.IsHexAddress(v.Quoter) {
			return fmt.Errorf("quoter must be a hex address")
		}
		if !common.IsHexAddress(v.Factory) {
			return fmt.Errorf("factory must be a hex address")
		}
		if v.Router != "" && !common.IsHexAddress(v.Router) {
			return fmt.Errorf("router must be a hex address")
		}
		if v.Fee == 0 {
			return fmt.Errorf("fee tier must be specified")
		}
	default:
		return fmt.Errorf("unknown kind %q", v.Kind)
	}
	return nil
}

func (p *PairConfig) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol must be specified")
	}
	if !common.IsHexAddress(p.TokenA) || !common.IsHexAddress(p.TokenB) {
		return fmt.Errorf("token addresses must be hex addresses")
	}
	if common.HexToAddress(p.TokenA) == common.HexToAddress(p.TokenB) {
		return fmt.Errorf("token_a and token_b must differ")
	}
	if p.DecimalsA > 36 || p.DecimalsB > 36 {
		return fmt.Errorf("decimals must not exceed 36")
	}
	if p.MinProfit != "" {
		if d, err := decimal.NewFromString(p.MinProfit); err != nil || d.IsNegative() {
			return fmt.Errorf("min_profit must be a non-negative number")
		}
	}
	return nil
}

// TradingPairs converts the configured pairs, resolving minimum profits into base units
func (c *Config) TradingPairs() []types.TradingPair {
	global := decimal.RequireFromString(c.MinProfit)

	pairs := make([]types.TradingPair, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		minProfit := global
		if p.MinProfit != "" {
			minProfit = decimal.RequireFromString(p.MinProfit)
		}
		pairs = append(pairs, types.TradingPair{
			Symbol:    p.Symbol,
			TokenA:    common.HexToAddress(p.TokenA),
			TokenB:    common.HexToAddress(p.TokenB),
			DecimalsA: p.DecimalsA,
			DecimalsB: p.DecimalsB,
			MinProfit: mathutil.ToSmallestUnit(minProfit, p.DecimalsA),
		})
	}
	return pairs
}

// VenueConfigs converts the configured venues
func (c *Config) VenueConfigs() []types.VenueConfig {
	venues := make([]types.VenueConfig, 0, len(c.Venues))
	for _, v := range c.Venues {
		venues = append(venues, types.VenueConfig{
			Name:    v.Name,
			Kind:    types.VenueKind(v.Kind),
			Router:  common.HexToAddress(v.Router),
			Factory: common.HexToAddress(v.Factory),
			Quoter:  common.HexToAddress(v.Quoter),
			Fee:     v.Fee,
			Stable:  v.Stable,
		})
	}
	return venues
}

// QuoteAmountFor returns the probe amount used to price a pair, in TokenB base units
func (c *Config) QuoteAmountFor(pair types.TradingPair) *big.Int {
	return mathutil.ToSmallestUnit(decimal.RequireFromString(c.QuoteAmount), pair.DecimalsB)
}

func (c *Config) MaxGasPrice() *big.Int {
	return mathutil.GweiToWei(c.MaxGasPriceGwei)
}

func (c *Config) Executor() common.Address {
	return common.HexToAddress(c.ExecutorAddress)
}

func (c *Config) Native() common.Address {
	return common.HexToAddress(c.NativeToken)
}

// LoadSecureConfig reads signer credentials from the environment
func LoadSecureConfig(requireRelayKey bool) (*SecureConfig, error) {
	keyHex, err := GetRequiredEnv(EnvPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("private key not found: %w", err)
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvPrivateKey, err)
	}

	secure := &SecureConfig{PrivateKey: privateKey}

	relayHex := os.Getenv(EnvRelaySignerKey)
	if relayHex == "" {
		if requireRelayKey {
			return nil, fmt.Errorf("relay signer key not found: required environment variable %s not set", EnvRelaySignerKey)
		}
		return secure, nil
	}
	relayKey, err := crypto.HexToECDSA(strings.TrimPrefix(relayHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvRelaySignerKey, err)
	}
	secure.RelayKey = relayKey

	return secure, nil
}

func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}
