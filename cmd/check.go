package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbkeeper/config"
	"github.com/michaelpento.lv/arbkeeper/utils"
)

const checkTimeout = 30 * time.Second

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration against the live chain without trading",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		secure, err := config.LoadSecureConfig(cfg.Relay.Enabled)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()

		k, err := buildKeeper(ctx, cfg, secure, log)
		if err != nil {
			return err
		}
		defer k.Close()

		code, err := k.client.CodeAt(ctx, k.executor.Address(), nil)
		if err != nil {
			return fmt.Errorf("failed to read executor code: %w", err)
		}
		if len(code) == 0 {
			return fmt.Errorf("no contract deployed at executor %s", k.executor.Address().Hex())
		}

		paused, err := k.executor.Paused(ctx)
		if err != nil {
			return err
		}

		balance, err := k.client.BalanceAt(ctx, k.auth.From, nil)
		if err != nil {
			return fmt.Errorf("failed to read signer balance: %w", err)
		}

		log.Info("Chain check passed",
			zap.Uint64("chainId", k.chainID.Uint64()),
			zap.String("signer", k.auth.From.Hex()),
			zap.String("signerBalance", balance.String()),
			zap.String("executor", k.executor.Address().Hex()),
			zap.Bool("executorPaused", paused))

		failed := 0
		for _, pair := range cfg.TradingPairs() {
			quotes, venueErrs := k.adapter.FetchQuotes(ctx, pair, cfg.QuoteAmountFor(pair))
			for _, q := range quotes {
				log.Info("Quote",
					zap.String("pair", pair.Symbol),
					zap.String("venue", q.Venue),
					zap.String("price", q.Price.String()),
					zap.String("liquidity", q.Liquidity.String()))
			}
			for _, ve := range venueErrs {
				failed++
				log.Warn("Venue failed to quote",
					zap.String("pair", pair.Symbol),
					zap.String("venue", ve.Venue),
					zap.Error(ve.Err))
			}
			if len(quotes) < 2 {
				log.Warn("Pair cannot be arbitraged with fewer than 2 quoting venues",
					zap.String("pair", pair.Symbol),
					zap.Int("quotes", len(quotes)))
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d venue quotes failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
