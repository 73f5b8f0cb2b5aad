package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/michaelpento.lv/arbkeeper/config"
	"github.com/michaelpento.lv/arbkeeper/utils"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the keeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		// PersistentPostRun is skipped when RunE fails
		defer utils.CleanupLogger()

		if err := runKeeper(cmd.Context(), log); err != nil {
			log.Error("Keeper failed to start", zap.Error(err))
			return err
		}
		return nil
	},
}

func runKeeper(parent context.Context, log *zap.Logger) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	secure, err := config.LoadSecureConfig(cfg.Relay.Enabled)
	if err != nil {
		return fmt.Errorf("failed to load signer: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, unix.SIGINT, unix.SIGTERM)
	defer stop()

	k, err := buildKeeper(ctx, cfg, secure, log)
	if err != nil {
		return fmt.Errorf("failed to initialize keeper: %w", err)
	}
	defer k.Close()

	log.Info("Keeper initialized",
		zap.Uint64("chainId", k.chainID.Uint64()),
		zap.String("signer", k.auth.From.Hex()),
		zap.String("executor", k.executor.Address().Hex()),
		zap.Int("venues", len(k.adapter.Providers())),
		zap.Int("pairs", len(cfg.Pairs)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		k.monitor.Run(ctx)
	}()

	if k.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := k.server.Run(ctx); err != nil {
				log.Error("Status server stopped", zap.Error(err))
			}
		}()
	}

	if err := k.bot.Run(ctx); err != nil {
		log.Error("Keeper stopped", zap.Error(err))
	}
	stop()
	wg.Wait()
	log.Info("Keeper shut down")
	return nil
}

func init() {
	rootCmd.AddCommand(startCmd)
}
