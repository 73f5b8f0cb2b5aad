package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/arbkeeper/utils"
)

var (
	cfgFile string
	logOpts utils.LogOptions
)

var rootCmd = &cobra.Command{
	Use:   "keeper",
	Short: "Cross-venue arbitrage keeper",
	Long: `keeper polls DEX venues for price spreads on configured token pairs and
executes flash-loan funded round trips through an on-chain executor contract.

Secrets are read from the environment (or a .env file): KEEPER_PRIVATE_KEY
signs transactions and RELAY_SIGNER_KEY authenticates with a private relay.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(logOpts)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		utils.CleanupLogger()
	},
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./keeper.yaml)")
	flags.BoolVar(&logOpts.Debug, "debug", false, "enable debug logging")
	flags.StringVar(&logOpts.Format, "log-format", "json", "log encoding: json or console")
	flags.StringVar(&logOpts.File, "log-file", "keeper.log", "also append logs to this file, empty to disable")
}
