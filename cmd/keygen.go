package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/arbkeeper/config"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new signer or relay authentication key",
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Private Key: %s\n", hexutil.Encode(crypto.FromECDSA(privateKey)))
		fmt.Fprintf(out, "Public Address: %s\n", crypto.PubkeyToAddress(privateKey.PublicKey).Hex())
		fmt.Fprintf(out, "\nExport it as %s (transaction signer) or %s (relay authentication).\n",
			config.EnvPrivateKey, config.EnvRelaySignerKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
