package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/batch-sender/cmd/env"
	"github/chapool/batch-sender/cmd/keys"
	"github/chapool/batch-sender/cmd/networks"
	"github/chapool/batch-sender/cmd/native"
	"github/chapool/batch-sender/cmd/nft"
	"github/chapool/batch-sender/cmd/split"
	"github/chapool/batch-sender/cmd/token"
	"github/chapool/batch-sender/cmd/tx"
	"github/chapool/batch-sender/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "batch-sender",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

Batch sender for EVM chains: native coin and ERC20 distribution and collection,
ratio splits and ERC721 sweeps. Keys, addresses and the receiver are read from
line-oriented files, every outcome is appended to a CSV results file.
Configured through ENV and flags.`, config.ModuleName),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// attach the subcommands
	rootCmd.AddCommand(
		env.New(),
		keys.New(),
		native.New(),
		networks.New(),
		nft.New(),
		split.New(),
		token.New(),
		tx.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
