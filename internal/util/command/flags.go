package command

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/util"
)

const (
	FlagNetwork          = "network"
	FlagNetworksFile     = "networks-file"
	FlagKeysFile         = "keys"
	FlagAddressesFile    = "addresses"
	FlagReceiverFile     = "receiver"
	FlagRatiosFile       = "ratios-file"
	FlagResults          = "results"
	FlagSQLite           = "sqlite"
	FlagConcurrency      = "concurrency"
	FlagRetries          = "retries"
	FlagMetricsAddr      = "metrics-addr"
	FlagYes              = "yes"
	FlagPassphrasePrompt = "passphrase-prompt"
)

// AddRunFlags registers the flags shared by every transfer command. Defaults are shown
// for documentation only; unset flags never override the environment.
func AddRunFlags(flags *pflag.FlagSet) {
	defaults := config.DefaultSenderConfigFromEnv()

	flags.String(FlagNetwork, defaults.NetworkKey, "network key from the networks file (SENDER_NETWORK)")
	flags.String(FlagNetworksFile, defaults.Files.Networks, "network config file (SENDER_NETWORKS_FILE)")
	flags.String(FlagKeysFile, defaults.Files.Keys, "private key / mnemonic list (SENDER_KEYS_FILE)")
	flags.String(FlagAddressesFile, defaults.Files.Addresses, "recipient address list (SENDER_ADDRESSES_FILE)")
	flags.String(FlagReceiverFile, defaults.Files.Receiver, "file whose first line is the receiver (SENDER_RECEIVER_FILE)")
	flags.String(FlagRatiosFile, defaults.Files.Ratios, "split ratios file (SENDER_RATIOS_FILE)")
	flags.String(FlagResults, defaults.Results.CSVPath, "CSV results file (SENDER_RESULTS_CSV)")
	flags.String(FlagSQLite, defaults.Results.SQLitePath, "SQLite results database, empty disables (SENDER_RESULTS_SQLITE)")
	flags.Int(FlagConcurrency, defaults.Executor.Concurrency, "parallel transfers (SENDER_CONCURRENCY)")
	flags.Int(FlagRetries, defaults.Executor.MaxRetries, "retries per transfer (SENDER_MAX_RETRIES)")
	flags.String(FlagMetricsAddr, defaults.Metrics.ListenAddress, "serve prometheus metrics on this address (SENDER_METRICS_ADDR)")
	flags.BoolP(FlagYes, "y", false, "do not ask for confirmation")
	flags.Bool(FlagPassphrasePrompt, false, "prompt for the BIP39 passphrase of mnemonic lines")
}

// SenderConfig returns the env config with every flag the user set applied on top.
func SenderConfig(cmd *cobra.Command) config.Sender {
	cfg := config.DefaultSenderConfigFromEnv()
	flags := cmd.Flags()

	stringFlag(flags, FlagNetwork, &cfg.NetworkKey)
	stringFlag(flags, FlagNetworksFile, &cfg.Files.Networks)
	stringFlag(flags, FlagKeysFile, &cfg.Files.Keys)
	stringFlag(flags, FlagAddressesFile, &cfg.Files.Addresses)
	stringFlag(flags, FlagReceiverFile, &cfg.Files.Receiver)
	stringFlag(flags, FlagRatiosFile, &cfg.Files.Ratios)
	stringFlag(flags, FlagResults, &cfg.Results.CSVPath)
	stringFlag(flags, FlagSQLite, &cfg.Results.SQLitePath)
	stringFlag(flags, FlagMetricsAddr, &cfg.Metrics.ListenAddress)
	intFlag(flags, FlagConcurrency, &cfg.Executor.Concurrency)
	intFlag(flags, FlagRetries, &cfg.Executor.MaxRetries)

	return cfg
}

// Passphrase returns the BIP39 passphrase for mnemonic key lines, prompted on the
// terminal when --passphrase-prompt is set, else SENDER_MNEMONIC_PASSPHRASE.
func Passphrase(cmd *cobra.Command) (string, error) {
	if prompt, _ := cmd.Flags().GetBool(FlagPassphrasePrompt); prompt {
		return util.PromptPassword("BIP39 passphrase: ")
	}

	return util.GetEnv("SENDER_MNEMONIC_PASSPHRASE", ""), nil
}

func stringFlag(flags *pflag.FlagSet, name string, dst *string) {
	if !flags.Changed(name) {
		return
	}
	if v, err := flags.GetString(name); err == nil {
		*dst = v
	}
}

func intFlag(flags *pflag.FlagSet, name string, dst *int) {
	if !flags.Changed(name) {
		return
	}
	if v, err := flags.GetInt(name); err == nil {
		*dst = v
	}
}

// AddressFlag reads a required hex address flag.
func AddressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "failed to read --%s", name)
	}

	if !common.IsHexAddress(v) {
		return common.Address{}, errors.Wrapf(config.ErrConfig, "--%s: invalid address %q", name, v)
	}

	return common.HexToAddress(v), nil
}
