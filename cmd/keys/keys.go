package keys

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/runner"
	"github/chapool/batch-sender/internal/util"
	"github/chapool/batch-sender/internal/util/command"
	"github/chapool/batch-sender/internal/wallet/account"
	"github/chapool/batch-sender/internal/wallet/keystore"
)

const outFlag = "out"

func New() *cobra.Command {
	return command.NewSubcommandGroup("keys",
		newEncrypt(),
		newAddresses(),
	)
}

func newEncrypt() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt the keys file into a keystore v3 file",
		Long: `Validates every line of the keys file and writes it encrypted (scrypt, aes-128-ctr)
to --out. The encrypted file can be used as keys file; its password is read from
SENDER_KEYS_PASSWORD or prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := command.SenderConfig(cmd)
			out, _ := cmd.Flags().GetString(outFlag)

			raw, err := os.ReadFile(cfg.Files.Keys)
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", cfg.Files.Keys)
			}
			if _, ok := keystore.Parse(raw); ok {
				return errors.Wrapf(config.ErrConfig, "%s is already encrypted", cfg.Files.Keys)
			}

			lines, err := util.ReadLines(cfg.Files.Keys)
			if err != nil {
				return err
			}
			accounts, err := account.LoadAccounts(cfg.Files.Keys, lines, "")
			if err != nil {
				return err
			}

			password, err := newPassword()
			if err != nil {
				return err
			}

			if err := keystore.WriteFile(out, raw, password, keystore.DefaultScryptParams()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Encrypted %d keys to %s\n", len(accounts), out)

			return nil
		},
	}

	command.AddRunFlags(cmd.Flags())
	cmd.Flags().StringP(outFlag, "o", "privatekeys.json", "encrypted keys file to create")

	return cmd
}

func newAddresses() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Print the address of every key of the keys file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			passphrase, err := command.Passphrase(cmd)
			if err != nil {
				return err
			}

			r := runner.New(command.SenderConfig(cmd))
			r.KeysPassword = command.KeysPassword

			accounts, err := r.LoadSenders(passphrase)
			if err != nil {
				return err
			}

			for _, acc := range accounts {
				fmt.Fprintln(cmd.OutOrStdout(), acc.Address.Hex())
			}

			return nil
		},
	}

	command.AddRunFlags(cmd.Flags())

	return cmd
}

func newPassword() (string, error) {
	if password := util.GetEnv("SENDER_KEYS_PASSWORD", ""); password != "" {
		return password, nil
	}

	password, err := util.PromptPassword("New key file password: ")
	if err != nil {
		return "", err
	}
	repeated, err := util.PromptPassword("Repeat password: ")
	if err != nil {
		return "", err
	}

	if password == "" || password != repeated {
		return "", errors.Wrap(config.ErrConfig, "passwords are empty or do not match")
	}

	return password, nil
}
