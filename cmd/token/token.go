package token

import (
	"context"

	"github.com/spf13/cobra"
	"github/chapool/batch-sender/internal/runner"
	"github/chapool/batch-sender/internal/util/command"
)

const (
	amountFlag   = "amount"
	contractFlag = "contract"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("token",
		newOneToMany(),
		newManyToOne(),
	)
}

func newOneToMany() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "one2many",
		Short: "Send an ERC20 token from the first key to every address",
		Long: `Sends --amount of the ERC20 token at --contract from the first key of the keys
file to every address of the addresses file. Amounts are whole tokens scaled by the
token decimals. --amount ALL divides the token balance equally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			contract, err := command.AddressFlag(cmd, contractFlag)
			if err != nil {
				return err
			}
			value, _ := cmd.Flags().GetString(amountFlag)
			passphrase, err := command.Passphrase(cmd)
			if err != nil {
				return err
			}

			return command.WithRunner(cmd.Context(), command.SenderConfig(cmd), func(ctx context.Context, r *runner.Runner) error {
				senders, err := r.LoadSenders(passphrase)
				if err != nil {
					return err
				}
				recipients, err := r.LoadRecipients()
				if err != nil {
					return err
				}

				pl, err := r.Planner().TokenOneToMany(ctx, senders[0], contract, recipients, value)
				if err != nil {
					return err
				}

				return command.ConfirmAndRun(ctx, cmd, r, pl)
			})
		},
	}

	command.AddRunFlags(cmd.Flags())
	cmd.Flags().StringP(contractFlag, "c", "", "ERC20 token contract")
	cmd.Flags().StringP(amountFlag, "a", "", "amount per address in whole tokens, or ALL")
	_ = cmd.MarkFlagRequired(contractFlag)
	_ = cmd.MarkFlagRequired(amountFlag)

	return cmd
}

func newManyToOne() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "many2one",
		Short: "Sweep the token balance of every key to the receiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			contract, err := command.AddressFlag(cmd, contractFlag)
			if err != nil {
				return err
			}
			passphrase, err := command.Passphrase(cmd)
			if err != nil {
				return err
			}

			return command.WithRunner(cmd.Context(), command.SenderConfig(cmd), func(ctx context.Context, r *runner.Runner) error {
				senders, err := r.LoadSenders(passphrase)
				if err != nil {
					return err
				}
				receiver, err := r.LoadReceiver()
				if err != nil {
					return err
				}

				pl, err := r.Planner().TokenManyToOne(ctx, senders, contract, receiver)
				if err != nil {
					return err
				}

				return command.ConfirmAndRun(ctx, cmd, r, pl)
			})
		},
	}

	command.AddRunFlags(cmd.Flags())
	cmd.Flags().StringP(contractFlag, "c", "", "ERC20 token contract")
	_ = cmd.MarkFlagRequired(contractFlag)

	return cmd
}
