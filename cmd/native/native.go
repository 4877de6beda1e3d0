package native

import (
	"context"

	"github.com/spf13/cobra"
	"github/chapool/batch-sender/internal/runner"
	"github/chapool/batch-sender/internal/util/command"
)

const amountFlag = "amount"

func New() *cobra.Command {
	return command.NewSubcommandGroup("native",
		newOneToMany(),
		newManyToOne(),
	)
}

func newOneToMany() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "one2many",
		Short: "Send the native coin from the first key to every address",
		Long: `Sends --amount of the native coin from the first key of the keys file to every
address of the addresses file. --amount ALL divides the spendable balance equally
after reserving gas for every transfer; the remainder goes to the last address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

				pl, err := r.Planner().NativeOneToMany(ctx, senders[0], recipients, value)
				if err != nil {
					return err
				}

				return command.ConfirmAndRun(ctx, cmd, r, pl)
			})
		},
	}

	command.AddRunFlags(cmd.Flags())
	cmd.Flags().StringP(amountFlag, "a", "", "amount per address in whole coins, or ALL")
	_ = cmd.MarkFlagRequired(amountFlag)

	return cmd
}

func newManyToOne() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "many2one",
		Short: "Sweep the native balance of every key to the receiver",
		Long: `Sends the whole native balance minus the gas cost from every key of the keys
file to the receiver. Keys without enough balance for gas are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

				pl, err := r.Planner().NativeManyToOne(ctx, senders, receiver)
				if err != nil {
					return err
				}

				return command.ConfirmAndRun(ctx, cmd, r, pl)
			})
		},
	}

	command.AddRunFlags(cmd.Flags())

	return cmd
}
