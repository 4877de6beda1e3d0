package split

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github/chapool/batch-sender/internal/runner"
	"github/chapool/batch-sender/internal/util/command"
)

const (
	amountFlag = "amount"
	tokenFlag  = "token"
	ratiosFlag = "ratios"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a total between the addresses, equally or by ratio",
		Long: `Splits --amount (or ALL of the balance) of the first key between every address of
the addresses file. Shares follow --ratios, else the ratios file, else they are equal.
Integer division remainders go to the last address. Without --token the native coin
is split, and ALL reserves gas for every transfer first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			total, _ := cmd.Flags().GetString(amountFlag)

			var token *common.Address
			if cmd.Flags().Changed(tokenFlag) {
				contract, err := command.AddressFlag(cmd, tokenFlag)
				if err != nil {
					return err
				}
				token = &contract
			}

			var ratios []*big.Int
			if cmd.Flags().Changed(ratiosFlag) {
				raw, _ := cmd.Flags().GetString(ratiosFlag)
				parsed, err := runner.ParseRatioList(raw)
				if err != nil {
					return err
				}
				ratios = parsed
			}

			passphrase, err := command.Passphrase(cmd)
			if err != nil {
				return err
			}

			return command.WithRunner(cmd.Context(), command.SenderConfig(cmd), func(ctx context.Context, r *runner.Runner) error {
				if ratios == nil {
					fromFile, err := r.LoadRatios()
					if err != nil {
						return err
					}
					ratios = fromFile
				}

				senders, err := r.LoadSenders(passphrase)
				if err != nil {
					return err
				}
				recipients, err := r.LoadRecipients()
				if err != nil {
					return err
				}

				pl, err := r.Planner().Split(ctx, senders[0], recipients, token, total, ratios)
				if err != nil {
					return err
				}

				return command.ConfirmAndRun(ctx, cmd, r, pl)
			})
		},
	}

	command.AddRunFlags(cmd.Flags())
	cmd.Flags().StringP(amountFlag, "a", "", "total in whole units, or ALL")
	cmd.Flags().StringP(tokenFlag, "t", "", "ERC20 token contract, native coin if unset")
	cmd.Flags().String(ratiosFlag, "", "comma separated integer weights, one per address")
	_ = cmd.MarkFlagRequired(amountFlag)

	return cmd
}
