package tx

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/runner"
	"github/chapool/batch-sender/internal/util/command"
	"github/chapool/batch-sender/internal/wallet/chain"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx <hash>",
		Short: "Show the receipt and Transfer events of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := args[0]
			if len(common.FromHex(raw)) != common.HashLength {
				return errors.Wrapf(config.ErrConfig, "invalid transaction hash %q", raw)
			}
			txHash := common.HexToHash(raw)

			return command.WithRunner(cmd.Context(), command.SenderConfig(cmd), func(ctx context.Context, r *runner.Runner) error {
				receipt, err := r.Chain.TransactionReceipt(ctx, txHash)
				if err != nil {
					return err
				}

				printReceipt(cmd.OutOrStdout(), r.Network, receipt)

				return nil
			})
		},
	}

	defaults := config.DefaultSenderConfigFromEnv()
	cmd.Flags().String(command.FlagNetwork, defaults.NetworkKey, "network key from the networks file (SENDER_NETWORK)")
	cmd.Flags().String(command.FlagNetworksFile, defaults.Files.Networks, "network config file (SENDER_NETWORKS_FILE)")

	return cmd
}

func printReceipt(w io.Writer, network *chain.Network, receipt *types.Receipt) {
	fmt.Fprintf(w, "Transaction: %s\n", receipt.TxHash.Hex())
	fmt.Fprintf(w, "Block:       %s (%s)\n", receipt.BlockNumber, receipt.BlockHash.Hex())
	fmt.Fprintf(w, "Gas used:    %d\n", receipt.GasUsed)
	if receipt.EffectiveGasPrice != nil {
		fmt.Fprintf(w, "Gas price:   %s wei\n", receipt.EffectiveGasPrice)
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		color.New(color.FgGreen).Fprintln(w, "Status:      success")
	} else {
		color.New(color.FgRed).Fprintln(w, "Status:      failed")
	}

	for _, l := range receipt.Logs {
		transferLog, ok := chain.DecodeTransferLog(*l)
		if !ok {
			continue
		}

		if transferLog.IsNFT {
			fmt.Fprintf(w, "  ERC721 %s: %s -> %s token_id=%s\n",
				transferLog.Contract.Hex(), transferLog.From.Hex(), transferLog.To.Hex(), transferLog.Value)
		} else {
			fmt.Fprintf(w, "  ERC20  %s: %s -> %s value=%s\n",
				transferLog.Contract.Hex(), transferLog.From.Hex(), transferLog.To.Hex(), transferLog.Value)
		}
	}

	if url := network.TxURL(receipt.TxHash.Hex()); url != "" {
		fmt.Fprintln(w, url)
	}
}
