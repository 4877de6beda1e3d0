package nft

import (
	"context"

	"github.com/spf13/cobra"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/runner"
	"github/chapool/batch-sender/internal/util/command"
)

const (
	contractFlag  = "contract"
	windowFlag    = "window"
	chunkSizeFlag = "chunk-size"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("nft",
		newSweep(),
	)
}

func newSweep() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Move every ERC721 token of the keys to the receiver",
		Long: `Finds the tokens of --contract owned by every key of the keys file and transfers
them to the receiver with safeTransferFrom. Ownership comes from the enumerable
extension when the contract supports it, else from Transfer events of the last
--window blocks checked against ownerOf.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			contract, err := command.AddressFlag(cmd, contractFlag)
			if err != nil {
				return err
			}
			passphrase, err := command.Passphrase(cmd)
			if err != nil {
				return err
			}

			cfg := command.SenderConfig(cmd)
			if cmd.Flags().Changed(windowFlag) {
				cfg.Scan.Window, _ = cmd.Flags().GetUint64(windowFlag)
			}
			if cmd.Flags().Changed(chunkSizeFlag) {
				cfg.Scan.ChunkSize, _ = cmd.Flags().GetUint64(chunkSizeFlag)
			}

			return command.WithRunner(cmd.Context(), cfg, func(ctx context.Context, r *runner.Runner) error {
				senders, err := r.LoadSenders(passphrase)
				if err != nil {
					return err
				}
				receiver, err := r.LoadReceiver()
				if err != nil {
					return err
				}

				pl, err := r.Planner().NFTSweep(ctx, senders, contract, receiver, r.Config.Scan.Window)
				if err != nil {
					return err
				}

				return command.ConfirmAndRun(ctx, cmd, r, pl)
			})
		},
	}

	defaults := config.DefaultSenderConfigFromEnv()

	command.AddRunFlags(cmd.Flags())
	cmd.Flags().StringP(contractFlag, "c", "", "ERC721 contract")
	cmd.Flags().Uint64(windowFlag, defaults.Scan.Window, "blocks to scan for Transfer events (SENDER_SCAN_WINDOW)")
	cmd.Flags().Uint64(chunkSizeFlag, defaults.Scan.ChunkSize, "blocks per log query, 0 for a single query (SENDER_SCAN_CHUNK_SIZE)")
	_ = cmd.MarkFlagRequired(contractFlag)

	return cmd
}
