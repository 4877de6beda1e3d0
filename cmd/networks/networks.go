package networks

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/util/command"
	"github/chapool/batch-sender/internal/wallet/chain"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List the networks of the networks file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := command.SenderConfig(cmd)

			service, err := chain.NewServiceFromFile(cfg.Files.Networks)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			key := color.New(color.FgCyan, color.Bold)
			for _, n := range service.ListNetworks() {
				marker := " "
				if n.Key == cfg.NetworkKey {
					marker = "*"
				}

				fmt.Fprintf(out, "%s ", marker)
				key.Fprintf(out, "%-12s", n.Key)
				fmt.Fprintf(out, " %-24s chain id %-8d %s\n", n.Name, n.ChainID, n.Symbol)
			}

			return nil
		},
	}

	cmd.Flags().String(command.FlagNetworksFile, config.DefaultSenderConfigFromEnv().Files.Networks, "network config file (SENDER_NETWORKS_FILE)")
	cmd.Flags().String(command.FlagNetwork, "", "network key to mark as selected (SENDER_NETWORK)")

	return cmd
}
