package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/batch-sender/internal/runner"
	"github/chapool/batch-sender/internal/util"
	"github/chapool/batch-sender/internal/wallet/chain"
	"github/chapool/batch-sender/internal/wallet/plan"
	"github/chapool/batch-sender/internal/wallet/result"
	"github/chapool/batch-sender/internal/wallet/transfer"
)

// ErrAborted is returned when the user declines to start a run.
var ErrAborted = errors.New("run aborted")

const (
	maxPreviewRows = 10
	maxFailureRows = 20
)

// ConfirmAndRun previews pl, asks for confirmation unless --yes is set and executes it.
// Without a terminal --yes is required. A plan of skipped items only is recorded
// without asking since nothing is sent.
func ConfirmAndRun(ctx context.Context, cmd *cobra.Command, r *runner.Runner, pl *plan.Plan) error {
	out := cmd.OutOrStdout()

	var symbols map[common.Address]string
	if r.Chain != nil {
		symbols = TokenSymbols(ctx, r.Chain, pl)
	}
	PrintPlan(out, r.Network, pl, symbols)

	if len(pl.Requests) == 0 && len(pl.Skipped) == 0 {
		return nil
	}

	if yes, _ := cmd.Flags().GetBool(FlagYes); !yes && len(pl.Requests) > 0 {
		if !util.IsTerminal() {
			return errors.Wrap(ErrAborted, "not a terminal, pass --yes to run without confirmation")
		}

		ok, err := util.Confirm(cmd.InOrStdin(), out, fmt.Sprintf("Send %d transfers", len(pl.Requests)))
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}

	summary, err := r.Run(ctx, pl)
	PrintSummary(out, summary)

	if err != nil {
		return err
	}

	return ctx.Err()
}

// SymbolSource resolves ERC20 symbols, see chain.Client.
type SymbolSource interface {
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
}

// TokenSymbols looks up the symbol of every ERC20 contract in pl. Contracts without a
// readable symbol are left out.
func TokenSymbols(ctx context.Context, src SymbolSource, pl *plan.Plan) map[common.Address]string {
	symbols := make(map[common.Address]string)
	seen := make(map[common.Address]bool)

	lookup := func(req *transfer.Request) {
		if req.Asset.Type != transfer.AssetFungibleToken || seen[req.Asset.Contract] {
			return
		}
		seen[req.Asset.Contract] = true

		symbol, err := src.TokenSymbol(ctx, req.Asset.Contract)
		if err != nil || symbol == "" {
			util.LogFromContext(ctx).Debug().
				Err(err).
				Str("token", req.Asset.Contract.Hex()).
				Msg("Token symbol unavailable")
			return
		}
		symbols[req.Asset.Contract] = symbol
	}

	for _, req := range pl.Requests {
		lookup(req)
	}
	for _, o := range pl.Skipped {
		lookup(o.Request)
	}

	return symbols
}

// PrintPlan writes a short preview of the planned transfers. Amounts carry the native
// symbol of network or the token symbol from symbols when known.
func PrintPlan(w io.Writer, network *chain.Network, pl *plan.Plan, symbols map[common.Address]string) {
	bold := color.New(color.Bold)

	if network != nil {
		bold.Fprintf(w, "Network %s (chain id %d)\n", network.Name, network.ChainID)
	}

	fmt.Fprintf(w, "%d transfers planned, %d skipped\n", len(pl.Requests), len(pl.Skipped))

	for i, req := range pl.Requests {
		if i == maxPreviewRows {
			fmt.Fprintf(w, "  ... %d more\n", len(pl.Requests)-maxPreviewRows)
			break
		}

		unit := ""
		switch req.Asset.Type {
		case transfer.AssetNative:
			if network != nil {
				unit = network.Symbol
			}
		case transfer.AssetFungibleToken:
			unit = symbols[req.Asset.Contract]
		}

		if unit == "" {
			fmt.Fprintf(w, "  %s\n", req)
		} else {
			fmt.Fprintf(w, "  %s %s\n", req, unit)
		}
	}

	for _, o := range pl.Skipped {
		color.New(color.FgYellow).Fprintf(w, "  skip %s -> %s: %s\n", o.Request.From.Address.Hex(), o.Request.To.Hex(), o.Reason)
	}
}

// PrintSummary writes the counts of a run and a capped list of its failures.
func PrintSummary(w io.Writer, summary runner.Summary) {
	fmt.Fprintln(w)
	color.New(color.FgGreen).Fprintf(w, "succeeded: %d\n", summary.Succeeded)
	color.New(color.FgRed).Fprintf(w, "failed:    %d\n", summary.Failed)
	color.New(color.FgYellow).Fprintf(w, "skipped:   %d\n", summary.Skipped)
	fmt.Fprintf(w, "total:     %d in %s\n", summary.Total(), summary.Duration.Round(time.Millisecond))

	for i, o := range summary.Failures {
		if i == maxFailureRows {
			fmt.Fprintf(w, "  ... %d more failures, see the results file\n", len(summary.Failures)-maxFailureRows)
			break
		}

		color.New(color.FgRed).Fprintf(w, "  %s %s -> %s: %s\n",
			o.Request.Kind, o.Request.From.Address.Hex(), o.Request.To.Hex(), result.Message(o))
	}
}
