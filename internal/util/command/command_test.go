package command_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/runner"
	"github/chapool/batch-sender/internal/test"
	"github/chapool/batch-sender/internal/util"
	"github/chapool/batch-sender/internal/util/command"
	"github/chapool/batch-sender/internal/wallet/account"
	"github/chapool/batch-sender/internal/wallet/chain"
	"github/chapool/batch-sender/internal/wallet/plan"
	"github/chapool/batch-sender/internal/wallet/transfer"
)

func TestWithRunner(t *testing.T) {
	node := test.NewChainNode(t, 97, test.Gwei)
	cfg := test.SenderConfig(t, node)

	var testError = errors.New("test error")

	resultErr := command.WithRunner(t.Context(), cfg, func(ctx context.Context, r *runner.Runner) error {
		require.NotNil(t, r.Network)
		assert.Equal(t, test.NetworkKey, r.Network.Key)
		assert.Equal(t, r.RunID, util.RunIDFromContext(ctx))

		return testError
	})

	assert.Equal(t, testError, resultErr)
}

func TestWithRunnerInitError(t *testing.T) {
	node := test.NewChainNode(t, 97, test.Gwei)
	cfg := test.SenderConfig(t, node)
	cfg.NetworkKey = "unknown"

	called := false
	err := command.WithRunner(t.Context(), cfg, func(context.Context, *runner.Runner) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, config.ErrConfig)
	assert.False(t, called)
}

func newRunCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "test"}
	command.AddRunFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse(args))

	return cmd
}

func TestSenderConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SENDER_NETWORK", "bsc")
	t.Setenv("SENDER_CONCURRENCY", "7")
	t.Setenv("SENDER_MAX_RETRIES", "4")

	cmd := newRunCommand(t, "--retries", "9", "--results", "out.csv")
	cfg := command.SenderConfig(cmd)

	assert.Equal(t, "bsc", cfg.NetworkKey)
	assert.Equal(t, 7, cfg.Executor.Concurrency)
	assert.Equal(t, 9, cfg.Executor.MaxRetries)
	assert.Equal(t, "out.csv", cfg.Results.CSVPath)

	cmd = newRunCommand(t, "--network", "eth", "--concurrency", "1")
	cfg = command.SenderConfig(cmd)

	assert.Equal(t, "eth", cfg.NetworkKey)
	assert.Equal(t, 1, cfg.Executor.Concurrency)
	assert.Equal(t, 4, cfg.Executor.MaxRetries)
}

func TestPassphraseFromEnv(t *testing.T) {
	t.Setenv("SENDER_MNEMONIC_PASSPHRASE", "secret")

	passphrase, err := command.Passphrase(newRunCommand(t))
	require.NoError(t, err)
	assert.Equal(t, "secret", passphrase)
}

func TestConfirmAndRun(t *testing.T) {
	node := test.NewChainNode(t, 97, test.Gwei)

	test.WithTestRunner(t, node, func(r *runner.Runner) {
		ctx := context.Background()
		test.WriteLines(t, filepath.Dir(r.Config.Files.Addresses), "address.txt",
			"0x00000000000000000000000000000000000000a1",
			"0x00000000000000000000000000000000000000a2",
		)

		senders, err := r.LoadSenders("")
		require.NoError(t, err)
		recipients, err := r.LoadRecipients()
		require.NoError(t, err)

		pl, err := r.Planner().NativeOneToMany(ctx, senders[0], recipients, "0.5")
		require.NoError(t, err)

		var out bytes.Buffer
		cmd := newRunCommand(t, "--yes")
		cmd.SetOut(&out)

		require.NoError(t, command.ConfirmAndRun(ctx, cmd, r, pl))

		assert.Len(t, node.Transactions(), 2)
		assert.Contains(t, out.String(), "2 transfers planned, 0 skipped")
		assert.Contains(t, out.String(), "0.5 TST")
		assert.Contains(t, out.String(), "succeeded: 2")
		assert.Contains(t, out.String(), "failed:    0")
	})
}

func TestConfirmAndRunEmptyPlan(t *testing.T) {
	node := test.NewChainNode(t, 97, test.Gwei)

	test.WithTestRunner(t, node, func(r *runner.Runner) {
		var out bytes.Buffer
		cmd := newRunCommand(t)
		cmd.SetOut(&out)

		require.NoError(t, command.ConfirmAndRun(context.Background(), cmd, r, &plan.Plan{}))
		assert.Contains(t, out.String(), "0 transfers planned")
		assert.NotContains(t, out.String(), "succeeded")
	})
}

func TestConfirmAndRunRecordsSkippedOnly(t *testing.T) {
	node := test.NewChainNode(t, 97, test.Gwei)

	cfg := test.SenderConfig(t, node)
	test.WriteLines(t, filepath.Dir(cfg.Files.Receiver), "received.txt", "0x00000000000000000000000000000000000000ff")

	test.WithTestRunnerFromConfig(t, cfg, func(r *runner.Runner) {
		ctx := context.Background()

		senders, err := r.LoadSenders("")
		require.NoError(t, err)
		receiver, err := r.LoadReceiver()
		require.NoError(t, err)

		// the sender holds nothing, so the plan is a single skip
		pl, err := r.Planner().NativeManyToOne(ctx, senders, receiver)
		require.NoError(t, err)
		require.Empty(t, pl.Requests)
		require.Len(t, pl.Skipped, 1)

		// no --yes and no terminal
		var out bytes.Buffer
		cmd := newRunCommand(t)
		cmd.SetOut(&out)

		require.NoError(t, command.ConfirmAndRun(ctx, cmd, r, pl))
		assert.Empty(t, node.Transactions())
		assert.Contains(t, out.String(), "skipped:   1")

		raw, err := os.ReadFile(r.Config.Results.CSVPath)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[1], "native_many2one,"+test.PrivateKeyAddress+","), lines[1])
		assert.Contains(t, lines[1], "balance 0")
	})
}

func TestConfirmAndRunRequiresYesWithoutTerminal(t *testing.T) {
	node := test.NewChainNode(t, 97, test.Gwei)

	test.WithTestRunner(t, node, func(r *runner.Runner) {
		ctx := context.Background()
		test.WriteLines(t, filepath.Dir(r.Config.Files.Addresses), "address.txt",
			"0x00000000000000000000000000000000000000a1",
		)

		senders, err := r.LoadSenders("")
		require.NoError(t, err)
		recipients, err := r.LoadRecipients()
		require.NoError(t, err)

		pl, err := r.Planner().NativeOneToMany(ctx, senders[0], recipients, "0.5")
		require.NoError(t, err)

		cmd := newRunCommand(t)
		cmd.SetOut(&bytes.Buffer{})

		require.ErrorIs(t, command.ConfirmAndRun(ctx, cmd, r, pl), command.ErrAborted)
		assert.Empty(t, node.Transactions())
	})
}

func TestTokenSymbols(t *testing.T) {
	node := test.NewChainNode(t, 97, test.Gwei)
	usdt := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	broken := common.HexToAddress("0x00000000000000000000000000000000000000c2")

	symbolCalls := 0
	node.HandleCall(func(to common.Address, data []byte) ([]byte, error) {
		if to != usdt || common.Bytes2Hex(data[:4]) != "95d89b41" { // symbol()
			return nil, &test.RPCError{Code: 3, Message: "execution reverted"}
		}
		symbolCalls++

		return chain.ERC20ABI.Methods["symbol"].Outputs.Pack("USDT")
	})

	test.WithTestRunner(t, node, func(r *runner.Runner) {
		acc, err := account.ParseKey(test.PrivateKey, "")
		require.NoError(t, err)

		to := common.HexToAddress("0xa1")
		pl := &plan.Plan{Requests: []*transfer.Request{
			transfer.NewRequest(transfer.KindTokenOneToMany, acc, to, transfer.FungibleToken(usdt, 6), big.NewInt(1_500_000)),
			transfer.NewRequest(transfer.KindTokenOneToMany, acc, to, transfer.FungibleToken(usdt, 6), big.NewInt(2_000_000)),
			transfer.NewRequest(transfer.KindTokenOneToMany, acc, to, transfer.FungibleToken(broken, 6), big.NewInt(1)),
			transfer.NewRequest(transfer.KindNativeOneToMany, acc, to, transfer.Native(), big.NewInt(1)),
		}}

		symbols := command.TokenSymbols(context.Background(), r.Chain, pl)
		assert.Equal(t, map[common.Address]string{usdt: "USDT"}, symbols)
		assert.Equal(t, 1, symbolCalls)

		var out bytes.Buffer
		command.PrintPlan(&out, r.Network, pl, symbols)
		assert.Contains(t, out.String(), "1.5 USDT")
		assert.Contains(t, out.String(), "0.000000000000000001 TST")
		assert.Contains(t, out.String(), "0.000001\n")
	})
}

func TestPrintSummaryCapsFailures(t *testing.T) {
	acc, err := account.ParseKey(test.PrivateKey, "")
	require.NoError(t, err)

	summary := runner.Summary{Failed: 25}
	for range 25 {
		req := transfer.NewRequest(transfer.KindNFTSweep, acc, common.HexToAddress("0xff"),
			transfer.NonFungibleToken(common.HexToAddress("0xc0"), big.NewInt(3)), nil)
		summary.Failures = append(summary.Failures, transfer.Failed(req, errors.New("execution reverted"), 1, 0))
	}

	var out bytes.Buffer
	command.PrintSummary(&out, summary)

	assert.Contains(t, out.String(), "failed:    25")
	assert.Equal(t, 20, strings.Count(out.String(), "token_id=3 execution reverted"))
	assert.Contains(t, out.String(), "... 5 more failures")
}

func TestNewSubcommandGroup(t *testing.T) {
	group := command.NewSubcommandGroup("native", &cobra.Command{Use: "one2many"}, &cobra.Command{Use: "many2one"})

	assert.Equal(t, "native <subcommand>", group.Use)
	assert.Equal(t, "native related subcommands", group.Short)
	assert.Len(t, group.Commands(), 2)
}
