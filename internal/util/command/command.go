package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/runner"
	"github/chapool/batch-sender/internal/util"
)

// SetupLogger applies the logger config to the global zerolog logger.
func SetupLogger(cfg config.Logger) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(cfg.Level)
	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = "15:04:05"
		}))
	}
}

// WithRunner sets up logging, initializes a runner for cfg and calls f with a context
// carrying the run id. The context is canceled on SIGINT and SIGTERM; outcomes of
// transfers in flight are still recorded.
func WithRunner(ctx context.Context, cfg config.Sender, f func(ctx context.Context, r *runner.Runner) error) error {
	SetupLogger(cfg.Logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(cfg)
	r.KeysPassword = KeysPassword
	ctx = util.WithRunID(ctx, r.RunID)

	if err := r.Init(ctx); err != nil {
		util.LogFromContext(ctx).Error().Err(err).Msg("Failed to initialize runner")
		r.Shutdown(ctx)
		return err
	}

	defer func() {
		if errs := r.Shutdown(ctx); len(errs) > 0 {
			util.LogFromContext(ctx).Error().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down runner")
		}
	}()

	return f(ctx, r)
}

// KeysPassword returns SENDER_KEYS_PASSWORD, or prompts for the password of an
// encrypted key file when running on a terminal.
func KeysPassword() (string, error) {
	if password := util.GetEnv("SENDER_KEYS_PASSWORD", ""); password != "" {
		return password, nil
	}

	if !util.IsTerminal() {
		return "", errors.Wrap(config.ErrConfig, "encrypted key file: set SENDER_KEYS_PASSWORD or run on a terminal")
	}

	return util.PromptPassword("Key file password: ")
}

// NewSubcommandGroup returns a command that only groups subcommands.
func NewSubcommandGroup(name string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <subcommand>", name),
		Short: fmt.Sprintf("%s related subcommands", name),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}
