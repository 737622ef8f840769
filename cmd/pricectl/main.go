// Command pricectl runs pricelist operations from a shell: parse a local file,
// import or queue it, and inspect the job queues.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/centralpricelist/pricelist/internal/app"
	"github.com/centralpricelist/pricelist/internal/oracle"
)

// env carries what every command needs after flags are parsed.
type env struct {
	cfg     *app.Config
	logger  *slog.Logger
	verbose bool
}

func (e *env) oracles() *oracle.Registry {
	return app.NewOracleRegistry(e.cfg, e.logger, nil)
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "pricectl",
		Short:         "Operate the central supplier pricelist",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			level := slog.LevelWarn
			if e.verbose {
				level = slog.LevelDebug
			}
			e.cfg = cfg
			e.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "Log pipeline decisions to stderr")

	root.AddCommand(
		newParseCmd(e),
		newImportCmd(e),
		newEnqueueCmd(e),
		newQueueCmd(e),
		newCleanupCmd(e),
		newHashPasswordCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&env{})
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
