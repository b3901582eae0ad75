// Package cli implements the conta-azul command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conta-azul",
		Short: "Extract Conta Azul accounts receivable into SQLite",
		Long: `Extract Conta Azul accounts receivable into the CR table of a SQLite database.

Without a subcommand, runs one extraction of every month of the year up to
the current month. Configuration is read from the environment and .env.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runExtractCmd,
	}
	cmd.Flags().Int("year", 0, "year to extract (default CONTA_AZUL_YEAR or the current year)")

	cmd.AddCommand(
		newAuthorizeCmd(),
		newLogoutCmd(),
		newSummaryCmd(),
		newBackupCmd(),
		newScheduleCmd(),
	)
	return cmd
}

// Execute runs the command line until it finishes or SIGINT/SIGTERM arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		cmd.PrintErrln(Error("Error:"), err)
	}
	return err
}
