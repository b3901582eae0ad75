package cli

import (
	"fmt"
	"time"

	"github.com/bene2386/Conta-Azul/internal/modules/extraction"
	"github.com/spf13/cobra"
)

func runExtractCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if err := a.cfg.RequireCredentials(); err != nil {
		return err
	}
	year, err := resolveYear(cmd, a.cfg, time.Now())
	if err != nil {
		return err
	}

	container, err := a.wire(cmd.Context())
	if err != nil {
		return err
	}
	defer container.Close()

	run, err := container.ExtractionService.Run(cmd.Context(), year)
	printRun(cmd, run)
	return err
}

func printRun(cmd *cobra.Command, run *extraction.Run) {
	if run == nil {
		return
	}
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%s %s  %s\n", Silent("Run"), Primary(run.ID), statusText(run.Status))
	_, _ = fmt.Fprintf(w, "%s %d  %s %d  %s %d\n",
		Silent("Year:"), run.Year,
		Silent("Months:"), run.Months,
		Silent("Records:"), run.Records,
	)
}
