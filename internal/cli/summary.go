package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/bene2386/Conta-Azul/internal/modules/receivables"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show stored receivables per month and recent runs",
		Args:  cobra.NoArgs,
		RunE:  runSummaryCmd,
	}
	cmd.Flags().Int("year", 0, "year to summarize (default CONTA_AZUL_YEAR or the current year)")
	cmd.Flags().Int("runs", 5, "number of recent runs to list")
	return cmd
}

func runSummaryCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	year, err := resolveYear(cmd, a.cfg, time.Now())
	if err != nil {
		return err
	}
	runLimit, _ := cmd.Flags().GetInt("runs")

	container, err := a.wire(cmd.Context())
	if err != nil {
		return err
	}
	defer container.Close()

	periods, err := container.ReceivablesRepo.Summary(cmd.Context(), year)
	if err != nil {
		return err
	}
	printSummary(cmd, year, periods)

	if runLimit <= 0 {
		return nil
	}
	runs, err := container.RunRepo.Recent(cmd.Context(), runLimit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, headerStyle.Render("Recent runs"))
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, Silent("No runs yet."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tYEAR\tSTATUS\tMONTHS\tRECORDS\tERROR")
	for _, run := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Year,
			run.Status,
			run.Months,
			run.Records,
			run.Error,
		)
	}
	return tw.Flush()
}

func printSummary(cmd *cobra.Command, year int, periods []receivables.PeriodSummary) {
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Receivables %d", year)))
	if len(periods) == 0 {
		_, _ = fmt.Fprintln(w, Silent("No receivables stored for this year."))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "PERIOD\tCOUNT\tTOTAL\tMEAN\tSTDDEV\tMIN\tMAX\t")

	var count int
	total := decimal.Zero
	for _, p := range periods {
		count += p.Count
		total = total.Add(p.Total)

		if p.Priced == 0 {
			_, _ = fmt.Fprintf(tw, "%s\t%d\t-\t-\t-\t-\t-\t\n", p.Period, p.Count)
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			p.Period,
			p.Count,
			receivables.FormatAmount(p.Total),
			formatFloat(p.Mean),
			formatFloat(p.StdDev),
			receivables.FormatAmount(p.Minimum),
			receivables.FormatAmount(p.Maximum),
		)
	}
	_, _ = fmt.Fprintf(tw, "TOTAL\t%d\t%s\t\t\t\t\t\n", count, receivables.FormatAmount(total))
	_ = tw.Flush()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
