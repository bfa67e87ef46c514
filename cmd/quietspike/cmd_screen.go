package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"QuietSpike/internal/di"
	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/usecase"
	"QuietSpike/pkg/util"
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen the universe for quiet-period volume spikes",
	Long: `Evaluate every universe symbol with the configured strategy and print
the matches. Matches are stored in screen_signals and published to Kafka
unless --persist=false.

Examples:
  quietspike screen
  quietspike screen --symbols 600000,000001 --end 20240630
  quietspike screen --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScreen(cmd, models.Strategy(screenStrategy))
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan symbol histories for every bar that started a breakout",
	Long: `Run the rolling strategy: flag each historical bar whose trailing window
was quiet and whose next bars were loud.

Examples:
  quietspike scan --symbols 600000
  quietspike scan --start 20230101 --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScreen(cmd, models.StrategyRolling)
	},
}

var (
	screenStrategy string
	screenSymbols  []string
	screenStart    string
	screenEnd      string
	screenPersist  bool
	screenJSON     bool
)

func init() {
	for _, c := range []*cobra.Command{screenCmd, scanCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringSliceVar(&screenSymbols, "symbols", nil, "screen only these codes")
		c.Flags().StringVar(&screenStart, "start", "", "first date, YYYYMMDD (default end minus screener.history_days)")
		c.Flags().StringVar(&screenEnd, "end", "", "last date, YYYYMMDD (default today)")
		c.Flags().BoolVar(&screenPersist, "persist", true, "store and publish matched signals")
		c.Flags().BoolVar(&screenJSON, "json", false, "print the report as JSON")
	}
	screenCmd.Flags().StringVar(&screenStrategy, "strategy", "", "quiet_spike or rolling (default screener.detector.strategy)")
}

func runScreen(cmd *cobra.Command, strategy models.Strategy) error {
	return withServices(func(svc *di.Services) error {
		report, err := svc.Screen.Screen(cmd.Context(), usecase.ScreenParams{
			Codes:    screenSymbols,
			Start:    screenStart,
			End:      screenEnd,
			Strategy: strategy,
			Persist:  screenPersist,
		})
		if report != nil {
			if screenJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(models.NewScreenResponse(report)); encErr != nil {
					return encErr
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}
		}
		return err
	})
}

func printReport(w io.Writer, report *models.Report) {
	matched := report.Matched()
	fmt.Fprintf(w, "strategy %s: %d matched of %d evaluated, %d skipped\n",
		report.Strategy, len(matched), len(report.Signals), len(report.Skipped))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(matched) > 0 {
		fmt.Fprintln(tw, "CODE\tNAME\tAS OF\tDETAIL")
		for _, s := range matched {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Code, s.Name, util.FormatDate(s.AsOf), detail(s))
		}
	}
	if len(report.Skipped) > 0 {
		fmt.Fprintln(tw, "\nSKIPPED\tNAME\tKIND\tREASON")
		for _, s := range report.Skipped {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Code, s.Name, s.Kind, s.Reason)
		}
	}
	_ = tw.Flush()
}

func detail(s models.Signal) string {
	if len(s.QualifyingDates) > 0 {
		dates := make([]string, len(s.QualifyingDates))
		for i, d := range s.QualifyingDates {
			dates[i] = util.FormatDate(d)
		}
		return strings.Join(dates, ",")
	}
	if s.Baseline != nil {
		return fmt.Sprintf("quiet avg volume %.0f, avg amplitude %.4f", s.Baseline.AvgVolume, s.Baseline.AvgAmplitude)
	}
	return ""
}
