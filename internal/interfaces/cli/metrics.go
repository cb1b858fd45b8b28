package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

func newMetricsCmd() *cobra.Command {
	var (
		manual  float64
		ai      float64
		rate    float64
		missed  float64
		penalty float64
	)

	cmd := &cobra.Command{
		Use:   "metrics <summary.json>",
		Short: "Estimate the business value of a batch run",
		Long: `Read a batch summary written by "deadline batch --save" (or - for stdin)
and estimate time saved, cost savings and penalties avoided. Assumptions
default to the business section of the configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: runWith(func(cmd *cobra.Command, args []string, cc *CLIContext) error {
			summary, err := readSummary(cmd, args[0])
			if err != nil {
				return err
			}

			a := cc.Config.Business
			flags := cmd.Flags()
			if flags.Changed("manual-minutes") {
				a.ManualMinutesPerDoc = manual
			}
			if flags.Changed("ai-minutes") {
				a.AIMinutesPerDoc = ai
			}
			if flags.Changed("hourly-rate") {
				a.HourlyRate = rate
			}
			if flags.Changed("missed-rate") {
				a.MissedDeadlineRate = missed
			}
			if flags.Changed("penalty") {
				a.PenaltyPerMiss = penalty
			}

			m, err := extraction.CalculateBusinessMetrics(extraction.SummaryResults(summary), a)
			if err != nil {
				return err
			}
			return PrintResult(cmd, (*metricsView)(m))
		}),
	}
	f := cmd.Flags()
	f.Float64Var(&manual, "manual-minutes", 0, "manual minutes per document")
	f.Float64Var(&ai, "ai-minutes", 0, "assisted minutes per document")
	f.Float64Var(&rate, "hourly-rate", 0, "hourly rate in EUR")
	f.Float64Var(&missed, "missed-rate", 0, "share of deadlines missed without the tool, 0-1")
	f.Float64Var(&penalty, "penalty", 0, "average penalty per missed deadline in EUR")
	return cmd
}

func readSummary(cmd *cobra.Command, path string) (*extraction.BatchSummary, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.NotFound("cannot open summary").WithDetail(err.Error())
		}
		defer f.Close()
		r = f
	}
	var s extraction.BatchSummary
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.InvalidParam("summary is not valid JSON").WithDetail(err.Error())
	}
	return &s, nil
}

type metricsView extraction.BusinessMetrics

func (v *metricsView) rows() [][]string {
	return [][]string{
		{"Documents", fmt.Sprintf("%d", v.TotalDocuments)},
		{"Resolved", fmt.Sprintf("%d (%.1f%%)", v.SuccessfulExtractions, v.SuccessRate)},
		{"Time saved", fmt.Sprintf("%.1f h", v.TimeSavedHours)},
		{"Cost savings", fmt.Sprintf("%.2f EUR", v.CostSavings)},
		{"Missed deadlines prevented", fmt.Sprintf("%.2f", v.MissedDeadlinesPrevented)},
		{"Risk reduction", fmt.Sprintf("%.2f EUR", v.RiskReductionValue)},
		{"Total value", fmt.Sprintf("%.2f EUR", v.TotalValue)},
		{"Capacity", fmt.Sprintf("%.0f docs/h", v.ProcessingCapacityPerHour)},
		{"Annual projection", fmt.Sprintf("%.2f EUR", v.AnnualValueProjection)},
	}
}

func (v *metricsView) TableHeaders() []string { return []string{"Metric", "Value"} }

func (v *metricsView) TableRows() [][]string { return v.rows() }

func (v *metricsView) WriteText(w io.Writer) {
	for _, r := range v.rows() {
		fmt.Fprintf(w, "%-28s %s\n", r[0]+":", r[1])
	}
}
