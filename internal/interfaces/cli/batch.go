package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

func newBatchCmd() *cobra.Command {
	var summaryOut string

	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Resolve every .txt and .pdf file in a folder",
		Long: `Resolve every supported file directly inside dir. The summary can be saved
with --save and later fed to "deadline metrics".`,
		Args: cobra.ExactArgs(1),
		RunE: runWith(func(cmd *cobra.Command, args []string, cc *CLIContext) error {
			ctx, cancel := cc.opContext(cmd)
			defer cancel()

			summary, err := cc.Service.ProcessFolder(ctx, args[0], extraction.Options{Reference: cc.Reference})
			if err != nil {
				return err
			}
			if summaryOut != "" {
				if err := writeSummary(summaryOut, summary); err != nil {
					return err
				}
				cc.Logger.Info("batch summary saved")
			}
			return PrintResult(cmd, (*batchView)(summary))
		}),
	}
	cmd.Flags().StringVar(&summaryOut, "save", "", "also write the JSON summary to this file")
	return cmd
}

func writeSummary(path string, s *extraction.BatchSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "cannot create summary file")
	}
	if err := printJSON(f, s); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot write summary file")
	}
	return f.Close()
}

type batchView extraction.BatchSummary

func (v *batchView) TableHeaders() []string {
	return []string{"File", "Deadline", "Rule", "Priority", "Method"}
}

func (v *batchView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Results))
	for _, dr := range v.Results {
		row := resultRow(dr.Result)
		rows = append(rows, []string{dr.FileName, row[0], row[1], row[2], row[5]})
	}
	return rows
}

func (v *batchView) WriteText(w io.Writer) {
	for _, dr := range v.Results {
		if dr.Result.Succeeded() {
			fmt.Fprintf(w, "%s  %s  %s\n", color.GreenString("✔"), dr.FileName, dr.Result.DeadlineString())
			fmt.Fprintf(w, "   %s (%s)\n", dr.Result.Rule, colorizePriority(string(dr.Result.Priority)))
			continue
		}
		fmt.Fprintf(w, "%s  %s  %s\n", color.RedString("✘"), dr.FileName, dr.Result.Error)
	}
	fmt.Fprintf(w, "\nBatch %s: %d of %d files resolved\n", v.BatchID, v.SuccessfulExtractions, v.TotalFiles)
}
