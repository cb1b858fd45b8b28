package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/deadline-agent/internal/domain/deadline"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the deadline rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: runWith(func(cmd *cobra.Command, _ []string, cc *CLIContext) error {
			return PrintResult(cmd, rulesView(cc.Service.Rules()))
		}),
	}
}

type rulesView []deadline.RuleInfo

func (v rulesView) TableHeaders() []string {
	return []string{"#", "ID", "Rule", "Priority", "Legal basis", "Confidence"}
}

func (v rulesView) TableRows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, r := range v {
		id := r.ID
		if r.Custom {
			id += " (custom)"
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Order), id, r.Rule,
			colorizePriority(string(r.Priority)), r.LegalBasis, string(r.Confidence),
		})
	}
	return rows
}

func (v rulesView) WriteText(w io.Writer) {
	for _, r := range v {
		fmt.Fprintf(w, "%d. %s [%s] - %s\n", r.Order, r.Rule, colorizePriority(string(r.Priority)), r.LegalBasis)
	}
}
