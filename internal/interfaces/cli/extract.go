package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

func newExtractCmd() *cobra.Command {
	var (
		file       string
		aiFallback bool
		dateParser bool
	)

	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "Resolve the deadline of one text or document",
		Long: `Resolve the deadline of a task text given as argument, read from a file
(--file, .txt or .pdf) or piped on stdin (--file -).`,
		Example: `  deadline extract "Declaração periódica de IVA"
  deadline extract --file notificacao.pdf --reference 2025-05-29 -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWith(func(cmd *cobra.Command, args []string, cc *CLIContext) error {
			if file != "" && len(args) > 0 {
				return errors.InvalidParam("give either a text argument or --file, not both")
			}
			if file == "" && len(args) == 0 {
				return errors.InvalidParam("a text argument or --file is required")
			}

			opts := extraction.Options{Reference: cc.Reference}
			if cmd.Flags().Changed("ai-fallback") {
				opts.UseAIFallback = &aiFallback
			}
			if cmd.Flags().Changed("date-parser") {
				opts.UseDateParser = &dateParser
			}

			ctx, cancel := cc.opContext(cmd)
			defer cancel()

			switch {
			case file == "-":
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.InvalidParam("failed to read stdin").WithDetail(err.Error())
				}
				return extractText(cmd, cc, extraction.ProcessRequest{Text: string(b), Source: "stdin", Options: opts})
			case file != "":
				content, err := os.ReadFile(file)
				if err != nil {
					return errors.NotFound("cannot read file").WithDetail(err.Error())
				}
				res, err := cc.Service.ProcessDocument(ctx, extraction.Document{Name: filepath.Base(file), Content: content}, opts)
				if err != nil {
					return err
				}
				return PrintResult(cmd, (*documentView)(res))
			default:
				return extractText(cmd, cc, extraction.ProcessRequest{Text: args[0], Options: opts})
			}
		}),
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the text from a .txt or .pdf file, - for stdin")
	cmd.Flags().BoolVar(&aiFallback, "ai-fallback", true, "use the language model when no rule matches")
	cmd.Flags().BoolVar(&dateParser, "date-parser", true, "accept explicit dates in the text")
	return cmd
}

func extractText(cmd *cobra.Command, cc *CLIContext, req extraction.ProcessRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return errors.InvalidParam("text is empty")
	}
	ctx, cancel := cc.opContext(cmd)
	defer cancel()
	return PrintResult(cmd, (*resultView)(cc.Service.Process(ctx, req)))
}

// resultView renders a single result.
type resultView deadline.Result

func (v *resultView) TableHeaders() []string {
	return []string{"Deadline", "Rule", "Priority", "Legal basis", "Confidence", "Method"}
}

func (v *resultView) TableRows() [][]string {
	return [][]string{resultRow((*deadline.Result)(v))}
}

func resultRow(r *deadline.Result) []string {
	if !r.Succeeded() {
		return []string{"-", r.Error, "-", "-", "-", string(r.ProcessingMethod)}
	}
	return []string{
		r.DeadlineString(),
		r.Rule,
		colorizePriority(string(r.Priority)),
		r.LegalBasis,
		string(r.Confidence),
		string(r.ProcessingMethod),
	}
}

func (v *resultView) WriteText(w io.Writer) {
	r := (*deadline.Result)(v)
	if !r.Succeeded() {
		fmt.Fprintln(w, color.RedString("No deadline found: %s", r.Error))
		return
	}
	fmt.Fprintf(w, "Deadline:    %s\n", color.New(color.Bold).Sprint(r.DeadlineString()))
	fmt.Fprintf(w, "Rule:        %s\n", r.Rule)
	fmt.Fprintf(w, "Priority:    %s\n", colorizePriority(string(r.Priority)))
	fmt.Fprintf(w, "Legal basis: %s\n", r.LegalBasis)
	fmt.Fprintf(w, "Confidence:  %s\n", r.Confidence)
	fmt.Fprintf(w, "Method:      %s\n", r.ProcessingMethod)
}

// documentView renders a document result with its text preview.
type documentView extraction.DocumentResult

func (v *documentView) TableHeaders() []string {
	return append([]string{"File"}, (*resultView)(nil).TableHeaders()...)
}

func (v *documentView) TableRows() [][]string {
	return [][]string{append([]string{v.FileName}, resultRow(v.Result)...)}
}

func (v *documentView) WriteText(w io.Writer) {
	fmt.Fprintf(w, "File:        %s\n", v.FileName)
	if v.ExtractedText != "" {
		fmt.Fprintf(w, "Text:        %s\n", strings.ReplaceAll(v.ExtractedText, "\n", " "))
	}
	(*resultView)(v.Result).WriteText(w)
}
