// Package cli implements the deadline command line tool. Every command runs
// the extraction pipeline in-process; no server is needed.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/deadline-agent/internal/app"
	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/config"
	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatTable = "table"
)

type cliContextKey struct{}

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	NoColor      bool
	NoAI         bool
	Timeout      time.Duration
	Reference    string
}

// CLIContext carries the initialized pipeline through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Service      extraction.Service
	OutputFormat string
	Reference    calendar.Date
	Timeout      time.Duration

	closer func() error
}

// ServiceFactory builds the extraction service for a command run. The
// returned func releases whatever the service opened.
type ServiceFactory func(cfg *config.Config, logger logging.Logger, noAI bool) (extraction.Service, func() error, error)

// RootOption customizes NewRootCommand.
type RootOption func(*rootBuilder)

type rootBuilder struct {
	factory ServiceFactory
	now     func() time.Time
}

// WithServiceFactory replaces the in-process app assembly.
func WithServiceFactory(f ServiceFactory) RootOption {
	return func(b *rootBuilder) { b.factory = f }
}

// WithNow fixes the clock used for the default reference date.
func WithNow(now func() time.Time) RootOption {
	return func(b *rootBuilder) { b.now = now }
}

func defaultFactory(cfg *config.Config, logger logging.Logger, noAI bool) (extraction.Service, func() error, error) {
	var opts []app.Option
	if noAI {
		opts = append(opts, app.WithoutAI())
	}
	a, err := app.New(cfg, logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	return a.Service, a.Close, nil
}

// NewRootCommand builds the deadline command with all subcommands.
func NewRootCommand(opts ...RootOption) *cobra.Command {
	b := &rootBuilder{factory: defaultFactory, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	ro := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Extract Portuguese tax deadlines from task text and documents",
		Long: `deadline resolves due dates for Portuguese tax obligations (Modelo 22, IES,
Modelo 30, IVA, SAF-T, DMR) and relative deadlines such as
"15 dias úteis a partir da notificação", using the national holiday calendar.
Texts no rule can resolve fall back to explicit dates and, when configured,
to a language model.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", config.Version, config.GitCommit, config.BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, ro, b)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&ro.ConfigPath, "config", "c", "", "config file path (default: config.yaml in ., ./configs, /etc/deadline-agent)")
	pf.StringVar(&ro.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&ro.OutputFormat, "output", "o", FormatText, "output format (text, json, table)")
	pf.BoolVar(&ro.NoColor, "no-color", false, "disable colored output")
	pf.BoolVar(&ro.NoAI, "no-ai", false, "never call the language model fallback")
	pf.DurationVar(&ro.Timeout, "timeout", 2*time.Minute, "overall operation timeout")
	pf.StringVarP(&ro.Reference, "reference", "r", "", "reference date YYYY-MM-DD (default: today)")

	cmd.AddCommand(
		newExtractCmd(),
		newBatchCmd(),
		newRulesCmd(),
		newHolidaysCmd(),
		newBusinessDaysCmd(),
		newMetricsCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, ro *RootOptions, b *rootBuilder) error {
	format := strings.ToLower(ro.OutputFormat)
	switch format {
	case FormatText, FormatJSON, FormatTable:
	default:
		return errors.InvalidParam("output must be one of text, json, table").WithDetail(ro.OutputFormat)
	}
	if ro.NoColor {
		color.NoColor = true
	}

	ref := calendar.DateOf(b.now())
	if ro.Reference != "" {
		d, err := calendar.ParseDate(ro.Reference)
		if err != nil {
			return errors.InvalidParam("reference must be YYYY-MM-DD").WithDetail(ro.Reference)
		}
		ref = d
	}

	cfg, err := loadConfig(ro.ConfigPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "config initialization failed")
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            ro.LogLevel,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "logger initialization failed")
	}

	svc, closer, err := b.factory(cfg, logger, ro.NoAI)
	if err != nil {
		_ = logger.Sync()
		return err
	}

	cc := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		Service:      svc,
		OutputFormat: format,
		Reference:    ref,
		Timeout:      ro.Timeout,
		closer:       closer,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.InvalidParam("command context is nil")
	}
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, errors.InvalidParam("CLI context not found in command context")
	}
	return cc, nil
}

// runWith adapts a command body that needs the pipeline. The pipeline is
// released when the body returns, successful or not.
func runWith(fn func(cmd *cobra.Command, args []string, cc *CLIContext) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cc, err := GetCLIContext(cmd)
		if err != nil {
			return err
		}
		err = fn(cmd, args, cc)
		if cc.closer != nil {
			if cerr := cc.closer(); cerr != nil {
				err = errors.Join(err, cerr)
			}
			cc.closer = nil
		}
		return err
	}
}

// opContext bounds a command's work by the --timeout flag.
func (c *CLIContext) opContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), c.Timeout)
}

// Execute runs the root command and prints any error to stderr.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

type textProvider interface {
	WriteText(w io.Writer)
}

// PrintResult writes data in the selected output format. Data that cannot
// render as a table or text falls back to JSON.
func PrintResult(cmd *cobra.Command, data any) error {
	format := FormatJSON
	if cc, err := GetCLIContext(cmd); err == nil {
		format = cc.OutputFormat
	}
	w := cmd.OutOrStdout()

	switch format {
	case FormatTable:
		if tp, ok := data.(tableProvider); ok {
			renderTable(w, tp.TableHeaders(), tp.TableRows())
			return nil
		}
	case FormatText:
		if tp, ok := data.(textProvider); ok {
			tp.WriteText(w)
			return nil
		}
	}
	return printJSON(w, data)
}

func printJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.AppendBulk(rows)
	table.Render()
}

// PrintError writes err to stderr in red.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if ae, ok := asAppError(err); ok {
		msg = ae.Message
		if ae.Detail != "" {
			msg += ": " + ae.Detail
		}
	}
	fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("Error: %s", msg))
}

func asAppError(err error) (*errors.AppError, bool) {
	var ae *errors.AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

func colorizePriority(p string) string {
	switch p {
	case "urgent":
		return color.New(color.FgRed, color.Bold).Sprint(p)
	case "high":
		return color.RedString(p)
	case "medium":
		return color.YellowString(p)
	case "low":
		return color.GreenString(p)
	default:
		return p
	}
}
