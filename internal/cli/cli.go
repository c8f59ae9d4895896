package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/precountlive/precount/internal/config"
	"github.com/precountlive/precount/internal/export"
	"github.com/precountlive/precount/internal/logger"
	"github.com/precountlive/precount/internal/pipeline"
	"github.com/precountlive/precount/internal/projection"
	"github.com/precountlive/precount/internal/record"
	"github.com/precountlive/precount/internal/scraper"
	"github.com/precountlive/precount/internal/storage"
	"github.com/precountlive/precount/internal/table"
)

const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitNoProjection = 3
)

var (
	flagConfig  string
	flagFormat  string
	flagSort    string
	flagInput   string
	flagRecords string
	flagExport  string
	flagDryRun  bool
)

// exitCodeError carries a non-default exit code out of a command.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

type invalidFlagError struct {
	flag    string
	value   string
	allowed string
}

func (e *invalidFlagError) Error() string {
	return fmt.Sprintf("invalid --%s: %q (must be %s)", e.flag, e.value, e.allowed)
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "precount",
		Short: "Project final election results from a partially counted results table",
		Long: `precount decodes a live election results table, turns each row into a
region record and projects the final vote per candidate by scaling every
reporting region's count to its full electorate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", string(FormatText), "Output format: text or json")
	cmd.PersistentFlags().StringVar(&flagSort, "sort", string(SortByVotes), "Candidate order: votes, ballot or name")

	cmd.AddCommand(newRunCmd(), newDecodeCmd(), newProjectCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch the results table, project the tally and publish both",
		Args:  cobra.NoArgs,
		RunE:  runPipeline,
	}
	cmd.Flags().StringVar(&flagInput, "input", "", "Read the page or table from a file instead of fetching it")
	cmd.Flags().StringVar(&flagExport, "export", "", "Also write the records to a .csv or .xlsx file")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Do not publish to the store")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a saved results page and print its region records",
		Args:  cobra.NoArgs,
		RunE:  runDecode,
	}
	cmd.Flags().StringVar(&flagInput, "input", "", "Saved page or table markup (required)")
	cmd.MarkFlagRequired("input")
	return cmd
}

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Compute a projection from a stored record set",
		Args:  cobra.NoArgs,
		RunE:  runProject,
	}
	cmd.Flags().StringVar(&flagRecords, "records", "", "Record set JSON file, or - for stdin (required)")
	cmd.MarkFlagRequired("records")
	return cmd
}

type outputOptions struct {
	format OutputFormat
	order  SortOrder
}

func parseOutputFlags() (outputOptions, error) {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return outputOptions{}, err
	}
	order, err := parseSortOrder(flagSort)
	if err != nil {
		return outputOptions{}, err
	}
	return outputOptions{format: format, order: order}, nil
}

// loadConfig reads the config and installs the configured logger.
func loadConfig(stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger.SetDefault(logger.New(level, stderr))
	return cfg, nil
}

// readTable loads markup from path. A full page is narrowed to the element
// matching selector; a bare fragment is passed through unchanged.
func readTable(path, selector string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}

	html, err := scraper.ExtractTable(bytes.NewReader(data), selector)
	if errors.Is(err, scraper.ErrTableNotFound) {
		return string(data), nil
	}
	return html, err
}

func runPipeline(cmd *cobra.Command, args []string) error {
	out, err := parseOutputFlags()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var html string
	if flagInput != "" {
		html, err = readTable(flagInput, cfg.Source.TableSelector)
	} else {
		logger.Info("fetching results page", logger.Fields{"url": cfg.Source.URL})
		html, err = scraper.New(cfg.Source).FetchTable(ctx)
	}
	if err != nil {
		return fmt.Errorf("loading results table: %w", err)
	}
	crawledAt := time.Now()

	var store storage.Store
	if !flagDryRun {
		store, err = storage.New(cfg.Store)
		if err != nil {
			return fmt.Errorf("initializing store: %w", err)
		}
		if closer, ok := store.(io.Closer); ok {
			defer closer.Close()
		}
	}

	report, runErr := pipeline.Run(ctx, html, pipeline.Options{
		Layout: cfg.Layout,
		Store:  store,
		Keys:   storage.Keys{Records: cfg.Store.RecordsKey, Projection: cfg.Store.ProjectionKey},
		Logger: logger.Default(),
	})
	if report == nil {
		return runErr
	}

	if flagExport != "" {
		if err := exportRecords(flagExport, report.Set, crawledAt); err != nil {
			return err
		}
	}

	if out.format == FormatJSON {
		if err := writeJSON(cmd.OutOrStdout(), newRunOutput(report)); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	} else {
		writeRunText(cmd.OutOrStdout(), report, out.order)
	}

	if runErr != nil {
		return runErr
	}
	if report.Result == nil {
		return &exitCodeError{code: ExitNoProjection, err: report.ProjectionErr}
	}
	return nil
}

func exportRecords(path string, set *record.Set, crawledAt time.Time) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		if err := export.WriteXLSX(path, set, crawledAt); err != nil {
			return fmt.Errorf("exporting records: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	if err := export.WriteCSV(f, set, crawledAt); err != nil {
		return fmt.Errorf("exporting records: %w", err)
	}
	return f.Close()
}

func runDecode(cmd *cobra.Command, args []string) error {
	out, err := parseOutputFlags()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	html, err := readTable(flagInput, cfg.Source.TableSelector)
	if err != nil {
		return err
	}

	set, err := decodeRecords(html, cfg.Layout)
	if err != nil {
		return err
	}

	if out.format == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), set)
	}
	writeRecordsText(cmd.OutOrStdout(), set)
	return nil
}

func decodeRecords(html string, layout table.Layout) (*record.Set, error) {
	decoded, err := table.Decode(html, layout)
	if err != nil {
		return nil, err
	}
	return record.Build(decoded), nil
}

func runProject(cmd *cobra.Command, args []string) error {
	out, err := parseOutputFlags()
	if err != nil {
		return err
	}
	if _, err := loadConfig(cmd.ErrOrStderr()); err != nil {
		return err
	}

	var data []byte
	if flagRecords == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(flagRecords)
	}
	if err != nil {
		return fmt.Errorf("reading records: %w", err)
	}

	set, err := record.Unmarshal(data)
	if err != nil {
		return err
	}

	result, err := projection.Project(set.Regions, set.Summary)
	if err != nil {
		var missing *projection.MissingSummaryError
		if errors.As(err, &missing) {
			return &exitCodeError{code: ExitNoProjection, err: err}
		}
		return err
	}

	if out.format == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	writeProjectionText(cmd.OutOrStdout(), result, set.Candidates, out.order)
	return nil
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		var exit *exitCodeError
		if errors.As(err, &exit) {
			return exit.code
		}
		return ExitError
	}
	return ExitSuccess
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
