package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/precountlive/precount/internal/logger"
	"github.com/precountlive/precount/internal/pipeline"
	"github.com/precountlive/precount/internal/projection"
	"github.com/precountlive/precount/internal/record"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

func parseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(s)
	if format != FormatText && format != FormatJSON {
		return "", &invalidFlagError{flag: "format", value: s, allowed: "text or json"}
	}
	return format, nil
}

// RunOutput is the JSON shape of a pipeline run.
type RunOutput struct {
	RunID           string             `json:"run_id"`
	Published       bool               `json:"published"`
	Records         *record.Set        `json:"records"`
	Projection      *projection.Result `json:"projection,omitempty"`
	ProjectionError string             `json:"projection_error,omitempty"`
	Metrics         logger.Snapshot    `json:"metrics"`
}

func newRunOutput(report *pipeline.Report) *RunOutput {
	out := &RunOutput{
		RunID:      report.RunID,
		Published:  report.Published,
		Records:    report.Set,
		Projection: report.Result,
		Metrics:    report.Metrics,
	}
	if report.ProjectionErr != nil {
		out.ProjectionError = report.ProjectionErr.Error()
	}
	return out
}

// writeJSON outputs v as indented JSON with non-ASCII text kept as is
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func comma(n int64) string {
	return humanize.Comma(n)
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

// writeRecordsText prints one row per region with the summary as footer.
func writeRecordsText(w io.Writer, set *record.Set) {
	t := newTable(w)

	header := table.Row{"Region", "Eligible", "Cast"}
	for _, name := range set.Candidates {
		header = append(header, name)
	}
	header = append(header, "Invalid", "Completion")
	t.AppendHeader(header)

	for _, r := range set.Regions {
		t.AppendRow(regionRow(r, set.Candidates))
	}
	if set.Summary != nil {
		t.AppendFooter(regionRow(*set.Summary, set.Candidates))
	}

	configs := make([]table.ColumnConfig, 0, len(header)-1)
	for i := 2; i <= len(header); i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	t.SetColumnConfigs(configs)
	t.Render()

	writeSkippedRows(w, set.Skipped)
}

func regionRow(r record.Region, candidates []string) table.Row {
	row := table.Row{r.Name, comma(r.EligibleVoters), comma(r.VotesCast)}
	for _, name := range candidates {
		row = append(row, comma(r.CandidateVotes[name]))
	}
	completion := "-"
	if r.CompletionRatio != nil {
		completion = percent(*r.CompletionRatio)
	}
	return append(row, comma(r.InvalidVotes), completion)
}

func writeSkippedRows(w io.Writer, skipped []record.SkippedRow) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSkipped rows (%d):\n", len(skipped))
	for _, s := range skipped {
		name := s.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "  row %d %s: %s\n", s.Row, name, s.Reason)
	}
}

// writeProjectionText prints projected votes and shares per candidate.
// candidates gives the ballot order.
func writeProjectionText(w io.Writer, result *projection.Result, candidates []string, order SortOrder) {
	fmt.Fprintf(w, "Projection at %s (%s regions reporting, %s counted)\n",
		result.Timestamp,
		result.Metadata[projection.MetaRegionsReporting],
		percent(result.OverallCompletionRatio))

	t := newTable(w)
	t.AppendHeader(table.Row{"Candidate", "Projected votes", "Share"})
	for _, name := range sortCandidates(candidates, result.ProjectedVotes, order) {
		t.AppendRow(table.Row{name, comma(result.ProjectedVotes[name]), percent(result.ProjectedSharePercent[name])})
	}
	t.AppendFooter(table.Row{"Invalid", comma(result.ProjectedInvalidVotes), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	t.Render()

	fmt.Fprintf(w, "Counted so far: %s votes; eligible voters used: %s\n",
		comma(result.TotalActualVotes), comma(result.EligibleVotersUsed()))

	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, "\nExcluded regions (%d):\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
}

// writeRunText prints the outcome of a pipeline run.
func writeRunText(w io.Writer, report *pipeline.Report, order SortOrder) {
	fmt.Fprintf(w, "Run %s\n", report.RunID)
	fmt.Fprintf(w, "Regions: %d decoded, %d rows skipped\n",
		len(report.Set.Regions), len(report.Set.Skipped))
	if report.Published {
		fmt.Fprintln(w, "Published to store.")
	}
	fmt.Fprintln(w)

	if report.Result == nil {
		fmt.Fprintf(w, "No projection: %v\n", report.ProjectionErr)
		return
	}
	writeProjectionText(w, report.Result, report.Set.Candidates, order)
}
