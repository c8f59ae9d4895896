package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/precountlive/precount/internal/record"
)

// SheetName is the worksheet that holds the records in XLSX output.
const SheetName = "records"

const bom = "\ufeff"

// Header returns the column names for set.
func Header(set *record.Set) []string {
	header := []string{"crawl_ts", "region", "eligible_voters", "votes_cast"}
	header = append(header, set.Candidates...)
	return append(header, "valid_votes", "invalid_votes", "abstentions", "completion_ratio")
}

func regions(set *record.Set) []record.Region {
	out := make([]record.Region, 0, len(set.Regions)+1)
	if set.Summary != nil {
		out = append(out, *set.Summary)
	}
	return append(out, set.Regions...)
}

// cells returns one row of typed values. A missing completion ratio is left empty.
func cells(r record.Region, candidates []string, crawlTS string) []interface{} {
	row := []interface{}{crawlTS, r.Name, r.EligibleVoters, r.VotesCast}
	for _, name := range candidates {
		row = append(row, r.CandidateVotes[name])
	}
	row = append(row, r.ValidVotes, r.InvalidVotes, r.Abstentions)
	if r.CompletionRatio != nil {
		return append(row, *r.CompletionRatio)
	}
	return append(row, "")
}

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// WriteCSV writes set as CSV, prefixed with a UTF-8 byte order mark.
func WriteCSV(w io.Writer, set *record.Set, crawledAt time.Time) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header(set)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	ts := formatTS(crawledAt)
	for _, r := range regions(set) {
		values := cells(r, set.Candidates, ts)
		line := make([]string, len(values))
		for i, v := range values {
			line[i] = csvValue(v)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("writing %s: %w", r.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// WriteXLSX saves set as a workbook at path.
func WriteXLSX(path string, set *record.Set, crawledAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := Header(set)
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	ts := formatTS(crawledAt)
	for i, r := range regions(set) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := cells(r, set.Candidates, ts)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing %s: %w", r.Name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}
