package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/precountlive/precount/internal/cell"
	"github.com/precountlive/precount/internal/table"
)

// Region is the vote record of one reporting region, or of the totals row.
type Region struct {
	Name            string           `json:"region_name"`
	EligibleVoters  int64            `json:"eligible_voters"`
	VotesCast       int64            `json:"votes_cast"`
	CandidateVotes  map[string]int64 `json:"candidate_votes"`
	ValidVotes      int64            `json:"valid_votes"`
	InvalidVotes    int64            `json:"invalid_votes"`
	Abstentions     int64            `json:"abstentions"`
	CompletionRatio *float64         `json:"completion_ratio,omitempty"`
}

// SkippedRow records a table row that did not become a record.
type SkippedRow struct {
	Row    int    `json:"row"`
	Name   string `json:"region_name,omitempty"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Set is every record built from one table snapshot.
type Set struct {
	Candidates []string     `json:"candidates"`
	Regions    []Region     `json:"regions"`
	Summary    *Region      `json:"summary"`
	Skipped    []SkippedRow `json:"skipped_rows"`
}

// Build converts decoded rows into records. Data rows become regions in table
// order and the first summary row becomes the summary.
func Build(decoded *table.Decoded) *Set {
	set := &Set{
		Candidates: append([]string(nil), decoded.Candidates...),
		Regions:    make([]Region, 0, len(decoded.Rows)),
		Skipped:    make([]SkippedRow, 0, len(decoded.Skipped)),
	}

	for _, row := range decoded.Skipped {
		set.Skipped = append(set.Skipped, SkippedRow{
			Row:    row.Index,
			Kind:   table.KindSkip.String(),
			Reason: row.Reason,
		})
	}

	for _, row := range decoded.Rows {
		if row.Kind == table.KindSummary && set.Summary != nil {
			set.Skipped = append(set.Skipped, SkippedRow{
				Row:    row.Index,
				Name:   row.Fields.Name,
				Kind:   row.Kind.String(),
				Reason: "additional summary row",
			})
			continue
		}

		region, err := newRegion(row.Fields, decoded.Candidates)
		if err != nil {
			set.Skipped = append(set.Skipped, SkippedRow{
				Row:    row.Index,
				Name:   row.Fields.Name,
				Kind:   row.Kind.String(),
				Reason: err.Error(),
			})
			continue
		}

		if row.Kind == table.KindSummary {
			set.Summary = region
		} else {
			set.Regions = append(set.Regions, *region)
		}
	}

	return set
}

// newRegion normalizes the raw fields of one row.
func newRegion(f table.Fields, candidates []string) (*Region, error) {
	if len(f.CandidateVotes) != len(candidates) {
		return nil, fmt.Errorf("row has %d candidate columns, slate has %d", len(f.CandidateVotes), len(candidates))
	}

	r := &Region{
		Name:           f.Name,
		CandidateVotes: make(map[string]int64, len(candidates)),
	}

	counts := []struct {
		field string
		text  string
		dst   *int64
	}{
		{"eligible_voters", f.EligibleVoters, &r.EligibleVoters},
		{"votes_cast", f.VotesCast, &r.VotesCast},
		{"valid_votes", f.ValidVotes, &r.ValidVotes},
		{"invalid_votes", f.InvalidVotes, &r.InvalidVotes},
		{"abstentions", f.Abstentions, &r.Abstentions},
	}
	for _, c := range counts {
		n, err := cell.NormalizeNumeric(c.field, c.text)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	for i, name := range candidates {
		n, err := cell.NormalizeNumeric(name, f.CandidateVotes[i])
		if err != nil {
			return nil, err
		}
		r.CandidateVotes[name] = n
	}

	if f.HasCompletion {
		ratio, err := cell.NormalizePercent("completion_ratio", f.CompletionRatio)
		if err != nil {
			return nil, err
		}
		if ratio > 100 {
			return nil, &cell.MalformedCellError{Field: "completion_ratio", Text: f.CompletionRatio}
		}
		r.CompletionRatio = &ratio
	}

	return r, nil
}

// CandidateTotal is the sum of the candidate vote counts.
func (r Region) CandidateTotal() int64 {
	var total int64
	for _, v := range r.CandidateVotes {
		total += v
	}
	return total
}

// Completion returns the completion ratio, or 0 when the row had none.
func (r Region) Completion() float64 {
	if r.CompletionRatio == nil {
		return 0
	}
	return *r.CompletionRatio
}

// Marshal encodes the set as JSON without escaping HTML characters, so region
// and candidate names are stored exactly as the page shows them.
func (s *Set) Marshal() ([]byte, error) {
	return marshalJSON(s)
}

// Unmarshal decodes a set previously produced by Marshal.
func Unmarshal(data []byte) (*Set, error) {
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing record set: %w", err)
	}
	return &s, nil
}

func marshalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
