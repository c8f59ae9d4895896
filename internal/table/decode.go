package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/precountlive/precount/internal/cell"
)

// Kind classifies a table row.
type Kind int

const (
	KindData Kind = iota
	KindSummary
	KindSkip
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindSummary:
		return "summary"
	case KindSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Fields holds the raw cell texts of one record, mapped by position.
type Fields struct {
	Name            string
	EligibleVoters  string
	VotesCast       string
	CandidateVotes  []string // CandidateSlate order
	ValidVotes      string
	InvalidVotes    string
	Abstentions     string
	CompletionRatio string
	HasCompletion   bool
}

// Row is one classified table row.
type Row struct {
	Index  int // position among all <tr> elements of the table
	Kind   Kind
	Cells  []string
	Fields Fields
	Reason string // why the row was skipped
}

// Decoded is the result of decoding one table snapshot.
type Decoded struct {
	Candidates []string
	Rows       []Row // data and summary rows in table order
	Skipped    []Row
}

// DecodeError reports a table whose structure cannot be recognized.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decoding results table: " + e.Reason
}

type tableRow struct {
	index  int
	header bool
	cells  []string
}

// Decode parses table markup and classifies its rows according to layout.
func Decode(markup string, layout Layout) (*Decoded, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	rows, err := readRows(markup, layout.ExpandColspan)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &DecodeError{Reason: "no table rows found"}
	}

	var headers, body []tableRow
	for _, row := range rows {
		if row.header {
			headers = append(headers, row)
		} else {
			body = append(body, row)
		}
	}

	var nameRow tableRow
	switch layout.CandidateSource {
	case CandidatesFromSubHeader:
		if len(headers) == 0 {
			return nil, &DecodeError{Reason: "no header rows to read candidate names from"}
		}
		pos := len(headers) - 1
		if layout.HeaderRow > 0 {
			pos = layout.HeaderRow - 1
		}
		if pos >= len(headers) {
			return nil, &DecodeError{Reason: fmt.Sprintf("header row %d not found (table has %d)", layout.HeaderRow, len(headers))}
		}
		nameRow = headers[pos]
	case CandidatesFromFirstRow:
		if len(body) == 0 {
			return nil, &DecodeError{Reason: "no body rows to read candidate names from"}
		}
		nameRow = body[0]
		body = body[1:]
	}

	candidates, err := candidateNames(nameRow.cells, layout)
	if err != nil {
		return nil, err
	}

	decoded := &Decoded{Candidates: candidates}
	for pos, row := range body {
		classified := classify(pos, row, len(candidates), layout)
		if classified.Kind == KindSkip {
			decoded.Skipped = append(decoded.Skipped, classified)
			continue
		}
		decoded.Rows = append(decoded.Rows, classified)
	}

	if len(decoded.Rows) == 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("no summary or data rows found (%d rows skipped)", len(decoded.Skipped))}
	}

	return decoded, nil
}

// readRows extracts the text of every row of the first table in markup.
func readRows(markup string, expandColspan bool) ([]tableRow, error) {
	// Inner HTML of a <table> loses its row context when parsed on its own.
	if !strings.Contains(strings.ToLower(markup), "<table") {
		markup = "<table>" + markup + "</table>"
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	// Header rows are the <th>-only rows ahead of the first row with a <td>.
	// Later <th>-only rows, such as a totals row styled as a header, are body rows.
	rows := make([]tableRow, 0)
	inBody := false
	doc.Find("table").First().Find("tr").Each(func(i int, tr *goquery.Selection) {
		cells := make([]string, 0)
		tr.ChildrenFiltered("th, td").Each(func(_ int, sel *goquery.Selection) {
			sel.Find("br").ReplaceWithHtml(" ")
			text := strings.Join(strings.Fields(sel.Text()), " ")

			span := 1
			if expandColspan {
				if n, err := strconv.Atoi(strings.TrimSpace(sel.AttrOr("colspan", "1"))); err == nil && n > 1 {
					span = n
				}
			}
			for j := 0; j < span; j++ {
				cells = append(cells, text)
			}
		})

		if len(cells) == 0 {
			return
		}

		if tr.ChildrenFiltered("td").Length() > 0 {
			inBody = true
		}
		rows = append(rows, tableRow{
			index:  i,
			header: !inBody,
			cells:  cells,
		})
	})

	return rows, nil
}

// candidateNames reads names from the configured column up to the first
// total token.
func candidateNames(cells []string, layout Layout) ([]string, error) {
	start := layout.candidateColumn()
	if start >= len(cells) {
		return nil, &DecodeError{Reason: fmt.Sprintf("candidate column %d is past the end of the name row (%d cells)", start, len(cells))}
	}

	names := make([]string, 0)
	seen := make(map[string]bool)
	for _, text := range cells[start:] {
		if layout.isTotal(text) {
			break
		}
		if text == "" {
			continue
		}
		if seen[text] {
			return nil, &DecodeError{Reason: fmt.Sprintf("duplicate candidate name %q", text)}
		}
		seen[text] = true
		names = append(names, text)
	}

	if len(names) == 0 {
		return nil, &DecodeError{Reason: "no candidate names found"}
	}
	return names, nil
}

// classify decides the kind of a body row at position pos.
func classify(pos int, row tableRow, candidates int, layout Layout) Row {
	out := Row{Index: row.index, Cells: row.cells}
	width := layout.minWidth(candidates)

	// A total token marks a summary under either locator; the index only adds one.
	summary := layout.isTotal(row.cells[0]) ||
		(layout.SummaryLocator == SummaryByIndex && pos == layout.SummaryRowIndex)

	switch {
	case summary && len(row.cells) < width:
		out.Kind = KindSkip
		out.Reason = fmt.Sprintf("summary row has %d cells, need %d", len(row.cells), width)
	case summary:
		out.Kind = KindSummary
	case len(row.cells) < width:
		out.Kind = KindSkip
		out.Reason = fmt.Sprintf("row has %d cells, need %d", len(row.cells), width)
	case !cell.IsNumeric(row.cells[layout.nameColumns()]):
		out.Kind = KindSkip
		out.Reason = fmt.Sprintf("eligible voter cell %q is not numeric", row.cells[layout.nameColumns()])
	default:
		out.Kind = KindData
	}

	if out.Kind != KindSkip {
		out.Fields = mapFields(row.cells, candidates, layout)
	}
	return out
}

// mapFields assigns cells to record fields by position. Callers guarantee the
// row is at least minWidth cells wide; the completion ratio is only read when
// the row is wider still.
func mapFields(cells []string, candidates int, layout Layout) Fields {
	names := layout.nameColumns()
	f := Fields{
		Name:           regionName(cells[:names]),
		EligibleVoters: cells[names],
		VotesCast:      cells[names+1],
		CandidateVotes: make([]string, candidates),
	}

	first := names + leadingCountColumns
	copy(f.CandidateVotes, cells[first:first+candidates])

	trailing := first + candidates
	f.ValidVotes = cells[trailing]
	f.InvalidVotes = cells[trailing+1]
	f.Abstentions = cells[trailing+2]

	if ratio := trailing + trailingColumns; layout.CompletionColumn && ratio < len(cells) {
		f.CompletionRatio = cells[ratio]
		f.HasCompletion = true
	}

	return f
}

// regionName joins the name cells, collapsing repeats left behind by merged
// cells.
func regionName(cells []string) string {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if c == "" || (len(parts) > 0 && parts[len(parts)-1] == c) {
			continue
		}
		parts = append(parts, c)
	}
	return strings.Join(parts, " ")
}
