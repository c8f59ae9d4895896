package table

import (
	"fmt"
	"strings"
)

// CandidateSource selects where candidate names are read from.
type CandidateSource string

const (
	// CandidatesFromSubHeader reads names from a header row made only of <th> cells.
	CandidatesFromSubHeader CandidateSource = "sub_header"
	// CandidatesFromFirstRow reads names from the first row that contains <td> cells.
	CandidatesFromFirstRow CandidateSource = "first_body_row"
)

// SummaryLocator selects how the totals row is recognized.
type SummaryLocator string

const (
	SummaryByKeyword SummaryLocator = "keyword"
	SummaryByIndex   SummaryLocator = "index"
)

// Fixed columns around the candidate block: eligible voters and votes cast
// follow the name columns; subtotal, invalid votes and abstentions follow the
// candidates.
const (
	leadingCountColumns = 2
	trailingColumns     = 3
)

// DefaultTotalTokens are the cell texts that mean "total" on the reporting pages.
var DefaultTotalTokens = []string{"합계", "계", "Total"}

// Layout describes one page variant of the results table.
type Layout struct {
	CandidateSource CandidateSource `yaml:"candidate_source" json:"candidate_source"`
	// HeaderRow is the 1-based header row holding candidate names; 0 means the
	// last header row.
	HeaderRow int `yaml:"header_row" json:"header_row"`
	// CandidateColumn is the first column scanned for names; 0 means column 0
	// for sub_header and the column after the fixed leading columns for
	// first_body_row.
	CandidateColumn  int            `yaml:"candidate_column" json:"candidate_column"`
	SummaryLocator   SummaryLocator `yaml:"summary_locator" json:"summary_locator"`
	SummaryRowIndex  int            `yaml:"summary_row_index" json:"summary_row_index"`
	TotalTokens      []string       `yaml:"total_tokens" json:"total_tokens"`
	NameColumns      int            `yaml:"name_columns" json:"name_columns"`
	MinColumns       int            `yaml:"min_columns" json:"min_columns"`
	CompletionColumn bool           `yaml:"completion_column" json:"completion_column"`
	ExpandColspan    bool           `yaml:"expand_colspan" json:"expand_colspan"`
}

// DefaultLayout matches the two-level header variant of the results page.
func DefaultLayout() Layout {
	return Layout{
		CandidateSource: CandidatesFromSubHeader,
		SummaryLocator:  SummaryByKeyword,
		TotalTokens:     append([]string(nil), DefaultTotalTokens...),
		NameColumns:     1,
	}
}

// Validate checks that the layout options are usable.
func (l Layout) Validate() error {
	switch l.CandidateSource {
	case CandidatesFromSubHeader, CandidatesFromFirstRow:
	default:
		return fmt.Errorf("invalid candidate source: %q (must be %q or %q)",
			l.CandidateSource, CandidatesFromSubHeader, CandidatesFromFirstRow)
	}

	switch l.SummaryLocator {
	case SummaryByKeyword, SummaryByIndex:
	default:
		return fmt.Errorf("invalid summary locator: %q (must be %q or %q)",
			l.SummaryLocator, SummaryByKeyword, SummaryByIndex)
	}

	if l.HeaderRow < 0 || l.CandidateColumn < 0 || l.SummaryRowIndex < 0 ||
		l.NameColumns < 0 || l.MinColumns < 0 {
		return fmt.Errorf("layout indexes and counts must not be negative")
	}

	if len(l.TotalTokens) == 0 {
		return fmt.Errorf("at least one total token is required")
	}

	return nil
}

func (l Layout) nameColumns() int {
	if l.NameColumns <= 0 {
		return 1
	}
	return l.NameColumns
}

func (l Layout) candidateColumn() int {
	if l.CandidateColumn > 0 {
		return l.CandidateColumn
	}
	if l.CandidateSource == CandidatesFromFirstRow {
		return l.nameColumns() + leadingCountColumns
	}
	return 0
}

// minWidth is the narrowest row that carries a complete record for n candidates.
func (l Layout) minWidth(n int) int {
	width := l.nameColumns() + leadingCountColumns + n + trailingColumns
	if l.MinColumns > width {
		return l.MinColumns
	}
	return width
}

// isTotal reports whether a cell holds one of the total tokens. Internal
// whitespace is ignored because the pages render "합 계" as often as "합계".
func (l Layout) isTotal(text string) bool {
	compact := compactToken(text)
	if compact == "" {
		return false
	}
	for _, token := range l.TotalTokens {
		if strings.EqualFold(compact, compactToken(token)) {
			return true
		}
	}
	return false
}

func compactToken(s string) string {
	return strings.Join(strings.Fields(s), "")
}
