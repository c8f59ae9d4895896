package cell

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Placeholders that the source renders for values that have not been reported.
var placeholders = map[string]bool{
	"-":      true,
	"\u2013": true,
	"\u2014": true,
}

// groupingReplacer removes thousands separators. A period is not treated as a
// grouping character because percent cells use it as the decimal point.
var groupingReplacer = strings.NewReplacer(
	",", "",
	"'", "",
	" ", "",
	"\u00a0", "",
	"\u2009", "",
	"\u202f", "",
)

// MalformedCellError reports a non-empty cell whose text is not a number.
type MalformedCellError struct {
	Field string
	Text  string
}

func (e *MalformedCellError) Error() string {
	return fmt.Sprintf("malformed %s cell: %q", e.Field, e.Text)
}

// Clean trims surrounding whitespace (including non-breaking spaces) and folds
// full-width characters to their ASCII forms.
func Clean(text string) string {
	return strings.TrimSpace(width.Fold.String(text))
}

// isBlank reports whether cleaned text stands for "no value yet".
func isBlank(text string) bool {
	return text == "" || placeholders[text]
}

// NormalizeNumeric parses a count cell such as "1,234". Empty cells and
// placeholders yield 0. The field name is only used for error reporting.
func NormalizeNumeric(field, text string) (int64, error) {
	cleaned := Clean(text)
	if isBlank(cleaned) {
		return 0, nil
	}

	digits := groupingReplacer.Replace(cleaned)
	if !isDigits(digits) {
		return 0, &MalformedCellError{Field: field, Text: text}
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, &MalformedCellError{Field: field, Text: text}
	}
	return n, nil
}

// NormalizePercent parses a ratio cell such as "61.35 %". Empty cells and
// placeholders yield 0.0.
func NormalizePercent(field, text string) (float64, error) {
	cleaned := Clean(text)
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "%"))
	if isBlank(cleaned) {
		return 0, nil
	}

	number := groupingReplacer.Replace(cleaned)
	if !isDecimal(number) {
		return 0, &MalformedCellError{Field: field, Text: text}
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &MalformedCellError{Field: field, Text: text}
	}
	return value, nil
}

// IsNumeric reports whether text is a non-empty run of digits, optionally
// broken up by grouping separators.
func IsNumeric(text string) bool {
	cleaned := Clean(text)
	if cleaned == "" {
		return false
	}
	return isDigits(groupingReplacer.Replace(cleaned))
}

// isDecimal accepts digits with at most one decimal point, such as "61.35" or
// ".5". Signs, exponents and spelled-out values are rejected.
func isDecimal(s string) bool {
	whole, frac, found := strings.Cut(s, ".")
	if !found {
		return isDigits(whole)
	}
	if whole == "" && frac == "" {
		return false
	}
	return (whole == "" || isDigits(whole)) && (frac == "" || isDigits(frac))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
