// Package cell converts raw results-table cell text into numbers.
//
// Election result tables render counts with locale grouping separators, percentages with a
// trailing percent sign, and leave cells empty (or show a dash) for regions that have not
// reported yet. Absent values normalize to zero; text that is present but not a number is
// reported as a MalformedCellError so that "the data says zero" stays distinct from
// "the data is garbage".
package cell
