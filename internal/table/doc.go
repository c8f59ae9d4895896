// Package table decodes an election results table into classified rows.
//
// The decoder discovers the candidate slate from either a two-level header or the first
// body row, then classifies each following row as a summary row, a data row, or a skipped
// row (decorative percentage rows, rows too narrow to carry a full record). Layout details
// that vary between page variants are supplied through Layout rather than detected.
package table
