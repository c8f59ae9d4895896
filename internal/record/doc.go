// Package record turns classified table rows into per-region vote records.
//
// Build is a pure transform: the same decoded table always yields the same record set,
// and a record set encodes to the same bytes every time. A row with a malformed cell is
// dropped on its own and listed in Set.Skipped; it never zeroes out a total.
package record
