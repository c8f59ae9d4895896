// Package export writes a record set as a spreadsheet for people who want the raw counts.
//
// CSV output starts with a UTF-8 byte order mark so spreadsheet applications open Korean
// region and candidate names correctly. XLSX output carries the same columns in a sheet
// named "records". The summary row comes first, followed by the regions in table order.
package export
