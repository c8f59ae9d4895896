// Package scraper fetches a results page and extracts the results table.
//
// The page is requested with GET (parameters in the query string) or POST (parameters as a
// form body), retried on transport errors and 5xx responses, and parsed with goquery. The
// table matching the configured selector is returned as an HTML fragment ready for the table
// decoder. Pages saved to disk go through the same extraction with ExtractTable.
package scraper
