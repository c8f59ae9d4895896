// Package projection extrapolates partial vote counts to full turnout.
//
// For every region that has counted at least one vote, each candidate's current share of the
// votes cast is applied to the region's eligible voters, and the results are summed and rounded
// once. This is a linear estimate of "what if everyone voted with the split observed so far";
// it is sensitive to which regions report first and is not a statistical forecast. Authoritative
// totals (votes cast, completion ratio) are taken from the summary row as-is.
package projection
