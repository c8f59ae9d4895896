package cli

import (
	"sort"
	"strings"
)

// SortOrder represents the available candidate orderings
type SortOrder string

const (
	SortByVotes  SortOrder = "votes"
	SortByBallot SortOrder = "ballot"
	SortByName   SortOrder = "name"
)

func parseSortOrder(s string) (SortOrder, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	switch order {
	case SortByVotes, SortByBallot, SortByName:
		return order, nil
	}
	return "", &invalidFlagError{flag: "sort", value: s, allowed: "votes, ballot or name"}
}

// sortCandidates returns candidates in the requested order. Ballot order is
// the slate order as read from the table.
func sortCandidates(candidates []string, votes map[string]int64, order SortOrder) []string {
	out := make([]string, len(candidates))
	copy(out, candidates)

	switch order {
	case SortByVotes:
		sort.SliceStable(out, func(i, j int) bool {
			if votes[out[i]] != votes[out[j]] {
				return votes[out[i]] > votes[out[j]]
			}
			// If votes are equal, keep ballot order
			return false
		})
	case SortByName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i]) < strings.ToLower(out[j])
		})
	}
	return out
}
