package projection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/precountlive/precount/internal/record"
)

// Method metadata describing how the projection was computed.
const (
	MethodDescription = "linear extrapolation of current per-region vote shares to full eligible-voter turnout; a reporting-in-progress estimate, not a forecast"
	CandidateFormula  = "sum over regions with votes_cast > 0 of candidate_votes / votes_cast * eligible_voters, rounded after summation"
	InvalidFormula    = "sum over regions with votes_cast > 0 of invalid_votes / votes_cast * eligible_voters, rounded after summation"
)

// Metadata keys.
const (
	MetaMethod             = "method"
	MetaCandidateFormula   = "candidate_formula"
	MetaInvalidFormula     = "invalid_formula"
	MetaEligibleVotersUsed = "total_eligible_voters_used_for_projection"
	MetaRegionsIncluded    = "regions_included"
	MetaRegionsSkipped     = "regions_skipped"
	MetaRegionsReporting   = "regions_reporting"
	MetaRunID              = "run_id"
)

// now is replaced in tests.
var now = time.Now

// Result is the projected tally of one run.
type Result struct {
	Timestamp              string             `json:"timestamp"`
	TotalActualVotes       int64              `json:"total_actual_votes"`
	ProjectedVotes         map[string]int64   `json:"projected_votes_by_candidate"`
	ProjectedInvalidVotes  int64              `json:"projected_invalid_votes"`
	ProjectedSharePercent  map[string]float64 `json:"projected_share_percent"`
	OverallCompletionRatio float64            `json:"overall_completion_ratio_percent"`
	Metadata               map[string]string  `json:"method_metadata"`

	// Skipped lists the regions left out of the projection.
	Skipped []SkippedRegion `json:"-"`
}

// SkippedRegion explains why a region did not contribute to the projection.
// It is informational, not an error.
type SkippedRegion struct {
	Region string
	Reason string
}

func (s SkippedRegion) String() string {
	return fmt.Sprintf("%s: %s", s.Region, s.Reason)
}

// MissingSummaryError reports that no totals row was available.
type MissingSummaryError struct{}

func (e *MissingSummaryError) Error() string {
	return "projection needs a summary row for authoritative totals, none was found"
}

// Project extrapolates the regions' vote shares to full turnout. The candidate
// slate is taken from the summary row.
func Project(regions []record.Region, summary *record.Region) (*Result, error) {
	if summary == nil {
		return nil, &MissingSummaryError{}
	}

	candidates := make([]string, 0, len(summary.CandidateVotes))
	for name := range summary.CandidateVotes {
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	sums := make(map[string]float64, len(candidates))
	var invalidSum float64
	var eligibleUsed int64
	included := 0
	reporting := 0

	result := &Result{
		Timestamp:              now().UTC().Format(time.RFC3339),
		TotalActualVotes:       summary.VotesCast,
		ProjectedVotes:         make(map[string]int64, len(candidates)),
		ProjectedSharePercent:  make(map[string]float64, len(candidates)),
		OverallCompletionRatio: summary.Completion(),
		Skipped:                make([]SkippedRegion, 0),
	}

	for _, r := range regions {
		if r.VotesCast > 0 {
			reporting++
		}

		if reason := exclusionReason(r, candidates); reason != "" {
			result.Skipped = append(result.Skipped, SkippedRegion{Region: r.Name, Reason: reason})
			continue
		}

		cast := float64(r.VotesCast)
		eligible := float64(r.EligibleVoters)
		for _, name := range candidates {
			sums[name] += float64(r.CandidateVotes[name]) / cast * eligible
		}
		invalidSum += float64(r.InvalidVotes) / cast * eligible
		eligibleUsed += r.EligibleVoters
		included++
	}

	var projectedTotal int64
	for _, name := range candidates {
		v := int64(math.Round(sums[name]))
		result.ProjectedVotes[name] = v
		projectedTotal += v
	}
	result.ProjectedInvalidVotes = int64(math.Round(invalidSum))

	for _, name := range candidates {
		share := 0.0
		if projectedTotal > 0 {
			share = math.Round(float64(result.ProjectedVotes[name])/float64(projectedTotal)*10000) / 100
		}
		result.ProjectedSharePercent[name] = share
	}

	result.Metadata = map[string]string{
		MetaMethod:             MethodDescription,
		MetaCandidateFormula:   CandidateFormula,
		MetaInvalidFormula:     InvalidFormula,
		MetaEligibleVotersUsed: strconv.FormatInt(eligibleUsed, 10),
		MetaRegionsIncluded:    strconv.Itoa(included),
		MetaRegionsSkipped:     strconv.Itoa(len(result.Skipped)),
		MetaRegionsReporting:   fmt.Sprintf("%d/%d", reporting, len(regions)),
	}

	return result, nil
}

// exclusionReason returns why r cannot contribute, or "" if it can.
func exclusionReason(r record.Region, candidates []string) string {
	if r.VotesCast == 0 {
		return "no votes counted"
	}
	if r.VotesCast < 0 || r.EligibleVoters < 0 || r.InvalidVotes < 0 {
		return "negative count"
	}
	for _, name := range candidates {
		v, ok := r.CandidateVotes[name]
		if !ok {
			return fmt.Sprintf("no count for candidate %q", name)
		}
		if v < 0 {
			return fmt.Sprintf("negative count for candidate %q", name)
		}
	}
	return ""
}

// EligibleVotersUsed returns the eligible voters of the regions that
// contributed to the projection.
func (r *Result) EligibleVotersUsed() int64 {
	n, _ := strconv.ParseInt(r.Metadata[MetaEligibleVotersUsed], 10, 64)
	return n
}

// Marshal encodes the result as JSON without escaping HTML characters.
func (r *Result) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
