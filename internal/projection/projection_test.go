package projection

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/precountlive/precount/internal/record"
)

func ratio(v float64) *float64 { return &v }

func region(name string, eligible, cast, c1, c2, invalid int64) record.Region {
	return record.Region{
		Name:           name,
		EligibleVoters: eligible,
		VotesCast:      cast,
		CandidateVotes: map[string]int64{"candidate1": c1, "candidate2": c2},
		ValidVotes:     c1 + c2,
		InvalidVotes:   invalid,
		Abstentions:    eligible - cast,
	}
}

func TestProject_TwoRegionScenario(t *testing.T) {
	regions := []record.Region{
		region("Region A", 1000, 500, 300, 150, 50),
		region("Region B", 2000, 1000, 400, 500, 100),
	}
	summary := region("Total", 3000, 1500, 700, 650, 150)
	summary.CompletionRatio = ratio(60)

	result, err := Project(regions, &summary)
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	wantVotes := map[string]int64{"candidate1": 1400, "candidate2": 1300}
	if diff := cmp.Diff(wantVotes, result.ProjectedVotes); diff != "" {
		t.Errorf("ProjectedVotes mismatch (-want +got):\n%s", diff)
	}
	if result.ProjectedInvalidVotes != 300 {
		t.Errorf("ProjectedInvalidVotes = %d, want 300", result.ProjectedInvalidVotes)
	}
	if result.TotalActualVotes != 1500 {
		t.Errorf("TotalActualVotes = %d, want 1500", result.TotalActualVotes)
	}
	if result.OverallCompletionRatio != 60.0 {
		t.Errorf("OverallCompletionRatio = %v, want 60", result.OverallCompletionRatio)
	}
	if got := result.Metadata[MetaEligibleVotersUsed]; got != "3000" {
		t.Errorf("metadata %s = %q, want 3000", MetaEligibleVotersUsed, got)
	}
	if got := result.Metadata[MetaRegionsReporting]; got != "2/2" {
		t.Errorf("metadata %s = %q, want 2/2", MetaRegionsReporting, got)
	}
	if result.Metadata[MetaMethod] == "" {
		t.Error("metadata should describe the projection method")
	}
	if len(result.Skipped) != 0 {
		t.Errorf("Skipped = %v, want none", result.Skipped)
	}

	// 1400 / 2700 and 1300 / 2700
	if got := result.ProjectedSharePercent["candidate1"]; got != 51.85 {
		t.Errorf("candidate1 share = %v, want 51.85", got)
	}
	if got := result.ProjectedSharePercent["candidate2"]; got != 48.15 {
		t.Errorf("candidate2 share = %v, want 48.15", got)
	}
}

func TestProject_ZeroVotesRegionExcluded(t *testing.T) {
	base := []record.Region{
		region("Region A", 1000, 500, 300, 150, 50),
		region("Region B", 2000, 1000, 400, 500, 100),
	}
	summary := region("Total", 8000, 1500, 700, 650, 150)

	without, err := Project(base, &summary)
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	withZero := append([]record.Region{region("Region C", 5000, 0, 0, 0, 0)}, base...)
	with, err := Project(withZero, &summary)
	if err != nil {
		t.Fatalf("Project() with zero-vote region error: %v", err)
	}

	if diff := cmp.Diff(without.ProjectedVotes, with.ProjectedVotes); diff != "" {
		t.Errorf("zero-vote region changed projected votes (-without +with):\n%s", diff)
	}
	if with.ProjectedInvalidVotes != without.ProjectedInvalidVotes {
		t.Errorf("zero-vote region changed invalid projection: %d vs %d", with.ProjectedInvalidVotes, without.ProjectedInvalidVotes)
	}
	if with.EligibleVotersUsed() != 3000 {
		t.Errorf("EligibleVotersUsed() = %d, want 3000", with.EligibleVotersUsed())
	}

	if len(with.Skipped) != 1 || with.Skipped[0].Region != "Region C" {
		t.Fatalf("Skipped = %v, want Region C", with.Skipped)
	}
	if got := with.Metadata[MetaRegionsSkipped]; got != "1" {
		t.Errorf("metadata %s = %q, want 1", MetaRegionsSkipped, got)
	}
	if got := with.Metadata[MetaRegionsReporting]; got != "2/3" {
		t.Errorf("metadata %s = %q, want 2/3", MetaRegionsReporting, got)
	}
}

func TestProject_MissingSummary(t *testing.T) {
	_, err := Project([]record.Region{region("A", 10, 5, 3, 1, 1)}, nil)
	if err == nil {
		t.Fatal("Project() expected error, got nil")
	}

	var missing *MissingSummaryError
	if !errors.As(err, &missing) {
		t.Errorf("error type = %T, want *MissingSummaryError", err)
	}
}

func TestProject_InconsistentRegionSkipped(t *testing.T) {
	broken := region("Broken", 1000, 500, 300, 150, 50)
	delete(broken.CandidateVotes, "candidate2")

	negative := region("Negative", 1000, 500, 300, 150, 50)
	negative.InvalidVotes = -1

	regions := []record.Region{broken, negative, region("Good", 1000, 500, 300, 150, 50)}
	summary := region("Total", 3000, 1500, 900, 450, 150)

	result, err := Project(regions, &summary)
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	if len(result.Skipped) != 2 {
		t.Fatalf("Skipped = %v, want Broken and Negative", result.Skipped)
	}
	if result.ProjectedVotes["candidate1"] != 600 || result.ProjectedVotes["candidate2"] != 300 {
		t.Errorf("ProjectedVotes = %v, want only Good's contribution", result.ProjectedVotes)
	}
}

func TestProject_RoundsOnceAfterSummation(t *testing.T) {
	// Each region projects 0.4 invalid votes: per-region rounding would give 0.
	regions := []record.Region{
		region("R1", 4, 10, 5, 4, 1),
		region("R2", 4, 10, 5, 4, 1),
		region("R3", 4, 10, 5, 4, 1),
	}
	summary := region("Total", 12, 30, 15, 12, 3)

	result, err := Project(regions, &summary)
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	if result.ProjectedInvalidVotes != 1 {
		t.Errorf("ProjectedInvalidVotes = %d, want round(1.2) = 1", result.ProjectedInvalidVotes)
	}
	if result.ProjectedVotes["candidate1"] != 6 {
		t.Errorf("candidate1 = %d, want 6", result.ProjectedVotes["candidate1"])
	}
	if result.ProjectedVotes["candidate2"] != 5 {
		t.Errorf("candidate2 = %d, want round(4.8) = 5", result.ProjectedVotes["candidate2"])
	}
}

func TestProject_SanityBound(t *testing.T) {
	regions := []record.Region{
		region("A", 12345, 6789, 3001, 3300, 488),
		region("B", 9876, 4321, 2000, 2100, 221),
		region("C", 5555, 1234, 600, 600, 34),
	}
	summary := region("Total", 27776, 12344, 5601, 6000, 743)

	result, err := Project(regions, &summary)
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	var total int64
	for _, v := range result.ProjectedVotes {
		total += v
	}
	total += result.ProjectedInvalidVotes

	// Candidate and invalid votes make up all votes cast here, so the
	// projection should cover all eligible voters up to rounding.
	diff := math.Abs(float64(total - result.EligibleVotersUsed()))
	if diff > 3 {
		t.Errorf("projected total %d differs from eligible voters %d by %v", total, result.EligibleVotersUsed(), diff)
	}
}

func TestProject_Timestamp(t *testing.T) {
	original := now
	defer func() { now = original }()
	now = func() time.Time {
		return time.Date(2025, 4, 2, 21, 30, 0, 0, time.FixedZone("KST", 9*60*60))
	}

	summary := region("Total", 10, 5, 3, 1, 1)
	result, err := Project(nil, &summary)
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	if result.Timestamp != "2025-04-02T12:30:00Z" {
		t.Errorf("Timestamp = %q, want 2025-04-02T12:30:00Z", result.Timestamp)
	}
	if result.ProjectedVotes["candidate1"] != 0 {
		t.Errorf("ProjectedVotes = %v, want zeros with no regions", result.ProjectedVotes)
	}
	if result.ProjectedSharePercent["candidate1"] != 0 {
		t.Errorf("ProjectedSharePercent = %v, want zeros with no regions", result.ProjectedSharePercent)
	}
}

func TestResult_Marshal(t *testing.T) {
	summary := region("합계", 3000, 1500, 700, 650, 150)
	result, err := Project([]record.Region{region("중앙동", 3000, 1500, 700, 650, 150)}, &summary)
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	data, err := result.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Marshal() produced invalid JSON: %v", err)
	}

	for _, key := range []string{
		"timestamp",
		"total_actual_votes",
		"projected_votes_by_candidate",
		"projected_invalid_votes",
		"overall_completion_ratio_percent",
		"method_metadata",
	} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Marshal() output missing %q", key)
		}
	}
	if _, ok := decoded["Skipped"]; ok {
		t.Error("Marshal() should not serialize skipped regions")
	}
}
