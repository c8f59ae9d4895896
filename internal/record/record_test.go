package record

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/precountlive/precount/internal/table"
)

func decodeFixture(t *testing.T) *table.Decoded {
	t.Helper()
	data, err := os.ReadFile("../table/testdata/results_subheader.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}

	layout := table.DefaultLayout()
	layout.CompletionColumn = true
	decoded, err := table.Decode(string(data), layout)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return decoded
}

func TestBuild_FromFixture(t *testing.T) {
	set := Build(decodeFixture(t))

	if set.Summary == nil {
		t.Fatal("Build() produced no summary")
	}
	if set.Summary.VotesCast != 15000 {
		t.Errorf("summary votes cast = %d, want 15000", set.Summary.VotesCast)
	}
	if set.Summary.Completion() != 50 {
		t.Errorf("summary completion = %v, want 50", set.Summary.Completion())
	}

	if len(set.Regions) != 3 {
		t.Fatalf("Build() produced %d regions, want 3", len(set.Regions))
	}

	ratio := 100.0
	want := Region{
		Name:           "중앙동",
		EligibleVoters: 10000,
		VotesCast:      5000,
		CandidateVotes: map[string]int64{
			"더불어민주당 김민수": 2000,
			"국민의힘 이영희":   2000,
			"무소속 박철수":    500,
		},
		ValidVotes:      4500,
		InvalidVotes:    500,
		Abstentions:     5000,
		CompletionRatio: &ratio,
	}
	if diff := cmp.Diff(want, set.Regions[0]); diff != "" {
		t.Errorf("first region mismatch (-want +got):\n%s", diff)
	}

	if len(set.Skipped) != 2 {
		t.Errorf("Build() skipped %d rows, want 2", len(set.Skipped))
	}
}

func TestBuild_SlateLengthInvariant(t *testing.T) {
	set := Build(decodeFixture(t))

	for _, r := range append([]Region{*set.Summary}, set.Regions...) {
		if len(r.CandidateVotes) != len(set.Candidates) {
			t.Errorf("%s has %d candidate entries, slate has %d", r.Name, len(r.CandidateVotes), len(set.Candidates))
		}
		for _, name := range set.Candidates {
			if _, ok := r.CandidateVotes[name]; !ok {
				t.Errorf("%s missing candidate %q", r.Name, name)
			}
		}
	}
}

func TestBuild_MalformedCellDropsOnlyThatRow(t *testing.T) {
	decoded := &table.Decoded{
		Candidates: []string{"A", "B"},
		Rows: []table.Row{
			{Index: 2, Kind: table.KindSummary, Fields: fields("합계", "300", "150", "90", "45", "135", "15", "150")},
			{Index: 3, Kind: table.KindData, Fields: fields("East", "100", "50", "30", "n/a", "45", "5", "50")},
			{Index: 4, Kind: table.KindData, Fields: fields("West", "200", "100", "60", "30", "90", "10", "100")},
		},
	}

	set := Build(decoded)

	if len(set.Regions) != 1 || set.Regions[0].Name != "West" {
		t.Fatalf("Regions = %+v, want only West", set.Regions)
	}
	if len(set.Skipped) != 1 {
		t.Fatalf("Skipped = %+v, want one entry", set.Skipped)
	}

	skipped := set.Skipped[0]
	if skipped.Row != 3 || skipped.Name != "East" || skipped.Kind != "data" {
		t.Errorf("Skipped[0] = %+v, want East row 3", skipped)
	}
	if !strings.Contains(skipped.Reason, "n/a") {
		t.Errorf("skip reason %q should name the offending text", skipped.Reason)
	}
}

func TestBuild_EmptyCellsAreZero(t *testing.T) {
	decoded := &table.Decoded{
		Candidates: []string{"A"},
		Rows: []table.Row{
			{Index: 1, Kind: table.KindData, Fields: fields("North", "1,000", "", "-", "", "", "1,000")},
		},
	}

	set := Build(decoded)

	if len(set.Regions) != 1 {
		t.Fatalf("Build() produced %d regions, want 1", len(set.Regions))
	}
	r := set.Regions[0]
	if r.VotesCast != 0 || r.CandidateVotes["A"] != 0 || r.InvalidVotes != 0 {
		t.Errorf("region = %+v, want zero counts", r)
	}
	if r.Abstentions != 1000 {
		t.Errorf("abstentions = %d, want 1000", r.Abstentions)
	}
	if r.CompletionRatio != nil {
		t.Errorf("completion ratio = %v, want nil", *r.CompletionRatio)
	}
}

func TestBuild_AdditionalSummaryRowSkipped(t *testing.T) {
	decoded := &table.Decoded{
		Candidates: []string{"A"},
		Rows: []table.Row{
			{Index: 1, Kind: table.KindSummary, Fields: fields("합계", "10", "5", "5", "5", "0", "5")},
			{Index: 2, Kind: table.KindSummary, Fields: fields("합계", "99", "99", "99", "99", "0", "0")},
		},
	}

	set := Build(decoded)

	if set.Summary == nil || set.Summary.EligibleVoters != 10 {
		t.Fatalf("Summary = %+v, want the first summary row", set.Summary)
	}
	if len(set.Skipped) != 1 || set.Skipped[0].Reason != "additional summary row" {
		t.Errorf("Skipped = %+v, want the second summary row", set.Skipped)
	}
}

func TestBuild_CompletionRatioOutOfRange(t *testing.T) {
	f := fields("East", "100", "50", "50", "50", "0", "50")
	f.CompletionRatio = "120%"
	f.HasCompletion = true

	set := Build(&table.Decoded{
		Candidates: []string{"A"},
		Rows:       []table.Row{{Index: 1, Kind: table.KindData, Fields: f}},
	})

	if len(set.Regions) != 0 {
		t.Errorf("Regions = %+v, want none", set.Regions)
	}
	if len(set.Skipped) != 1 {
		t.Errorf("Skipped = %+v, want one entry", set.Skipped)
	}
}

func TestBuild_NonNumericCompletionRatioSkipsRow(t *testing.T) {
	summary := fields("합계", "100", "50", "50", "50", "0", "50")
	summary.CompletionRatio = "NaN"
	summary.HasCompletion = true

	set := Build(&table.Decoded{
		Candidates: []string{"A"},
		Rows:       []table.Row{{Index: 1, Kind: table.KindSummary, Fields: summary}},
	})

	if set.Summary != nil {
		t.Errorf("Summary = %+v, want nil for a malformed completion ratio", set.Summary)
	}
	if len(set.Skipped) != 1 || !strings.Contains(set.Skipped[0].Reason, "NaN") {
		t.Errorf("Skipped = %+v, want the summary row with its cell text", set.Skipped)
	}
	if _, err := set.Marshal(); err != nil {
		t.Errorf("Marshal() error: %v", err)
	}
}

func TestSet_MarshalIsDeterministic(t *testing.T) {
	first, err := Build(decodeFixture(t)).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	second, err := Build(decodeFixture(t)).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("Marshal() output differs between runs:\n%s\n%s", first, second)
	}
	if !bytes.Contains(first, []byte("더불어민주당 김민수")) {
		t.Error("Marshal() should keep non-Latin names unescaped")
	}
}

func TestUnmarshal(t *testing.T) {
	original := Build(decodeFixture(t))
	data, err := original.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Errorf("Unmarshal() mismatch (-want +got):\n%s", diff)
	}

	if _, err := Unmarshal([]byte("{not json")); err == nil {
		t.Error("Unmarshal() expected error for invalid JSON")
	}
}

func TestRegion_CandidateTotal(t *testing.T) {
	r := Region{CandidateVotes: map[string]int64{"A": 300, "B": 150}}
	if got := r.CandidateTotal(); got != 450 {
		t.Errorf("CandidateTotal() = %d, want 450", got)
	}
}

// fields builds raw fields for a row: name, eligible, cast, one count per
// candidate, then subtotal, invalid and abstentions.
func fields(name string, values ...string) table.Fields {
	n := len(values) - 5
	return table.Fields{
		Name:           name,
		EligibleVoters: values[0],
		VotesCast:      values[1],
		CandidateVotes: values[2 : 2+n],
		ValidVotes:     values[2+n],
		InvalidVotes:   values[3+n],
		Abstentions:    values[4+n],
	}
}
