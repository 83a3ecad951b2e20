package reputation

import (
	"math"
	"testing"

	"github.com/talgya/neurobank/internal/entropy"
)

func ptr(v float64) *float64 { return &v }

func TestGetSeedsOnceWithinRanges(t *testing.T) {
	tr := NewTracker(entropy.NewSeeded(5))
	first := tr.Get("0xabc")
	if first.DataQuality < 70 || first.DataQuality >= 90 ||
		first.Consistency < 60 || first.Consistency >= 90 ||
		first.ResearchImpact < 0 || first.ResearchImpact >= 50 ||
		first.CommunityEngagement < 0 || first.CommunityEngagement >= 40 {
		t.Fatalf("seed score out of range: %+v", first)
	}
	if first.ValidatorAccuracy != 0 {
		t.Fatalf("validator accuracy should start at 0")
	}
	if again := tr.Get("0xabc"); again != first {
		t.Fatalf("second Get reseeded: %+v vs %+v", again, first)
	}
}

func TestOverallWeights(t *testing.T) {
	s := Score{DataQuality: 100, Consistency: 50, ResearchImpact: 20, CommunityEngagement: 10}
	want := 40.0 + 15 + 4 + 1
	if got := Overall(s); math.Abs(got-want) > 1e-9 {
		t.Fatalf("Overall = %v, want %v", got, want)
	}
}

func TestUpdateMergesAndRecomputes(t *testing.T) {
	tr := NewTracker(entropy.Constant(0))
	before := tr.Get("0x1")
	after := tr.Update("0x1", Update{ResearchImpact: ptr(80), CommunityEngagement: ptr(150)})

	if after.DataQuality != before.DataQuality || after.Consistency != before.Consistency {
		t.Fatalf("untouched fields changed: %+v -> %+v", before, after)
	}
	if after.ResearchImpact != 80 {
		t.Fatalf("research impact = %v, want 80", after.ResearchImpact)
	}
	if after.CommunityEngagement != 100 {
		t.Fatalf("engagement should clamp to 100, got %v", after.CommunityEngagement)
	}
	if math.Abs(after.Overall-Overall(after)) > 1e-9 {
		t.Fatalf("overall not recomputed")
	}
}

func TestSnapshotRestore(t *testing.T) {
	tr := NewTracker(entropy.NewSeeded(1))
	tr.Get("a")
	snap := tr.Snapshot()

	other := NewTracker(entropy.NewSeeded(99))
	other.Restore(snap)
	if other.Get("a") != snap["a"] {
		t.Fatal("restored score differs")
	}
}
