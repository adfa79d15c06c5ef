package scrape

import (
	"reflect"
	"testing"
	"time"

	"pawarisk/pkg/types"
)

func target(id int64, kickoff time.Time, platforms ...types.Platform) types.EventTarget {
	refs := make(map[types.Platform]types.PlatformRef, len(platforms))
	for _, p := range platforms {
		refs[p] = types.PlatformRef{ExternalID: "x"}
	}
	return types.EventTarget{EventID: id, Kickoff: kickoff, Platforms: refs}
}

func ids(targets []types.EventTarget) []int64 {
	out := make([]int64, len(targets))
	for i, tg := range targets {
		out[i] = tg.EventID
	}
	return out
}

func TestPrioritizeOrder(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 8, 24, 15, 0, 0, 0, time.UTC)

	in := []types.EventTarget{
		// Latest kickoff, full coverage: still last.
		target(1, base.Add(2*time.Hour), types.PlatformBetPawa, types.PlatformSportyBet, types.PlatformBet9ja),
		// Same kickoff as 3/4 but narrower coverage.
		target(2, base, types.PlatformSportyBet),
		// Same kickoff and coverage as 4; reference platform wins.
		target(3, base, types.PlatformSportyBet, types.PlatformBet9ja),
		target(4, base, types.PlatformBetPawa, types.PlatformBet9ja),
	}

	got := ids(Prioritize(in))
	want := []int64{4, 3, 2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestPrioritizeEventIDTiebreak(t *testing.T) {
	t.Parallel()
	base := time.Now()

	in := []types.EventTarget{
		target(9, base, types.PlatformBetPawa),
		target(3, base, types.PlatformBetPawa),
		target(7, base, types.PlatformBetPawa),
	}
	got := ids(Prioritize(in))
	want := []int64{3, 7, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want id-ascending for full ties", got)
	}
}

func TestPrioritizeDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	base := time.Now()
	in := []types.EventTarget{
		target(2, base.Add(time.Hour), types.PlatformBetPawa),
		target(1, base, types.PlatformBetPawa),
	}
	Prioritize(in)
	if in[0].EventID != 2 {
		t.Error("input slice reordered")
	}
}

func TestBatches(t *testing.T) {
	t.Parallel()
	targets := make([]types.EventTarget, 7)
	for i := range targets {
		targets[i].EventID = int64(i)
	}

	got := Batches(targets, 3)
	if len(got) != 3 {
		t.Fatalf("batches = %d, want 3", len(got))
	}
	if len(got[0]) != 3 || len(got[1]) != 3 || len(got[2]) != 1 {
		t.Errorf("sizes = %d/%d/%d, want 3/3/1", len(got[0]), len(got[1]), len(got[2]))
	}

	if got := Batches(nil, 3); got != nil {
		t.Errorf("batches of empty input = %v, want nil", got)
	}
}
