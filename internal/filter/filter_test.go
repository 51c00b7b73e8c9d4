package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
	"github.com/lawnchairsociety/cliffbrush/internal/history"
)

const ridgeSet = "Ridge"

func point(side cliff.Side, dirs ...cliff.Direction) cliff.ConnectionPoint {
	return cliff.NewConnectionPoint(side, cliff.MaskOf(dirs...), cliff.Point{})
}

func ref(index int) cliff.TileRef {
	return cliff.TileRef{TileSet: ridgeSet, Index: index}
}

// ridgeType builds:
//
//	0 A        front E
//	1 B ending front W
//	2 C        front W, front E (two variants: 2 and 3)
//	3 D        back W
//	4 E        no connection points
func ridgeType(t *testing.T) *cliff.Type {
	t.Helper()
	ct, err := cliff.NewType("Ridge", []*cliff.Tile{
		{Index: 0, TileSet: ridgeSet, IndicesInTileSet: []int{0}, ConnectionPoints: []cliff.ConnectionPoint{point(cliff.SideFront, cliff.East)}},
		{Index: 1, TileSet: ridgeSet, IndicesInTileSet: []int{1}, IsEnding: true, ConnectionPoints: []cliff.ConnectionPoint{point(cliff.SideFront, cliff.West)}},
		{Index: 2, TileSet: ridgeSet, IndicesInTileSet: []int{2, 3}, ConnectionPoints: []cliff.ConnectionPoint{point(cliff.SideFront, cliff.West), point(cliff.SideFront, cliff.East)}},
		{Index: 3, TileSet: ridgeSet, IndicesInTileSet: []int{4}, ConnectionPoints: []cliff.ConnectionPoint{point(cliff.SideBack, cliff.West)}},
		{Index: 4, TileSet: ridgeSet, IndicesInTileSet: []int{5}},
	})
	if err != nil {
		t.Fatalf("NewType returned error: %v", err)
	}
	return ct
}

func allRefs() []cliff.TileRef {
	return []cliff.TileRef{ref(0), ref(1), ref(2), ref(3), ref(4), ref(5)}
}

func tile(t *testing.T, ct *cliff.Type, index cliff.TileIndex) *cliff.Tile {
	t.Helper()
	tl, ok := ct.TileByIndex(index)
	if !ok {
		t.Fatalf("tile %d missing", index)
	}
	return tl
}

func TestFreshSessionAllEligible(t *testing.T) {
	ct := ridgeType(t)
	for _, r := range allRefs() {
		if !IsCandidateEligible(r, ct, nil, Exclusions{}) {
			t.Errorf("IsCandidateEligible(%s) with no last tile = false, want true", r)
		}
	}

	// A last tile from another cliff type leaves the filter inactive too.
	stranger := &cliff.Tile{Index: 0, TileSet: "Shore", IndicesInTileSet: []int{0}}
	for _, r := range allRefs() {
		if !IsCandidateEligible(r, ct, stranger, NewExclusions(cliff.MaskOf(cliff.East))) {
			t.Errorf("IsCandidateEligible(%s) with foreign last tile = false, want true", r)
		}
	}
}

func TestCandidateOutsideRuleModel(t *testing.T) {
	ct := ridgeType(t)
	last := tile(t, ct, 0)

	for _, r := range []cliff.TileRef{ref(6), {TileSet: "Shore", Index: 0}} {
		if IsCandidateEligible(r, ct, last, Exclusions{}) {
			t.Errorf("IsCandidateEligible(%s) = true, want false for tile outside the rule model", r)
		}
	}
}

func TestCandidateDirectionMatching(t *testing.T) {
	ct := ridgeType(t)

	tests := []struct {
		name      string
		last      cliff.TileIndex
		candidate cliff.TileRef
		want      bool
	}{
		{"east meets west", 0, ref(1), true},
		{"straight piece continues east", 0, ref(2), true},
		{"second variant of straight piece", 0, ref(3), true},
		{"east does not meet east", 0, ref(0), false},
		{"side mismatch", 0, ref(4), false},
		{"no connection points", 0, ref(5), false},
		{"west meets east", 1, ref(0), true},
		{"west meets straight piece", 1, ref(2), true},
		{"west does not meet west", 1, ref(1), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			last := tile(t, ct, tc.last)
			if got := IsCandidateEligible(tc.candidate, ct, last, Exclusions{}); got != tc.want {
				t.Errorf("IsCandidateEligible(%s after %d) = %v, want %v", tc.candidate, tc.last, got, tc.want)
			}
		})
	}
}

func TestChainReset(t *testing.T) {
	ct := ridgeType(t)
	last := tile(t, ct, 1)
	exclusions := NewExclusions(cliff.MaskOf(cliff.East))

	for _, r := range allRefs() {
		candidate, _ := ct.Lookup(r)
		if got := IsCandidateEligible(r, ct, last, exclusions); got != candidate.IsEnding {
			t.Errorf("IsCandidateEligible(%s) after closed run = %v, want %v", r, got, candidate.IsEnding)
		}
	}

	// Without exclusions the ending tile behaves like any other.
	if !IsCandidateEligible(ref(0), ct, last, Exclusions{}) {
		t.Error("open run ending on B should still offer A")
	}
}

func TestExcludedConnectionPointSkipped(t *testing.T) {
	ct := ridgeType(t)
	last := tile(t, ct, 0)

	// C connects through its west point; excluding west leaves only its east
	// point, which cannot meet A's east.
	if IsCandidateEligible(ref(2), ct, last, NewExclusions(cliff.MaskOf(cliff.West, cliff.North))) {
		t.Error("candidate whose only matching point is excluded should be rejected")
	}
	if !IsCandidateEligible(ref(2), ct, last, NewExclusions(cliff.MaskOf(cliff.North))) {
		t.Error("exclusion sharing no direction should not skip the point")
	}
}

func forbiddenType(t *testing.T, allowRepeat, ignoreForbidden bool, required []cliff.TileIndex) *cliff.Type {
	t.Helper()
	lastEast := point(cliff.SideFront, cliff.East)
	lastEast.ForbiddenTiles = []cliff.TileIndex{7, 3}
	lastEast.RequiredTiles = required
	lastEast.IgnoreForbiddenInFilter = ignoreForbidden
	lastWest := point(cliff.SideFront, cliff.West)
	lastWest.ForbiddenTiles = []cliff.TileIndex{3}

	ct, err := cliff.NewType("Ridge", []*cliff.Tile{
		{Index: 3, TileSet: ridgeSet, IndicesInTileSet: []int{0}, AllowRepeatSelfInFilter: allowRepeat, ConnectionPoints: []cliff.ConnectionPoint{lastEast, lastWest}},
		{Index: 7, TileSet: ridgeSet, IndicesInTileSet: []int{1}, ConnectionPoints: []cliff.ConnectionPoint{point(cliff.SideFront, cliff.West)}},
		{Index: 8, TileSet: ridgeSet, IndicesInTileSet: []int{2}, ConnectionPoints: []cliff.ConnectionPoint{point(cliff.SideFront, cliff.West)}},
		{Index: 9, TileSet: ridgeSet, IndicesInTileSet: []int{3}, ConnectionPoints: []cliff.ConnectionPoint{point(cliff.SideFront, cliff.West)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return ct
}

func TestForbiddenTiles(t *testing.T) {
	ct := forbiddenType(t, false, false, nil)
	last := tile(t, ct, 3)

	if IsCandidateEligible(ref(1), ct, last, Exclusions{}) {
		t.Error("tile 7 is forbidden by the matching point and must be rejected")
	}
	if !IsCandidateEligible(ref(2), ct, last, Exclusions{}) {
		t.Error("tile 8 is not forbidden and its directions match")
	}

	ignoring := forbiddenType(t, false, true, nil)
	lastIgnoring := tile(t, ignoring, 3)
	if !IsCandidateEligible(ref(1), ignoring, lastIgnoring, Exclusions{}) {
		t.Error("forbidden list flagged as ignored in the filter should not reject tile 7")
	}
}

func TestSelfRepeatException(t *testing.T) {
	allowing := forbiddenType(t, true, false, nil)
	if !IsCandidateEligible(ref(0), allowing, tile(t, allowing, 3), Exclusions{}) {
		t.Error("tile allowing self repetition should follow itself despite forbidding itself")
	}

	strict := forbiddenType(t, false, false, nil)
	if IsCandidateEligible(ref(0), strict, tile(t, strict, 3), Exclusions{}) {
		t.Error("tile forbidding itself without the repeat flag should be rejected")
	}
}

func TestForbiddenOnlyOnSameSide(t *testing.T) {
	tests := []struct {
		name       string
		forbidding cliff.Side
		want       bool
	}{
		{"back point forbids front candidate", cliff.SideBack, true},
		{"front point forbids front candidate", cliff.SideFront, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			back := point(cliff.SideBack, cliff.West)
			front := point(cliff.SideFront, cliff.East)
			if tt.forbidding == cliff.SideBack {
				back.ForbiddenTiles = []cliff.TileIndex{1}
			} else {
				front.ForbiddenTiles = []cliff.TileIndex{1}
			}

			// The back point comes first so its forbidden list is seen
			// before the matching front point.
			ct, err := cliff.NewType("Ridge", []*cliff.Tile{
				{Index: 0, TileSet: ridgeSet, IndicesInTileSet: []int{0}, ConnectionPoints: []cliff.ConnectionPoint{back, front}},
				{Index: 1, TileSet: ridgeSet, IndicesInTileSet: []int{1}, ConnectionPoints: []cliff.ConnectionPoint{point(cliff.SideFront, cliff.West)}},
			})
			if err != nil {
				t.Fatalf("NewType returned error: %v", err)
			}

			if got := IsCandidateEligible(ref(1), ct, tile(t, ct, 0), Exclusions{}); got != tt.want {
				t.Errorf("IsCandidateEligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequiredTilesNarrowing(t *testing.T) {
	ct := forbiddenType(t, false, false, []cliff.TileIndex{8})
	last := tile(t, ct, 3)

	if !IsCandidateEligible(ref(2), ct, last, Exclusions{}) {
		t.Error("tile 8 is required and should be allowed")
	}
	if IsCandidateEligible(ref(3), ct, last, Exclusions{}) {
		t.Error("tile 9 matches directions but is not required and should be rejected")
	}
	// Forbidden still wins over required.
	if IsCandidateEligible(ref(1), ct, last, Exclusions{}) {
		t.Error("tile 7 is forbidden and should be rejected")
	}
}

func TestUnresolvableReferencesNeverMatch(t *testing.T) {
	ct := forbiddenType(t, false, false, []cliff.TileIndex{42})
	last := tile(t, ct, 3)

	for _, r := range []cliff.TileRef{ref(1), ref(2), ref(3)} {
		if IsCandidateEligible(r, ct, last, Exclusions{}) {
			t.Errorf("IsCandidateEligible(%s) = true, want false when only unknown tile 42 is required", r)
		}
	}
}

func TestFilterPaletteRidgeScenario(t *testing.T) {
	ct := ridgeType(t)
	a := history.PlacedTile{Tile: ref(0), Coords: cliff.Point{X: 0, Y: 0}}

	// B placed one step east of A: their east and west points face each other.
	closed := history.WindowOf(history.PlacedTile{Tile: ref(1), Coords: cliff.Point{X: 1, Y: -1}}, a)
	if diff := cmp.Diff([]cliff.TileRef{ref(1)}, FilterPalette(allRefs(), ct, closed)); diff != "" {
		t.Errorf("closed run palette mismatch (-want +got):\n%s", diff)
	}

	// B placed away from A: nothing is consumed, B's west point offers A and C.
	open := history.WindowOf(history.PlacedTile{Tile: ref(1), Coords: cliff.Point{X: 9, Y: 9}}, a)
	want := []cliff.TileRef{ref(0), ref(2), ref(3)}
	if diff := cmp.Diff(want, FilterPalette(allRefs(), ct, open)); diff != "" {
		t.Errorf("open run palette mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterPalettePassThrough(t *testing.T) {
	ct := ridgeType(t)
	tiles := allRefs()
	foreign := history.WindowOf(history.PlacedTile{Tile: cliff.TileRef{TileSet: "Shore", Index: 0}})

	tests := []struct {
		name   string
		ct     *cliff.Type
		window history.Window
	}{
		{"no cliff type", nil, history.WindowOf(history.PlacedTile{Tile: ref(0)})},
		{"no history", ct, history.Window{}},
		{"last placed elsewhere", ct, foreign},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tiles, FilterPalette(tiles, tc.ct, tc.window)); diff != "" {
				t.Errorf("palette mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterPaletteEmpty(t *testing.T) {
	ct := ridgeType(t)
	windows := []history.Window{
		{},
		history.WindowOf(history.PlacedTile{Tile: ref(0)}),
		history.WindowOf(history.PlacedTile{Tile: ref(1), Coords: cliff.Point{X: 1, Y: -1}}, history.PlacedTile{Tile: ref(0)}),
	}

	for i, w := range windows {
		for _, tiles := range [][]cliff.TileRef{nil, {}} {
			got := FilterPalette(tiles, ct, w)
			if got == nil || len(got) != 0 {
				t.Errorf("window %d: FilterPalette(empty) = %#v, want empty non-nil slice", i, got)
			}
		}
	}
	if got := FilterPalette(nil, nil, history.Window{}); got == nil {
		t.Error("FilterPalette(nil, nil) returned nil")
	}
}

func TestFilterPalettePreservesOrder(t *testing.T) {
	ct := ridgeType(t)
	window := history.WindowOf(history.PlacedTile{Tile: ref(0)})
	tiles := []cliff.TileRef{ref(3), ref(5), ref(1), ref(2), ref(0)}

	want := []cliff.TileRef{ref(3), ref(1), ref(2)}
	if diff := cmp.Diff(want, FilterPalette(tiles, ct, window)); diff != "" {
		t.Errorf("palette mismatch (-want +got):\n%s", diff)
	}
}

func TestNewFilter(t *testing.T) {
	ct := ridgeType(t)
	a := history.PlacedTile{Tile: ref(0), Coords: cliff.Point{X: 0, Y: 0}}
	b := history.PlacedTile{Tile: ref(1), Coords: cliff.Point{X: 1, Y: -1}}

	f := New(ct, history.WindowOf(b, a))
	if !f.Active() {
		t.Fatal("filter should be active")
	}
	if f.Last.Index != 1 {
		t.Errorf("Last = %d, want 1", f.Last.Index)
	}
	if !f.Exclusions.Contains(cliff.MaskOf(cliff.East)) || f.Exclusions.Len() != 1 {
		t.Errorf("Exclusions = %v, want [e]", f.Exclusions.Masks())
	}

	// A second-last tile outside the cliff type contributes no exclusions.
	stray := history.PlacedTile{Tile: cliff.TileRef{TileSet: "Shore", Index: 0}, Coords: cliff.Point{}}
	if f := New(ct, history.WindowOf(b, stray)); !f.Exclusions.Empty() {
		t.Errorf("Exclusions = %v, want empty", f.Exclusions.Masks())
	}

	if New(nil, history.WindowOf(a)).Active() {
		t.Error("filter without cliff type should be inactive")
	}
}
