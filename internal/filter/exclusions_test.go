package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
)

func oneTile(index cliff.TileIndex, points ...cliff.ConnectionPoint) *cliff.Tile {
	return &cliff.Tile{Index: index, TileSet: ridgeSet, IndicesInTileSet: []int{int(index)}, ConnectionPoints: points}
}

func pointAt(x, y int, dirs ...cliff.Direction) cliff.ConnectionPoint {
	return cliff.NewConnectionPoint(cliff.SideFront, cliff.MaskOf(dirs...), cliff.Point{X: x, Y: y})
}

func TestNewExclusionsDedupes(t *testing.T) {
	e, w := cliff.MaskOf(cliff.East), cliff.MaskOf(cliff.West)
	ex := NewExclusions(e, w, e)

	if ex.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ex.Len())
	}
	if diff := cmp.Diff([]cliff.Mask{e, w}, ex.Masks()); diff != "" {
		t.Errorf("Masks() mismatch (-want +got):\n%s", diff)
	}
	if !ex.Contains(w) || ex.Contains(cliff.MaskOf(cliff.North)) {
		t.Error("Contains reported wrong membership")
	}
	if (Exclusions{}).Len() != 0 || !(Exclusions{}).Empty() {
		t.Error("zero Exclusions should be empty")
	}
}

func TestExclusionsCovers(t *testing.T) {
	ex := NewExclusions(cliff.MaskOf(cliff.East, cliff.South))

	tests := []struct {
		mask cliff.Mask
		want bool
	}{
		{cliff.MaskOf(cliff.East), true},
		{cliff.MaskOf(cliff.South, cliff.West), true},
		{cliff.MaskOf(cliff.West), false},
		{0, false},
	}

	for _, tc := range tests {
		if got := ex.Covers(tc.mask); got != tc.want {
			t.Errorf("Covers(%s) = %v, want %v", tc.mask, got, tc.want)
		}
	}
}

func TestComputeExclusions(t *testing.T) {
	origin := cliff.Point{}

	tests := []struct {
		name             string
		last             *cliff.Tile
		lastCoords       cliff.Point
		secondLast       *cliff.Tile
		secondLastCoords cliff.Point
		want             []cliff.Mask
	}{
		{
			name:             "facing points one step apart",
			last:             oneTile(1, pointAt(0, 0, cliff.West)),
			lastCoords:       cliff.East.Offset(),
			secondLast:       oneTile(0, pointAt(0, 0, cliff.East)),
			secondLastCoords: origin,
			want:             []cliff.Mask{cliff.MaskOf(cliff.East)},
		},
		{
			name:             "offsets bring points together",
			last:             oneTile(1, pointAt(1, 0, cliff.North)),
			lastCoords:       cliff.Point{X: 3, Y: 3},
			secondLast:       oneTile(0, pointAt(0, 1, cliff.South, cliff.East)),
			secondLastCoords: cliff.Point{X: 3, Y: 1},
			want:             []cliff.Mask{cliff.MaskOf(cliff.South, cliff.East)},
		},
		{
			name:             "points not adjacent",
			last:             oneTile(1, pointAt(0, 0, cliff.West)),
			lastCoords:       cliff.Point{X: 9, Y: 9},
			secondLast:       oneTile(0, pointAt(0, 0, cliff.East)),
			secondLastCoords: origin,
			want:             nil,
		},
		{
			name:             "adjacent but not facing",
			last:             oneTile(1, pointAt(0, 0, cliff.West)),
			lastCoords:       cliff.East.Offset(),
			secondLast:       oneTile(0, pointAt(0, 0, cliff.North)),
			secondLastCoords: origin,
			want:             nil,
		},
		{
			name:             "same direction is not a match",
			last:             oneTile(1, pointAt(0, 0, cliff.West)),
			lastCoords:       cliff.East.Offset(),
			secondLast:       oneTile(0, pointAt(0, 0, cliff.West)),
			secondLastCoords: origin,
			want:             nil,
		},
		{
			name:             "several matches deduplicated",
			last:             oneTile(1, pointAt(0, 0, cliff.West), pointAt(0, 0, cliff.West, cliff.SouthWest)),
			lastCoords:       cliff.East.Offset(),
			secondLast:       oneTile(0, pointAt(0, 0, cliff.East), pointAt(0, 0, cliff.East)),
			secondLastCoords: origin,
			want:             []cliff.Mask{cliff.MaskOf(cliff.East)},
		},
		{
			name:       "no second-last tile",
			last:       oneTile(1, pointAt(0, 0, cliff.West)),
			secondLast: nil,
			want:       nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeExclusions(tc.last, tc.lastCoords, tc.secondLast, tc.secondLastCoords)
			if diff := cmp.Diff(tc.want, got.Masks(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ComputeExclusions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
