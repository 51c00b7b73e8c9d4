// Package filter decides which cliff tiles may follow the most recent
// placements and narrows a tile palette accordingly.
package filter

import (
	"slices"

	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
)

// Exclusions is the set of connection masks already consumed by the last two
// placements. The zero value is an empty set.
type Exclusions struct {
	masks []cliff.Mask
}

// NewExclusions builds a set from masks, dropping duplicates.
func NewExclusions(masks ...cliff.Mask) Exclusions {
	var ex Exclusions
	for _, m := range masks {
		ex.add(m)
	}
	return ex
}

func (ex *Exclusions) add(m cliff.Mask) {
	if !slices.Contains(ex.masks, m) {
		ex.masks = append(ex.masks, m)
	}
}

// Len returns the number of distinct masks in the set.
func (ex Exclusions) Len() int {
	return len(ex.masks)
}

// Empty reports whether no mask has been consumed.
func (ex Exclusions) Empty() bool {
	return len(ex.masks) == 0
}

// Masks returns the excluded masks in discovery order.
func (ex Exclusions) Masks() []cliff.Mask {
	return slices.Clone(ex.masks)
}

// Contains returns true if m is one of the excluded masks.
func (ex Exclusions) Contains(m cliff.Mask) bool {
	return slices.Contains(ex.masks, m)
}

// Covers returns true if any direction of m appears in any excluded mask.
func (ex Exclusions) Covers(m cliff.Mask) bool {
	for _, excluded := range ex.masks {
		if excluded.Overlaps(m) {
			return true
		}
	}
	return false
}

// ComputeExclusions finds the connection masks of the second-last tile that
// face a connection of the last tile across one grid step. A nil tile on
// either side yields an empty set.
func ComputeExclusions(last *cliff.Tile, lastCoords cliff.Point, secondLast *cliff.Tile, secondLastCoords cliff.Point) Exclusions {
	var ex Exclusions
	if last == nil || secondLast == nil {
		return ex
	}

	connectionsLast := last.ConnectionCoordsAt(lastCoords)
	connectionsSecondLast := secondLast.ConnectionCoordsAt(secondLastCoords)

	for _, c1 := range connectionsLast {
		for _, d := range cliff.DirectionsInMask(c1.Mask) {
			probe := c1.Coords.Add(d.Offset())

			for _, c2 := range connectionsSecondLast {
				if c2.Coords != probe {
					continue
				}
				for _, d2 := range cliff.DirectionsInMask(c2.Mask) {
					if d2 == d {
						continue
					}
					if cliff.IsReverseDirection(d2, d) {
						ex.add(c2.Mask)
					}
				}
			}
		}
	}

	return ex
}
