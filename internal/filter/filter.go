package filter

import (
	"slices"

	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
	"github.com/lawnchairsociety/cliffbrush/internal/history"
)

// Filter is the connected-tile filter for one palette pass: the cliff type of
// the displayed tile set, the last placed cliff tile and the exclusions
// derived from the last two placements.
type Filter struct {
	Type       *cliff.Type
	Last       *cliff.Tile
	Exclusions Exclusions
}

// New builds the filter for a palette pass. The filter is inactive when the
// tile set has no cliff type or the last placement is not one of its tiles.
func New(ct *cliff.Type, window history.Window) Filter {
	f := Filter{Type: ct}
	if ct == nil {
		return f
	}

	last, ok := window.Last()
	if !ok {
		return f
	}
	lastTile, ok := ct.Lookup(last.Tile)
	if !ok {
		return f
	}
	f.Last = lastTile

	if secondLast, ok := window.SecondLast(); ok {
		if secondLastTile, ok := ct.Lookup(secondLast.Tile); ok {
			f.Exclusions = ComputeExclusions(lastTile, last.Coords, secondLastTile, secondLast.Coords)
		}
	}

	return f
}

// Active reports whether the filter narrows the palette at all.
func (f Filter) Active() bool {
	return f.Type != nil && f.Last != nil
}

// Allows reports whether the candidate tile should be shown.
func (f Filter) Allows(candidate cliff.TileRef) bool {
	return IsCandidateEligible(candidate, f.Type, f.Last, f.Exclusions)
}

// Apply returns the tiles the filter allows, preserving order. The result is
// never nil.
func (f Filter) Apply(tiles []cliff.TileRef) []cliff.TileRef {
	if !f.Active() {
		return passThrough(tiles)
	}

	eligible := make([]cliff.TileRef, 0, len(tiles))
	for _, tile := range tiles {
		if f.Allows(tile) {
			eligible = append(eligible, tile)
		}
	}
	return eligible
}

// FilterPalette narrows the tiles of the displayed tile set to those that can
// follow the placements in window.
func FilterPalette(tiles []cliff.TileRef, ct *cliff.Type, window history.Window) []cliff.TileRef {
	return New(ct, window).Apply(tiles)
}

func passThrough(tiles []cliff.TileRef) []cliff.TileRef {
	if tiles == nil {
		return []cliff.TileRef{}
	}
	return slices.Clone(tiles)
}

// IsCandidateEligible decides whether candidate may be placed after last.
// With no last tile, or a last tile outside ct, every candidate is eligible.
// Candidates that are not tiles of ct are never eligible.
func IsCandidateEligible(candidate cliff.TileRef, ct *cliff.Type, last *cliff.Tile, exclusions Exclusions) bool {
	if ct == nil || !belongsTo(ct, last) {
		return true
	}

	tile, ok := ct.Lookup(candidate)
	if !ok {
		return false
	}

	return CanFollow(tile, last, exclusions)
}

func belongsTo(ct *cliff.Type, tile *cliff.Tile) bool {
	if tile == nil {
		return false
	}
	member, ok := ct.TileByIndex(tile.Index)
	return ok && member == tile
}

// CanFollow applies the connection rules of last to candidate.
func CanFollow(candidate, last *cliff.Tile, exclusions Exclusions) bool {
	// A closed run that ended on an ending tile only offers ending tiles, so a
	// new run can be started.
	if last.IsEnding && !exclusions.Empty() {
		return candidate.IsEnding
	}

	for _, cp := range candidate.ConnectionPoints {
		if exclusions.Covers(cp.Mask) {
			continue
		}

		for _, lp := range last.ConnectionPoints {
			if lp.Side != cp.Side {
				continue
			}

			if isForbidden(lp, candidate, last) {
				return false
			}

			if !cp.Mask.Overlaps(lp.ReversedMask) {
				continue
			}

			if lp.HasRequiredTiles() && !lp.Requires(candidate.Index) {
				continue
			}

			return true
		}
	}

	return false
}

// isForbidden applies the forbidden list of lp. A tile repeating itself is
// let through when it allows self repetition.
func isForbidden(lp cliff.ConnectionPoint, candidate, last *cliff.Tile) bool {
	if len(lp.ForbiddenTiles) == 0 || lp.IgnoreForbiddenInFilter {
		return false
	}
	if !lp.Forbids(candidate.Index) {
		return false
	}
	if candidate.Index == last.Index && last.AllowRepeatSelfInFilter {
		return false
	}
	return true
}
