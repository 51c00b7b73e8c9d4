// Package history remembers the last two tiles placed during a cliff drawing gesture.
package history

import (
	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
)

// PlacedTile records one placement: which tile went where.
type PlacedTile struct {
	Tile   cliff.TileRef
	Coords cliff.Point
}

// Window holds up to two placements, most recent first.
type Window struct {
	tiles [2]PlacedTile
	n     int
}

// WindowOf builds a window from placements given most recent first. Extra
// placements beyond two are ignored.
func WindowOf(tiles ...PlacedTile) Window {
	var w Window
	for i := 0; i < len(tiles) && i < len(w.tiles); i++ {
		w.tiles[i] = tiles[i]
		w.n++
	}
	return w
}

// Len returns the number of placements held (0, 1 or 2).
func (w Window) Len() int {
	return w.n
}

// Last returns the most recent placement.
func (w Window) Last() (PlacedTile, bool) {
	if w.n < 1 {
		return PlacedTile{}, false
	}
	return w.tiles[0], true
}

// SecondLast returns the placement before the most recent one.
func (w Window) SecondLast() (PlacedTile, bool) {
	if w.n < 2 {
		return PlacedTile{}, false
	}
	return w.tiles[1], true
}

// push makes tile the most recent placement. When keepPrevious is false the
// window drops back to a single entry.
func (w Window) push(tile PlacedTile, keepPrevious bool) Window {
	if w.n == 0 || !keepPrevious {
		return WindowOf(tile)
	}
	return WindowOf(tile, w.tiles[0])
}

// Classifier decides whether two tiles belong to the same cliff type.
type Classifier interface {
	SameCliffType(a, b cliff.TileRef) bool
}

// Tracker maintains the placement window for one editing session.
// It is not safe for concurrent use; each session owns its own Tracker.
type Tracker struct {
	classifier Classifier
	window     Window
}

// NewTracker creates an empty tracker using classifier for continuity checks.
func NewTracker(classifier Classifier) *Tracker {
	return &Tracker{classifier: classifier}
}

// RecordPlacement pushes a newly placed tile. The previous tile is kept as
// second-last only while the gesture stays within one cliff type.
func (t *Tracker) RecordPlacement(tile PlacedTile) {
	last, ok := t.window.Last()
	if !ok {
		t.window = WindowOf(tile)
		return
	}

	continuous := t.classifier != nil && t.classifier.SameCliffType(tile.Tile, last.Tile)
	t.window = t.window.push(tile, continuous)
}

// RecordUndo replaces the window with the pair restored by an undo. No
// continuity check is applied.
func (t *Tracker) RecordUndo(w Window) {
	t.window = w
}

// Reset forgets both placements.
func (t *Tracker) Reset() {
	t.window = Window{}
}

// Window returns the current placement window.
func (t *Tracker) Window() Window {
	return t.window
}

// Last returns the most recently placed tile.
func (t *Tracker) Last() (PlacedTile, bool) {
	return t.window.Last()
}

// SecondLast returns the tile placed before the last one, if it belongs to the same gesture.
func (t *Tracker) SecondLast() (PlacedTile, bool) {
	return t.window.SecondLast()
}
