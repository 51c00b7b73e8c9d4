// Package session runs one cliff editing session: it feeds placement, undo
// and tool events into the history tracker and republishes the filtered
// palette whenever it may have changed.
package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
	"github.com/lawnchairsociety/cliffbrush/internal/filter"
	"github.com/lawnchairsociety/cliffbrush/internal/history"
	"github.com/lawnchairsociety/cliffbrush/internal/logger"
	"github.com/lawnchairsociety/cliffbrush/internal/theater"
)

var (
	ErrNothingToUndo  = errors.New("session: nothing to undo")
	ErrUnknownTileSet = errors.New("session: unknown tile set")
	ErrUnknownTile    = errors.New("session: tile is not in the theater")
	ErrNoTheater      = errors.New("session: no theater")
)

// Palette is the list of tiles offered for the displayed tile set.
type Palette struct {
	TileSet  string          `json:"tile_set"`
	Tiles    []cliff.TileRef `json:"tiles"`
	Filtered bool            `json:"filtered"`
}

// Listener is told about every palette the session wants redrawn.
type Listener interface {
	PaletteChanged(id string, p Palette)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(id string, p Palette)

func (f ListenerFunc) PaletteChanged(id string, p Palette) { f(id, p) }

// Recorder persists the placement stack. Sequence numbers start at zero and
// equal a placement's position in the stack.
type Recorder interface {
	StartSession(id, tileSet string) error
	EndSession(id string) error
	AppendPlacement(id string, seq int, tile history.PlacedTile) error
	TruncatePlacements(id string, seq int) error
}

// Options configures a new session.
type Options struct {
	ID            string // generated when empty
	TileSet       string // initially displayed tile set, may be empty
	FilterEnabled bool
	Listener      Listener
	Recorder      Recorder
}

// Session owns the mutable editing state of one user. The rule set and
// theater are shared read-only. A Session is not safe for concurrent use.
type Session struct {
	id      string
	rules   *cliff.RuleSet
	theater *theater.Theater

	tracker       *history.Tracker
	placements    []history.PlacedTile
	tileSet       *theater.TileSet
	filterEnabled bool

	listener Listener
	recorder Recorder
}

// New creates a session over a shared rule set and theater.
func New(rules *cliff.RuleSet, th *theater.Theater, opts Options) (*Session, error) {
	if th == nil {
		return nil, ErrNoTheater
	}

	s := &Session{
		id:            opts.ID,
		rules:         rules,
		theater:       th,
		tracker:       history.NewTracker(rules),
		filterEnabled: opts.FilterEnabled,
		listener:      opts.Listener,
		recorder:      opts.Recorder,
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}

	if opts.TileSet != "" {
		ts, ok := th.TileSet(opts.TileSet)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTileSet, opts.TileSet)
		}
		s.tileSet = ts
	}

	if s.recorder != nil {
		s.journal("start", s.recorder.StartSession(s.id, s.TileSet()))
	}
	logger.Debug("Session started", "session", s.id, "tile_set", s.TileSet(), "filter", s.filterEnabled)

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// TileSet returns the name of the displayed tile set, or "" when none is.
func (s *Session) TileSet() string {
	if s.tileSet == nil {
		return ""
	}
	return s.tileSet.Name
}

// FilterEnabled reports whether the connected-tile filter is on.
func (s *Session) FilterEnabled() bool {
	return s.filterEnabled
}

// Window returns the last two placements the filter works from.
func (s *Session) Window() history.Window {
	return s.tracker.Window()
}

// Placements returns the undo stack, oldest first.
func (s *Session) Placements() []history.PlacedTile {
	return slices.Clone(s.placements)
}

// Palette computes the tiles currently offered for the displayed tile set.
// The tile list is never nil.
func (s *Session) Palette() Palette {
	if s.tileSet == nil {
		return Palette{Tiles: []cliff.TileRef{}}
	}

	p := Palette{TileSet: s.tileSet.Name, Tiles: s.tileSet.Tiles()}
	if ct, ok := s.cliffType(); ok && s.filterEnabled {
		p.Tiles = filter.FilterPalette(p.Tiles, ct, s.tracker.Window())
		p.Filtered = true
	}
	return p
}

// Place records a tile placed at coords.
func (s *Session) Place(tile cliff.TileRef, coords cliff.Point) error {
	ts, ok := s.theater.TileSet(tile.TileSet)
	if !ok || !ts.Contains(tile) {
		return fmt.Errorf("%w: %s", ErrUnknownTile, tile)
	}

	placed := history.PlacedTile{Tile: tile, Coords: coords}
	seq := len(s.placements)
	s.placements = append(s.placements, placed)
	s.tracker.RecordPlacement(placed)

	if s.recorder != nil {
		s.journal("append", s.recorder.AppendPlacement(s.id, seq, placed))
	}

	s.refreshIfFiltering()
	return nil
}

// Undo removes the most recent placement and restores the two before it.
func (s *Session) Undo() error {
	if len(s.placements) == 0 {
		return ErrNothingToUndo
	}

	s.placements = s.placements[:len(s.placements)-1]
	s.tracker.RecordUndo(s.topOfStack())

	if s.recorder != nil {
		s.journal("truncate", s.recorder.TruncatePlacements(s.id, len(s.placements)))
	}

	s.refreshIfFiltering()
	return nil
}

// ExitAction ends the drawing gesture: the history and undo stack are cleared.
func (s *Session) ExitAction() {
	s.placements = nil
	s.tracker.Reset()

	if s.recorder != nil {
		s.journal("truncate", s.recorder.TruncatePlacements(s.id, 0))
	}

	s.refreshIfFiltering()
}

// SetTileSet changes the displayed tile set. The history is forgotten unless
// the new set shares a cliff type with the last placed tile.
func (s *Session) SetTileSet(name string) error {
	ts, ok := s.theater.TileSet(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTileSet, name)
	}
	s.tileSet = ts

	if last, ok := s.tracker.Last(); ok && !s.continuesFrom(last) {
		s.tracker.Reset()
	}

	s.notify()
	return nil
}

// SetFilterEnabled turns the connected-tile filter on or off.
func (s *Session) SetFilterEnabled(enabled bool) {
	s.filterEnabled = enabled
	s.notify()
}

// Restore replaces the undo stack with journaled placements, oldest first.
// Nothing is written back to the recorder.
func (s *Session) Restore(placements []history.PlacedTile) {
	s.placements = slices.Clone(placements)
	s.tracker.RecordUndo(s.topOfStack())
	logger.Debug("Session restored", "session", s.id, "placements", len(placements))
	s.refreshIfFiltering()
}

// Close ends the session in the journal.
func (s *Session) Close() {
	if s.recorder != nil {
		s.journal("end", s.recorder.EndSession(s.id))
	}
	logger.Debug("Session closed", "session", s.id)
}

// topOfStack returns the two newest placements, most recent first.
func (s *Session) topOfStack() history.Window {
	n := len(s.placements)
	switch {
	case n == 0:
		return history.Window{}
	case n == 1:
		return history.WindowOf(s.placements[0])
	default:
		return history.WindowOf(s.placements[n-1], s.placements[n-2])
	}
}

func (s *Session) cliffType() (*cliff.Type, bool) {
	if s.tileSet == nil {
		return nil, false
	}
	return s.rules.TypeForTileSet(s.tileSet.Name)
}

func (s *Session) continuesFrom(last history.PlacedTile) bool {
	ct, ok := s.cliffType()
	if !ok {
		return false
	}
	lastType, ok := s.rules.TypeForTileSet(last.Tile.TileSet)
	return ok && lastType == ct
}

// refreshIfFiltering notifies only when the filter can have changed the
// displayed palette.
func (s *Session) refreshIfFiltering() {
	if !s.filterEnabled {
		return
	}
	if _, ok := s.cliffType(); !ok {
		return
	}
	s.notify()
}

func (s *Session) notify() {
	if s.listener == nil {
		return
	}
	s.listener.PaletteChanged(s.id, s.Palette())
}

func (s *Session) journal(op string, err error) {
	if err != nil {
		logger.Warning("Journal write failed", "session", s.id, "op", op, "error", err)
	}
}
