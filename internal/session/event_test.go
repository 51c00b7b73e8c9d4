package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
)

func TestEventApply(t *testing.T) {
	enabled := false
	tile := ridge(0)

	tests := []struct {
		name    string
		event   Event
		wantErr error
	}{
		{"place", Event{Type: EventPlace, Tile: &tile, X: 2, Y: 3}, nil},
		{"place without tile", Event{Type: EventPlace}, ErrMissingField},
		{"undo empty", Event{Type: EventUndo}, ErrNothingToUndo},
		{"exit", Event{Type: EventExit}, nil},
		{"tileset", Event{Type: EventTileSet, TileSet: "Clear"}, nil},
		{"tileset without name", Event{Type: EventTileSet}, ErrMissingField},
		{"tileset unknown", Event{Type: EventTileSet, TileSet: "Lava"}, ErrUnknownTileSet},
		{"filter", Event{Type: EventFilter, Enabled: &enabled}, nil},
		{"filter without value", Event{Type: EventFilter}, ErrMissingField},
		{"unknown", Event{Type: "paint"}, ErrUnknownEvent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newSession(t, "Ridge", true)
			err := tc.event.Apply(s)
			if tc.wantErr == nil && err != nil {
				t.Errorf("Apply() error = %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("Apply() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestEventApplyPlace(t *testing.T) {
	s, _ := newSession(t, "Ridge", true)
	tile := ridge(2)
	if err := (Event{Type: EventPlace, Tile: &tile, X: 4, Y: -1}).Apply(s); err != nil {
		t.Fatal(err)
	}
	last, ok := s.Window().Last()
	if !ok || last.Tile != tile || last.Coords != (cliff.Point{X: 4, Y: -1}) {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	content := `tile_set: Ridge
filter: true
events:
  - type: place
    tile: {tile_set: Ridge, index: 0}
    x: 0
    y: 0
  - type: place
    tile: {tile_set: Ridge, index: 1}
    x: 1
    y: -1
  - type: undo
  - type: tileset
    tile_set: Clear
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	script, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if script.TileSet != "Ridge" || script.Filter == nil || !*script.Filter {
		t.Errorf("script header = %q %v", script.TileSet, script.Filter)
	}

	a, b := ridge(0), ridge(1)
	want := []Event{
		{Type: EventPlace, Tile: &a},
		{Type: EventPlace, Tile: &b, X: 1, Y: -1},
		{Type: EventUndo},
		{Type: EventTileSet, TileSet: "Clear"},
	}
	if diff := cmp.Diff(want, script.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadScriptErrors(t *testing.T) {
	if _, err := LoadScript(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadScript should fail for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("events: {not: [a list"), 0o644)
	if _, err := LoadScript(path); err == nil {
		t.Error("LoadScript should fail for malformed YAML")
	}
}
