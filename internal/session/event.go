package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownEvent = errors.New("session: unknown event type")
	ErrMissingField = errors.New("session: event is missing a field")
)

// Event types accepted by Apply.
const (
	EventPlace   = "place"
	EventUndo    = "undo"
	EventExit    = "exit"
	EventTileSet = "tileset"
	EventFilter  = "filter"
)

// Event is one editor action, as read from a replay script or a client
// message.
type Event struct {
	Type    string         `yaml:"type" json:"type"`
	Tile    *cliff.TileRef `yaml:"tile,omitempty" json:"tile,omitempty"`
	X       int            `yaml:"x,omitempty" json:"x,omitempty"`
	Y       int            `yaml:"y,omitempty" json:"y,omitempty"`
	TileSet string         `yaml:"tile_set,omitempty" json:"tile_set,omitempty"`
	Enabled *bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Apply performs the event on s.
func (e Event) Apply(s *Session) error {
	switch e.Type {
	case EventPlace:
		if e.Tile == nil {
			return fmt.Errorf("%w: place needs tile", ErrMissingField)
		}
		return s.Place(*e.Tile, cliff.Point{X: e.X, Y: e.Y})
	case EventUndo:
		return s.Undo()
	case EventExit:
		s.ExitAction()
		return nil
	case EventTileSet:
		if e.TileSet == "" {
			return fmt.Errorf("%w: tileset needs tile_set", ErrMissingField)
		}
		return s.SetTileSet(e.TileSet)
	case EventFilter:
		if e.Enabled == nil {
			return fmt.Errorf("%w: filter needs enabled", ErrMissingField)
		}
		s.SetFilterEnabled(*e.Enabled)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
}

// Script is a recorded sequence of events.
type Script struct {
	TileSet string  `yaml:"tile_set"`
	Filter  *bool   `yaml:"filter,omitempty"`
	Events  []Event `yaml:"events"`
}

// LoadScript reads an event script from YAML.
func LoadScript(filename string) (*Script, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script YAML: %w", err)
	}
	return &script, nil
}
