// Package theater describes the tile sets available to the editor and the
// tiles each one contains.
package theater

import (
	"errors"
	"fmt"
	"os"

	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
	"gopkg.in/yaml.v3"
)

var (
	ErrDuplicateTileSet = errors.New("theater: duplicate tile set")
	ErrEmptyTileSetName = errors.New("theater: tile set has no name")
	ErrNegativeCount    = errors.New("theater: negative tile count")
)

// TileSet is a contiguous run of tiles sharing one name.
type TileSet struct {
	ID         int
	Name       string
	StartIndex int // global index of the first tile in the set
	TileCount  int
}

// Tiles returns a reference to every tile in the set, in display order.
func (ts *TileSet) Tiles() []cliff.TileRef {
	tiles := make([]cliff.TileRef, ts.TileCount)
	for i := range tiles {
		tiles[i] = cliff.TileRef{TileSet: ts.Name, Index: i}
	}
	return tiles
}

// Contains returns true if ref points into this tile set.
func (ts *TileSet) Contains(ref cliff.TileRef) bool {
	return ref.TileSet == ts.Name && ref.Index >= 0 && ref.Index < ts.TileCount
}

// Theater is the ordered catalog of tile sets.
type Theater struct {
	Name     string
	TileSets []*TileSet

	byName map[string]*TileSet
}

// TileSetYAML for YAML parsing
type TileSetYAML struct {
	Name  string `yaml:"name"`
	Tiles int    `yaml:"tiles"`
}

// TheaterConfig represents the theater.yaml structure
type TheaterConfig struct {
	Name     string        `yaml:"name"`
	TileSets []TileSetYAML `yaml:"tile_sets"`
}

// New builds a Theater from tile set definitions, assigning IDs and start indices in order.
func New(name string, defs []TileSetYAML) (*Theater, error) {
	th := &Theater{
		Name:     name,
		TileSets: make([]*TileSet, 0, len(defs)),
		byName:   make(map[string]*TileSet),
	}

	start := 0
	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: entry %d", ErrEmptyTileSetName, i)
		}
		if def.Tiles < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNegativeCount, def.Name)
		}
		if _, exists := th.byName[def.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTileSet, def.Name)
		}

		ts := &TileSet{
			ID:         i,
			Name:       def.Name,
			StartIndex: start,
			TileCount:  def.Tiles,
		}
		th.TileSets = append(th.TileSets, ts)
		th.byName[ts.Name] = ts
		start += def.Tiles
	}

	return th, nil
}

// LoadTheaterFromYAML loads the tile set catalog from a YAML file
func LoadTheaterFromYAML(filename string) (*Theater, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read theater file: %w", err)
	}

	var config TheaterConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse theater YAML: %w", err)
	}

	return New(config.Name, config.TileSets)
}

// TileSet returns the tile set with the given name
func (th *Theater) TileSet(name string) (*TileSet, bool) {
	ts, ok := th.byName[name]
	return ts, ok
}

// TileCount returns the number of tiles across all sets
func (th *Theater) TileCount() int {
	count := 0
	for _, ts := range th.TileSets {
		count += ts.TileCount
	}
	return count
}

// GlobalIndex converts a tile reference into its index across the whole theater.
func (th *Theater) GlobalIndex(ref cliff.TileRef) (int, bool) {
	ts, ok := th.byName[ref.TileSet]
	if !ok || !ts.Contains(ref) {
		return 0, false
	}
	return ts.StartIndex + ref.Index, true
}
