package cliff

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnknownDirection   = errors.New("cliff: unknown direction")
	ErrInconsistentMask   = errors.New("cliff: reversed mask does not mirror connection mask")
	ErrDuplicateType      = errors.New("cliff: duplicate cliff type")
	ErrDuplicateTile      = errors.New("cliff: duplicate tile index")
	ErrDuplicateTileRef   = errors.New("cliff: tile set index claimed by two tiles")
	ErrTileSetClaimed     = errors.New("cliff: tile set belongs to another cliff type")
	ErrEmptyTypeName      = errors.New("cliff: cliff type has no name")
	ErrEmptyTileSetName   = errors.New("cliff: tile has no tile set")
	ErrNoIndicesInTileSet = errors.New("cliff: tile has no indices in its tile set")
)

// TileRef identifies a physical tile by its tile set name and its index within the set.
type TileRef struct {
	TileSet string `yaml:"tile_set" json:"tile_set"`
	Index   int    `yaml:"index" json:"index"`
}

// String returns "set#index".
func (r TileRef) String() string {
	return fmt.Sprintf("%s#%d", r.TileSet, r.Index)
}

// TileIndex is the stable identity of a Tile inside its Type. Forbidden and
// required lists refer to tiles of the same Type only.
type TileIndex int

// Side groups connection points that may face each other.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// ConnectionPoint is an attachment location on a Tile.
type ConnectionPoint struct {
	Side Side

	// Mask holds the directions open at this point.
	Mask Mask

	// ReversedMask holds the directions a neighbouring point must expose to match.
	ReversedMask Mask

	// Offset is relative to the tile's origin cell.
	Offset Point

	ForbiddenTiles []TileIndex

	// RequiredTiles, when non-empty, is the only set of tiles allowed through this point.
	RequiredTiles []TileIndex

	// IgnoreForbiddenInFilter disables the forbidden rule for palette filtering.
	IgnoreForbiddenInFilter bool
}

// NewConnectionPoint creates a connection point whose reversed mask is derived from mask.
func NewConnectionPoint(side Side, mask Mask, offset Point) ConnectionPoint {
	return ConnectionPoint{
		Side:         side,
		Mask:         mask,
		ReversedMask: mask.Reversed(),
		Offset:       offset,
	}
}

// Validate checks the mask invariant.
func (cp ConnectionPoint) Validate() error {
	if cp.ReversedMask != cp.Mask.Reversed() {
		return fmt.Errorf("%w: mask %s, reversed %s", ErrInconsistentMask, cp.Mask, cp.ReversedMask)
	}
	return nil
}

// Forbids returns true if idx is on the forbidden list.
func (cp ConnectionPoint) Forbids(idx TileIndex) bool {
	return slices.Contains(cp.ForbiddenTiles, idx)
}

// Requires returns true if the point has a required list and idx is on it.
func (cp ConnectionPoint) Requires(idx TileIndex) bool {
	return slices.Contains(cp.RequiredTiles, idx)
}

// HasRequiredTiles returns true if the point narrows which tiles may connect through it.
func (cp ConnectionPoint) HasRequiredTiles() bool {
	return len(cp.RequiredTiles) > 0
}

// ConnectionCoords is a connection point placed on the map.
type ConnectionCoords struct {
	Coords Point
	Mask   Mask
}

// Tile is one logical cliff piece. A tile may have several physical variants
// in its tile set, listed in IndicesInTileSet.
type Tile struct {
	Index            TileIndex
	TileSet          string
	IndicesInTileSet []int
	ConnectionPoints []ConnectionPoint

	// IsEnding marks tiles that terminate a run instead of continuing it.
	IsEnding bool

	// AllowRepeatSelfInFilter lets the tile follow itself even when its own
	// connection points forbid it.
	AllowRepeatSelfInFilter bool
}

// Refs returns the TileRefs of every physical variant of the tile.
func (t *Tile) Refs() []TileRef {
	refs := make([]TileRef, len(t.IndicesInTileSet))
	for i, idx := range t.IndicesInTileSet {
		refs[i] = TileRef{TileSet: t.TileSet, Index: idx}
	}
	return refs
}

// ConnectionCoordsAt returns the absolute coordinates and masks of every
// connection point when the tile's origin is placed at origin.
func (t *Tile) ConnectionCoordsAt(origin Point) []ConnectionCoords {
	coords := make([]ConnectionCoords, 0, len(t.ConnectionPoints))
	for _, cp := range t.ConnectionPoints {
		coords = append(coords, ConnectionCoords{
			Coords: origin.Add(cp.Offset),
			Mask:   cp.Mask,
		})
	}
	return coords
}

// Type is a named family of cliff tiles sharing one rule set. Build it with
// NewType; the lookup tables are fixed at construction.
type Type struct {
	Name  string
	Tiles []*Tile

	tileSets []string
	byRef    map[TileRef]*Tile
	byIndex  map[TileIndex]*Tile
}

// NewType indexes tiles into a Type. It fails on duplicate tile indices,
// duplicate physical tiles and inconsistent connection masks.
func NewType(name string, tiles []*Tile) (*Type, error) {
	if name == "" {
		return nil, ErrEmptyTypeName
	}

	ct := &Type{
		Name:    name,
		Tiles:   tiles,
		byRef:   make(map[TileRef]*Tile),
		byIndex: make(map[TileIndex]*Tile),
	}

	for _, tile := range tiles {
		if tile.TileSet == "" {
			return nil, fmt.Errorf("%w: %s tile %d", ErrEmptyTileSetName, name, tile.Index)
		}
		if len(tile.IndicesInTileSet) == 0 {
			return nil, fmt.Errorf("%w: %s tile %d", ErrNoIndicesInTileSet, name, tile.Index)
		}
		if _, exists := ct.byIndex[tile.Index]; exists {
			return nil, fmt.Errorf("%w: %s tile %d", ErrDuplicateTile, name, tile.Index)
		}
		ct.byIndex[tile.Index] = tile

		for i, cp := range tile.ConnectionPoints {
			if err := cp.Validate(); err != nil {
				return nil, fmt.Errorf("%s tile %d connection point %d: %w", name, tile.Index, i, err)
			}
		}

		for _, ref := range tile.Refs() {
			if other, exists := ct.byRef[ref]; exists {
				return nil, fmt.Errorf("%w: %s %s (tiles %d and %d)", ErrDuplicateTileRef, name, ref, other.Index, tile.Index)
			}
			ct.byRef[ref] = tile
		}

		if !slices.Contains(ct.tileSets, tile.TileSet) {
			ct.tileSets = append(ct.tileSets, tile.TileSet)
		}
	}

	return ct, nil
}

// TileSets returns the names of the tile sets this type covers, in first-seen order.
func (ct *Type) TileSets() []string {
	return slices.Clone(ct.tileSets)
}

// Lookup returns the tile a physical tile reference belongs to.
func (ct *Type) Lookup(ref TileRef) (*Tile, bool) {
	if ct == nil {
		return nil, false
	}
	tile, ok := ct.byRef[ref]
	return tile, ok
}

// TileByIndex returns the tile with the given index.
func (ct *Type) TileByIndex(idx TileIndex) (*Tile, bool) {
	if ct == nil {
		return nil, false
	}
	tile, ok := ct.byIndex[idx]
	return tile, ok
}

// Contains returns true if ref is a tile of this type.
func (ct *Type) Contains(ref TileRef) bool {
	_, ok := ct.Lookup(ref)
	return ok
}

// DanglingReferences lists forbidden or required indices that name no tile of the type.
func (ct *Type) DanglingReferences() []string {
	var dangling []string
	for _, tile := range ct.Tiles {
		for i, cp := range tile.ConnectionPoints {
			for _, idx := range cp.ForbiddenTiles {
				if _, ok := ct.byIndex[idx]; !ok {
					dangling = append(dangling, fmt.Sprintf("%s tile %d point %d forbids unknown tile %d", ct.Name, tile.Index, i, idx))
				}
			}
			for _, idx := range cp.RequiredTiles {
				if _, ok := ct.byIndex[idx]; !ok {
					dangling = append(dangling, fmt.Sprintf("%s tile %d point %d requires unknown tile %d", ct.Name, tile.Index, i, idx))
				}
			}
		}
	}
	return dangling
}
