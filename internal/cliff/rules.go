package cliff

import (
	"fmt"
	"sort"
)

// RuleSet is the read-only index over every cliff type known to the editor.
// It is built once at load time and may be shared by any number of sessions.
type RuleSet struct {
	types     []*Type
	byName    map[string]*Type
	byTileSet map[string]*Type
}

// NewRuleSet indexes the cliff types. A tile set may belong to one type only.
func NewRuleSet(types ...*Type) (*RuleSet, error) {
	rs := &RuleSet{
		types:     types,
		byName:    make(map[string]*Type),
		byTileSet: make(map[string]*Type),
	}

	for _, ct := range types {
		if _, exists := rs.byName[ct.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, ct.Name)
		}
		rs.byName[ct.Name] = ct

		for _, tileSet := range ct.tileSets {
			if owner, exists := rs.byTileSet[tileSet]; exists {
				return nil, fmt.Errorf("%w: %q is used by %s and %s", ErrTileSetClaimed, tileSet, owner.Name, ct.Name)
			}
			rs.byTileSet[tileSet] = ct
		}
	}

	return rs, nil
}

// Types returns every cliff type in load order
func (rs *RuleSet) Types() []*Type {
	if rs == nil {
		return nil
	}
	return rs.types
}

// TypeByName returns the cliff type with the given name
func (rs *RuleSet) TypeByName(name string) (*Type, bool) {
	if rs == nil {
		return nil, false
	}
	ct, ok := rs.byName[name]
	return ct, ok
}

// TypeForTileSet returns the cliff type governing a tile set, if any.
func (rs *RuleSet) TypeForTileSet(tileSet string) (*Type, bool) {
	if rs == nil {
		return nil, false
	}
	ct, ok := rs.byTileSet[tileSet]
	return ct, ok
}

// Lookup resolves a physical tile to its cliff tile and type.
func (rs *RuleSet) Lookup(ref TileRef) (*Tile, *Type, bool) {
	ct, ok := rs.TypeForTileSet(ref.TileSet)
	if !ok {
		return nil, nil, false
	}
	tile, ok := ct.Lookup(ref)
	if !ok {
		return nil, ct, false
	}
	return tile, ct, true
}

// SameCliffType returns true if both tiles come from tile sets of the same
// cliff type. Tiles whose tile set has no cliff type never match.
func (rs *RuleSet) SameCliffType(a, b TileRef) bool {
	first, ok := rs.TypeForTileSet(a.TileSet)
	if !ok {
		return false
	}
	second, ok := rs.TypeForTileSet(b.TileSet)
	if !ok {
		return false
	}
	return first == second
}

// TileSets returns every tile set covered by a cliff type, sorted by name.
func (rs *RuleSet) TileSets() []string {
	if rs == nil {
		return nil
	}
	names := make([]string, 0, len(rs.byTileSet))
	for name := range rs.byTileSet {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TileCount returns the total number of cliff tiles across all types
func (rs *RuleSet) TileCount() int {
	count := 0
	for _, ct := range rs.Types() {
		count += len(ct.Tiles)
	}
	return count
}
