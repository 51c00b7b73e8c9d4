package cliff

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidMask is returned for mask strings that are not 8-bit binary numbers.
var ErrInvalidMask = errors.New("cliff: invalid connection mask")

// PointYAML for YAML parsing
type PointYAML struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// ConnectionPointYAML for YAML parsing.
// The open directions are given by name, as a binary mask string whose
// rightmost digit is north, or both (the union is used).
type ConnectionPointYAML struct {
	Side                    string    `yaml:"side"`
	Directions              []string  `yaml:"directions"`
	Mask                    string    `yaml:"mask"`
	ReversedMask            string    `yaml:"reversed_mask"` // optional, checked against the derived mask
	Offset                  PointYAML `yaml:"offset"`
	ForbiddenTiles          []int     `yaml:"forbidden_tiles"`
	RequiredTiles           []int     `yaml:"required_tiles"`
	IgnoreForbiddenInFilter bool      `yaml:"ignore_forbidden_in_filter"`
}

// TileDefinition for YAML parsing
type TileDefinition struct {
	Index                   int                   `yaml:"index"`
	TileSet                 string                `yaml:"tile_set"`
	IndicesInTileSet        []int                 `yaml:"indices_in_tile_set"`
	IsEnding                bool                  `yaml:"is_ending"`
	AllowRepeatSelfInFilter bool                  `yaml:"allow_repeat_self_in_filter"`
	ConnectionPoints        []ConnectionPointYAML `yaml:"connection_points"`
}

// TypeDefinition for YAML parsing
type TypeDefinition struct {
	Name string `yaml:"name"`

	// TileSet is the default tile set for tiles that do not name one.
	TileSet string           `yaml:"tile_set"`
	Tiles   []TileDefinition `yaml:"tiles"`
}

// RulesConfig represents the cliffs.yaml structure
type RulesConfig struct {
	CliffTypes []TypeDefinition `yaml:"cliff_types"`
}

// LoadRulesFromYAML reads a cliffs.yaml file and builds the rule set
func LoadRulesFromYAML(filename string) (*RuleSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read cliffs file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses cliffs YAML and builds the rule set
func ParseRules(data []byte) (*RuleSet, error) {
	var config RulesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse cliffs YAML: %w", err)
	}
	return config.Build()
}

// Build converts the YAML definitions into an indexed RuleSet
func (config *RulesConfig) Build() (*RuleSet, error) {
	types := make([]*Type, 0, len(config.CliffTypes))
	for _, def := range config.CliffTypes {
		ct, err := createTypeFromDefinition(&def)
		if err != nil {
			return nil, err
		}
		types = append(types, ct)
	}
	return NewRuleSet(types...)
}

// createTypeFromDefinition converts a YAML definition to a Type
func createTypeFromDefinition(def *TypeDefinition) (*Type, error) {
	tiles := make([]*Tile, 0, len(def.Tiles))
	for _, tileDef := range def.Tiles {
		tileSet := tileDef.TileSet
		if tileSet == "" {
			tileSet = def.TileSet
		}

		points := make([]ConnectionPoint, 0, len(tileDef.ConnectionPoints))
		for i, cpDef := range tileDef.ConnectionPoints {
			cp, err := createConnectionPoint(&cpDef)
			if err != nil {
				return nil, fmt.Errorf("%s tile %d connection point %d: %w", def.Name, tileDef.Index, i, err)
			}
			points = append(points, cp)
		}

		tiles = append(tiles, &Tile{
			Index:                   TileIndex(tileDef.Index),
			TileSet:                 tileSet,
			IndicesInTileSet:        tileDef.IndicesInTileSet,
			ConnectionPoints:        points,
			IsEnding:                tileDef.IsEnding,
			AllowRepeatSelfInFilter: tileDef.AllowRepeatSelfInFilter,
		})
	}

	return NewType(def.Name, tiles)
}

// createConnectionPoint converts a YAML connection point, deriving the reversed mask
func createConnectionPoint(def *ConnectionPointYAML) (ConnectionPoint, error) {
	var mask Mask
	for _, name := range def.Directions {
		d, err := ParseDirection(name)
		if err != nil {
			return ConnectionPoint{}, err
		}
		mask |= MaskOf(d)
	}

	if def.Mask != "" {
		m, err := ParseMask(def.Mask)
		if err != nil {
			return ConnectionPoint{}, err
		}
		mask |= m
	}

	side := Side(strings.ToLower(strings.TrimSpace(def.Side)))
	if side == "" {
		side = SideFront
	}

	cp := NewConnectionPoint(side, mask, Point{X: def.Offset.X, Y: def.Offset.Y})
	cp.ForbiddenTiles = toTileIndices(def.ForbiddenTiles)
	cp.RequiredTiles = toTileIndices(def.RequiredTiles)
	cp.IgnoreForbiddenInFilter = def.IgnoreForbiddenInFilter

	if def.ReversedMask != "" {
		reversed, err := ParseMask(def.ReversedMask)
		if err != nil {
			return ConnectionPoint{}, err
		}
		cp.ReversedMask = reversed
		if err := cp.Validate(); err != nil {
			return ConnectionPoint{}, err
		}
	}

	return cp, nil
}

// ParseMask parses a binary mask string such as "00000100" (east).
// The rightmost digit is north.
func ParseMask(s string) (Mask, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0b")
	if trimmed == "" || len(trimmed) > int(DirectionCount) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMask, s)
	}
	v, err := strconv.ParseUint(trimmed, 2, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMask, s)
	}
	return Mask(v), nil
}

func toTileIndices(values []int) []TileIndex {
	if len(values) == 0 {
		return nil
	}
	indices := make([]TileIndex, len(values))
	for i, v := range values {
		indices[i] = TileIndex(v)
	}
	return indices
}
