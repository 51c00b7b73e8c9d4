package cliff

import (
	"fmt"
	"strings"
)

// Direction represents one of the eight compass directions on the map grid.
// The numeric value is also the bit position of the direction in a Mask.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest

	// DirectionCount is the number of directions in the set.
	DirectionCount
)

// String returns the short compass name of a Direction
func (d Direction) String() string {
	switch d {
	case North:
		return "n"
	case NorthEast:
		return "ne"
	case East:
		return "e"
	case SouthEast:
		return "se"
	case South:
		return "s"
	case SouthWest:
		return "sw"
	case West:
		return "w"
	case NorthWest:
		return "nw"
	default:
		return "unknown"
	}
}

// Valid reports whether d is one of the eight compass directions.
func (d Direction) Valid() bool {
	return d >= North && d < DirectionCount
}

// Opposite returns the geometrically opposite direction
func (d Direction) Opposite() Direction {
	if !d.Valid() {
		return d
	}
	return (d + DirectionCount/2) % DirectionCount
}

// Offset returns the unit cell step for the direction. Map cells are laid out
// isometrically, so visual north is one step back on both axes.
func (d Direction) Offset() Point {
	switch d {
	case North:
		return Point{X: -1, Y: -1}
	case NorthEast:
		return Point{X: 0, Y: -1}
	case East:
		return Point{X: 1, Y: -1}
	case SouthEast:
		return Point{X: 1, Y: 0}
	case South:
		return Point{X: 1, Y: 1}
	case SouthWest:
		return Point{X: 0, Y: 1}
	case West:
		return Point{X: -1, Y: 1}
	case NorthWest:
		return Point{X: -1, Y: 0}
	default:
		return Point{}
	}
}

// AllDirections returns the eight directions in bit order
func AllDirections() []Direction {
	return []Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}
}

// IsReverseDirection returns true if a and b point in opposite directions.
func IsReverseDirection(a, b Direction) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return a.Opposite() == b
}

// ParseDirection converts a direction name ("n", "north", "NE", "south_west", ...)
// to a Direction.
func ParseDirection(s string) (Direction, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.NewReplacer("_", "", "-", "", " ", "").Replace(name)

	switch name {
	case "n", "north":
		return North, nil
	case "ne", "northeast":
		return NorthEast, nil
	case "e", "east":
		return East, nil
	case "se", "southeast":
		return SouthEast, nil
	case "s", "south":
		return South, nil
	case "sw", "southwest":
		return SouthWest, nil
	case "w", "west":
		return West, nil
	case "nw", "northwest":
		return NorthWest, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
}

// Mask is a set of open directions. Bit i is set when Direction(i) is open.
type Mask uint8

// MaskOf builds a Mask from a list of directions. Invalid directions are ignored.
func MaskOf(dirs ...Direction) Mask {
	var m Mask
	for _, d := range dirs {
		if d.Valid() {
			m |= 1 << uint(d)
		}
	}
	return m
}

// Has returns true if the direction is open in the mask
func (m Mask) Has(d Direction) bool {
	if !d.Valid() {
		return false
	}
	return m&(1<<uint(d)) != 0
}

// Directions returns every direction set in the mask, in bit order.
func (m Mask) Directions() []Direction {
	dirs := make([]Direction, 0, DirectionCount)
	for _, d := range AllDirections() {
		if m.Has(d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// Overlaps returns true if the two masks share at least one direction.
func (m Mask) Overlaps(other Mask) bool {
	return m&other != 0
}

// Reversed returns the mask with every open direction turned to its opposite.
// With eight directions this is a rotation by four bits.
func (m Mask) Reversed() Mask {
	return m<<(DirectionCount/2) | m>>(DirectionCount/2)
}

// String renders the mask as its direction names, e.g. "e|s".
func (m Mask) String() string {
	dirs := m.Directions()
	if len(dirs) == 0 {
		return "none"
	}
	names := make([]string, len(dirs))
	for i, d := range dirs {
		names[i] = d.String()
	}
	return strings.Join(names, "|")
}

// DirectionsInMask returns every Direction whose bit is set in mask.
func DirectionsInMask(mask Mask) []Direction {
	return mask.Directions()
}

// Point is a cell coordinate on the map grid.
type Point struct {
	X, Y int
}

// Add returns p offset by o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// String returns "x,y".
func (p Point) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}
