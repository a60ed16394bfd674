package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Constraint is the state of one displacement component of a boundary node
type Constraint uint8

const (
	Free Constraint = iota
	Fixed
)

// String returns the configuration name of the constraint
func (c Constraint) String() string {
	switch c {
	case Free:
		return "free"
	case Fixed:
		return "fixed"
	}
	return "unknown"
}

// Flag returns the solver boundary condition flag: -1 restrained, 0 free
func (c Constraint) Flag() int {
	if c == Fixed {
		return -1
	}
	return 0
}

// ParseConstraint converts "fixed" or "free" (case-insensitive) to a Constraint
func ParseConstraint(name string) (Constraint, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "free", "":
		return Free, nil
	case "fixed":
		return Fixed, nil
	}
	return Free, fmt.Errorf("invalid constraint %q: must be 'fixed' or 'free'", name)
}

func (c Constraint) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *Constraint) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseConstraint(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = parsed
	return nil
}

// Canonical boundary location names
const (
	Left   = "left"
	Right  = "right"
	Top    = "top"
	Bottom = "bottom"
)

// Location identifies a boundary either by edge name or by explicit
// [x1, y1, x2, y2] line coordinates.
type Location struct {
	Edge   string
	Coords []float64
}

// EdgeLocation returns a named-edge location
func EdgeLocation(name string) Location {
	return Location{Edge: name}
}

// IsEdge reports whether the location is given by name
func (l Location) IsEdge() bool {
	return l.Coords == nil
}

// String returns the edge name or the coordinate list
func (l Location) String() string {
	if l.IsEdge() {
		return l.Edge
	}
	return fmt.Sprintf("%v", l.Coords)
}

func (l Location) MarshalYAML() (interface{}, error) {
	if l.IsEdge() {
		return l.Edge, nil
	}
	node := &yaml.Node{}
	if err := node.Encode(l.Coords); err != nil {
		return nil, err
	}
	node.Style = yaml.FlowStyle
	return node, nil
}

func (l *Location) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		l.Coords = nil
		return value.Decode(&l.Edge)
	case yaml.SequenceNode:
		var coords []float64
		if err := value.Decode(&coords); err != nil {
			return fmt.Errorf("line %d: location coordinates: %w", value.Line, err)
		}
		if coords == nil {
			coords = []float64{}
		}
		l.Edge, l.Coords = "", coords
		return nil
	}
	return fmt.Errorf("line %d: location must be an edge name or a coordinate list", value.Line)
}

// geometry document layouts, one per variant, flattened under a type key
type rectangleDoc struct {
	Type      GeometryKind `yaml:"type"`
	Rectangle `yaml:",inline"`
}

type lshapeDoc struct {
	Type   GeometryKind `yaml:"type"`
	LShape `yaml:",inline"`
}

type plateWithHoleDoc struct {
	Type          GeometryKind `yaml:"type"`
	PlateWithHole `yaml:",inline"`
}

var geometryKeys = map[GeometryKind][]string{
	KindRectangle:     {"type", "length", "height"},
	KindLShape:        {"type", "width", "height", "flange_width", "flange_height"},
	KindPlateWithHole: {"type", "length", "height", "hole_x", "hole_y", "hole_radius"},
}

func (g Geometry) MarshalYAML() (interface{}, error) {
	switch g.Kind {
	case KindRectangle:
		if g.Rectangle != nil {
			return rectangleDoc{Type: g.Kind, Rectangle: *g.Rectangle}, nil
		}
	case KindLShape:
		if g.LShape != nil {
			return lshapeDoc{Type: g.Kind, LShape: *g.LShape}, nil
		}
	case KindPlateWithHole:
		if g.PlateWithHole != nil {
			return plateWithHoleDoc{Type: g.Kind, PlateWithHole: *g.PlateWithHole}, nil
		}
	}
	return nil, fmt.Errorf("geometry %q has no parameters", g.Kind)
}

func (g *Geometry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: geometry must be a mapping", value.Line)
	}
	var head struct {
		Type GeometryKind `yaml:"type"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}
	if head.Type == "" {
		head.Type = KindRectangle
	}
	allowed, ok := geometryKeys[head.Type]
	if !ok {
		return fmt.Errorf("line %d: unknown geometry type %q", value.Line, head.Type)
	}
	if err := checkKeys(value, allowed); err != nil {
		return err
	}

	*g = Geometry{Kind: head.Type}
	switch head.Type {
	case KindRectangle:
		g.Rectangle = &Rectangle{}
		return value.Decode(g.Rectangle)
	case KindLShape:
		g.LShape = &LShape{}
		return value.Decode(g.LShape)
	default:
		g.PlateWithHole = &PlateWithHole{}
		return value.Decode(g.PlateWithHole)
	}
}

// checkKeys rejects mapping keys outside the allowed set
func checkKeys(value *yaml.Node, allowed []string) error {
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		found := false
		for _, a := range allowed {
			if key.Value == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("line %d: field %s not allowed here", key.Line, key.Value)
		}
	}
	return nil
}
