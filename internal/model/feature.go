package model

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// GeometryKind identifies the geometry family shared by every feature in a layer.
type GeometryKind string

// Supported geometry kinds. Shapefiles hold a single kind per file.
const (
	KindPoint      GeometryKind = "Point"
	KindMultiPoint GeometryKind = "MultiPoint"
	KindLine       GeometryKind = "LineString"
	KindPolygon    GeometryKind = "Polygon"
)

// FieldType mirrors the single-byte DBF field type.
type FieldType byte

// DBF field types understood by the dataset layer.
const (
	FieldCharacter FieldType = 'C'
	FieldNumeric   FieldType = 'N'
	FieldFloat     FieldType = 'F'
	FieldDate      FieldType = 'D'
	FieldLogical   FieldType = 'L'
)

// MaxFieldSize is the widest value a DBF field can hold.
const MaxFieldSize = 254

// Field describes one attribute column.
type Field struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	Size      int       `json:"size"`
	Precision int       `json:"precision"`
}

// Feature is one spatial record. Values are the raw attribute strings in the
// order of the owning collection's Fields. Geometry is nil for null shapes.
type Feature struct {
	Geometry geom.T
	Values   []string
}

// Collection is a whole vector layer held in memory.
type Collection struct {
	Kind     GeometryKind
	Layout   geom.Layout
	SRID     int
	Fields   []Field
	Features []*Feature
}

// FieldIndex returns the position of the named field, or -1. Exact matches
// win over case-insensitive ones.
func (c *Collection) FieldIndex(name string) int {
	fold := -1
	for i, f := range c.Fields {
		if f.Name == name {
			return i
		}
		if fold < 0 && strings.EqualFold(f.Name, name) {
			fold = i
		}
	}
	return fold
}

// AddField appends a field and an empty value to every feature. It returns the
// new field's index.
func (c *Collection) AddField(f Field) int {
	c.Fields = append(c.Fields, f)
	for _, feat := range c.Features {
		feat.Values = append(feat.Values, "")
	}
	return len(c.Fields) - 1
}

// Value returns the raw value at field index i, or "" when out of range.
func (f *Feature) Value(i int) string {
	if i < 0 || i >= len(f.Values) {
		return ""
	}
	return f.Values[i]
}

// Properties returns the feature's attributes keyed by field name, typed
// according to each field's DBF type.
func (c *Collection) Properties(f *Feature) map[string]any {
	props := make(map[string]any, len(c.Fields))
	for i, field := range c.Fields {
		props[field.Name] = field.Typed(f.Value(i))
	}
	return props
}

// Typed converts a raw DBF value into the JSON-friendly value for the field.
// Values that do not parse for their declared type are returned unchanged.
func (fl Field) Typed(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	switch fl.Type {
	case FieldNumeric, FieldFloat:
		if fl.Precision == 0 {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return n
			}
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	case FieldLogical:
		switch raw {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		case "?":
			return nil
		}
	case FieldDate:
		if len(raw) == 8 && isDigits(raw) {
			return raw[0:4] + "-" + raw[4:6] + "-" + raw[6:8]
		}
	}
	return raw
}

// Accepts reports whether raw can be stored in the field without changing its
// type.
func (fl Field) Accepts(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	switch fl.Type {
	case FieldNumeric, FieldFloat:
		_, err := strconv.ParseFloat(raw, 64)
		return err == nil
	case FieldDate:
		return len(raw) == 8 && isDigits(raw)
	case FieldLogical:
		return len(raw) == 1 && strings.ContainsAny(raw, "TtFfYyNn?")
	default:
		return true
	}
}

// Matches reports whether a stored value of the field identifies the same
// record as requested. Numeric fields compare by value, so "42" matches
// "42.0". Every other type compares the trimmed text exactly.
func (fl Field) Matches(stored, requested string) bool {
	a, b := strings.TrimSpace(stored), strings.TrimSpace(requested)
	if a == b {
		return true
	}
	if fl.Type != FieldNumeric && fl.Type != FieldFloat {
		return false
	}
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && x == y
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
