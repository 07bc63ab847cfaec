package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType is the data type a property's values are interpreted as.
type ValueType uint8

const (
	TypeString ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Component is a detection category such as hardware, browser or platform.
// Its position in Dataset.Components is the slot it occupies in a device-id.
type Component struct {
	Index            int
	Name             string
	DefaultProfileID int32

	firstProfile int32
	profileCount int32
	properties   []int
}

// ProfileCount returns the number of profiles owned by the component.
func (c *Component) ProfileCount() int { return int(c.profileCount) }

// PropertyIndices returns the indices of the properties the component owns,
// in dataset order.
func (c *Component) PropertyIndices() []int { return c.properties }

// Property is a named attribute whose values are supplied by the profiles
// of exactly one component.
type Property struct {
	Index          int
	Name           string
	Description    string
	Category       string
	Type           ValueType
	Mandatory      bool
	List           bool
	ComponentIndex int

	firstValue int32
	valueCount int32
}

// ValueCount returns the number of distinct values the dataset holds for p.
func (p *Property) ValueCount() int { return int(p.valueCount) }

// owns reports whether the value index belongs to p.
func (p *Property) owns(valueIndex int32) bool {
	return valueIndex >= p.firstValue && valueIndex < p.firstValue+p.valueCount
}

// Value is one literal a property can take.
type Value struct {
	Index         int32
	PropertyIndex int
	Name          string
	Weight        int32
}

func (v *Value) String() string { return v.Name }

// Values is an ordered list of values for one property. A nil or empty
// Values means the property has no value for the profile it came from.
type Values []*Value

// Strings returns the value names in order.
func (vs Values) Strings() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}

// String joins the value names with "|".
func (vs Values) String() string {
	return strings.Join(vs.Strings(), "|")
}

// Bool interprets the first value as a boolean.
func (vs Values) Bool() (bool, error) {
	if len(vs) == 0 {
		return false, ErrNoValue
	}
	b, err := strconv.ParseBool(vs[0].Name)
	if err != nil {
		return false, fmt.Errorf("%w: %q as bool", ErrInvalidValue, vs[0].Name)
	}
	return b, nil
}

// Int interprets the first value as an integer.
func (vs Values) Int() (int64, error) {
	if len(vs) == 0 {
		return 0, ErrNoValue
	}
	n, err := strconv.ParseInt(vs[0].Name, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q as int", ErrInvalidValue, vs[0].Name)
	}
	return n, nil
}

// Float interprets the first value as a floating point number.
func (vs Values) Float() (float64, error) {
	if len(vs) == 0 {
		return 0, ErrNoValue
	}
	f, err := strconv.ParseFloat(vs[0].Name, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q as float", ErrInvalidValue, vs[0].Name)
	}
	return f, nil
}

// Profile assigns values to the properties of one component.
type Profile struct {
	ID             int32
	ComponentIndex int

	// ValueIndices is ascending, which is dataset order.
	ValueIndices     []int32
	SignatureIndices []int32
}

// Signature ties a normalized User-Agent pattern to one profile per
// component. ProfileIDs is in component order and holds 0 for every
// component the signature does not resolve.
type Signature struct {
	Index       int32
	Rank        int32
	Key         string
	ProfileIDs  []int32
	NodeIndices []int32
	NodeChars   int32
}

// Node is a position-anchored token shared by one or more signatures.
type Node struct {
	Index            int32
	Position         int32
	Text             string
	SignatureIndices []int32
}

// PropertyValues is a property name with its values rendered as strings.
type PropertyValues struct {
	Property string
	Values   []string
}
