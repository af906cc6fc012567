package prompt

import (
	"math"
	"sort"
	"strconv"

	"github.com/teranos/promptc/errors"
)

// Recognized .swap() option keys
const (
	OptionSStart       = "s_start"
	OptionSEnd         = "s_end"
	OptionTStart       = "t_start"
	OptionTEnd         = "t_end"
	OptionShapeFreedom = "shape_freedom"
	OptionWeight       = "weight"
)

// DefaultSEnd is 1 - 0.5^(1/3), the s_end implied by shape_freedom=0.5.
const DefaultSEnd = 0.2062994740159002

var optionDefaults = map[string]float64{
	OptionSStart: 0,
	OptionSEnd:   DefaultSEnd,
	OptionTStart: 0,
	OptionTEnd:   1,
}

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueFloat ValueKind = iota
	ValueString
	ValueBool
)

func (k ValueKind) String() string {
	switch k {
	case ValueFloat:
		return "float"
	case ValueString:
		return "string"
	case ValueBool:
		return "bool"
	}
	return "unknown"
}

// Value is an option value: a float, a string or a bool.
type Value struct {
	kind ValueKind
	f    float64
	s    string
	b    bool
}

func FloatValue(f float64) Value { return Value{kind: ValueFloat, f: f} }
func StringValue(s string) Value { return Value{kind: ValueString, s: s} }
func BoolValue(b bool) Value     { return Value{kind: ValueBool, b: b} }
func (v Value) Kind() ValueKind  { return v.kind }

// Float returns the float variant, ok is false for other kinds.
func (v Value) Float() (float64, bool) { return v.f, v.kind == ValueFloat }

// Str returns the string variant, ok is false for other kinds.
func (v Value) Str() (string, bool) { return v.s, v.kind == ValueString }

// Bool returns the bool variant, ok is false for other kinds.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == ValueBool }

// Interface returns the held value as float64, string or bool.
func (v Value) Interface() interface{} {
	switch v.kind {
	case ValueString:
		return v.s
	case ValueBool:
		return v.b
	default:
		return v.f
	}
}

func (v Value) String() string {
	switch v.kind {
	case ValueString:
		return v.s
	case ValueBool:
		return strconv.FormatBool(v.b)
	default:
		return formatWeight(v.f)
	}
}

// Options holds .swap() options. Build it with NewOptions so shape_freedom is converted.
type Options map[string]Value

// NewOptions validates raw and converts shape_freedom into s_end.
// The input map is not modified.
func NewOptions(raw map[string]Value) (Options, error) {
	opts := make(Options, len(raw))
	for k, v := range raw {
		opts[k] = v
	}

	for key := range optionDefaults {
		v, ok := opts[key]
		if !ok {
			continue
		}
		f, isFloat := v.Float()
		if !isFloat || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.Wrapf(errors.ErrInvalidOption, "%s must be a number, got %s %q", key, v.Kind(), v.String())
		}
	}

	if v, ok := opts[OptionShapeFreedom]; ok {
		sf, isFloat := v.Float()
		if !isFloat {
			return nil, errors.Wrapf(errors.ErrInvalidOption, "shape_freedom must be a number, got %s %q", v.Kind(), v.String())
		}
		if math.IsNaN(sf) || sf < 0 || sf > 1 {
			return nil, errors.WithHint(
				errors.Wrapf(errors.ErrInvalidOption, "shape_freedom must be between 0 and 1, got %v", sf),
				"0 keeps the original shape, 1 lets the edit change it freely")
		}
		opts[OptionSEnd] = FloatValue(1 - math.Pow(sf, 1.0/3))
		delete(opts, OptionShapeFreedom)
	}
	return opts, nil
}

// Get returns the raw value for key.
func (o Options) Get(key string) (Value, bool) {
	v, ok := o[key]
	return v, ok
}

// Float returns the float stored under key, or the built-in default for the
// s_/t_ keys, or def.
func (o Options) Float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		if f, ok := v.Float(); ok {
			return f
		}
	}
	if d, ok := optionDefaults[key]; ok {
		return d
	}
	return def
}

// Flag reports whether a bare flag (or key=true) was given.
func (o Options) Flag(key string) bool {
	b, ok := o[key].Bool()
	return ok && b
}

func (o Options) SStart() float64 { return o.Float(OptionSStart, 0) }
func (o Options) SEnd() float64   { return o.Float(OptionSEnd, DefaultSEnd) }
func (o Options) TStart() float64 { return o.Float(OptionTStart, 0) }
func (o Options) TEnd() float64   { return o.Float(OptionTEnd, 1) }

// Keys returns the option keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a plain map for encoding.
func (o Options) Map() map[string]interface{} {
	if len(o) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(o))
	for k, v := range o {
		m[k] = v.Interface()
	}
	return m
}
