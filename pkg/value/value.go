// Package value provides the values that travel through a network.
//
// A Value is either a scalar (Int, Float, String) or a list of one of those
// scalars. Lists are logically infinite: reading element i of a list of
// length L returns element i mod L, and a scalar reads like a list of
// length one. This is what lets node operations broadcast over operands of
// different lengths.
//
// Values are immutable. Constructors copy their input and accessors that
// return slices return copies.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindIntList
	KindFloatList
	KindStringList
)

var kindNames = [...]string{
	KindInvalid:    "Invalid",
	KindInt:        "Int",
	KindFloat:      "Float",
	KindString:     "String",
	KindIntList:    "IntList",
	KindFloatList:  "FloatList",
	KindStringList: "StringList",
}

// String returns the variant name, e.g. "IntList".
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsList reports whether the kind is one of the list variants.
func (k Kind) IsList() bool {
	return k == KindIntList || k == KindFloatList || k == KindStringList
}

// kindByName is the reverse of kindNames, used by the codecs.
func kindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if k != int(KindInvalid) && n == name {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// Value is a tagged scalar/list union. The zero Value is invalid.
//
// Scalars are stored as a one-element sequence so that indexing is uniform
// across all variants; only the sequence matching the kind is populated.
type Value struct {
	kind    Kind
	ints    []int32
	floats  []float32
	strings []string
}

// Int returns a scalar integer value.
func Int(v int32) Value {
	return Value{kind: KindInt, ints: []int32{v}}
}

// Float returns a scalar float value.
func Float(v float32) Value {
	return Value{kind: KindFloat, floats: []float32{v}}
}

// String returns a scalar string value.
func String(v string) Value {
	return Value{kind: KindString, strings: []string{v}}
}

// IntList returns an integer list holding a copy of vs.
func IntList(vs ...int32) Value {
	return Value{kind: KindIntList, ints: append(make([]int32, 0, len(vs)), vs...)}
}

// FloatList returns a float list holding a copy of vs.
func FloatList(vs ...float32) Value {
	return Value{kind: KindFloatList, floats: append(make([]float32, 0, len(vs)), vs...)}
}

// StringList returns a string list holding a copy of vs.
func StringList(vs ...string) Value {
	return Value{kind: KindStringList, strings: append(make([]string, 0, len(vs)), vs...)}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a variant.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// IsList reports whether v is a list variant.
func (v Value) IsList() bool { return v.kind.IsList() }

// IsNumeric reports whether v holds ints or floats.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case KindInt, KindFloat, KindIntList, KindFloatList:
		return true
	}
	return false
}

// Len returns 1 for scalars and the number of elements for lists.
func (v Value) Len() int {
	switch v.kind {
	case KindInt, KindFloat, KindString:
		return 1
	case KindIntList:
		return len(v.ints)
	case KindFloatList:
		return len(v.floats)
	case KindStringList:
		return len(v.strings)
	}
	return 0
}

// GetInt returns element i mod Len() as an integer. Floats are truncated,
// strings read as 0, and an empty list reads as 0.
func (v Value) GetInt(i int) int32 {
	switch v.kind {
	case KindInt, KindIntList:
		if len(v.ints) == 0 {
			return 0
		}
		return v.ints[wrap(i, len(v.ints))]
	case KindFloat, KindFloatList:
		if len(v.floats) == 0 {
			return 0
		}
		return int32(v.floats[wrap(i, len(v.floats))])
	}
	return 0
}

// GetFloat returns element i mod Len() as a float. Strings read as 0.
func (v Value) GetFloat(i int) float32 {
	switch v.kind {
	case KindInt, KindIntList:
		if len(v.ints) == 0 {
			return 0
		}
		return float32(v.ints[wrap(i, len(v.ints))])
	case KindFloat, KindFloatList:
		if len(v.floats) == 0 {
			return 0
		}
		return v.floats[wrap(i, len(v.floats))]
	}
	return 0
}

// GetString returns element i mod Len() as text. Numbers are formatted in
// decimal.
func (v Value) GetString(i int) string {
	switch v.kind {
	case KindInt, KindIntList:
		if len(v.ints) == 0 {
			return ""
		}
		return strconv.FormatInt(int64(v.ints[wrap(i, len(v.ints))]), 10)
	case KindFloat, KindFloatList:
		if len(v.floats) == 0 {
			return ""
		}
		return strconv.FormatFloat(float64(v.floats[wrap(i, len(v.floats))]), 'g', -1, 32)
	case KindString, KindStringList:
		if len(v.strings) == 0 {
			return ""
		}
		return v.strings[wrap(i, len(v.strings))]
	}
	return ""
}

// Ints returns a copy of the integer elements of an Int or IntList value,
// or nil for other kinds.
func (v Value) Ints() []int32 {
	if v.kind != KindInt && v.kind != KindIntList {
		return nil
	}
	return append([]int32(nil), v.ints...)
}

// Floats returns a copy of the float elements of a Float or FloatList
// value, or nil for other kinds.
func (v Value) Floats() []float32 {
	if v.kind != KindFloat && v.kind != KindFloatList {
		return nil
	}
	return append([]float32(nil), v.floats...)
}

// Strings returns a copy of the elements of a String or StringList value,
// or nil for other kinds.
func (v Value) Strings() []string {
	if v.kind != KindString && v.kind != KindStringList {
		return nil
	}
	return append([]string(nil), v.strings...)
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	return Value{
		kind:    v.kind,
		ints:    cloneSlice(v.ints),
		floats:  cloneSlice(v.floats),
		strings: cloneSlice(v.strings),
	}
}

// Equal reports whether v and other have the same kind and elements.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	return sliceEqual(v.ints, other.ints) &&
		sliceEqual(v.floats, other.floats) &&
		sliceEqual(v.strings, other.strings)
}

// String renders v as Kind(payload), e.g. Int(42) or IntList([1, 2, 3]).
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("Int(%d)", v.ints[0])
	case KindFloat:
		return fmt.Sprintf("Float(%s)", v.GetString(0))
	case KindString:
		return fmt.Sprintf("String(%q)", v.strings[0])
	case KindIntList, KindFloatList, KindStringList:
		parts := make([]string, v.Len())
		for i := range parts {
			if v.kind == KindStringList {
				parts[i] = strconv.Quote(v.strings[i])
			} else {
				parts[i] = v.GetString(i)
			}
		}
		return fmt.Sprintf("%s([%s])", v.kind, strings.Join(parts, ", "))
	}
	return "Invalid"
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func sliceEqual[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
