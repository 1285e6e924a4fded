package value

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Values are encoded in externally tagged form: a single-entry map from the
// variant name to its payload, e.g. {"Int": 42} or {"IntList": [1, 2, 3]}.
// The same shape is used for JSON, YAML and CBOR.

// ErrInvalidValue is returned when encoding the zero Value.
var ErrInvalidValue = errors.New("value: invalid value")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("value: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// payload returns the Go value carried under the variant tag.
func (v Value) payload() any {
	switch v.kind {
	case KindInt:
		return v.ints[0]
	case KindFloat:
		return v.floats[0]
	case KindString:
		return v.strings[0]
	case KindIntList:
		return nonNil(v.ints)
	case KindFloatList:
		return nonNil(v.floats)
	case KindStringList:
		return nonNil(v.strings)
	}
	return nil
}

func (v Value) tagged() (map[string]any, error) {
	if !v.IsValid() {
		return nil, ErrInvalidValue
	}
	return map[string]any{v.kind.String(): v.payload()}, nil
}

// decodePayload builds a Value of the given kind, filling the payload with
// decode (a format-specific unmarshal into the pointer it is given).
func decodePayload(kind Kind, decode func(dst any) error) (Value, error) {
	switch kind {
	case KindInt:
		var x int32
		if err := decode(&x); err != nil {
			return Value{}, err
		}
		return Int(x), nil
	case KindFloat:
		var x float32
		if err := decode(&x); err != nil {
			return Value{}, err
		}
		return Float(x), nil
	case KindString:
		var x string
		if err := decode(&x); err != nil {
			return Value{}, err
		}
		return String(x), nil
	case KindIntList:
		var xs []int32
		if err := decode(&xs); err != nil {
			return Value{}, err
		}
		return IntList(xs...), nil
	case KindFloatList:
		var xs []float32
		if err := decode(&xs); err != nil {
			return Value{}, err
		}
		return FloatList(xs...), nil
	case KindStringList:
		var xs []string
		if err := decode(&xs); err != nil {
			return Value{}, err
		}
		return StringList(xs...), nil
	}
	return Value{}, fmt.Errorf("value: unknown kind %s", kind)
}

// singleTag extracts the one variant entry of an externally tagged map.
func singleTag[T any](m map[string]T) (Kind, T, error) {
	var zero T
	if len(m) != 1 {
		return KindInvalid, zero, fmt.Errorf("value: expected exactly one variant tag, got %d", len(m))
	}
	for name, payload := range m {
		kind, ok := kindByName(name)
		if !ok {
			return KindInvalid, zero, fmt.Errorf("value: unknown variant %q", name)
		}
		return kind, payload, nil
	}
	return KindInvalid, zero, nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	m, err := v.tagged()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	kind, raw, err := singleTag(m)
	if err != nil {
		return err
	}
	decoded, err := decodePayload(kind, func(dst any) error { return json.Unmarshal(raw, dst) })
	if err != nil {
		return fmt.Errorf("value: decode %s payload: %w", kind, err)
	}
	*v = decoded
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.tagged()
}

// UnmarshalYAML implements yaml.Unmarshaler. Besides the tagged form, a
// plain YAML scalar is accepted and mapped by its resolved tag: !!int to
// Int, !!float to Float, anything else to String.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var kind Kind
		switch node.ShortTag() {
		case "!!int":
			kind = KindInt
		case "!!float":
			kind = KindFloat
		default:
			kind = KindString
		}
		decoded, err := decodePayload(kind, node.Decode)
		if err != nil {
			return fmt.Errorf("value: line %d: %w", node.Line, err)
		}
		*v = decoded
		return nil
	}

	var m map[string]yaml.Node
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("value: line %d: %w", node.Line, err)
	}
	kind, payload, err := singleTag(m)
	if err != nil {
		return err
	}
	decoded, err := decodePayload(kind, payload.Decode)
	if err != nil {
		return fmt.Errorf("value: line %d: decode %s payload: %w", node.Line, kind, err)
	}
	*v = decoded
	return nil
}

// MarshalCBOR implements cbor.Marshaler using canonical encoding, so equal
// values always produce identical bytes.
func (v Value) MarshalCBOR() ([]byte, error) {
	m, err := v.tagged()
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(m)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var m map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	kind, raw, err := singleTag(m)
	if err != nil {
		return err
	}
	decoded, err := decodePayload(kind, func(dst any) error { return cbor.Unmarshal(raw, dst) })
	if err != nil {
		return fmt.Errorf("value: decode %s payload: %w", kind, err)
	}
	*v = decoded
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
