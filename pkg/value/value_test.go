package value

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

func TestLen(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want int
	}{
		{"int", Int(7), 1},
		{"float", Float(1.5), 1},
		{"string", String("a"), 1},
		{"int list", IntList(1, 2, 3), 3},
		{"float list", FloatList(1, 2), 2},
		{"string list", StringList("a", "b", "c", "d"), 4},
		{"empty list", IntList(), 0},
		{"zero value", Value{}, 0},
	}
	for _, tt := range tests {
		if got := tt.v.Len(); got != tt.want {
			t.Errorf("%s: Len() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestGetIntWrapsModuloLength(t *testing.T) {
	v := IntList(10, 20, 30)
	want := []int32{10, 20, 30, 10, 20, 30, 10}
	for i, w := range want {
		if got := v.GetInt(i); got != w {
			t.Errorf("GetInt(%d) = %d, want %d", i, got, w)
		}
	}
}

func TestScalarBehavesAsLengthOneList(t *testing.T) {
	v := Int(5)
	for i := 0; i < 4; i++ {
		if got := v.GetInt(i); got != 5 {
			t.Errorf("GetInt(%d) = %d, want 5", i, got)
		}
	}
}

func TestGetIntConversions(t *testing.T) {
	if got := Float(3.9).GetInt(0); got != 3 {
		t.Errorf("Float(3.9).GetInt = %d, want 3", got)
	}
	if got := FloatList(1.2, -2.7).GetInt(1); got != -2 {
		t.Errorf("FloatList.GetInt(1) = %d, want -2", got)
	}
	if got := String("12").GetInt(0); got != 0 {
		t.Errorf("String.GetInt = %d, want 0", got)
	}
	if got := IntList().GetInt(3); got != 0 {
		t.Errorf("empty IntList.GetInt = %d, want 0", got)
	}
}

func TestGetStringFormatsNumbers(t *testing.T) {
	if got := Int(-4).GetString(0); got != "-4" {
		t.Errorf("got %q", got)
	}
	if got := Float(0.5).GetString(0); got != "0.5" {
		t.Errorf("got %q", got)
	}
	if got := StringList("x", "y").GetString(3); got != "y" {
		t.Errorf("got %q", got)
	}
}

func TestConstructorsCopyInput(t *testing.T) {
	src := []int32{1, 2, 3}
	v := IntList(src...)
	src[0] = 99
	if v.GetInt(0) != 1 {
		t.Fatal("IntList aliases its input")
	}

	out := v.Ints()
	out[1] = 99
	if v.GetInt(1) != 2 {
		t.Fatal("Ints() aliases internal storage")
	}
}

func TestCloneAndEqual(t *testing.T) {
	v := StringList("a", "b")
	c := v.Clone()
	if !v.Equal(c) {
		t.Fatal("clone not equal to original")
	}
	if Int(1).Equal(IntList(1)) {
		t.Error("Int(1) should not equal IntList([1])")
	}
	if Int(1).Equal(Int(2)) {
		t.Error("Int(1) should not equal Int(2)")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Int(42), "Int(42)"},
		{Float(1.5), "Float(1.5)"},
		{String("hi"), `String("hi")`},
		{IntList(1, 2, 3), "IntList([1, 2, 3])"},
		{StringList("a"), `StringList(["a"])`},
		{Value{}, "Invalid"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// ============ Codecs ============

func TestJSONTaggedForm(t *testing.T) {
	data, err := json.Marshal(map[string]Value{"v": Int(42), "l": IntList(1, 2)})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"l":{"IntList":[1,2]},"v":{"Int":42}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var decoded map[string]Value
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !decoded["v"].Equal(Int(42)) || !decoded["l"].Equal(IntList(1, 2)) {
		t.Errorf("decoded %v", decoded)
	}
}

func TestJSONEmptyListEncodesAsArray(t *testing.T) {
	data, err := json.Marshal(IntList())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"IntList":[]}` {
		t.Errorf("got %s", data)
	}
}

func TestJSONRejectsBadTags(t *testing.T) {
	bad := []string{
		`{"Bogus": 1}`,
		`{"Int": 1, "Float": 2}`,
		`{}`,
		`{"Int": "nope"}`,
		`42`,
	}
	for _, in := range bad {
		var v Value
		if err := json.Unmarshal([]byte(in), &v); err == nil {
			t.Errorf("Unmarshal(%s) succeeded, want error", in)
		}
	}
}

func TestJSONMarshalInvalid(t *testing.T) {
	if _, err := json.Marshal(Value{}); err == nil {
		t.Error("expected error marshalling zero Value")
	}
}

func TestYAMLTaggedAndPlainScalars(t *testing.T) {
	src := `
a: {Int: 3}
b: 4
c: 2.5
d: hello
e: {StringList: [x, y]}
`
	var m map[string]Value
	if err := yaml.Unmarshal([]byte(src), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	checks := map[string]Value{
		"a": Int(3),
		"b": Int(4),
		"c": Float(2.5),
		"d": String("hello"),
		"e": StringList("x", "y"),
	}
	for k, want := range checks {
		if !m[k].Equal(want) {
			t.Errorf("%s = %v, want %v", k, m[k], want)
		}
	}
}

func TestCBORIsCanonical(t *testing.T) {
	a, err := cbor.Marshal(FloatList(1, 2.5))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	b, err := cbor.Marshal(FloatList(1, 2.5))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("encoding not deterministic")
	}

	var v Value
	if err := cbor.Unmarshal(a, &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !v.Equal(FloatList(1, 2.5)) {
		t.Errorf("decoded %v", v)
	}
}
