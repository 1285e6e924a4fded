package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/ndbx/pkg/network"
	"github.com/chazu/ndbx/pkg/value"
)

func TestNewCompiledNetwork(t *testing.T) {
	p := NewCompiledNetwork()

	if p.Version != BytecodeVersion {
		t.Errorf("Version = %d, want %d", p.Version, BytecodeVersion)
	}
	if p.CodeLen() != 0 {
		t.Errorf("CodeLen = %d, want 0", p.CodeLen())
	}
	if p.ConstantCount() != 0 {
		t.Errorf("ConstantCount = %d, want 0", p.ConstantCount())
	}
}

func TestEmitInt32IsBigEndian(t *testing.T) {
	p := NewCompiledNetwork()
	offset := p.EmitInt32(0x01020304)

	if offset != 0 {
		t.Errorf("offset = %d, want 0", offset)
	}
	want := []byte{byte(OpConstI32), 0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(p.Code, want) {
		t.Errorf("Code = % X, want % X", p.Code, want)
	}
}

func TestEmitInt32Negative(t *testing.T) {
	p := NewCompiledNetwork()
	p.EmitInt32(-1)

	want := []byte{byte(OpConstI32), 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(p.Code, want) {
		t.Errorf("Code = % X, want % X", p.Code, want)
	}
}

func TestEmitFloat32(t *testing.T) {
	p := NewCompiledNetwork()
	p.EmitFloat32(1.0)

	// 1.0 is 0x3F800000
	want := []byte{byte(OpConstF32), 0x3F, 0x80, 0x00, 0x00}
	if !bytes.Equal(p.Code, want) {
		t.Errorf("Code = % X, want % X", p.Code, want)
	}
}

func TestEmitCallNode(t *testing.T) {
	p := NewCompiledNetwork()
	p.EmitCallNode(network.KindNegate)

	want := []byte{byte(OpCallNode), 3}
	if !bytes.Equal(p.Code, want) {
		t.Errorf("Code = % X, want % X", p.Code, want)
	}
}

func TestEmitJumpAndPatch(t *testing.T) {
	p := NewCompiledNetwork()
	p.Emit(OpDup)
	placeholder := p.EmitJump(OpJump)

	if placeholder != 2 {
		t.Fatalf("placeholder = %d, want 2", placeholder)
	}
	if !bytes.Equal(p.Code[1:], []byte{byte(OpJump), 0xFF, 0xFF}) {
		t.Fatalf("unpatched jump = % X", p.Code[1:])
	}

	if err := p.PatchAddress(placeholder, 0x1234); err != nil {
		t.Fatalf("PatchAddress failed: %v", err)
	}
	if got := binary.BigEndian.Uint16(p.Code[placeholder:]); got != 0x1234 {
		t.Errorf("patched address = %04X, want 1234", got)
	}
}

func TestPatchAddressRejectsBadInput(t *testing.T) {
	p := NewCompiledNetwork()
	placeholder := p.EmitJump(OpJump)

	if err := p.PatchAddress(placeholder, MaxAddress+1); err == nil {
		t.Error("expected error for target beyond MaxAddress")
	}
	if err := p.PatchAddress(placeholder, -1); err == nil {
		t.Error("expected error for negative target")
	}
	if err := p.PatchAddress(placeholder+1, 0); err == nil {
		t.Error("expected error for placeholder running past end of code")
	}
}

func TestAddConstantDoesNotDeduplicate(t *testing.T) {
	p := NewCompiledNetwork()
	a := p.AddConstant(value.IntList(1, 2))
	b := p.AddConstant(value.IntList(1, 2))

	if a == b {
		t.Errorf("AddConstant returned the same index %d twice", a)
	}
	if p.ConstantCount() != 2 {
		t.Errorf("ConstantCount = %d, want 2", p.ConstantCount())
	}
}

func TestGetConstant(t *testing.T) {
	p := NewCompiledNetwork()
	p.AddConstant(value.String("x"))

	v, ok := p.GetConstant(0)
	if !ok || !v.Equal(value.String("x")) {
		t.Errorf("GetConstant(0) = %v, %v", v, ok)
	}
	if _, ok := p.GetConstant(1); ok {
		t.Error("GetConstant(1) should fail")
	}
	if _, ok := p.GetConstant(-1); ok {
		t.Error("GetConstant(-1) should fail")
	}
}

// samplePool builds a program with one constant of each kind.
func samplePool() *CompiledNetwork {
	p := NewCompiledNetwork()
	p.AddConstant(value.Int(-7))
	p.AddConstant(value.Float(2.5))
	p.AddConstant(value.String("héllo"))
	p.AddConstant(value.IntList(1, 2, 3))
	p.AddConstant(value.FloatList(0.5, -1))
	p.AddConstant(value.StringList("a", "", "c"))
	p.AddConstant(value.IntList())
	p.EmitInt32(3)
	p.Emit(OpValueLoad)
	p.Emit(OpEnd)
	return p
}

func TestSerializeRoundTrip(t *testing.T) {
	p := samplePool()

	data, err := p.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !bytes.HasPrefix(data, BytecodeMagic) {
		t.Errorf("serialized data does not start with magic: % X", data[:4])
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if !got.Equal(p) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", got.Constants, p.Constants)
	}
}

func TestSerializeRejectsInvalidConstant(t *testing.T) {
	p := NewCompiledNetwork()
	p.Constants = append(p.Constants, value.Value{})

	_, err := p.Serialize()
	if !errors.Is(err, value.ErrInvalidValue) {
		t.Errorf("Serialize error = %v, want ErrInvalidValue", err)
	}
}

func TestDeserializeErrors(t *testing.T) {
	good, err := samplePool().Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	newer := append([]byte(nil), good...)
	binary.BigEndian.PutUint16(newer[4:], BytecodeVersion+1)

	badKind := append([]byte(nil), good[:len(good)-5]...)
	badKind = append(badKind, 0x7F, 0, 0, 0, 0)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"too short", []byte("ND"), "too short"},
		{"bad magic", append([]byte("XXXX"), good[4:]...), "invalid bytecode magic"},
		{"newer version", newer, "newer than supported"},
		{"truncated", good[:len(good)-1], "unexpected end"},
		{"trailing", append(append([]byte(nil), good...), 0), "trailing data"},
		{"unknown kind", badKind, "unknown value kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestMarshalProgramRoundTrip(t *testing.T) {
	p := samplePool()

	data, err := MarshalProgram(p)
	if err != nil {
		t.Fatalf("MarshalProgram failed: %v", err)
	}
	again, err := MarshalProgram(p)
	if err != nil {
		t.Fatalf("MarshalProgram failed: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("MarshalProgram is not deterministic")
	}

	got, err := UnmarshalProgram(data)
	if err != nil {
		t.Fatalf("UnmarshalProgram failed: %v", err)
	}
	if !got.Equal(p) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", got.Constants, p.Constants)
	}
}

func TestUnmarshalProgramRejectsNewerVersion(t *testing.T) {
	p := samplePool()
	p.Version = BytecodeVersion + 1

	data, err := MarshalProgram(p)
	if err != nil {
		t.Fatalf("MarshalProgram failed: %v", err)
	}
	if _, err := UnmarshalProgram(data); err == nil {
		t.Error("expected error for newer version")
	}
}
