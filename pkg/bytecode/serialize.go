package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/ndbx/pkg/value"
)

// Magic bytes for compiled network files: "NDBC" (Node Box ByteCode)
var BytecodeMagic = []byte{'N', 'D', 'B', 'C'}

// Serialize encodes the program to bytes for storage.
// Format:
//
//	[magic:4] [version:2]
//	[code_len:4] [code:...]
//	[const_count:4] [constants:...]
//
// Each constant is [kind:1] followed by its payload: Int and Float are 4
// bytes, String is [len:4][bytes], and lists are [count:4] followed by that
// many scalar payloads. All integers are big-endian.
func (p *CompiledNetwork) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 14+len(p.Code)+len(p.Constants)*16)

	buf = append(buf, BytecodeMagic...)
	buf = binary.BigEndian.AppendUint16(buf, p.Version)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Code)))
	buf = append(buf, p.Code...)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Constants)))
	for i, v := range p.Constants {
		if !v.IsValid() {
			return nil, fmt.Errorf("constant %d: %w", i, value.ErrInvalidValue)
		}
		buf = append(buf, byte(v.Kind()))
		switch v.Kind() {
		case value.KindInt:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v.GetInt(0)))
		case value.KindFloat:
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v.GetFloat(0)))
		case value.KindString:
			buf = appendString(buf, v.GetString(0))
		case value.KindIntList:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v.Len()))
			for _, x := range v.Ints() {
				buf = binary.BigEndian.AppendUint32(buf, uint32(x))
			}
		case value.KindFloatList:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v.Len()))
			for _, x := range v.Floats() {
				buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(x))
			}
		case value.KindStringList:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v.Len()))
			for _, s := range v.Strings() {
				buf = appendString(buf, s)
			}
		}
	}

	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// reader walks a serialized program, tracking the read position for error
// messages.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int, what string) error {
	if n < 0 || r.pos+n > len(r.data) {
		return fmt.Errorf("unexpected end of bytecode reading %s at pos %d", what, r.pos)
	}
	return nil
}

func (r *reader) u8(what string) (byte, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

func (r *reader) str(what string) (string, error) {
	n, err := r.u32(what + " length")
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n), what)
	return string(b), err
}

// Deserialize decodes a program from bytes produced by Serialize.
func Deserialize(data []byte) (*CompiledNetwork, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("bytecode too short: need at least 6 bytes, got %d", len(data))
	}

	if string(data[0:4]) != string(BytecodeMagic) {
		return nil, fmt.Errorf("invalid bytecode magic: expected %q, got %q", BytecodeMagic, data[0:4])
	}

	p := &CompiledNetwork{Version: binary.BigEndian.Uint16(data[4:6])}
	if p.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode version %d is newer than supported version %d", p.Version, BytecodeVersion)
	}

	r := &reader{data: data, pos: 6}

	codeLen, err := r.u32("code length")
	if err != nil {
		return nil, err
	}
	if p.Code, err = r.bytes(int(codeLen), "code section"); err != nil {
		return nil, err
	}

	constCount, err := r.u32("constant count")
	if err != nil {
		return nil, err
	}
	// Every constant takes at least 5 bytes; reject counts the input cannot hold.
	if err := r.need(int(constCount)*5, "constants"); err != nil {
		return nil, err
	}
	p.Constants = make([]value.Value, constCount)
	for i := range p.Constants {
		if p.Constants[i], err = r.constant(i); err != nil {
			return nil, err
		}
	}

	if r.pos != len(data) {
		return nil, fmt.Errorf("trailing data after constants: %d bytes", len(data)-r.pos)
	}

	return p, nil
}

func (r *reader) constant(i int) (value.Value, error) {
	what := fmt.Sprintf("constant %d", i)
	tag, err := r.u8(what + " kind")
	if err != nil {
		return value.Value{}, err
	}

	kind := value.Kind(tag)
	switch kind {
	case value.KindInt:
		x, err := r.u32(what)
		return value.Int(int32(x)), err
	case value.KindFloat:
		x, err := r.u32(what)
		return value.Float(math.Float32frombits(x)), err
	case value.KindString:
		s, err := r.str(what)
		return value.String(s), err
	}

	if !kind.IsList() {
		return value.Value{}, fmt.Errorf("%s: unknown value kind %d", what, tag)
	}
	count, err := r.u32(what + " count")
	if err != nil {
		return value.Value{}, err
	}
	if err := r.need(int(count)*4, what+" elements"); err != nil {
		return value.Value{}, err
	}

	switch kind {
	case value.KindIntList:
		xs := make([]int32, count)
		for j := range xs {
			x, _ := r.u32(what)
			xs[j] = int32(x)
		}
		return value.IntList(xs...), nil
	case value.KindFloatList:
		xs := make([]float32, count)
		for j := range xs {
			x, _ := r.u32(what)
			xs[j] = math.Float32frombits(x)
		}
		return value.FloatList(xs...), nil
	default:
		xs := make([]string, count)
		for j := range xs {
			if xs[j], err = r.str(what); err != nil {
				return value.Value{}, err
			}
		}
		return value.StringList(xs...), nil
	}
}
