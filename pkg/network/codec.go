package network

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Format names a network file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("cannot infer network format from %q (want .json, .yaml or .yml)", path)
}

// Decode reads a network in the given format.
func Decode(r io.Reader, format Format) (*Network, error) {
	var n Network
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&n); err != nil {
			return nil, fmt.Errorf("decode json network: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&n); err != nil {
			return nil, fmt.Errorf("decode yaml network: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported network format %q", format)
	}
	return &n, nil
}

// Encode writes a network in the given format.
func Encode(w io.Writer, n *Network, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(n)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(n); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported network format %q", format)
}

// Load reads a network file, choosing the decoder by extension.
func Load(path string) (*Network, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	n, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("network: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Hash returns the SHA-256 of the network's canonical CBOR encoding. Two
// networks with the same content hash compile to the same program.
func (n *Network) Hash() ([32]byte, error) {
	data, err := cborEncMode.Marshal(n)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode network for hashing: %w", err)
	}
	return sha256.Sum256(data), nil
}
