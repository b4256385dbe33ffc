package trace

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a Record to CBOR bytes.
func Marshal(r *Record) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// Unmarshal deserializes a Record from CBOR bytes.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("trace: unmarshal record: %w", err)
	}
	return &r, nil
}

// Write encodes r onto w.
func Write(w io.Writer, r *Record) error {
	data, err := Marshal(r)
	if err != nil {
		return fmt.Errorf("trace: marshal record: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("trace: write record: %w", err)
	}
	return nil
}

// Read decodes a single Record from rd.
func Read(rd io.Reader) (*Record, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("trace: read record: %w", err)
	}
	return Unmarshal(data)
}
