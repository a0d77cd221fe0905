// Package codec is the one place CBOR options are configured. Records
// written with it use Core Deterministic Encoding, so the same value always
// produces the same bytes.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v. Duplicate map keys and indefinite-length
// items are rejected.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose returns RFC 8949 diagnostic notation for data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
