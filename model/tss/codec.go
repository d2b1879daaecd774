package tss

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("could not create cbor encoding mode: %w", err))
	}
}

// Encode serializes a record into its canonical artifact bytes.
func Encode(record interface{}) ([]byte, error) {
	data, err := encMode.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("could not encode %T: %w", record, err)
	}
	return data, nil
}

// Decode parses artifact bytes produced by Encode into record.
func Decode(data []byte, record interface{}) error {
	err := cbor.Unmarshal(data, record)
	if err != nil {
		return fmt.Errorf("could not decode %T: %w", record, err)
	}
	return nil
}
