package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/tsswallet/tss-wallet/model/tss"
)

const (

	// codes for checkpoint artifacts and markers
	codeCheckpointArtifact = 10
	codeCheckpointMarker   = 11

	// codes for derived keys
	codeChildKey = 20
)

// keySetCodes lists every code whose entries belong to a key-set.
var keySetCodes = []uint8{codeCheckpointArtifact, codeCheckpointMarker, codeChildKey}

func makePrefix(code uint8, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case string:
		// length-prefixed so that no key-set ID is a prefix of another
		b := make([]byte, 2, 2+len(i))
		binary.BigEndian.PutUint16(b, uint16(len(i)))
		return append(b, i...)
	case tss.Phase:
		return []byte{uint8(i)}
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}

// checkpointKey returns the key of an artifact or marker: code | key-set | phase | index.
func checkpointKey(code uint8, keySet string, phase tss.Phase, index uint32) []byte {
	return makePrefix(code, keySet, phase, index)
}

// parseCheckpointKey returns phase and index of a key built by checkpointKey.
func parseCheckpointKey(key []byte) (tss.Phase, uint32, error) {
	if len(key) < 1+2+1+4 {
		return 0, 0, fmt.Errorf("checkpoint key too short (%d bytes)", len(key))
	}
	tail := key[len(key)-5:]
	return tss.Phase(tail[0]), binary.BigEndian.Uint32(tail[1:]), nil
}
