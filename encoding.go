package ballotbox

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Stored value layout: format byte, xxhash64 of the payload (big endian),
// then the msgpack payload. Digests are computed over the bare payload, so
// the envelope can change format without changing record identities.
const (
	valueFormatV1 = 1

	valueHeaderLen = 1 + 8
)

func mustEncodePayload(rec any) []byte {
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		panic(fmt.Errorf("ballotbox: failed to encode %T using msgpack: %w", rec, err))
	}
	return payload
}

func decodePayload(payload []byte, rec any) error {
	err := msgpack.Unmarshal(payload, rec)
	if err != nil {
		return fmt.Errorf("%w: decoding %T: %v", ErrCorruptRecord, rec, err)
	}
	return nil
}

func wrapValue(payload []byte) []byte {
	value := make([]byte, 0, valueHeaderLen+len(payload))
	value = append(value, valueFormatV1)
	value = binary.BigEndian.AppendUint64(value, xxhash.Sum64(payload))
	return append(value, payload...)
}

func decodeValue(value []byte, rec any) error {
	payload, err := unwrapValue(value)
	if err != nil {
		return err
	}
	return decodePayload(payload, rec)
}

func unwrapValue(value []byte) ([]byte, error) {
	if len(value) < valueHeaderLen {
		return nil, fmt.Errorf("%w: value is %d bytes, want at least %d", ErrCorruptRecord, len(value), valueHeaderLen)
	}
	if value[0] != valueFormatV1 {
		return nil, fmt.Errorf("%w: unknown value format %d", ErrCorruptRecord, value[0])
	}
	sum := binary.BigEndian.Uint64(value[1:valueHeaderLen])
	payload := value[valueHeaderLen:]
	if xxhash.Sum64(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptRecord)
	}
	return payload, nil
}
