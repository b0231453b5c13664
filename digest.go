package ballotbox

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// DigestLen is the size of a record identifier in bytes.
const DigestLen = sha256.Size

// Digest is a content-derived identifier naming a stored record. It is the
// SHA-256 of the record's canonical msgpack encoding, so storing the same
// record twice yields the same identifier.
type Digest [DigestLen]byte

func digestOf(payload []byte) Digest {
	return Digest(sha256.Sum256(payload))
}

// ParseDigest parses the hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("ballotbox: invalid digest %q: %w", s, err)
	}
	if len(raw) != DigestLen {
		return d, fmt.Errorf("ballotbox: invalid digest %q: got %d bytes, want %d", s, len(raw), DigestLen)
	}
	copy(d[:], raw)
	return d, nil
}

func digestFromBytes(raw []byte) (Digest, error) {
	var d Digest
	if len(raw) != DigestLen {
		return d, fmt.Errorf("%w: id is %d bytes, want %d", ErrCorruptRecord, len(raw), DigestLen)
	}
	copy(d[:], raw)
	return d, nil
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) compare(other Digest) int {
	return bytes.Compare(d[:], other[:])
}

// EncodeMsgpack encodes the digest as a raw byte string rather than an
// array of integers.
func (d Digest) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeBytes(d[:])
}

func (d *Digest) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	if len(raw) != DigestLen {
		return fmt.Errorf("ballotbox: decoding digest: got %d bytes, want %d", len(raw), DigestLen)
	}
	copy(d[:], raw)
	return nil
}

var (
	_ msgpack.CustomEncoder = Digest{}
	_ msgpack.CustomDecoder = (*Digest)(nil)
)
