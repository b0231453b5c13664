package ballotbox

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Decision is one voter's submission for a contest. Decisions are immutable
// once stored; their identity is the digest of their content.
type Decision struct {
	VoterKey     []byte    `msgpack:"vk"`
	ContestID    Digest    `msgpack:"c"`
	BallotID     Digest    `msgpack:"b"`
	WriteInNames []string  `msgpack:"w,omitempty"`
	Date         time.Time `msgpack:"d"`
}

// Digest returns the content-derived identifier of the decision.
func (d *Decision) Digest() Digest {
	return digestOf(mustEncodePayload(d))
}

// VoterAddress returns the short address derived from the voter's public
// key. All decisions submitted with the same key share one address.
func (d *Decision) VoterAddress() string {
	sum := sha256.Sum256(d.VoterKey)
	return "V" + hex.EncodeToString(sum[:20])
}

// Ballot is a named bundle of contests presented to voters together.
type Ballot struct {
	Title       string    `msgpack:"t"`
	Description string    `msgpack:"ds,omitempty"`
	Contests    []Digest  `msgpack:"c,omitempty"`
	Expiration  time.Time `msgpack:"x"`
}

// ID returns the content-derived identifier of the ballot.
func (b *Ballot) ID() Digest {
	return digestOf(mustEncodePayload(b))
}

// Contestant is one named entrant in a contest.
type Contestant struct {
	Name        string `msgpack:"n"`
	Description string `msgpack:"ds,omitempty"`
}

// Tag is one key/value pair describing a contest. A contest may carry
// multiple tags with the same key and different values.
type Tag struct {
	Key   string `msgpack:"k"`
	Value string `msgpack:"v"`
}

// Contest is a single race: its contestants plus descriptive tags.
type Contest struct {
	Description string       `msgpack:"ds,omitempty"`
	Contestants []Contestant `msgpack:"cs,omitempty"`
	Tags        []Tag        `msgpack:"tg,omitempty"`
}

// ID returns the content-derived identifier of the contest.
func (c *Contest) ID() Digest {
	return digestOf(mustEncodePayload(c))
}
