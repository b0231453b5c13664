/*
Package ballotbox implements an embedded storage engine for voting records
on top of a key-value store (in this case, on top of Bolt).

We persist three record kinds:

1. Decisions, one voter's submission for a contest, including write-in names.

2. Ballots, named bundles of contest identifiers.

3. Contests, races carrying contestants and descriptive key/value tags.

Each record kind lives in its own durable store and is addressed by a
content-derived SHA-256 digest. On top of the durable stores the engine
maintains a set of in-memory secondary indices (by voter, by contest, by
ballot, by write-in name, by contestant, by tag) that answer the common
queries without touching disk.

# Technical Details

**Source of truth.**
The durable stores are the only source of truth. Every index is a pure
cache over them: opening a box replays all persisted records through the
index functions, which reproduces exactly the index state that incremental
stores would have built. Index inserts are order-independent, so replay
order does not matter.

**Write path.**
Stores persist first and index second. A crash after the durable write but
before indexing is repaired by the next Open (replay); a crash before the
durable write loses nothing.

**Value encoding.**
Stored values carry a one-byte format tag, an xxhash64 checksum and the
msgpack payload. The checksum is verified on every fetch and during replay;
a mismatch surfaces as ErrCorruptRecord and aborts Open.

**Tag queries.**
GetContestsByTags treats an empty value as a wildcard matching every value
recorded under the key. This mirrors the historical convention and means a
literal empty-string tag value cannot be queried for exactly.

**Concurrency.**
A single writer is assumed. All mutating operations (Open, Close, Clear,
Store*) serialize behind an exclusive lock; queries and fetches take a
shared lock and may run concurrently with each other.
*/
package ballotbox
