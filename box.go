package ballotbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openballot/ballotbox/kvstore"
)

// InMemory can be passed to Open instead of a directory to run against
// transient in-memory stores. Intended for tests.
const InMemory = ":memory:"

// DefaultCacheSize is the fetch cache capacity used when Options.CacheSize
// is zero.
const DefaultCacheSize = 4096

type recordKind string

const (
	kindDecision recordKind = "decision"
	kindBallot   recordKind = "ballot"
	kindContest  recordKind = "contest"
)

// Subdirectory per record kind under the data directory. These names are
// part of the on-disk format and must stay stable across restarts.
const (
	decisionsDir = "decisions"
	ballotsDir   = "ballots"
	contestsDir  = "contests"
)

type Options struct {
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	CacheSize int
}

type cacheKey struct {
	kind recordKind
	id   Digest
}

// BallotBox is the storage engine: three durable record stores plus the
// in-memory secondary indices derived from them. A zero BallotBox is not
// usable; construct with New. The box starts closed; Open loads the stores
// and rebuilds the indices.
type BallotBox struct {
	logf    func(format string, args ...any)
	verbose bool
	noSync  bool
	cache   *lru.Cache[cacheKey, any]

	mut       sync.RWMutex
	open      bool
	decisions kvstore.Store
	ballots   kvstore.Store
	contests  kvstore.Store
	idx       *indexSet
}

func New(opt Options) *BallotBox {
	size := opt.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, any](size)
	if err != nil {
		panic(fmt.Errorf("ballotbox: %w", err))
	}
	return &BallotBox{
		logf:    opt.Logf,
		verbose: opt.Verbose,
		noSync:  opt.IsTesting,
		cache:   cache,
		idx:     newIndexSet(),
	}
}

func (box *BallotBox) log(format string, args ...any) {
	if box.logf != nil {
		box.logf(format, args...)
	}
}

func (box *BallotBox) logv(format string, args ...any) {
	if box.verbose && box.logf != nil {
		box.logf(format, args...)
	}
}

// IsOpen reports whether the box is open.
func (box *BallotBox) IsOpen() bool {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return box.open
}

// Open opens (creating if needed) the three record stores under dir and
// rebuilds every secondary index by replaying them. Fails with
// ErrAlreadyOpen if the box is open. If any store fails to open or any
// persisted record fails to decode, all stores are released and the
// indices are cleared, so a retry starts clean.
func (box *BallotBox) Open(dir string) error {
	box.mut.Lock()
	defer box.mut.Unlock()
	if box.open {
		return ErrAlreadyOpen
	}

	var opened []kvstore.Store
	fail := func(err error) error {
		for _, s := range opened {
			s.Close()
		}
		box.idx.clear()
		box.cache.Purge()
		return err
	}
	openOne := func(sub string) (kvstore.Store, error) {
		if dir == InMemory {
			return kvstore.OpenMemory(), nil
		}
		s, err := kvstore.Open(filepath.Join(dir, sub), kvstore.Options{NoSync: box.noSync})
		if err != nil {
			return nil, fmt.Errorf("ballotbox: opening %s store: %w", sub, err)
		}
		return s, nil
	}

	decisions, err := openOne(decisionsDir)
	if err != nil {
		return fail(err)
	}
	opened = append(opened, decisions)

	ballots, err := openOne(ballotsDir)
	if err != nil {
		return fail(err)
	}
	opened = append(opened, ballots)

	contests, err := openOne(contestsDir)
	if err != nil {
		return fail(err)
	}
	opened = append(opened, contests)

	err = box.rebuild(decisions, ballots, contests)
	if err != nil {
		return fail(err)
	}

	box.decisions, box.ballots, box.contests = decisions, ballots, contests
	box.open = true
	box.log("ballotbox: OPEN %s (%d decisions, %d ballots, %d contests)",
		dir, decisions.Len(), ballots.Len(), contests.Len())
	return nil
}

// rebuild replays every persisted record through the index functions. The
// indices end up identical to the state incremental stores would have
// produced, in any replay order.
func (box *BallotBox) rebuild(decisions, ballots, contests kvstore.Store) error {
	err := rebuildKind(decisions, kindDecision, func(id Digest, d *Decision) {
		box.idx.indexDecision(id, d)
	})
	if err != nil {
		return err
	}
	err = rebuildKind(ballots, kindBallot, func(id Digest, b *Ballot) {
		box.idx.indexBallot(id, b)
	})
	if err != nil {
		return err
	}
	return rebuildKind(contests, kindContest, func(id Digest, c *Contest) {
		box.idx.indexContest(id, c)
	})
}

func rebuildKind[Record any](store kvstore.Store, kind recordKind, index func(Digest, *Record)) error {
	start := time.Now()
	err := store.ForEach(func(idRaw, value []byte) error {
		id, err := digestFromBytes(idRaw)
		if err != nil {
			return err
		}
		var rec Record
		err = decodeValue(value, &rec)
		if err != nil {
			return fmt.Errorf("%s %s: %w", kind, id, err)
		}
		index(id, &rec)
		RebuiltRecords.WithLabelValues(string(kind)).Inc()
		return nil
	})
	if err != nil {
		return fmt.Errorf("ballotbox: rebuilding %s index: %w", kind, err)
	}
	RebuildDuration.WithLabelValues(string(kind)).Observe(float64(time.Since(start).Milliseconds()))
	return nil
}

// Close closes the three record stores and clears every index. Fails with
// ErrNotOpen if the box is not open. All stores are released even if one
// of them fails to close.
func (box *BallotBox) Close() error {
	box.mut.Lock()
	defer box.mut.Unlock()
	if !box.open {
		return ErrNotOpen
	}
	box.open = false

	err := errors.Join(box.decisions.Close(), box.ballots.Close(), box.contests.Close())
	box.decisions, box.ballots, box.contests = nil, nil, nil
	box.idx.clear()
	box.cache.Purge()
	if err != nil {
		return fmt.Errorf("ballotbox: closing: %w", err)
	}
	box.log("ballotbox: CLOSE")
	return nil
}

// Clear wipes all durable data (when open) and unconditionally clears the
// in-memory indices. Does not change the open/closed state, and does not
// fail when called on a closed box.
func (box *BallotBox) Clear() error {
	box.mut.Lock()
	defer box.mut.Unlock()

	if box.open {
		stores := []struct {
			kind  recordKind
			store kvstore.Store
		}{
			{kindDecision, box.decisions},
			{kindBallot, box.ballots},
			{kindContest, box.contests},
		}
		for _, s := range stores {
			err := s.store.Clear()
			if err != nil {
				return fmt.Errorf("ballotbox: clearing %s store: %w", s.kind, err)
			}
		}
	}

	box.idx.clear()
	box.cache.Purge()
	box.log("ballotbox: CLEAR")
	return nil
}

// StoreDecision persists the decision and inserts its index entries,
// returning its content-derived identifier. Storing a decision whose id is
// already present is a no-op. Fails with ErrNotOpen while closed.
func (box *BallotBox) StoreDecision(d *Decision) (Digest, error) {
	box.mut.Lock()
	defer box.mut.Unlock()
	if !box.open {
		return Digest{}, ErrNotOpen
	}

	payload := mustEncodePayload(d)
	id := digestOf(payload)
	if box.idx.hasDecision(id) {
		box.logv("ballotbox: STORE.NOOP decision/%s", id)
		return id, nil
	}

	// Persist first: a crash between the two steps is repaired by the
	// rebuild in the next Open.
	err := box.decisions.Put(id[:], wrapValue(payload))
	if err != nil {
		return Digest{}, fmt.Errorf("ballotbox: storing decision %s: %w", id, err)
	}
	box.idx.indexDecision(id, d)
	StoredRecords.WithLabelValues(string(kindDecision)).Inc()
	box.logv("ballotbox: STORE decision/%s", id)
	return id, nil
}

// StoreBallot persists the ballot and inserts its index entries, returning
// its content-derived identifier.
func (box *BallotBox) StoreBallot(b *Ballot) (Digest, error) {
	box.mut.Lock()
	defer box.mut.Unlock()
	if !box.open {
		return Digest{}, ErrNotOpen
	}

	payload := mustEncodePayload(b)
	id := digestOf(payload)
	if box.idx.hasBallot(id) {
		box.logv("ballotbox: STORE.NOOP ballot/%s", id)
		return id, nil
	}

	err := box.ballots.Put(id[:], wrapValue(payload))
	if err != nil {
		return Digest{}, fmt.Errorf("ballotbox: storing ballot %s: %w", id, err)
	}
	box.idx.indexBallot(id, b)
	StoredRecords.WithLabelValues(string(kindBallot)).Inc()
	box.logv("ballotbox: STORE ballot/%s", id)
	return id, nil
}

// StoreContest persists the contest and inserts its index entries,
// returning its content-derived identifier.
func (box *BallotBox) StoreContest(c *Contest) (Digest, error) {
	box.mut.Lock()
	defer box.mut.Unlock()
	if !box.open {
		return Digest{}, ErrNotOpen
	}

	payload := mustEncodePayload(c)
	id := digestOf(payload)
	if box.idx.hasContest(id) {
		box.logv("ballotbox: STORE.NOOP contest/%s", id)
		return id, nil
	}

	err := box.contests.Put(id[:], wrapValue(payload))
	if err != nil {
		return Digest{}, fmt.Errorf("ballotbox: storing contest %s: %w", id, err)
	}
	box.idx.indexContest(id, c)
	StoredRecords.WithLabelValues(string(kindContest)).Inc()
	box.logv("ballotbox: STORE contest/%s", id)
	return id, nil
}

// FetchDecision returns the decision stored under id, or ErrNotFound.
// Fetched records are cached; callers must not mutate the result.
func (box *BallotBox) FetchDecision(id Digest) (*Decision, error) {
	box.mut.RLock()
	defer box.mut.RUnlock()
	if !box.open {
		return nil, ErrNotOpen
	}
	return fetchKind[Decision](box, box.decisions, kindDecision, id)
}

// FetchBallot returns the ballot stored under id, or ErrNotFound.
func (box *BallotBox) FetchBallot(id Digest) (*Ballot, error) {
	box.mut.RLock()
	defer box.mut.RUnlock()
	if !box.open {
		return nil, ErrNotOpen
	}
	return fetchKind[Ballot](box, box.ballots, kindBallot, id)
}

// FetchContest returns the contest stored under id, or ErrNotFound.
func (box *BallotBox) FetchContest(id Digest) (*Contest, error) {
	box.mut.RLock()
	defer box.mut.RUnlock()
	if !box.open {
		return nil, ErrNotOpen
	}
	return fetchKind[Contest](box, box.contests, kindContest, id)
}

func fetchKind[Record any](box *BallotBox, store kvstore.Store, kind recordKind, id Digest) (*Record, error) {
	key := cacheKey{kind, id}
	if cached, ok := box.cache.Get(key); ok {
		FetchResults.WithLabelValues(string(kind), "hit").Inc()
		box.logv("ballotbox: FETCH.HIT %s/%s", kind, id)
		return cached.(*Record), nil
	}

	value, err := store.Get(id[:])
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			FetchResults.WithLabelValues(string(kind), "notfound").Inc()
			box.logv("ballotbox: FETCH.NOTFOUND %s/%s", kind, id)
		}
		return nil, fmt.Errorf("ballotbox: %s %s: %w", kind, id, err)
	}

	var rec Record
	err = decodeValue(value, &rec)
	if err != nil {
		return nil, fmt.Errorf("ballotbox: %s %s: %w", kind, id, err)
	}
	box.cache.Add(key, &rec)
	FetchResults.WithLabelValues(string(kind), "miss").Inc()
	box.logv("ballotbox: FETCH %s/%s", kind, id)
	return &rec, nil
}
