package ballotbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/openballot/ballotbox/kvstore"
)

func setup(t testing.TB, dir string) *BallotBox {
	t.Helper()
	box := New(Options{
		Logf:      t.Logf,
		IsTesting: true,
	})
	ensure(t, box.Open(dir))
	t.Cleanup(func() {
		if box.IsOpen() {
			box.Close()
		}
	})
	return box
}

func TestBallotBoxScenario(t *testing.T) {
	box := setup(t, InMemory)

	contest := &Contest{
		Contestants: []Contestant{{Name: "Bob"}},
		Tags:        []Tag{{Key: "type", Value: "primary"}},
	}
	c1, err := box.StoreContest(contest)
	ensure(t, err)

	ballot := &Ballot{Title: "spring primary", Contests: []Digest{c1}, Expiration: testTime}
	b1, err := box.StoreBallot(ballot)
	ensure(t, err)

	decision := &Decision{
		VoterKey:     []byte("voter-1-public-key"),
		ContestID:    c1,
		BallotID:     b1,
		WriteInNames: []string{"Carol"},
		Date:         testTime,
	}
	d1, err := box.StoreDecision(decision)
	ensure(t, err)

	sameIDs(t, box.GetContestsByContestant("Bob"), []Digest{c1})
	sameIDs(t, box.GetBallotsByContest(c1), []Digest{b1})
	sameIDs(t, box.GetDecisionsByBallot(b1), []Digest{d1})
	sameIDs(t, box.GetDecisionsByContest(c1), []Digest{d1})
	sameIDs(t, box.GetDecisionsByVoter(decision.VoterAddress()), []Digest{d1})
	deepEqual(t, box.GetValuesByTag("type"), []string{"primary"})
	sameIDs(t, box.GetDecisionsWithWriteIn("Carol"), []Digest{d1})
	deepEqual(t, box.GetAllWriteIns(), []string{"Carol"})

	got, err := box.FetchDecision(d1)
	ensure(t, err)
	deepEqual(t, got.ContestID, c1)
	deepEqual(t, got.WriteInNames, []string{"Carol"})
}

func TestBallotBoxRebuildEquivalence(t *testing.T) {
	dir := t.TempDir()
	box := setup(t, dir)

	contest := &Contest{
		Contestants: []Contestant{{Name: "Bob"}, {Name: "Eve"}},
		Tags:        []Tag{{Key: "region", Value: "north"}, {Key: "region", Value: "south"}},
	}
	c1, err := box.StoreContest(contest)
	ensure(t, err)
	b1, err := box.StoreBallot(&Ballot{Title: "general", Contests: []Digest{c1}, Expiration: testTime})
	ensure(t, err)

	var voters []string
	for i := 0; i < 7; i++ {
		d := &Decision{
			VoterKey:     []byte(fmt.Sprintf("key-%d", i)),
			ContestID:    c1,
			BallotID:     b1,
			WriteInNames: []string{"Alice Smith"},
			Date:         testTime,
		}
		_, err := box.StoreDecision(d)
		ensure(t, err)
		voters = append(voters, d.VoterAddress())
	}

	type snapshot struct {
		byContest   []Digest
		byBallot    []Digest
		byVoter0    []Digest
		writeIns    []string
		withWriteIn []Digest
		ballots     []Digest
		tagValues   []string
		wildcard    []Digest
		byBob       []Digest
	}
	capture := func() snapshot {
		return snapshot{
			byContest:   sorted(box.GetDecisionsByContest(c1)),
			byBallot:    sorted(box.GetDecisionsByBallot(b1)),
			byVoter0:    sorted(box.GetDecisionsByVoter(voters[0])),
			writeIns:    box.GetAllWriteIns(),
			withWriteIn: sorted(box.GetDecisionsWithWriteIn("Alice Smith")),
			ballots:     sorted(box.GetBallotsByContest(c1)),
			tagValues:   box.GetValuesByTag("region"),
			wildcard:    sorted(box.GetContestsByTags("region", "")),
			byBob:       sorted(box.GetContestsByContestant("Bob")),
		}
	}

	before := capture()
	ensure(t, box.Close())
	ensure(t, box.Open(dir))
	after := capture()

	deepEqual(t, after, before)
	if len(after.byContest) != 7 {
		t.Errorf("rebuilt by-contest index has %d decisions, want 7", len(after.byContest))
	}
}

func TestBallotBoxClear(t *testing.T) {
	dir := t.TempDir()
	box := setup(t, dir)

	c1, err := box.StoreContest(&Contest{Contestants: []Contestant{{Name: "Bob"}}, Tags: []Tag{{Key: "type", Value: "primary"}}})
	ensure(t, err)
	b1, err := box.StoreBallot(&Ballot{Title: "general", Contests: []Digest{c1}, Expiration: testTime})
	ensure(t, err)
	d1, err := box.StoreDecision(&Decision{VoterKey: []byte("k"), ContestID: c1, BallotID: b1, WriteInNames: []string{"Carol"}, Date: testTime})
	ensure(t, err)

	ensure(t, box.Clear())

	sameIDs(t, box.GetDecisionsByContest(c1), nil)
	sameIDs(t, box.GetBallotsByContest(c1), nil)
	sameIDs(t, box.GetContestsByContestant("Bob"), nil)
	deepEqual(t, box.GetAllWriteIns(), nil)
	deepEqual(t, box.GetValuesByTag("type"), nil)

	for _, fetch := range []func() error{
		func() error { _, err := box.FetchContest(c1); return err },
		func() error { _, err := box.FetchBallot(b1); return err },
		func() error { _, err := box.FetchDecision(d1); return err },
	} {
		if err := fetch(); !errors.Is(err, ErrNotFound) {
			t.Errorf("fetch after Clear = %v, want ErrNotFound", err)
		}
	}

	// The wipe is durable: nothing comes back after a reopen.
	ensure(t, box.Close())
	ensure(t, box.Open(dir))
	sameIDs(t, box.GetDecisionsByContest(c1), nil)

	// Clear on a closed box only clears the (already empty) indices.
	ensure(t, box.Close())
	ensure(t, box.Clear())
}

func TestBallotBoxOpenCloseCycle(t *testing.T) {
	box := New(Options{IsTesting: true})

	if err := box.Close(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Close on closed box = %v, want ErrNotOpen", err)
	}
	if _, err := box.StoreBallot(&Ballot{Title: "x"}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("StoreBallot on closed box = %v, want ErrNotOpen", err)
	}
	if _, err := box.FetchBallot(fakeDigest(1)); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("FetchBallot on closed box = %v, want ErrNotOpen", err)
	}
	// Queries never fail; they are empty while closed.
	sameIDs(t, box.GetDecisionsByVoter("anyone"), nil)

	ensure(t, box.Open(InMemory))
	if err := box.Open(InMemory); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Open = %v, want ErrAlreadyOpen", err)
	}
	ensure(t, box.Close())
	ensure(t, box.Open(InMemory))
	ensure(t, box.Close())
	if err := box.Close(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("second Close = %v, want ErrNotOpen", err)
	}
}

func TestBallotBoxStoreIdempotent(t *testing.T) {
	box := setup(t, InMemory)

	d := &Decision{VoterKey: []byte("k"), WriteInNames: []string{"Carol"}, Date: testTime}
	id1, err := box.StoreDecision(d)
	ensure(t, err)
	id2, err := box.StoreDecision(d)
	ensure(t, err)

	deepEqual(t, id2, id1)
	sameIDs(t, box.GetDecisionsByVoter(d.VoterAddress()), []Digest{id1})
	sameIDs(t, box.GetDecisionsWithWriteIn("Carol"), []Digest{id1})
}

func TestBallotBoxFetchRoundTrip(t *testing.T) {
	box := setup(t, InMemory)

	ballot := &Ballot{Title: "general", Description: "statewide", Contests: []Digest{fakeDigest(1)}, Expiration: testTime}
	id, err := box.StoreBallot(ballot)
	ensure(t, err)

	got, err := box.FetchBallot(id)
	ensure(t, err)
	deepEqual(t, got.Title, ballot.Title)
	deepEqual(t, got.Description, ballot.Description)
	deepEqual(t, got.Contests, ballot.Contests)
	if !got.Expiration.Equal(ballot.Expiration) {
		t.Errorf("Expiration = %v, want %v", got.Expiration, ballot.Expiration)
	}

	// Second fetch is served from the cache and must agree.
	again, err := box.FetchBallot(id)
	ensure(t, err)
	deepEqual(t, again, got)

	if _, err := box.FetchBallot(fakeDigest(77)); !errors.Is(err, ErrNotFound) {
		t.Errorf("FetchBallot(missing) = %v, want ErrNotFound", err)
	}
}

func TestBallotBoxCorruptRecordAbortsOpen(t *testing.T) {
	dir := t.TempDir()

	box := setup(t, dir)
	_, err := box.StoreContest(&Contest{Contestants: []Contestant{{Name: "Bob"}}})
	ensure(t, err)
	ensure(t, box.Close())

	// Plant a record that fails the checksum.
	store, err := kvstore.Open(filepath.Join(dir, decisionsDir), kvstore.Options{NoSync: true})
	ensure(t, err)
	bad := fakeDigest(66)
	ensure(t, store.Put(bad[:], []byte{valueFormatV1, 0, 0, 0, 0, 0, 0, 0, 0, 0xDE, 0xAD}))
	ensure(t, store.Close())

	err = box.Open(dir)
	if !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("Open over corrupt store = %v, want ErrCorruptRecord", err)
	}
	if box.IsOpen() {
		t.Fatal("box reports open after failed Open")
	}
	// The failed rebuild left nothing behind.
	sameIDs(t, box.GetContestsByContestant("Bob"), nil)

	// Removing the bad record makes a retry succeed.
	store, err = kvstore.Open(filepath.Join(dir, decisionsDir), kvstore.Options{NoSync: true})
	ensure(t, err)
	ensure(t, store.Delete(bad[:]))
	ensure(t, store.Close())

	ensure(t, box.Open(dir))
	if got := len(box.GetContestsByContestant("Bob")); got != 1 {
		t.Errorf("after repaired reopen, contests by contestant = %d, want 1", got)
	}
}

func TestBallotBoxConcurrentQueries(t *testing.T) {
	box := setup(t, InMemory)

	c1, err := box.StoreContest(&Contest{Contestants: []Contestant{{Name: "Bob"}}, Tags: []Tag{{Key: "type", Value: "primary"}}})
	ensure(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				box.GetContestsByContestant("Bob")
				box.GetContestsByTags("type", "")
				box.GetValuesByTag("type")
				box.FetchContest(c1)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := box.StoreDecision(&Decision{VoterKey: []byte(fmt.Sprintf("k%d", i)), ContestID: c1, Date: testTime})
		ensure(t, err)
	}
	wg.Wait()

	if got := len(box.GetDecisionsByContest(c1)); got != 20 {
		t.Errorf("stored 20 decisions, index holds %d", got)
	}
}

func sorted(ids []Digest) []Digest {
	ids = slices.Clone(ids)
	slices.SortFunc(ids, Digest.compare)
	return ids
}

// sameIDs compares two id sets as multisets, ignoring order.
func sameIDs(t testing.TB, a, e []Digest) {
	if !reflect.DeepEqual(sorted(a), sorted(e)) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func ensure(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatal(err)
	}
}
