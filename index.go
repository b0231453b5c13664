package ballotbox

import (
	"strings"

	"github.com/google/btree"
)

// decisionEntry caches the secondary keys of one stored decision. It holds
// nothing that is not derivable from the decision record itself.
type decisionEntry struct {
	Voter   string
	Contest Digest
	Ballot  Digest
}

// writeInEntry is one (write-in name, decision id) pair, ordered by name
// then id.
type writeInEntry struct {
	Name string
	ID   Digest
}

func writeInLess(a, b writeInEntry) bool {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c < 0
	}
	return a.ID.compare(b.ID) < 0
}

// tagEntry is one (tag key, tag value, contest id) triple, ordered by key,
// then value, then id. The ordering is what makes key-prefix (wildcard) and
// distinct-value scans work.
type tagEntry struct {
	Key     string
	Value   string
	Contest Digest
}

func tagLess(a, b tagEntry) bool {
	if c := strings.Compare(a.Key, b.Key); c != 0 {
		return c < 0
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c < 0
	}
	return a.Contest.compare(b.Contest) < 0
}

const btreeDegree = 16

// indexSet holds every secondary index. All of it is an in-memory cache
// over the durable stores, rebuilt by replaying them on Open.
//
// Insertion order never affects the final contents, which is what allows
// rebuild-by-replay to reproduce the incrementally built state.
type indexSet struct {
	decisionsByID      map[Digest]decisionEntry
	decisionsByVoter   map[string][]Digest
	decisionsByContest map[Digest][]Digest
	decisionsByBallot  map[Digest][]Digest

	writeIns *btree.BTreeG[writeInEntry]

	ballots          map[Digest]struct{}
	ballotsByContest map[Digest][]Digest

	contests             map[Digest]struct{}
	contestsByContestant map[string][]Digest
	contestTags          *btree.BTreeG[tagEntry]
}

func newIndexSet() *indexSet {
	idx := &indexSet{}
	idx.clear()
	return idx
}

// clear unconditionally empties every index structure.
func (idx *indexSet) clear() {
	idx.decisionsByID = make(map[Digest]decisionEntry)
	idx.decisionsByVoter = make(map[string][]Digest)
	idx.decisionsByContest = make(map[Digest][]Digest)
	idx.decisionsByBallot = make(map[Digest][]Digest)
	idx.writeIns = btree.NewG(btreeDegree, writeInLess)
	idx.ballots = make(map[Digest]struct{})
	idx.ballotsByContest = make(map[Digest][]Digest)
	idx.contests = make(map[Digest]struct{})
	idx.contestsByContestant = make(map[string][]Digest)
	idx.contestTags = btree.NewG(btreeDegree, tagLess)
}

func (idx *indexSet) hasDecision(id Digest) bool {
	_, ok := idx.decisionsByID[id]
	return ok
}

func (idx *indexSet) hasBallot(id Digest) bool {
	_, ok := idx.ballots[id]
	return ok
}

func (idx *indexSet) hasContest(id Digest) bool {
	_, ok := idx.contests[id]
	return ok
}

// indexDecision inserts every index entry derived from the decision.
// Re-indexing an id appends duplicate secondary entries, so the engine
// skips ids it already holds (content-derived ids make that check cheap).
func (idx *indexSet) indexDecision(id Digest, d *Decision) {
	idx.decisionsByID[id] = decisionEntry{
		Voter:   d.VoterAddress(),
		Contest: d.ContestID,
		Ballot:  d.BallotID,
	}
	idx.decisionsByVoter[d.VoterAddress()] = append(idx.decisionsByVoter[d.VoterAddress()], id)
	idx.decisionsByContest[d.ContestID] = append(idx.decisionsByContest[d.ContestID], id)
	idx.decisionsByBallot[d.BallotID] = append(idx.decisionsByBallot[d.BallotID], id)
	for _, name := range d.WriteInNames {
		idx.writeIns.ReplaceOrInsert(writeInEntry{Name: name, ID: id})
	}
}

func (idx *indexSet) indexBallot(id Digest, b *Ballot) {
	idx.ballots[id] = struct{}{}
	for _, contest := range b.Contests {
		idx.ballotsByContest[contest] = append(idx.ballotsByContest[contest], id)
	}
}

func (idx *indexSet) indexContest(id Digest, c *Contest) {
	idx.contests[id] = struct{}{}
	for _, contestant := range c.Contestants {
		idx.contestsByContestant[contestant.Name] = append(idx.contestsByContestant[contestant.Name], id)
	}
	for _, tag := range c.Tags {
		idx.contestTags.ReplaceOrInsert(tagEntry{Key: tag.Key, Value: tag.Value, Contest: id})
	}
}

// allWriteIns returns each distinct write-in name once, ascending.
func (idx *indexSet) allWriteIns() []string {
	var names []string
	idx.writeIns.Ascend(func(e writeInEntry) bool {
		if len(names) == 0 || names[len(names)-1] != e.Name {
			names = append(names, e.Name)
		}
		return true
	})
	return names
}

func (idx *indexSet) decisionsWithWriteIn(name string) []Digest {
	var ids []Digest
	idx.writeIns.AscendGreaterOrEqual(writeInEntry{Name: name}, func(e writeInEntry) bool {
		if e.Name != name {
			return false
		}
		ids = append(ids, e.ID)
		return true
	})
	return ids
}

// valuesByTag returns each distinct value recorded under key, ascending.
func (idx *indexSet) valuesByTag(key string) []string {
	var values []string
	idx.contestTags.AscendGreaterOrEqual(tagEntry{Key: key}, func(e tagEntry) bool {
		if e.Key != key {
			return false
		}
		if len(values) == 0 || values[len(values)-1] != e.Value {
			values = append(values, e.Value)
		}
		return true
	})
	return values
}

// contestsByTags returns the contest ids recorded under (key, value). An
// empty value is a wildcard: every entry under the key matches, and a
// contest tagged with several values for the key appears once per value.
func (idx *indexSet) contestsByTags(key, value string) []Digest {
	var ids []Digest
	idx.contestTags.AscendGreaterOrEqual(tagEntry{Key: key, Value: value}, func(e tagEntry) bool {
		if e.Key != key {
			return false
		}
		if value != "" && e.Value != value {
			return false
		}
		ids = append(ids, e.Contest)
		return true
	})
	return ids
}
