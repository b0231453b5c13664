package ballotbox

import "slices"

// Query operations read only the in-memory indices; they never fail and
// return empty results when nothing matches. While the box is closed the
// indices are empty, so every query returns empty as well.

// GetDecisionsByVoter returns the ids of all decisions submitted by the
// voter address, in unspecified order.
func (box *BallotBox) GetDecisionsByVoter(voter string) []Digest {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return slices.Clone(box.idx.decisionsByVoter[voter])
}

// GetDecisionsByContest returns the ids of all decisions for the contest,
// in unspecified order.
func (box *BallotBox) GetDecisionsByContest(contestID Digest) []Digest {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return slices.Clone(box.idx.decisionsByContest[contestID])
}

// GetDecisionsByBallot returns the ids of all decisions cast against the
// ballot, in unspecified order.
func (box *BallotBox) GetDecisionsByBallot(ballotID Digest) []Digest {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return slices.Clone(box.idx.decisionsByBallot[ballotID])
}

// GetAllWriteIns returns every distinct write-in name across all stored
// decisions, ascending.
func (box *BallotBox) GetAllWriteIns() []string {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return box.idx.allWriteIns()
}

// GetDecisionsWithWriteIn returns the ids of all decisions that listed
// this exact write-in name.
func (box *BallotBox) GetDecisionsWithWriteIn(name string) []Digest {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return box.idx.decisionsWithWriteIn(name)
}

// GetBallotsByContest returns the ids of all ballots whose contest list
// includes the contest.
func (box *BallotBox) GetBallotsByContest(contestID Digest) []Digest {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return slices.Clone(box.idx.ballotsByContest[contestID])
}

// GetValuesByTag returns every distinct value recorded under the tag key
// across all contests, ascending.
func (box *BallotBox) GetValuesByTag(key string) []string {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return box.idx.valuesByTag(key)
}

// GetContestsByTags returns the ids of contests tagged (key, value). An
// empty value matches every value under the key; a contest tagged with
// several values for the key then appears once per value.
func (box *BallotBox) GetContestsByTags(key, value string) []Digest {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return box.idx.contestsByTags(key, value)
}

// GetContestsByContestant returns the ids of all contests listing a
// contestant with this exact name.
func (box *BallotBox) GetContestsByContestant(name string) []Digest {
	box.mut.RLock()
	defer box.mut.RUnlock()
	return slices.Clone(box.idx.contestsByContestant[name])
}
