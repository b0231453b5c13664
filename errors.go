package ballotbox

import (
	"errors"

	"github.com/openballot/ballotbox/kvstore"
)

var (
	// ErrAlreadyOpen is returned by Open when the box is already open.
	ErrAlreadyOpen = errors.New("ballotbox: already open")

	// ErrNotOpen is returned by Close, Store* and Fetch* when the box is
	// not open. Set-valued queries do not fail while closed; they return
	// empty results because the indices are cleared on Close.
	ErrNotOpen = errors.New("ballotbox: not open")

	// ErrNotFound is returned by Fetch* when no record exists for the id.
	ErrNotFound = kvstore.ErrNotFound

	// ErrCorruptRecord is returned when a stored value fails the checksum
	// or carries an unknown format tag.
	ErrCorruptRecord = errors.New("ballotbox: corrupt record")
)
