package buffer

import "errors"

// ErrNoMoreBuffer is returned when every frame in the pool is pinned and no
// victim can be chosen.
var ErrNoMoreBuffer = errors.New("buffer: no more buffer frames available")

// ErrPageNotInBuffer is reserved for lookups that require a page to already
// be resident; no Manager method returns it, since FetchPage always faults
// a missing page in.
var ErrPageNotInBuffer = errors.New("buffer: page not resident in buffer pool")
