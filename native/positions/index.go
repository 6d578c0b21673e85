package positions

import "errors"

var (
	// ErrInvalidSeedIndex is returned when a caller-supplied seed falls outside
	// the live range (Offset, Offset+Count].
	ErrInvalidSeedIndex = errors.New("positions: invalid seed index")
	// ErrEmpty is returned when closing a position on an index with no live
	// positions.
	ErrEmpty = errors.New("positions: no open positions")
	// ErrNotOldest is returned when the close request does not target the
	// oldest live position. Positions recycle strictly first-in first-out.
	ErrNotOldest = errors.New("positions: close must target the oldest position")
)

// Index is a recycling ledger bounding which seed indices currently refer to
// live sub-positions of one owner. Positions open in increasing seed order and
// close oldest-first; Offset counts closed positions, Count counts live ones.
type Index struct {
	Count  uint64
	Offset uint64
	Bump   uint8
}

// New returns an index starting at the given offset with no live positions.
func New(offset uint64, bump uint8) Index {
	return Index{Count: 0, Offset: offset, Bump: bump}
}

// Create reserves the next seed index and records the new live position.
func (ix *Index) Create() uint64 {
	seed := ix.Offset + ix.Count + 1
	ix.Count++
	return seed
}

// NextSeed previews the seed Create would return without mutating the index.
func (ix *Index) NextSeed() uint64 {
	return ix.Offset + ix.Count + 1
}

// IsValidSeed reports whether seed refers to a live position.
func (ix *Index) IsValidSeed(seed uint64) bool {
	return seed > ix.Offset && seed <= ix.Offset+ix.Count
}

// ValidateSeed returns ErrInvalidSeedIndex unless seed refers to a live
// position.
func (ix *Index) ValidateSeed(seed uint64) error {
	if !ix.IsValidSeed(seed) {
		return ErrInvalidSeedIndex
	}
	return nil
}

// CloseOldest retires the oldest live position. The seed must name that
// position explicitly; closing out of order is rejected rather than silently
// corrupting the window, and closing on an empty index fails instead of
// underflowing.
func (ix *Index) CloseOldest(seed uint64) error {
	if ix.Count == 0 {
		return ErrEmpty
	}
	if seed != ix.Offset+1 {
		return ErrNotOldest
	}
	ix.Count--
	ix.Offset++
	return nil
}
