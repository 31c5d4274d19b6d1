package ordhash

import "errors"

// Sentinel errors returned by ordhash lifecycle and validation operations.
//
// Hot-path operations (insert, lookup, erase, iteration) never return errors;
// they log a diagnostic and return a safe default instead. Callers should use
// [errors.Is] to check error types:
//
//	t, err := ordhash.Reattach(region, opts)
//	if errors.Is(err, ordhash.ErrCorrupt) {
//	    t, err = ordhash.Format(region, opts)
//	}
var (
	// ErrCorrupt indicates the region does not hold a consistent table.
	//
	// Returned by [Reattach] when the header is damaged or a previous [Format]
	// did not finish, and by [Table.Check] when a structural invariant fails.
	//
	// Recovery: Format the region again and rebuild from the source of truth.
	ErrCorrupt = errors.New("ordhash: corrupt")

	// ErrIncompatible indicates a format or configuration mismatch.
	//
	// This occurs when the region was formatted with different options (KeySize,
	// ValueSize, Capacity, Hash) than those provided to [Reattach], when the
	// format version is not recognized, or when [Table.Swap] is called with a
	// table of different geometry.
	//
	// Recovery: reattach with matching options, or Format with the new ones.
	ErrIncompatible = errors.New("ordhash: incompatible")

	// ErrInvalidInput indicates invalid options or an undersized region.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("ordhash: invalid input")
)
