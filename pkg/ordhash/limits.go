package ordhash

// Hardcoded implementation limits.
//
// These limits keep offset arithmetic away from overflow boundaries and bound
// the size of a single region. All violations return ErrInvalidInput.
const (
	// Maximum allowed key size (bytes).
	maxKeySizeBytes = 4096

	// Maximum allowed value size (bytes) per slot.
	maxValueSizeBytes = 1 << 20 // 1 MiB

	// Maximum number of slots. Must stay below nilIndex.
	maxCapacity = 1 << 28

	// Maximum total region size (bytes).
	maxRegionSizeBytes = uint64(1) << 40 // 1 TiB
)
