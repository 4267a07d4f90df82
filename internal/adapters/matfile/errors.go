package matfile

import "errors"

var (
	// ErrInvalidHeader is returned for input that is not a Level-5 MAT file.
	ErrInvalidHeader = errors.New("matfile: invalid header")
	// ErrUnsupportedVersion is returned for v7.3 (HDF5) and other unknown versions.
	ErrUnsupportedVersion = errors.New("matfile: unsupported version")
	// ErrCorrupt is returned when an element overruns its container or is malformed.
	ErrCorrupt = errors.New("matfile: corrupt data element")
	// ErrUnsupportedClass is returned when a variable is not a real numeric array.
	ErrUnsupportedClass = errors.New("matfile: unsupported array class")
	// ErrMissingVariable is returned when a requested variable is absent.
	ErrMissingVariable = errors.New("matfile: variable not found")
	// ErrTooLarge is returned when decompressed data exceeds the reader limit.
	ErrTooLarge = errors.New("matfile: decompressed data too large")
)
