package flashfs

import "errors"

// Errors reported by devices and filesystems. Implementations wrap them
// with context; callers test with errors.Is.
var (
	// ErrOutOfRange indicates a page, offset or size outside the device geometry.
	ErrOutOfRange = errors.New("out of range")

	// ErrNoFreeSpace indicates the node map has no available node left.
	ErrNoFreeSpace = errors.New("no free space")

	ErrFileExists   = errors.New("file exists")
	ErrFileNotFound = errors.New("file not found")

	// ErrNotFormatted indicates there is no usable directory chain on the device.
	ErrNotFormatted = errors.New("not formatted")

	ErrNameTooLong = errors.New("file name too long")
	ErrInvalidName = errors.New("invalid file name")

	// ErrInvalidMode is returned when a handle that is reading is written to,
	// or a handle that is appending is read from.
	ErrInvalidMode = errors.New("operation not permitted in current handle mode")

	ErrClosed = errors.New("file already closed")

	// ErrUnknownDevice indicates a device ID outside the supported flash family.
	ErrUnknownDevice = errors.New("unknown flash device")
)
