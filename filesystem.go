package flashfs

import "io"

// A FileSystem provides access to the flat namespace of files stored
// on a flash device.
type FileSystem interface {
	// RootDir returns the single directory chain.
	RootDir() (Directory, error)
	Create(name string) (File, error)
	Open(name string) (File, error)
	Info() (map[string]any, error)
}

// File is a handle on one file's node chain. Files are append-only:
// writes always extend the end of the file, and a handle is either
// reading or appending once its first I/O has happened.
type File interface {
	io.Reader
	io.Writer
	io.Closer

	Name() string
	Size() int64
	// EOF reports whether the read position has reached the end of the file.
	EOF() bool
}
