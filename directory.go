package flashfs

// Directory is the linked chain of directory entries.
type Directory interface {
	Entry(name string) (DirectoryEntry, error)
	Entries() ([]DirectoryEntry, error)
	AddFile(name string) (DirectoryEntry, error)
}

// DirectoryEntry represents a single file record within the directory
// chain. Each entry occupies one flash page.
type DirectoryEntry interface {
	Name() string
	Size() int64
	// Page is the flash page holding the entry.
	Page() int
	StartNode() int
	EndNode() int
	File() (File, error)
}
