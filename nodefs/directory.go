package nodefs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/rstms/flashfs"
	"github.com/rstms/flashfs/internal/logger"
)

// Directory implements flashfs.Directory over the chain of directory
// entry pages starting at the first page after the node map.
type Directory struct {
	fs *FileSystem
}

// ensure Directory implements flashfs.Directory
var _ flashfs.Directory = (*Directory)(nil)

// DirectoryEntry implements flashfs.DirectoryEntry for one entry page.
type DirectoryEntry struct {
	dir   *Directory
	page  int
	name  string
	entry entry
}

// ensure DirectoryEntry implements flashfs.DirectoryEntry
var _ flashfs.DirectoryEntry = (*DirectoryEntry)(nil)

func (d *DirectoryEntry) Name() string {
	return d.name
}

func (d *DirectoryEntry) Size() int64 {
	return int64(d.entry.size)
}

func (d *DirectoryEntry) Page() int {
	return d.page
}

func (d *DirectoryEntry) StartNode() int {
	return int(d.entry.startNode)
}

func (d *DirectoryEntry) EndNode() int {
	return int(d.entry.endNode)
}

func (d *DirectoryEntry) File() (flashfs.File, error) {
	return d.dir.fs.openEntry(d.name, d.page, d.entry), nil
}

// lookup is the result of walking the chain for a name. When page is 0
// the name was not found and last is the page a new entry goes after,
// with tail holding that page's entry. A last of 0 means the chain is
// unusable.
type lookup struct {
	page  int
	entry entry
	last  int
	tail  entry
}

// find walks the chain reading flash directly. It never changes the
// device contents.
func (d *Directory) find(name string) (lookup, error) {
	var raw [maxEntrySize]byte
	want := raw[:entryHeaderSize+len(name)+1]
	l := d.fs.layout
	page := l.dirStart
	for steps := 0; steps < l.geom.PageCount; steps++ {
		if err := d.fs.device.PageRead(page, 0, want); err != nil {
			return lookup{}, fmt.Errorf("read directory page %d: %w", page, err)
		}
		e := decodeEntry(want)
		if e.sentinel() {
			return lookup{last: page, tail: e}, nil
		}
		if string(want[entryNameOffset:entryNameOffset+len(name)]) == name && want[entryNameOffset+len(name)] == 0 {
			return lookup{page: page, entry: e, last: page, tail: e}, nil
		}
		next := int(e.nextEntryPage)
		if next == 0 {
			return lookup{last: page, tail: e}, nil
		}
		if !l.validLink(next) {
			logger.Warn("directory page %d links to invalid page %d", page, next)
			return lookup{}, nil
		}
		page = next
	}
	logger.Warn("directory chain does not terminate")
	return lookup{}, nil
}

// create appends an entry for name and returns its page.
func (d *Directory) create(name string) (int, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	found, err := d.find(name)
	if err != nil {
		return 0, err
	}
	if found.page != 0 {
		return 0, fmt.Errorf("%s: %w", name, flashfs.ErrFileExists)
	}
	if found.last == 0 {
		return 0, flashfs.ErrNotFormatted
	}

	cache := d.fs.cache
	page := found.last
	prev := 0
	if !found.tail.sentinel() {
		page, err = d.fs.nodes.allocate(0)
		if err != nil {
			return 0, fmt.Errorf("allocate directory page: %w", err)
		}
		var link [2]byte
		binary.LittleEndian.PutUint16(link[:], uint16(page))
		if err := cache.load(found.last); err != nil {
			return 0, err
		}
		if err := cache.write(entryNextOffset, link[:]); err != nil {
			return 0, err
		}
		if err := cache.eraseStore(found.last); err != nil {
			return 0, err
		}
		prev = found.last
	}

	var raw [maxEntrySize]byte
	e := entry{prevEntryPage: uint16(prev)}
	e.encode(raw[:])
	n := copy(raw[entryNameOffset:], name)
	raw[entryNameOffset+n] = 0
	if err := cache.load(page); err != nil {
		return 0, err
	}
	if err := cache.write(0, raw[:entryNameOffset+n+1]); err != nil {
		return 0, err
	}
	if err := cache.store(page); err != nil {
		return 0, err
	}
	logger.Debug("created entry %q at page %d after %d", name, page, prev)
	return page, nil
}

// update rewrites the size and node range of the entry at page.
func (d *Directory) update(page int, size uint32, startNode, endNode int) error {
	var raw [entryNextOffset]byte
	binary.LittleEndian.PutUint32(raw[entrySizeOffset:], size)
	binary.LittleEndian.PutUint16(raw[entryStartOffset:], uint16(startNode))
	binary.LittleEndian.PutUint16(raw[entryEndOffset:], uint16(endNode))

	cache := d.fs.cache
	if err := cache.load(page); err != nil {
		return err
	}
	if err := cache.write(entrySizeOffset, raw[:]); err != nil {
		return err
	}
	if err := cache.eraseStore(page); err != nil {
		return err
	}
	logger.Debug("updated entry at page %d: size=%d start=%d end=%d", page, size, startNode, endNode)
	return nil
}

// readEntry decodes the full entry at page.
func (d *Directory) readEntry(page int) (*DirectoryEntry, error) {
	var raw [maxEntrySize]byte
	if err := d.fs.device.PageRead(page, 0, raw[:]); err != nil {
		return nil, fmt.Errorf("read directory page %d: %w", page, err)
	}
	name := raw[entryNameOffset:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	result := &DirectoryEntry{
		dir:   d,
		page:  page,
		name:  string(name),
		entry: decodeEntry(raw[:]),
	}
	return result, nil
}

func (d *Directory) Entries() ([]flashfs.DirectoryEntry, error) {
	l := d.fs.layout
	result := []flashfs.DirectoryEntry{}
	page := l.dirStart
	for steps := 0; steps < l.geom.PageCount; steps++ {
		entry, err := d.readEntry(page)
		if err != nil {
			return nil, err
		}
		if entry.entry.sentinel() {
			return result, nil
		}
		result = append(result, entry)
		next := int(entry.entry.nextEntryPage)
		if next == 0 {
			return result, nil
		}
		if !l.validLink(next) {
			return nil, fmt.Errorf("directory page %d links to %d: %w", page, next, flashfs.ErrNotFormatted)
		}
		page = next
	}
	return nil, fmt.Errorf("directory chain does not terminate: %w", flashfs.ErrNotFormatted)
}

func (d *Directory) Entry(name string) (flashfs.DirectoryEntry, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	found, err := d.find(name)
	if err != nil {
		return nil, err
	}
	if found.page == 0 {
		if found.last == 0 {
			return nil, flashfs.ErrNotFormatted
		}
		return nil, fmt.Errorf("%s: %w", name, flashfs.ErrFileNotFound)
	}
	result := &DirectoryEntry{
		dir:   d,
		page:  found.page,
		name:  name,
		entry: found.entry,
	}
	return result, nil
}

func (d *Directory) AddFile(name string) (flashfs.DirectoryEntry, error) {
	page, err := d.create(name)
	if err != nil {
		return nil, err
	}
	return d.readEntry(page)
}
