package nodefs

import (
	"fmt"

	"github.com/rstms/flashfs"
	"github.com/rstms/flashfs/device"
	"github.com/rstms/flashfs/internal/logger"
)

// FileSystem is the implementation of flashfs.FileSystem over a page
// erase flash device with a single SRAM buffer.
type FileSystem struct {
	device flashfs.Device
	layout layout
	cache  *bufferCache
	nodes  *nodeMap
	dir    *Directory
	page   []byte
}

// ensure FileSystem implements flashfs.FileSystem
var _ flashfs.FileSystem = (*FileSystem)(nil)

func newFileSystem(dev flashfs.Device) *FileSystem {
	l := newLayout(dev.Geometry())
	cache := newBufferCache(dev)
	f := &FileSystem{
		device: dev,
		layout: l,
		cache:  cache,
		nodes: &nodeMap{
			dev:    dev,
			cache:  cache,
			layout: l,
		},
		page: make([]byte, l.geom.PageSize),
	}
	f.dir = &Directory{fs: f}
	return f
}

// Format erases the device and writes an empty filesystem: the node map
// with its own pages and the first directory page marked used, followed
// by an erased first directory page.
func Format(dev flashfs.Device) (*FileSystem, error) {
	f := newFileSystem(dev)
	if err := dev.ChipErase(); err != nil {
		return nil, fmt.Errorf("chip erase: %w", err)
	}
	f.cache.reset()

	for mapPage := 0; mapPage < f.layout.mapPages; mapPage++ {
		f.nodes.mapImage(mapPage, f.page)
		if err := f.cache.write(0, f.page); err != nil {
			return nil, err
		}
		if err := f.cache.eraseStore(mapPage); err != nil {
			return nil, err
		}
	}

	fill(f.page, device.Erased)
	if err := f.cache.write(0, f.page); err != nil {
		return nil, err
	}
	if err := f.cache.eraseStore(f.layout.dirStart); err != nil {
		return nil, err
	}
	logger.Info("formatted %s: %d map pages, directory at page %d", f.layout.geom.Name, f.layout.mapPages, f.layout.dirStart)
	return f, nil
}

// New returns a FileSystem for a previously formatted device.
func New(dev flashfs.Device) (*FileSystem, error) {
	f := newFileSystem(dev)
	for node := 0; node <= f.layout.dirStart; node++ {
		free, err := f.nodes.isFree(node)
		if err != nil {
			return nil, err
		}
		if free {
			return nil, fmt.Errorf("reserved node %d is free: %w", node, flashfs.ErrNotFormatted)
		}
	}
	return f, nil
}

func (f *FileSystem) Device() flashfs.Device {
	return f.device
}

func (f *FileSystem) RootDir() (flashfs.Directory, error) {
	return f.dir, nil
}

// Create adds an empty file to the directory and returns a handle for
// appending to it.
func (f *FileSystem) Create(name string) (flashfs.File, error) {
	page, err := f.dir.create(name)
	if err != nil {
		return nil, err
	}
	result := &File{
		fs:      f,
		name:    name,
		dirPage: page,
		eof:     true,
	}
	return result, nil
}

// Open returns a handle on an existing file positioned at its start.
func (f *FileSystem) Open(name string) (flashfs.File, error) {
	entry, err := f.dir.Entry(name)
	if err != nil {
		return nil, err
	}
	e := entry.(*DirectoryEntry)
	return f.openEntry(name, e.page, e.entry), nil
}

func (f *FileSystem) openEntry(name string, page int, e entry) *File {
	return &File{
		fs:        f,
		name:      name,
		dirPage:   page,
		size:      e.size,
		startNode: int(e.startNode),
		endNode:   int(e.endNode),
		eof:       e.size == 0,
	}
}

// Stat returns the directory entry for name.
func (f *FileSystem) Stat(name string) (flashfs.DirectoryEntry, error) {
	return f.dir.Entry(name)
}

// Free returns the number of unallocated nodes.
func (f *FileSystem) Free() (int, error) {
	return f.nodes.freeCount()
}

// Sync stores the page pending in the device buffer, if any.
func (f *FileSystem) Sync() error {
	return f.cache.sync()
}

func (f *FileSystem) Info() (map[string]any, error) {
	free, err := f.Free()
	if err != nil {
		return nil, err
	}
	entries, err := f.dir.Entries()
	if err != nil {
		return nil, err
	}
	var used int64
	for _, e := range entries {
		used += e.Size()
	}
	g := f.layout.geom
	info := map[string]any{
		"device":         g.Name,
		"page_size":      g.PageSize,
		"page_count":     g.PageCount,
		"map_pages":      f.layout.mapPages,
		"directory_page": f.layout.dirStart,
		"node_capacity":  f.layout.nodeCapacity,
		"free_nodes":     free,
		"files":          len(entries),
		"file_bytes":     used,
	}
	return info, nil
}

// readNode reads from a node in flash, storing it first if it is the
// pending cached page.
func (f *FileSystem) readNode(node, offset int, dst []byte) error {
	if f.cache.cached == node {
		if err := f.cache.sync(); err != nil {
			return err
		}
	}
	if err := f.device.PageRead(node, offset, dst); err != nil {
		return fmt.Errorf("read node %d: %w", node, err)
	}
	return nil
}

// armNode makes node the cached page with an erased body and hdr.
func (f *FileSystem) armNode(node int, hdr nodeHeader) error {
	if err := f.cache.setCache(node); err != nil {
		return err
	}
	fill(f.page, device.Erased)
	hdr.encode(f.page)
	return f.cache.writeCached(node, 0, f.page)
}

func fill(buf []byte, value byte) {
	for i := range buf {
		buf[i] = value
	}
}
