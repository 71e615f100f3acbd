package nodefs

import (
	"fmt"
	"io"
	"math"

	"github.com/rstms/flashfs"
	"github.com/rstms/flashfs/internal/logger"
)

type fileMode int

const (
	modeIdle fileMode = iota
	modeRead
	modeAppend
)

// File implements flashfs.File over a chain of data nodes. Each node
// holds a header followed by up to nodeCapacity bytes of data, and only
// the last node of a file is ever partially filled.
type File struct {
	fs      *FileSystem
	name    string
	dirPage int

	size      uint32
	startNode int
	endNode   int

	// read or append position
	curNode int
	hdr     nodeHeader
	offset  int
	pos     uint32
	eof     bool

	mode   fileMode
	dirty  bool
	closed bool
}

// ensure File implements flashfs.File
var _ flashfs.File = (*File)(nil)

func (f *File) Name() string {
	return f.name
}

func (f *File) Size() int64 {
	return int64(f.size)
}

func (f *File) EOF() bool {
	return f.eof
}

func (f *File) setMode(mode fileMode) error {
	if f.closed {
		return fmt.Errorf("%s: %w", f.name, flashfs.ErrClosed)
	}
	if f.mode != modeIdle && f.mode != mode {
		return fmt.Errorf("%s: %w", f.name, flashfs.ErrInvalidMode)
	}
	f.mode = mode
	return nil
}

// Read copies file data sequentially from the start of the file.
func (f *File) Read(p []byte) (int, error) {
	if err := f.setMode(modeRead); err != nil {
		return 0, err
	}
	if f.eof {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if f.curNode == 0 {
		if f.startNode == 0 {
			f.eof = true
			return 0, io.EOF
		}
		f.curNode = f.startNode
		f.offset = 0
		if err := f.readHeader(); err != nil {
			return 0, err
		}
	}

	if remaining := f.size - f.pos; uint32(len(p)) > remaining {
		p = p[:remaining]
	}
	capacity := f.fs.layout.nodeCapacity
	n := 0
	for n < len(p) {
		if f.offset == capacity {
			next := int(f.hdr.nextNode)
			if next == 0 {
				logger.Warn("%s: chain ends at node %d before size %d", f.name, f.curNode, f.size)
				f.eof = true
				break
			}
			f.curNode = next
			f.offset = 0
			if err := f.readHeader(); err != nil {
				return n, err
			}
		}
		chunk := min(len(p)-n, capacity-f.offset)
		if err := f.fs.readNode(f.curNode, nodeHeaderSize+f.offset, p[n:n+chunk]); err != nil {
			return n, err
		}
		f.offset += chunk
		f.pos += uint32(chunk)
		n += chunk
	}
	if f.pos >= f.size {
		f.eof = true
	}
	return n, nil
}

func (f *File) readHeader() error {
	var raw [nodeHeaderSize]byte
	if err := f.fs.readNode(f.curNode, 0, raw[:]); err != nil {
		return err
	}
	f.hdr = decodeNodeHeader(raw[:])
	return nil
}

// Write appends data to the end of the file. The last node stays in the
// device buffer until the buffer is needed for another page or the file
// is closed.
func (f *File) Write(data []byte) (int, error) {
	if err := f.setMode(modeAppend); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	if uint64(f.size)+uint64(len(data)) > math.MaxUint32 {
		return 0, fmt.Errorf("%s: size: %w", f.name, flashfs.ErrOutOfRange)
	}
	f.dirty = true

	cache := f.fs.cache
	capacity := f.fs.layout.nodeCapacity
	node := f.endNode
	var offset, space int
	if node == 0 {
		first, err := f.fs.nodes.allocate(0)
		if err != nil {
			return 0, err
		}
		node = first
		f.startNode = node
		f.endNode = node
		f.curNode = node
		f.hdr = nodeHeader{}
		if err := f.fs.armNode(node, f.hdr); err != nil {
			return 0, err
		}
		space = capacity
	} else {
		wasCached := cache.cached == node
		if err := cache.load(node); err != nil {
			return 0, err
		}
		if !wasCached {
			// the buffer now holds the committed node, which must be
			// erased before it is stored again
			if err := cache.erase(node); err != nil {
				return 0, err
			}
		}
		if f.curNode != node {
			var raw [nodeHeaderSize]byte
			if err := cache.read(0, raw[:]); err != nil {
				return 0, err
			}
			f.hdr = decodeNodeHeader(raw[:])
			f.curNode = node
		}
		if err := cache.setCache(node); err != nil {
			return 0, err
		}
		offset = int(f.size % uint32(capacity))
		space = capacity - offset
		if f.size > 0 && offset == 0 {
			offset = capacity
			space = 0
		}
	}

	written := 0
	for len(data)-written > space {
		next, ok, err := f.fs.nodes.scanFree()
		if err != nil {
			return written, err
		}
		if !ok {
			return written, flashfs.ErrNoFreeSpace
		}
		f.hdr.nextNode = uint16(next)
		var raw [nodeHeaderSize]byte
		f.hdr.encode(raw[:])
		if err := cache.writeCached(node, 0, raw[:]); err != nil {
			return written, err
		}
		if err := cache.writeCached(node, nodeHeaderSize+offset, data[written:written+space]); err != nil {
			return written, err
		}
		// marking next used loads a map page, which stores node
		if _, err := f.fs.nodes.allocate(next); err != nil {
			return written, err
		}
		f.size += uint32(space)
		written += space
		f.endNode = next

		f.hdr = nodeHeader{prevNode: uint16(node)}
		node = next
		f.curNode = node
		if err := f.fs.armNode(node, f.hdr); err != nil {
			return written, err
		}
		offset = 0
		space = capacity
	}
	if rest := len(data) - written; rest > 0 {
		if err := cache.writeCached(node, nodeHeaderSize+offset, data[written:]); err != nil {
			return written, err
		}
		f.size += uint32(rest)
		written += rest
	}
	return written, nil
}

// Close records the file's size and node range in its directory entry
// if it was written.
func (f *File) Close() error {
	if f.closed {
		return fmt.Errorf("%s: %w", f.name, flashfs.ErrClosed)
	}
	f.closed = true
	if !f.dirty {
		return nil
	}
	if err := f.fs.dir.update(f.dirPage, f.size, f.startNode, f.endNode); err != nil {
		return err
	}
	logger.Debug("closed %q: size=%d nodes %d..%d", f.name, f.size, f.startNode, f.endNode)
	return nil
}
