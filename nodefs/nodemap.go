package nodefs

import (
	"fmt"
	"math/bits"

	"github.com/rstms/flashfs"
	"github.com/rstms/flashfs/internal/logger"
)

// scanChunk is how many map bytes are read per raw read while scanning.
const scanChunk = 16

// nodeMap is the free node bitmap held in the first pages of the device.
// A set bit marks a free node, a cleared bit marks it used. Nodes are
// never freed.
type nodeMap struct {
	dev    flashfs.Device
	cache  *bufferCache
	layout layout
}

// scanFree returns the lowest free node. It reads flash directly and
// does not disturb the buffer.
func (m *nodeMap) scanFree() (int, bool, error) {
	var chunk [scanChunk]byte
	for off := 0; off < m.layout.mapBytes; off += scanChunk {
		n := min(scanChunk, m.layout.mapBytes-off)
		if err := m.dev.RawRead(int64(off), chunk[:n]); err != nil {
			return 0, false, fmt.Errorf("scan node map at %d: %w", off, err)
		}
		for i, b := range chunk[:n] {
			if b == 0 {
				continue
			}
			node := (off+i)*8 + bits.LeadingZeros8(b)
			if node >= m.layout.geom.PageCount {
				return 0, false, nil
			}
			return node, true, nil
		}
	}
	return 0, false, nil
}

// isFree reads a node's map bit from flash.
func (m *nodeMap) isFree(node int) (bool, error) {
	if !m.layout.geom.ValidPage(node) {
		return false, fmt.Errorf("node %d: %w", node, flashfs.ErrOutOfRange)
	}
	page, offset, mask := m.layout.mapLocation(node)
	var b [1]byte
	if err := m.dev.PageRead(page, offset, b[:]); err != nil {
		return false, fmt.Errorf("read node map: %w", err)
	}
	return b[0]&mask != 0, nil
}

// markUsed clears a node's map bit. Loading the map page stores any
// pending cached page first.
func (m *nodeMap) markUsed(node int) error {
	if !m.layout.geom.ValidPage(node) {
		return fmt.Errorf("node %d: %w", node, flashfs.ErrOutOfRange)
	}
	page, offset, mask := m.layout.mapLocation(node)
	if err := m.cache.load(page); err != nil {
		return err
	}
	var b [1]byte
	if err := m.cache.read(offset, b[:]); err != nil {
		return err
	}
	b[0] &^= mask
	if err := m.cache.write(offset, b[:]); err != nil {
		return err
	}
	return m.cache.store(page)
}

// allocate marks node used, or the lowest free node when node is 0.
func (m *nodeMap) allocate(node int) (int, error) {
	if node == 0 {
		free, ok, err := m.scanFree()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, flashfs.ErrNoFreeSpace
		}
		node = free
	}
	if err := m.markUsed(node); err != nil {
		return 0, err
	}
	logger.Debug("allocated node %d", node)
	return node, nil
}

// freeCount counts the free nodes.
func (m *nodeMap) freeCount() (int, error) {
	var chunk [scanChunk]byte
	count := 0
	for off := 0; off < m.layout.mapBytes; off += scanChunk {
		n := min(scanChunk, m.layout.mapBytes-off)
		if err := m.dev.RawRead(int64(off), chunk[:n]); err != nil {
			return 0, fmt.Errorf("scan node map at %d: %w", off, err)
		}
		for _, b := range chunk[:n] {
			count += bits.OnesCount8(b)
		}
	}
	return count, nil
}

// mapImage builds the formatted content of one map page.
func (m *nodeMap) mapImage(mapPage int, buf []byte) {
	for i := range buf {
		b := byte(0xFF)
		first := mapPage*m.layout.nodesPerMapPage + i*8
		for bit := 0; bit < 8; bit++ {
			node := first + bit
			if node >= m.layout.geom.PageCount || m.layout.reserved(node) {
				b &^= byte(0x80) >> uint(bit)
			}
		}
		buf[i] = b
	}
}
