package nodefs

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rstms/flashfs"
)

// MaxNameLength is the longest file name a directory entry holds.
const MaxNameLength = 128

// Directory entry page layout.
const (
	entrySizeOffset  = 0
	entryStartOffset = entrySizeOffset + 4
	entryEndOffset   = entryStartOffset + 2
	entryNextOffset  = entryEndOffset + 2
	entryPrevOffset  = entryNextOffset + 2
	entryNameOffset  = entryPrevOffset + 2

	entryHeaderSize = entryNameOffset
	maxEntrySize    = entryHeaderSize + MaxNameLength + 1
)

// Data node page layout.
const (
	nodeTypeOffset = 0
	nodePrevOffset = nodeTypeOffset + 1
	nodeNextOffset = nodePrevOffset + 2
	nodeHeaderSize = nodeNextOffset + 2
)

// tailSentinel in nextEntryPage marks an erased page awaiting an entry.
const tailSentinel = 0xFFFF

// entry is the fixed part of a directory entry page.
type entry struct {
	size          uint32
	startNode     uint16
	endNode       uint16
	nextEntryPage uint16
	prevEntryPage uint16
}

func decodeEntry(buf []byte) entry {
	return entry{
		size:          binary.LittleEndian.Uint32(buf[entrySizeOffset:]),
		startNode:     binary.LittleEndian.Uint16(buf[entryStartOffset:]),
		endNode:       binary.LittleEndian.Uint16(buf[entryEndOffset:]),
		nextEntryPage: binary.LittleEndian.Uint16(buf[entryNextOffset:]),
		prevEntryPage: binary.LittleEndian.Uint16(buf[entryPrevOffset:]),
	}
}

func (e entry) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[entrySizeOffset:], e.size)
	binary.LittleEndian.PutUint16(buf[entryStartOffset:], e.startNode)
	binary.LittleEndian.PutUint16(buf[entryEndOffset:], e.endNode)
	binary.LittleEndian.PutUint16(buf[entryNextOffset:], e.nextEntryPage)
	binary.LittleEndian.PutUint16(buf[entryPrevOffset:], e.prevEntryPage)
}

func (e entry) sentinel() bool {
	return e.nextEntryPage == tailSentinel
}

// nodeHeader links a data node into its file's chain. A nextNode of 0
// ends the chain.
type nodeHeader struct {
	nodeType uint8
	prevNode uint16
	nextNode uint16
}

func decodeNodeHeader(buf []byte) nodeHeader {
	return nodeHeader{
		nodeType: buf[nodeTypeOffset],
		prevNode: binary.LittleEndian.Uint16(buf[nodePrevOffset:]),
		nextNode: binary.LittleEndian.Uint16(buf[nodeNextOffset:]),
	}
}

func (h nodeHeader) encode(buf []byte) {
	buf[nodeTypeOffset] = h.nodeType
	binary.LittleEndian.PutUint16(buf[nodePrevOffset:], h.prevNode)
	binary.LittleEndian.PutUint16(buf[nodeNextOffset:], h.nextNode)
}

// layout holds the regions derived from the device geometry. Pages
// [0, mapPages) hold the node map and dirStart is the first directory
// page. Every other page is a node available to files or directory
// entries.
type layout struct {
	geom            flashfs.Geometry
	mapPages        int
	mapBytes        int
	nodesPerMapPage int
	dirStart        int
	nodeCapacity    int
}

func newLayout(geom flashfs.Geometry) layout {
	perPage := geom.PageSize * 8
	mapPages := (geom.PageCount + perPage - 1) / perPage
	return layout{
		geom:            geom,
		mapPages:        mapPages,
		mapBytes:        (geom.PageCount + 7) / 8,
		nodesPerMapPage: perPage,
		dirStart:        mapPages,
		nodeCapacity:    geom.PageSize - nodeHeaderSize,
	}
}

// reserved reports whether node is a map page or the first directory page.
func (l layout) reserved(node int) bool {
	return node <= l.dirStart
}

// validLink reports whether page may follow another in the directory chain.
func (l layout) validLink(page int) bool {
	return page > l.dirStart && page < l.geom.PageCount
}

// mapLocation returns the map page, byte offset and bit mask of a node.
// Bits are ordered most significant first.
func (l layout) mapLocation(node int) (int, int, byte) {
	page := node / l.nodesPerMapPage
	offset := (node % l.nodesPerMapPage) / 8
	return page, offset, byte(0x80) >> uint(node&7)
}

func checkName(name string) error {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%q: %w", name, flashfs.ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%d bytes: %w", len(name), flashfs.ErrNameTooLong)
	}
	return nil
}
