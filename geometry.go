package flashfs

// Geometry describes the page layout and addressing of one flash density.
type Geometry struct {
	Name string
	// PageOffset is the number of address bits used for the byte offset within a page.
	PageOffset    uint8
	Sector0Offset uint8
	SectorNOffset uint8
	PageSize      int
	PageCount     int
	// SectorSize is the number of pages in a sector.
	SectorSize int
}

// PagesPerBlock is the erase block size in pages.
const PagesPerBlock = 8

func (g Geometry) NumSectors() int {
	return g.PageCount / g.SectorSize
}

func (g Geometry) NumBlocks() int {
	return g.PageCount / PagesPerBlock
}

// Size is the device capacity in bytes.
func (g Geometry) Size() int64 {
	return int64(g.PageCount) * int64(g.PageSize)
}

// Address encodes a page and byte offset as a device command address.
func (g Geometry) Address(page, offset int) uint32 {
	return uint32(page)<<g.PageOffset | uint32(offset)
}

// ValidPage reports whether page is addressable on the device.
func (g Geometry) ValidPage(page int) bool {
	return page >= 0 && page < g.PageCount
}

// ValidRange reports whether size bytes at offset fit within one page.
func (g Geometry) ValidRange(offset, size int) bool {
	return offset >= 0 && size >= 0 && offset+size <= g.PageSize
}
