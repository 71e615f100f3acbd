package flashfs

import "fmt"

// Device is the page-granular interface to a serial flash chip with a
// single on-chip SRAM buffer. All page and offset arguments are checked
// against the device geometry and fail with ErrOutOfRange.
//
// Every operation blocks until the chip reports ready; there is no
// cancellation once an operation has been issued.
type Device interface {
	Geometry() Geometry
	ReadID() (DeviceID, error)
	WaitReady()

	// PageRead reads from a main memory page, bypassing the buffer.
	PageRead(page, offset int, dst []byte) error
	// PageWrite programs a page through the buffer with a built-in erase.
	PageWrite(page, offset int, src []byte) error
	PageErase(page int) error
	SectorErase(sector int) error
	BlockErase(block int) error
	ChipErase() error

	BufferLoad(page int) error
	// BufferStore programs the buffer into a page without erasing it first.
	BufferStore(page int) error
	BufferEraseStore(page int) error
	// BufferRead and BufferWrite wrap around to offset 0 at the end of the buffer.
	BufferRead(offset int, dst []byte) error
	BufferWrite(offset int, src []byte) error

	// RawRead is a continuous read starting at a linear byte address,
	// crossing page boundaries and bypassing the buffer.
	RawRead(addr int64, dst []byte) error
}

// DeviceID is the manufacturer and device identification returned by the chip.
type DeviceID [4]byte

func (id DeviceID) Manufacturer() byte {
	return id[0]
}

// Family is the family code in the upper bits of the first device byte.
func (id DeviceID) Family() byte {
	return id[1] & 0xE0
}

// Density is the density code in the lower bits of the first device byte.
func (id DeviceID) Density() int {
	return int(id[1] & 0x1F)
}

func (id DeviceID) String() string {
	return fmt.Sprintf("%02x %02x %02x %02x", id[0], id[1], id[2], id[3])
}
