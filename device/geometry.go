package device

import (
	"fmt"

	"github.com/rstms/flashfs"
)

const (
	ManufacturerID = 0x1F
	FamilyID       = 0x20

	// densityOffset maps a density code to its index in the geometry table.
	densityOffset = 2
)

// Sector 0 is split in two parts that are erased separately.
const (
	Sector0A = 0x0800
	Sector0B = 0x1000
)

// operating parameters for the supported densities, indexed by density code - 2
var geometries = []flashfs.Geometry{
	{Name: "AT45DB011", PageOffset: 9, Sector0Offset: 3, SectorNOffset: 7, PageSize: 264, PageCount: 512, SectorSize: 128},
	{Name: "AT45DB021", PageOffset: 9, Sector0Offset: 3, SectorNOffset: 7, PageSize: 264, PageCount: 1024, SectorSize: 128},
	{Name: "AT45DB041", PageOffset: 9, Sector0Offset: 3, SectorNOffset: 8, PageSize: 264, PageCount: 2048, SectorSize: 256},
	{Name: "AT45DB081", PageOffset: 9, Sector0Offset: 3, SectorNOffset: 8, PageSize: 264, PageCount: 4096, SectorSize: 256},
	{Name: "AT45DB161", PageOffset: 10, Sector0Offset: 3, SectorNOffset: 8, PageSize: 528, PageCount: 4096, SectorSize: 256},
	{Name: "AT45DB321", PageOffset: 10, Sector0Offset: 3, SectorNOffset: 7, PageSize: 528, PageCount: 8192, SectorSize: 128},
	{Name: "AT45DB642", PageOffset: 9, Sector0Offset: 3, SectorNOffset: 10, PageSize: 264, PageCount: 32768, SectorSize: 1024},
}

// Lookup returns the geometry for a density code.
func Lookup(density int) (flashfs.Geometry, error) {
	i := density - densityOffset
	if i < 0 || i >= len(geometries) {
		return flashfs.Geometry{}, fmt.Errorf("density %d: %w", density, flashfs.ErrUnknownDevice)
	}
	return geometries[i], nil
}

// Densities lists the supported density codes.
func Densities() []int {
	ret := make([]int, len(geometries))
	for i := range geometries {
		ret[i] = i + densityOffset
	}
	return ret
}

// Detect selects the geometry for the chip reporting id.
func Detect(id flashfs.DeviceID) (flashfs.Geometry, error) {
	if id.Manufacturer() != ManufacturerID || id.Family() != FamilyID {
		return flashfs.Geometry{}, fmt.Errorf("device id %s: %w", id, flashfs.ErrUnknownDevice)
	}
	return Lookup(id.Density())
}

// IDForDensity returns the identification bytes a chip of the given density reports.
func IDForDensity(density int) flashfs.DeviceID {
	return flashfs.DeviceID{ManufacturerID, FamilyID | byte(density&0x1F), 0x00, 0x00}
}

// LookupSize finds the density whose capacity is exactly size bytes.
func LookupSize(size int64) (int, flashfs.Geometry, error) {
	for i, g := range geometries {
		if g.Size() == size {
			return i + densityOffset, g, nil
		}
	}
	return 0, flashfs.Geometry{}, fmt.Errorf("no device with %d bytes: %w", size, flashfs.ErrUnknownDevice)
}
