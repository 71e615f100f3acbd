package device

import (
	"testing"

	"github.com/rstms/flashfs"
	"github.com/stretchr/testify/require"
)

func TestGeometryLookup(t *testing.T) {
	g, err := Lookup(5)
	require.Nil(t, err)
	require.Equal(t, "AT45DB081", g.Name)
	require.Equal(t, 264, g.PageSize)
	require.Equal(t, 4096, g.PageCount)
	require.Equal(t, 16, g.NumSectors())
	require.Equal(t, 512, g.NumBlocks())

	_, err = Lookup(1)
	require.ErrorIs(t, err, flashfs.ErrUnknownDevice)
	_, err = Lookup(9)
	require.ErrorIs(t, err, flashfs.ErrUnknownDevice)
}

func TestGeometryDetect(t *testing.T) {
	for _, density := range Densities() {
		g, err := Detect(IDForDensity(density))
		require.Nil(t, err)
		expected, err := Lookup(density)
		require.Nil(t, err)
		require.Equal(t, expected, g)
	}

	_, err := Detect(flashfs.DeviceID{0x1E, 0x25, 0, 0})
	require.ErrorIs(t, err, flashfs.ErrUnknownDevice)

	_, err = Detect(flashfs.DeviceID{ManufacturerID, 0x45, 0, 0})
	require.ErrorIs(t, err, flashfs.ErrUnknownDevice)
}

func TestGeometryLookupSize(t *testing.T) {
	for _, density := range Densities() {
		g, err := Lookup(density)
		require.Nil(t, err)
		found, fg, err := LookupSize(g.Size())
		require.Nil(t, err)
		require.Equal(t, density, found)
		require.Equal(t, g, fg)
	}
	_, _, err := LookupSize(1000)
	require.ErrorIs(t, err, flashfs.ErrUnknownDevice)
}

func TestGeometryAddress(t *testing.T) {
	g, err := Lookup(5)
	require.Nil(t, err)
	require.Equal(t, uint32(3<<9|17), g.Address(3, 17))

	g, err = Lookup(6)
	require.Nil(t, err)
	require.Equal(t, uint32(3<<10|500), g.Address(3, 500))
}
