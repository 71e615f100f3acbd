package device

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rstms/flashfs"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	ops   map[string]int
	bytes map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{ops: map[string]int{}, bytes: map[string]int{}}
}

func (m *countingMetrics) RecordOperation(op string, n int) {
	m.ops[op]++
	m.bytes[op] += n
}

func newSim(t *testing.T) *Sim {
	sim, err := NewMemorySim(2)
	require.Nil(t, err)
	return sim
}

func TestSimReadID(t *testing.T) {
	sim := newSim(t)
	id, err := sim.ReadID()
	require.Nil(t, err)
	require.Equal(t, byte(ManufacturerID), id.Manufacturer())
	require.Equal(t, 2, id.Density())

	_, err = NewSim(flashfs.DeviceID{0, 0, 0, 0}, NewMemoryStore(sim.Geometry()), SimConfig{})
	require.ErrorIs(t, err, flashfs.ErrUnknownDevice)
}

func TestSimBufferWrap(t *testing.T) {
	sim := newSim(t)
	size := sim.Geometry().PageSize

	require.Nil(t, sim.BufferWrite(size-2, []byte("wrap")))
	out := make([]byte, 4)
	require.Nil(t, sim.BufferRead(size-2, out))
	require.Equal(t, []byte("wrap"), out)

	head := make([]byte, 2)
	require.Nil(t, sim.BufferRead(0, head))
	require.Equal(t, []byte("ap"), head)

	require.ErrorIs(t, sim.BufferWrite(size, []byte("x")), flashfs.ErrOutOfRange)
	require.ErrorIs(t, sim.BufferRead(-1, out), flashfs.ErrOutOfRange)
}

func TestSimStoreWithoutEraseClearsBitsOnly(t *testing.T) {
	sim := newSim(t)
	size := sim.Geometry().PageSize

	require.Nil(t, sim.BufferWrite(0, bytes.Repeat([]byte{0x0f}, size)))
	require.Nil(t, sim.BufferStore(10))

	require.Nil(t, sim.BufferWrite(0, bytes.Repeat([]byte{0xf3}, size)))
	require.Nil(t, sim.BufferStore(10))

	out := make([]byte, 1)
	require.Nil(t, sim.PageRead(10, 0, out))
	require.Equal(t, byte(0x03), out[0])

	require.Nil(t, sim.BufferEraseStore(10))
	require.Nil(t, sim.PageRead(10, 0, out))
	require.Equal(t, byte(0xf3), out[0])
}

func TestSimPageWriteAndErase(t *testing.T) {
	sim := newSim(t)

	require.Nil(t, sim.PageWrite(4, 10, []byte("hello")))
	out := make([]byte, 5)
	require.Nil(t, sim.PageRead(4, 10, out))
	require.Equal(t, []byte("hello"), out)

	require.Nil(t, sim.PageErase(4))
	require.Nil(t, sim.PageRead(4, 10, out))
	require.Equal(t, bytes.Repeat([]byte{Erased}, 5), out)

	require.ErrorIs(t, sim.PageRead(4, sim.Geometry().PageSize-2, out), flashfs.ErrOutOfRange)
	require.ErrorIs(t, sim.PageRead(sim.Geometry().PageCount, 0, out), flashfs.ErrOutOfRange)
	require.ErrorIs(t, sim.PageErase(-1), flashfs.ErrOutOfRange)
}

func TestSimSectorAndBlockErase(t *testing.T) {
	sim := newSim(t)
	g := sim.Geometry()
	mark := []byte{0x00}
	pages := []int{0, 7, 8, g.SectorSize - 1, g.SectorSize, 2*g.SectorSize - 1, 2 * g.SectorSize}
	for _, page := range pages {
		require.Nil(t, sim.PageWrite(page, 0, mark))
	}
	erased := func(page int) bool {
		out := make([]byte, 1)
		require.Nil(t, sim.PageRead(page, 0, out))
		return out[0] == Erased
	}

	require.Nil(t, sim.SectorErase(Sector0A))
	require.True(t, erased(0))
	require.True(t, erased(7))
	require.False(t, erased(8))

	require.Nil(t, sim.SectorErase(Sector0B))
	require.True(t, erased(8))
	require.True(t, erased(g.SectorSize-1))
	require.False(t, erased(g.SectorSize))

	require.Nil(t, sim.SectorErase(1))
	require.True(t, erased(g.SectorSize))
	require.True(t, erased(2*g.SectorSize-1))
	require.False(t, erased(2*g.SectorSize))

	require.Nil(t, sim.BlockErase(2*g.SectorSize/flashfs.PagesPerBlock))
	require.True(t, erased(2*g.SectorSize))

	require.ErrorIs(t, sim.SectorErase(g.NumSectors()), flashfs.ErrOutOfRange)
	require.ErrorIs(t, sim.SectorErase(0), flashfs.ErrOutOfRange)
	require.ErrorIs(t, sim.BlockErase(g.NumBlocks()), flashfs.ErrOutOfRange)
}

func TestSimRawReadCrossesPages(t *testing.T) {
	sim := newSim(t)
	size := sim.Geometry().PageSize

	require.Nil(t, sim.PageWrite(1, size-3, []byte("abc")))
	require.Nil(t, sim.PageWrite(2, 0, []byte("def")))

	out := make([]byte, 6)
	require.Nil(t, sim.RawRead(int64(2*size-3), out))
	require.Equal(t, []byte("abcdef"), out)

	require.ErrorIs(t, sim.RawRead(sim.Geometry().Size()-2, out), flashfs.ErrOutOfRange)
}

func TestSimChipErase(t *testing.T) {
	sim := newSim(t)
	require.Nil(t, sim.PageWrite(100, 0, []byte{1, 2, 3}))
	require.Nil(t, sim.ChipErase())
	out := make([]byte, 3)
	require.Nil(t, sim.PageRead(100, 0, out))
	require.Equal(t, []byte{Erased, Erased, Erased}, out)
}

func TestSimMetricsAndLatency(t *testing.T) {
	geom, err := Lookup(2)
	require.Nil(t, err)
	m := newCountingMetrics()
	sim, err := NewSim(IDForDensity(2), NewMemoryStore(geom), SimConfig{
		Latency: time.Millisecond,
		Metrics: m,
	})
	require.Nil(t, err)

	start := time.Now()
	require.Nil(t, sim.BufferLoad(3))
	require.Nil(t, sim.BufferStore(3))
	sim.WaitReady()
	require.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)

	require.Equal(t, 1, m.ops[OpBufferLoad])
	require.Equal(t, 1, m.ops[OpBufferStore])
	require.Equal(t, geom.PageSize, m.bytes[OpBufferLoad])
}

func TestDump(t *testing.T) {
	sim := newSim(t)
	require.Nil(t, sim.PageWrite(5, 0, []byte("flash\x00")))

	var out strings.Builder
	require.Nil(t, Dump(&out, sim, 5))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, (sim.Geometry().PageSize+dumpWidth-1)/dumpWidth)
	require.True(t, strings.HasPrefix(lines[0], "5.0000: 66 6c 61 73 68 00 ff"))
	require.Contains(t, lines[0], "flash..")
}
