package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rstms/flashfs/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDeviceMetrics(reg)
	geom, err := device.Lookup(2)
	require.Nil(t, err)
	sim, err := device.NewSim(device.IDForDensity(2), device.NewMemoryStore(geom), device.SimConfig{Metrics: m})
	require.Nil(t, err)

	require.Nil(t, sim.BufferWrite(0, []byte("abcd")))
	require.Nil(t, sim.BufferStore(7))
	require.Nil(t, sim.BufferStore(8))
	require.Nil(t, sim.PageErase(7))

	dm := m.(*deviceMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(dm.operations.WithLabelValues(device.OpBufferStore)))
	assert.Equal(t, 528.0, testutil.ToFloat64(dm.bytes.WithLabelValues(device.OpBufferStore)))
	assert.Equal(t, 4.0, testutil.ToFloat64(dm.bytes.WithLabelValues(device.OpBufferWrite)))

	stats, err := Summary(reg)
	require.Nil(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, device.OpBufferStore, stats[0].Op)
	assert.Equal(t, device.OpBufferWrite, stats[1].Op)
	assert.Equal(t, device.OpPageErase, stats[2].Op)
	assert.Equal(t, 1.0, stats[2].Operations)
	assert.Equal(t, 0.0, stats[2].Bytes)
}

func TestNilRegistry(t *testing.T) {
	m := NewDeviceMetrics(nil)
	m.RecordOperation(device.OpPageRead, 10)
	_, ok := m.(*deviceMetrics)
	assert.False(t, ok)
}
