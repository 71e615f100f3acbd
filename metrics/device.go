package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rstms/flashfs/device"
)

const (
	operationsName = "flashfs_device_operations_total"
	bytesName      = "flashfs_device_bytes_total"
)

// deviceMetrics is the Prometheus implementation of device.Metrics.
type deviceMetrics struct {
	operations *prometheus.CounterVec
	bytes      *prometheus.CounterVec
}

// NewDeviceMetrics registers device counters with reg. A nil registry
// returns the no-op implementation.
func NewDeviceMetrics(reg prometheus.Registerer) device.Metrics {
	if reg == nil {
		return device.NewNoopMetrics()
	}
	return &deviceMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: operationsName,
				Help: "Total number of physical flash device operations",
			},
			[]string{"op"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: bytesName,
				Help: "Total bytes moved by flash device operations",
			},
			[]string{"op"},
		),
	}
}

func (m *deviceMetrics) RecordOperation(op string, n int) {
	m.operations.WithLabelValues(op).Inc()
	if n > 0 {
		m.bytes.WithLabelValues(op).Add(float64(n))
	}
}

// OpStats is the accumulated count and byte total of one operation.
type OpStats struct {
	Op         string
	Operations float64
	Bytes      float64
}

// Summary collects the device counters from g, sorted by operation.
func Summary(g prometheus.Gatherer) ([]OpStats, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	stats := map[string]*OpStats{}
	for _, family := range families {
		name := family.GetName()
		if name != operationsName && name != bytesName {
			continue
		}
		for _, metric := range family.GetMetric() {
			op := ""
			for _, label := range metric.GetLabel() {
				if label.GetName() == "op" {
					op = label.GetValue()
				}
			}
			s, ok := stats[op]
			if !ok {
				s = &OpStats{Op: op}
				stats[op] = s
			}
			value := metric.GetCounter().GetValue()
			if name == operationsName {
				s.Operations = value
			} else {
				s.Bytes = value
			}
		}
	}
	result := make([]OpStats, 0, len(stats))
	for _, s := range stats {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.Compare(result[i].Op, result[j].Op) < 0
	})
	return result, nil
}
