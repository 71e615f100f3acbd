package device

// Operation names reported to Metrics.
const (
	OpPageRead         = "page_read"
	OpPageWrite        = "page_write"
	OpPageErase        = "page_erase"
	OpSectorErase      = "sector_erase"
	OpBlockErase       = "block_erase"
	OpChipErase        = "chip_erase"
	OpBufferLoad       = "buffer_load"
	OpBufferStore      = "buffer_store"
	OpBufferEraseStore = "buffer_erase_store"
	OpBufferRead       = "buffer_read"
	OpBufferWrite      = "buffer_write"
	OpRawRead          = "raw_read"
	OpReadID           = "read_id"
)

// Metrics receives one call per physical device operation.
//
// A nil Metrics passed to a device is replaced with a no-op implementation.
type Metrics interface {
	RecordOperation(op string, bytes int)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, int) {}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}
