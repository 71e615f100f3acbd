package device

import (
	"fmt"
	"time"

	"github.com/rstms/flashfs"
)

// SimConfig configures a simulated chip.
type SimConfig struct {
	// Latency is how long every physical operation keeps the chip busy.
	Latency time.Duration
	Metrics Metrics
}

// Sim is a simulated AT45DB chip: a main memory array held in a
// PageStore plus one SRAM buffer of one page.
//
// Programming a page without erasing it ANDs the buffer into the page,
// so bits can be cleared but never set again until the page is erased.
type Sim struct {
	id      flashfs.DeviceID
	geom    flashfs.Geometry
	store   PageStore
	buf     []byte
	scratch []byte

	latency time.Duration
	readyAt time.Time
	metrics Metrics
}

var _ flashfs.Device = (*Sim)(nil)

// NewSim returns a chip identifying itself as id on top of store.
func NewSim(id flashfs.DeviceID, store PageStore, cfg SimConfig) (*Sim, error) {
	geom, err := Detect(id)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNoopMetrics()
	}
	s := &Sim{
		id:      id,
		geom:    geom,
		store:   store,
		buf:     make([]byte, geom.PageSize),
		scratch: make([]byte, geom.PageSize),
		latency: cfg.Latency,
		metrics: cfg.Metrics,
	}
	fill(s.buf, Erased)
	return s, nil
}

// NewMemorySim returns an erased in-memory chip of the given density.
func NewMemorySim(density int) (*Sim, error) {
	geom, err := Lookup(density)
	if err != nil {
		return nil, err
	}
	return NewSim(IDForDensity(density), NewMemoryStore(geom), SimConfig{})
}

func (s *Sim) Geometry() flashfs.Geometry {
	return s.geom
}

// Store returns the page store holding the main memory array.
func (s *Sim) Store() PageStore {
	return s.store
}

func (s *Sim) Close() error {
	return s.store.Close()
}

func (s *Sim) ReadID() (flashfs.DeviceID, error) {
	s.begin(OpReadID, len(s.id))
	return s.id, nil
}

// WaitReady blocks until the previous operation has completed.
func (s *Sim) WaitReady() {
	if s.latency == 0 {
		return
	}
	if d := time.Until(s.readyAt); d > 0 {
		time.Sleep(d)
	}
}

// begin waits for the chip, records the operation and marks the chip busy.
func (s *Sim) begin(op string, bytes int) {
	s.WaitReady()
	s.metrics.RecordOperation(op, bytes)
	if s.latency != 0 {
		s.readyAt = time.Now().Add(s.latency)
	}
}

func (s *Sim) checkPage(op string, page int) error {
	if !s.geom.ValidPage(page) {
		return fmt.Errorf("%s page %d of %d: %w", op, page, s.geom.PageCount, flashfs.ErrOutOfRange)
	}
	return nil
}

func (s *Sim) checkRange(op string, page, offset, size int) error {
	if err := s.checkPage(op, page); err != nil {
		return err
	}
	if !s.geom.ValidRange(offset, size) {
		return fmt.Errorf("%s page %d offset %d size %d: %w", op, page, offset, size, flashfs.ErrOutOfRange)
	}
	return nil
}

func (s *Sim) checkOffset(op string, offset int) error {
	if offset < 0 || offset >= s.geom.PageSize {
		return fmt.Errorf("%s offset %d: %w", op, offset, flashfs.ErrOutOfRange)
	}
	return nil
}

func (s *Sim) PageRead(page, offset int, dst []byte) error {
	if err := s.checkRange(OpPageRead, page, offset, len(dst)); err != nil {
		return err
	}
	s.begin(OpPageRead, len(dst))
	if err := s.store.ReadPage(page, s.scratch); err != nil {
		return err
	}
	copy(dst, s.scratch[offset:])
	return nil
}

func (s *Sim) PageWrite(page, offset int, src []byte) error {
	if err := s.checkPage(OpPageWrite, page); err != nil {
		return err
	}
	if err := s.checkOffset(OpPageWrite, offset); err != nil {
		return err
	}
	if len(src) > s.geom.PageSize {
		return fmt.Errorf("%s size %d: %w", OpPageWrite, len(src), flashfs.ErrOutOfRange)
	}
	if len(src) == 0 {
		return nil
	}
	s.begin(OpPageWrite, len(src))
	s.wrapWrite(offset, src)
	return s.store.WritePage(page, s.buf)
}

func (s *Sim) PageErase(page int) error {
	if err := s.checkPage(OpPageErase, page); err != nil {
		return err
	}
	s.begin(OpPageErase, 0)
	return s.erasePages(page, page+1)
}

// SectorErase erases one sector. Sector 0 is addressed as Sector0A
// (its first block) and Sector0B (the rest of it).
func (s *Sim) SectorErase(sector int) error {
	var first, last int
	switch {
	case sector == Sector0A:
		first, last = 0, flashfs.PagesPerBlock
	case sector == Sector0B:
		first, last = flashfs.PagesPerBlock, s.geom.SectorSize
	case sector >= 1 && sector < s.geom.NumSectors():
		first = sector * s.geom.SectorSize
		last = first + s.geom.SectorSize
	default:
		return fmt.Errorf("%s sector %d: %w", OpSectorErase, sector, flashfs.ErrOutOfRange)
	}
	s.begin(OpSectorErase, 0)
	return s.erasePages(first, last)
}

// BlockErase erases PagesPerBlock pages starting at block*PagesPerBlock.
func (s *Sim) BlockErase(block int) error {
	if block < 0 || block >= s.geom.NumBlocks() {
		return fmt.Errorf("%s block %d: %w", OpBlockErase, block, flashfs.ErrOutOfRange)
	}
	s.begin(OpBlockErase, 0)
	first := block * flashfs.PagesPerBlock
	return s.erasePages(first, first+flashfs.PagesPerBlock)
}

func (s *Sim) ChipErase() error {
	s.begin(OpChipErase, 0)
	return s.store.Erase()
}

func (s *Sim) erasePages(first, last int) error {
	fill(s.scratch, Erased)
	for page := first; page < last; page++ {
		if err := s.store.WritePage(page, s.scratch); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sim) BufferLoad(page int) error {
	if err := s.checkPage(OpBufferLoad, page); err != nil {
		return err
	}
	s.begin(OpBufferLoad, s.geom.PageSize)
	return s.store.ReadPage(page, s.buf)
}

func (s *Sim) BufferStore(page int) error {
	if err := s.checkPage(OpBufferStore, page); err != nil {
		return err
	}
	s.begin(OpBufferStore, s.geom.PageSize)
	if err := s.store.ReadPage(page, s.scratch); err != nil {
		return err
	}
	for i := range s.scratch {
		s.scratch[i] &= s.buf[i]
	}
	return s.store.WritePage(page, s.scratch)
}

func (s *Sim) BufferEraseStore(page int) error {
	if err := s.checkPage(OpBufferEraseStore, page); err != nil {
		return err
	}
	s.begin(OpBufferEraseStore, s.geom.PageSize)
	return s.store.WritePage(page, s.buf)
}

func (s *Sim) BufferRead(offset int, dst []byte) error {
	if err := s.checkOffset(OpBufferRead, offset); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	s.begin(OpBufferRead, len(dst))
	for i := range dst {
		dst[i] = s.buf[(offset+i)%len(s.buf)]
	}
	return nil
}

func (s *Sim) BufferWrite(offset int, src []byte) error {
	if err := s.checkOffset(OpBufferWrite, offset); err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}
	s.begin(OpBufferWrite, len(src))
	s.wrapWrite(offset, src)
	return nil
}

func (s *Sim) wrapWrite(offset int, src []byte) {
	for i, b := range src {
		s.buf[(offset+i)%len(s.buf)] = b
	}
}

func (s *Sim) RawRead(addr int64, dst []byte) error {
	if addr < 0 || addr+int64(len(dst)) > s.geom.Size() {
		return fmt.Errorf("%s address %d size %d: %w", OpRawRead, addr, len(dst), flashfs.ErrOutOfRange)
	}
	s.begin(OpRawRead, len(dst))
	pageSize := int64(s.geom.PageSize)
	for n := 0; n < len(dst); {
		page := int((addr + int64(n)) / pageSize)
		offset := int((addr + int64(n)) % pageSize)
		if err := s.store.ReadPage(page, s.scratch); err != nil {
			return err
		}
		n += copy(dst[n:], s.scratch[offset:])
	}
	return nil
}
