package device

import (
	"fmt"

	"github.com/rstms/flashfs"
)

// Erased is the value of every byte of an erased flash page.
const Erased = 0xFF

// PageStore holds the main memory array of a simulated chip.
//
// ReadPage and WritePage always transfer exactly one page. A page that
// has never been written reads back erased.
type PageStore interface {
	ReadPage(page int, dst []byte) error
	WritePage(page int, src []byte) error
	// Erase sets every page to the erased state.
	Erase() error
	Close() error
}

// MemoryStore keeps all pages in memory.
type MemoryStore struct {
	geom  flashfs.Geometry
	pages [][]byte
}

var _ PageStore = (*MemoryStore)(nil)

func NewMemoryStore(geom flashfs.Geometry) *MemoryStore {
	s := &MemoryStore{
		geom:  geom,
		pages: make([][]byte, geom.PageCount),
	}
	return s
}

func (s *MemoryStore) ReadPage(page int, dst []byte) error {
	if !s.geom.ValidPage(page) || len(dst) < s.geom.PageSize {
		return fmt.Errorf("memory store read page %d: %w", page, flashfs.ErrOutOfRange)
	}
	if s.pages[page] == nil {
		fill(dst[:s.geom.PageSize], Erased)
		return nil
	}
	copy(dst, s.pages[page])
	return nil
}

func (s *MemoryStore) WritePage(page int, src []byte) error {
	if !s.geom.ValidPage(page) || len(src) < s.geom.PageSize {
		return fmt.Errorf("memory store write page %d: %w", page, flashfs.ErrOutOfRange)
	}
	if s.pages[page] == nil {
		s.pages[page] = make([]byte, s.geom.PageSize)
	}
	copy(s.pages[page], src)
	return nil
}

func (s *MemoryStore) Erase() error {
	for i := range s.pages {
		s.pages[i] = nil
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func fill(buf []byte, value byte) {
	for i := range buf {
		buf[i] = value
	}
}
