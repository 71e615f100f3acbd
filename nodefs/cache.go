package nodefs

import (
	"fmt"

	"github.com/rstms/flashfs"
	"github.com/rstms/flashfs/internal/logger"
)

const noPage = -1

// bufferCache tracks what the device's single SRAM buffer holds.
//
// loaded is the page whose flash content the buffer currently mirrors.
// cached is a page whose content exists only in the buffer and must be
// stored before the buffer is used for another page.
type bufferCache struct {
	dev    flashfs.Device
	geom   flashfs.Geometry
	loaded int
	cached int
}

func newBufferCache(dev flashfs.Device) *bufferCache {
	return &bufferCache{
		dev:    dev,
		geom:   dev.Geometry(),
		loaded: noPage,
		cached: noPage,
	}
}

func (c *bufferCache) check(page int) error {
	if !c.geom.ValidPage(page) {
		return fmt.Errorf("page %d: %w", page, flashfs.ErrOutOfRange)
	}
	return nil
}

// load makes the buffer hold page. A pending cached page for any other
// page is stored first.
func (c *bufferCache) load(page int) error {
	if err := c.check(page); err != nil {
		return err
	}
	if c.cached == page {
		return nil
	}
	pending := c.cached
	flushed, err := c.flush(page)
	if err != nil {
		return err
	}
	if flushed {
		logger.Debug("stored cached page %d before loading page %d", pending, page)
	}
	if c.loaded == page {
		return nil
	}
	if err := c.dev.BufferLoad(page); err != nil {
		c.loaded = noPage
		return fmt.Errorf("load page %d: %w", page, err)
	}
	c.loaded = page
	return nil
}

// flush stores the pending cached page unless it is page. It reports
// whether a store was issued.
func (c *bufferCache) flush(page int) (bool, error) {
	if c.cached == noPage || c.cached == page {
		return false, nil
	}
	if err := c.store(c.cached); err != nil {
		return false, err
	}
	return true, nil
}

// sync stores any pending cached page.
func (c *bufferCache) sync() error {
	pending := c.cached
	flushed, err := c.flush(noPage)
	if err != nil {
		return err
	}
	if flushed {
		logger.Debug("synced cached page %d", pending)
	}
	return nil
}

// setCache marks page as living in the buffer until flushed.
func (c *bufferCache) setCache(page int) error {
	if err := c.check(page); err != nil {
		return err
	}
	pending := c.cached
	flushed, err := c.flush(page)
	if err != nil {
		return err
	}
	if flushed {
		logger.Debug("stored cached page %d before caching page %d", pending, page)
	}
	c.cached = page
	return nil
}

// writeCached writes data destined for page into the buffer, loading
// the page and making it the cached page if it is not already.
func (c *bufferCache) writeCached(page, offset int, data []byte) error {
	if err := c.check(page); err != nil {
		return err
	}
	if c.cached != page {
		if err := c.load(page); err != nil {
			return err
		}
		c.cached = page
	}
	return c.write(offset, data)
}

func (c *bufferCache) read(offset int, dst []byte) error {
	if err := c.dev.BufferRead(offset, dst); err != nil {
		return fmt.Errorf("buffer read at %d: %w", offset, err)
	}
	return nil
}

// write changes the buffer so it no longer mirrors the loaded page.
func (c *bufferCache) write(offset int, src []byte) error {
	if len(src) == 0 {
		return nil
	}
	c.loaded = noPage
	if err := c.dev.BufferWrite(offset, src); err != nil {
		return fmt.Errorf("buffer write at %d: %w", offset, err)
	}
	return nil
}

// store programs the buffer into page without erasing it.
func (c *bufferCache) store(page int) error {
	if err := c.check(page); err != nil {
		return err
	}
	if err := c.dev.BufferStore(page); err != nil {
		c.loaded = noPage
		return fmt.Errorf("store page %d: %w", page, err)
	}
	c.committed(page)
	return nil
}

func (c *bufferCache) eraseStore(page int) error {
	if err := c.check(page); err != nil {
		return err
	}
	if err := c.dev.BufferEraseStore(page); err != nil {
		c.loaded = noPage
		return fmt.Errorf("erase and store page %d: %w", page, err)
	}
	c.committed(page)
	return nil
}

func (c *bufferCache) committed(page int) {
	c.loaded = page
	if c.cached == page {
		c.cached = noPage
	}
}

// erase erases page in flash and leaves the buffer untouched.
func (c *bufferCache) erase(page int) error {
	if err := c.check(page); err != nil {
		return err
	}
	if c.loaded == page {
		c.loaded = noPage
	}
	if err := c.dev.PageErase(page); err != nil {
		return fmt.Errorf("erase page %d: %w", page, err)
	}
	return nil
}

// reset forgets the buffer state after the whole chip was erased.
func (c *bufferCache) reset() {
	c.loaded = noPage
	c.cached = noPage
}
