package device

import (
	"fmt"
	"os"

	"github.com/rstms/flashfs"
)

// eraseChunk is the number of pages written per call when erasing an image.
const eraseChunk = 64

// FileStore keeps the pages in an image file of exactly
// PageCount*PageSize bytes.
type FileStore struct {
	geom flashfs.Geometry
	file *os.File
}

var _ PageStore = (*FileStore)(nil)

// CreateFileStore creates or truncates an image file and fills it erased.
func CreateFileStore(filename string, geom flashfs.Geometry) (*FileStore, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	s := &FileStore{geom: geom, file: file}
	if err := s.Erase(); err != nil {
		file.Close()
		return nil, err
	}
	return s, nil
}

// OpenFileStore opens an existing image file. The file size must match
// the geometry.
func OpenFileStore(filename string, geom flashfs.Geometry) (*FileStore, error) {
	file, err := os.OpenFile(filename, os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() != geom.Size() {
		file.Close()
		return nil, fmt.Errorf("image %s is %d bytes, %s needs %d: %w",
			filename, info.Size(), geom.Name, geom.Size(), flashfs.ErrUnknownDevice)
	}
	return &FileStore{geom: geom, file: file}, nil
}

func (s *FileStore) offset(page int) int64 {
	return int64(page) * int64(s.geom.PageSize)
}

func (s *FileStore) ReadPage(page int, dst []byte) error {
	if !s.geom.ValidPage(page) || len(dst) < s.geom.PageSize {
		return fmt.Errorf("image read page %d: %w", page, flashfs.ErrOutOfRange)
	}
	_, err := s.file.ReadAt(dst[:s.geom.PageSize], s.offset(page))
	return err
}

func (s *FileStore) WritePage(page int, src []byte) error {
	if !s.geom.ValidPage(page) || len(src) < s.geom.PageSize {
		return fmt.Errorf("image write page %d: %w", page, flashfs.ErrOutOfRange)
	}
	_, err := s.file.WriteAt(src[:s.geom.PageSize], s.offset(page))
	return err
}

func (s *FileStore) Erase() error {
	chunk := make([]byte, eraseChunk*s.geom.PageSize)
	fill(chunk, Erased)
	for page := 0; page < s.geom.PageCount; page += eraseChunk {
		n := eraseChunk
		if page+n > s.geom.PageCount {
			n = s.geom.PageCount - page
		}
		if _, err := s.file.WriteAt(chunk[:n*s.geom.PageSize], s.offset(page)); err != nil {
			return err
		}
	}
	return nil
}

// Sync commits the image file contents to stable storage.
func (s *FileStore) Sync() error {
	return s.file.Sync()
}

func (s *FileStore) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
