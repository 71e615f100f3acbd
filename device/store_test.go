package device

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rstms/flashfs"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T, geom flashfs.Geometry) PageStore

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, geom flashfs.Geometry) PageStore {
			return NewMemoryStore(geom)
		},
		"file": func(t *testing.T, geom flashfs.Geometry) PageStore {
			s, err := CreateFileStore(filepath.Join(t.TempDir(), "flash.img"), geom)
			require.Nil(t, err)
			return s
		},
		"badger": func(t *testing.T, geom flashfs.Geometry) PageStore {
			s, err := OpenBadgerStore(BadgerStoreConfig{InMemory: true}, geom)
			require.Nil(t, err)
			return s
		},
	}
}

func TestPageStores(t *testing.T) {
	geom, err := Lookup(2)
	require.Nil(t, err)

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, geom)
			defer s.Close()

			page := make([]byte, geom.PageSize)
			require.Nil(t, s.ReadPage(7, page))
			require.Equal(t, bytes.Repeat([]byte{Erased}, geom.PageSize), page)

			data := bytes.Repeat([]byte("page"), geom.PageSize/4)
			require.Nil(t, s.WritePage(7, data))
			require.Nil(t, s.ReadPage(7, page))
			require.Equal(t, data, page)

			require.ErrorIs(t, s.WritePage(geom.PageCount, data), flashfs.ErrOutOfRange)
			require.ErrorIs(t, s.ReadPage(-1, page), flashfs.ErrOutOfRange)

			require.Nil(t, s.Erase())
			require.Nil(t, s.ReadPage(7, page))
			require.Equal(t, bytes.Repeat([]byte{Erased}, geom.PageSize), page)
		})
	}
}

func TestFileStoreReopen(t *testing.T) {
	geom, err := Lookup(2)
	require.Nil(t, err)
	filename := filepath.Join(t.TempDir(), "flash.img")

	s, err := CreateFileStore(filename, geom)
	require.Nil(t, err)
	data := bytes.Repeat([]byte{0x5a}, geom.PageSize)
	require.Nil(t, s.WritePage(geom.PageCount-1, data))
	require.Nil(t, s.Close())

	s, err = OpenFileStore(filename, geom)
	require.Nil(t, err)
	defer s.Close()
	page := make([]byte, geom.PageSize)
	require.Nil(t, s.ReadPage(geom.PageCount-1, page))
	require.Equal(t, data, page)

	wrong, err := Lookup(3)
	require.Nil(t, err)
	_, err = OpenFileStore(filename, wrong)
	require.ErrorIs(t, err, flashfs.ErrUnknownDevice)
}

func TestBadgerStoreReopen(t *testing.T) {
	geom, err := Lookup(2)
	require.Nil(t, err)
	cfg := BadgerStoreConfig{Path: t.TempDir()}

	s, err := OpenBadgerStore(cfg, geom)
	require.Nil(t, err)
	data := bytes.Repeat([]byte{0xa5}, geom.PageSize)
	require.Nil(t, s.WritePage(3, data))
	require.Nil(t, s.Close())

	s, err = OpenBadgerStore(cfg, geom)
	require.Nil(t, err)
	defer s.Close()
	page := make([]byte, geom.PageSize)
	require.Nil(t, s.ReadPage(3, page))
	require.Equal(t, data, page)
}
