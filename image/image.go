package image

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rstms/flashfs/device"
	"github.com/rstms/flashfs/internal/logger"
	"github.com/rstms/flashfs/nodefs"
)

type FileRecord struct {
	Name      string
	Size      int64
	Page      int
	StartNode int
	EndNode   int
}

// Image is a mounted filesystem on a simulated chip, usually backed by
// a flash image file holding the chip's main memory array.
type Image struct {
	Filename string
	sim      *device.Sim
	fs       *nodefs.FileSystem
}

// OpenImage mounts an existing image file. The chip density is derived
// from the file size.
func OpenImage(filename string) (*Image, error) {
	if !IsFile(filename) {
		return nil, Fatalf("image not found: %s", filename)
	}
	info, err := os.Stat(filename)
	if err != nil {
		return nil, Fatal(err)
	}
	density, geom, err := device.LookupSize(info.Size())
	if err != nil {
		return nil, Fatal(err)
	}
	store, err := device.OpenFileStore(filename, geom)
	if err != nil {
		return nil, Fatal(err)
	}
	sim, err := device.NewSim(device.IDForDensity(density), store, device.SimConfig{})
	if err != nil {
		store.Close()
		return nil, Fatal(err)
	}
	i, err := Mount(sim, false)
	if err != nil {
		sim.Close()
		return nil, Fatal(err)
	}
	i.Filename = filename
	return i, nil
}

// CreateImage creates or truncates an image file for a chip of the
// given density and formats it.
func CreateImage(filename string, density int) (*Image, error) {
	geom, err := device.Lookup(density)
	if err != nil {
		return nil, Fatal(err)
	}
	logger.Debug("creating %s image %s: %d bytes", geom.Name, filename, geom.Size())
	store, err := device.CreateFileStore(filename, geom)
	if err != nil {
		return nil, Fatal(err)
	}
	sim, err := device.NewSim(device.IDForDensity(density), store, device.SimConfig{})
	if err != nil {
		store.Close()
		return nil, Fatal(err)
	}
	i, err := Mount(sim, true)
	if err != nil {
		sim.Close()
		return nil, Fatal(err)
	}
	i.Filename = filename
	return i, nil
}

// Mount wraps a chip, formatting it first if format is set.
func Mount(sim *device.Sim, format bool) (*Image, error) {
	var fs *nodefs.FileSystem
	var err error
	if format {
		fs, err = nodefs.Format(sim)
	} else {
		fs, err = nodefs.New(sim)
	}
	if err != nil {
		return nil, Fatal(err)
	}
	return &Image{sim: sim, fs: fs}, nil
}

func (i *Image) FileSystem() *nodefs.FileSystem {
	return i.fs
}

func (i *Image) Device() *device.Sim {
	return i.sim
}

func (i *Image) Close() error {
	if i.sim == nil {
		return nil
	}
	defer func() { i.sim = nil }()
	err := i.fs.Sync()
	if err != nil {
		i.sim.Close()
		return Fatal(err)
	}
	err = i.sim.Close()
	if err != nil {
		return Fatal(err)
	}
	return nil
}

func (i *Image) ScanFiles() ([]FileRecord, error) {
	ret := []FileRecord{}
	dir, err := i.fs.RootDir()
	if err != nil {
		return ret, Fatal(err)
	}
	entries, err := dir.Entries()
	if err != nil {
		return ret, Fatal(err)
	}
	for _, entry := range entries {
		ret = append(ret, FileRecord{
			Name:      entry.Name(),
			Size:      entry.Size(),
			Page:      entry.Page(),
			StartNode: entry.StartNode(),
			EndNode:   entry.EndNode(),
		})
	}
	return ret, nil
}

// AddFile copies a host file into the image as dstName.
func (i *Image) AddFile(dstName, srcPathname string) error {
	srcInfo, err := os.Stat(srcPathname)
	if err != nil {
		return Fatal(err)
	}
	src, err := os.Open(srcPathname)
	if err != nil {
		return Fatal(err)
	}
	defer src.Close()
	count, err := i.write(dstName, src)
	if err != nil {
		return Fatal(err)
	}
	if count != srcInfo.Size() {
		return Fatalf("write count mismatch; expected %d, wrote %d", srcInfo.Size(), count)
	}
	return nil
}

// WriteFile creates name in the image holding data.
func (i *Image) WriteFile(name string, data []byte) error {
	_, err := i.write(name, bytes.NewReader(data))
	if err != nil {
		return Fatal(err)
	}
	return nil
}

// Append adds data to the end of an existing file.
func (i *Image) Append(name string, data []byte) error {
	dst, err := i.fs.Open(name)
	if err != nil {
		return Fatal(err)
	}
	_, err = dst.Write(data)
	if err != nil {
		dst.Close()
		return Fatal(err)
	}
	err = dst.Close()
	if err != nil {
		return Fatal(err)
	}
	return nil
}

func (i *Image) write(name string, src io.Reader) (int64, error) {
	dst, err := i.fs.Create(name)
	if err != nil {
		return 0, err
	}
	count, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return count, err
	}
	logger.Debug("wrote %s: %d bytes", name, count)
	return count, dst.Close()
}

// Extract copies a file's contents to w.
func (i *Image) Extract(name string, w io.Writer) (int64, error) {
	src, err := i.fs.Open(name)
	if err != nil {
		return 0, Fatal(err)
	}
	defer src.Close()
	count, err := io.Copy(w, src)
	if err != nil {
		return count, Fatal(err)
	}
	if count != src.Size() {
		return count, Fatalf("read count mismatch; expected %d, read %d", src.Size(), count)
	}
	return count, nil
}

func (i *Image) ReadFile(name string) ([]byte, error) {
	var buf bytes.Buffer
	_, err := i.Extract(name, &buf)
	if err != nil {
		return []byte{}, Fatal(err)
	}
	return buf.Bytes(), nil
}

// write all files in a host directory tree to the image, named by
// their slash separated path relative to dirname
func (i *Image) Import(dirname string) error {
	paths := []string{}
	err := filepath.WalkDir(dirname, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return Fatal(err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return Fatal(err)
	}
	sort.Strings(paths)
	for _, path := range paths {
		rel, err := filepath.Rel(dirname, path)
		if err != nil {
			return Fatal(err)
		}
		dst := filepath.ToSlash(rel)
		logger.Debug("import %s as %s", path, dst)
		err = i.AddFile(dst, path)
		if err != nil {
			return Fatal(err)
		}
	}
	return nil
}

// write every file in the image to a host directory, creating
// subdirectories for names containing slashes
func (i *Image) Export(dirname string) error {
	records, err := i.ScanFiles()
	if err != nil {
		return Fatal(err)
	}
	for _, record := range records {
		path := filepath.Join(dirname, filepath.FromSlash(record.Name))
		if !filepath.IsLocal(filepath.FromSlash(record.Name)) {
			return Fatalf("file name escapes export directory: %s", record.Name)
		}
		err = os.MkdirAll(filepath.Dir(path), 0700)
		if err != nil {
			return Fatal(err)
		}
		data, err := i.ReadFile(record.Name)
		if err != nil {
			return Fatal(err)
		}
		logger.Debug("export %s to %s", record.Name, path)
		err = os.WriteFile(path, data, 0600)
		if err != nil {
			return Fatal(err)
		}
	}
	return nil
}

func (i *Image) Info() (map[string]any, error) {
	info, err := i.fs.Info()
	if err != nil {
		return nil, Fatal(err)
	}
	id, err := i.sim.ReadID()
	if err != nil {
		return nil, Fatal(err)
	}
	info["id"] = id.String()
	if i.Filename != "" {
		info["image"] = i.Filename
	}
	return info, nil
}

// Dump writes a hex dump of one page.
func (i *Image) Dump(w io.Writer, page int) error {
	err := i.fs.Sync()
	if err != nil {
		return Fatal(err)
	}
	err = device.Dump(w, i.sim, page)
	if err != nil {
		return Fatal(err)
	}
	return nil
}
