package image

import (
	"path/filepath"

	"github.com/rstms/flashfs/internal/logger"
)

// RewriteImage copies every file of srcFile into a freshly formatted
// dstFile in directory order, compacting their node chains. A density
// of 0 keeps the source chip's density.
func RewriteImage(dstFile, srcFile string, density int) error {
	if filepath.Clean(dstFile) == filepath.Clean(srcFile) {
		return Fatalf("rewrite destination is the source image: %s", srcFile)
	}
	src, err := OpenImage(srcFile)
	if err != nil {
		return Fatal(err)
	}
	defer src.Close()

	if density == 0 {
		id, err := src.Device().ReadID()
		if err != nil {
			return Fatal(err)
		}
		density = id.Density()
	}

	records, err := src.ScanFiles()
	if err != nil {
		return Fatal(err)
	}
	dst, err := CreateImage(dstFile, density)
	if err != nil {
		return Fatal(err)
	}
	defer dst.Close()
	for _, record := range records {
		data, err := src.ReadFile(record.Name)
		if err != nil {
			return Fatal(err)
		}
		err = dst.WriteFile(record.Name, data)
		if err != nil {
			return Fatal(err)
		}
		logger.Debug("rewrote %s: %d bytes", record.Name, len(data))
	}
	err = dst.Close()
	if err != nil {
		return Fatal(err)
	}
	return nil
}
