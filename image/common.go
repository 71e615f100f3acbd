// go-common local proxy functions and image file helpers

package image

import (
	"os"

	"github.com/rstms/flashfs/device"
	"github.com/rstms/go-common"
)

func Fatal(err error) error {
	return common.Fatal(err)
}

func Fatalf(format string, args ...interface{}) error {
	return common.Fatalf(format, args...)
}

func IsFile(filename string) bool {
	return common.IsFile(filename)
}

// IsImage reports whether filename exists with the size of a supported chip.
func IsImage(filename string) bool {
	if !IsFile(filename) {
		return false
	}
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	_, _, err = device.LookupSize(info.Size())
	return err == nil
}
