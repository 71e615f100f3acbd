package device

import (
	"fmt"
	"io"

	"github.com/rstms/flashfs"
)

const dumpWidth = 16

// Dump writes a hex dump of one page, 16 bytes per line, followed by the
// printable characters of each line.
func Dump(w io.Writer, dev flashfs.Device, page int) error {
	pageSize := dev.Geometry().PageSize
	line := make([]byte, dumpWidth)
	for offset := 0; offset < pageSize; offset += dumpWidth {
		n := dumpWidth
		if offset+n > pageSize {
			n = pageSize - offset
		}
		if err := dev.PageRead(page, offset, line[:n]); err != nil {
			return err
		}
		fmt.Fprintf(w, "%d.%04x: ", page, offset)
		for i := 0; i < dumpWidth; i++ {
			if i < n {
				fmt.Fprintf(w, "%02x ", line[i])
			} else {
				fmt.Fprint(w, "   ")
			}
		}
		fmt.Fprint(w, " ")
		for _, c := range line[:n] {
			if c >= 0x20 && c < 0x7f {
				fmt.Fprintf(w, "%c", c)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}
