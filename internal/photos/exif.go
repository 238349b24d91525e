package photos

import (
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureYear reads the image's EXIF capture date. ok is false when the file
// has no usable EXIF data; callers fall back to another year source.
func CaptureYear(path string) (year int, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	meta, err := exif.Decode(f)
	if err != nil {
		return 0, false
	}
	taken, err := meta.DateTime()
	if err != nil {
		return 0, false
	}
	return taken.Year(), true
}
