package drive

import (
	"fmt"
	"os"
	"strings"
)

// StoredImageName builds the stored-image path for one chunk:
// <basename>.<index>.<ext>. It is the convention a decode-by-file session
// enumerates.
func StoredImageName(base string, index int, ext string) string {
	return fmt.Sprintf("%s.%d.%s", base, index, strings.TrimPrefix(ext, "."))
}

// EnumerateStored lists stored-image paths for base, counting up from 0
// until the first missing file. The enumeration order is only a reading
// order; the engine re-sorts by each frame's embedded index.
func EnumerateStored(base, ext string) ([]string, error) {
	var paths []string
	for i := 0; ; i++ {
		p := StoredImageName(base, i, ext)
		if _, err := os.Stat(p); err != nil {
			if i == 0 {
				return nil, fmt.Errorf("drive: no stored images for %q: %w", base, err)
			}
			return paths, nil
		}
		paths = append(paths, p)
	}
}
