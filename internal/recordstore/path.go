// Package recordstore contains the naming scheme and the index of recorded segments.
package recordstore

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SegmentName returns the on-disk file name of the segment with the given id.
func SegmentName(id uint64) string {
	return fmt.Sprintf("%09d.ts", id)
}

// ParseSegmentName extracts the id from a segment file name.
func ParseSegmentName(name string) (uint64, bool) {
	stem, ok := strings.CutSuffix(name, ".ts")
	if !ok {
		return 0, false
	}

	id, err := strconv.ParseUint(stem, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

// LastID scans a recording directory and returns the highest segment id
// found in it, or 0 when the directory is empty or does not exist.
// Files that do not follow the naming scheme are ignored.
func LastID(dir string) uint64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	var maxID uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if id, ok := ParseSegmentName(entry.Name()); ok && id > maxID {
			maxID = id
		}
	}

	return maxID
}
