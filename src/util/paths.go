package util

import (
	"fmt"
	"strings"
)

// MaxPathStringLength is the number of paths named before summarising.
const MaxPathStringLength = 3

// PathString renders a list of paths for progress output, naming at most
// MaxPathStringLength entries.
func PathString(paths []string) string {
	switch len(paths) {
	case 0:
		return ""
	case 1:
		return RelativeToCwd(paths[0])
	}

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, RelativeToCwd(p))
	}
	if len(names) <= MaxPathStringLength {
		return strings.Join(names, ", ")
	}

	remainder := len(names) - MaxPathStringLength
	suffix := "s"
	if remainder == 1 {
		suffix = ""
	}
	return fmt.Sprintf("%s ...and %d other%s", strings.Join(names[:MaxPathStringLength], ", "), remainder, suffix)
}
