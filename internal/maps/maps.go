// Package maps lists the terrain map catalog from a directory of
// prebuilt .json map files.
package maps

import (
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
)

// List returns the .json filenames in dir, ordered for the viewer's
// map picker: filenames carrying a number in their second
// "_"-delimited token (extension stripped) sort by that number first;
// everything else follows, lexicographically. A missing or unreadable
// directory degrades to an empty list with a logged warning.
func List(dir string, logger *log.Logger) []string {
	names := []string{}
	ents, err := os.ReadDir(dir)
	if err != nil {
		logger.Printf("maps: read dir %s: %v", dir, err)
		return names
	}
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		na, oka := extractNum(names[i])
		nb, okb := extractNum(names[j])
		switch {
		case oka && okb:
			if na != nb {
				return na < nb
			}
			return names[i] < names[j]
		case oka:
			return true
		case okb:
			return false
		default:
			return names[i] < names[j]
		}
	})
	return names
}

// extractNum pulls the integer out of a filename's second
// "_"-delimited token, e.g. "tile_10.json" -> 10.
func extractNum(name string) (uint64, bool) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return 0, false
	}
	n, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
