package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// maxCUDisplayNameLength caps display names so deeply nested source trees
// do not produce unusable paths.
const maxCUDisplayNameLength = 64

// cuName builds a display name for one compile unit source file, growing
// it with parent directories only when needed to stay unique.
type cuName struct {
	fullpath string
	filename string
	display  string
	dirs     []string
	numbered string
}

func newCUName(fullpath string) *cuName {
	clean := filepath.Clean(fullpath)
	return &cuName{
		fullpath: fullpath,
		filename: filepath.Base(clean),
		display:  filepath.Base(clean),
		dirs:     strings.Split(filepath.Dir(clean), string(filepath.Separator)),
	}
}

func (c *cuName) displayName() string {
	if c.numbered != "" {
		return c.numbered
	}
	return strings.ReplaceAll(c.display, "/", "-")
}

// goUp prepends the closest not-yet-used directory to the display name:
// /aaa/bbb/ccc with display ddd becomes /aaa/bbb with display ccc_ddd.
func (c *cuName) goUp() error {
	if len(c.dirs) == 0 {
		return fmt.Errorf("no parent directory left for %q", c.fullpath)
	}
	last := c.dirs[len(c.dirs)-1]
	c.dirs = c.dirs[:len(c.dirs)-1]
	if last == "" {
		return fmt.Errorf("no parent directory left for %q", c.fullpath)
	}
	c.display = last + "_" + c.display
	return nil
}

// makeNumbered falls back to a cu<N>_<filename> name when directory
// prefixes cannot disambiguate.
func (c *cuName) makeNumbered(taken map[string]struct{}) {
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("cu%d_%s", i, c.filename)
		if _, used := taken[candidate]; !used {
			c.numbered = candidate
			taken[candidate] = struct{}{}
			return
		}
	}
}

// MakeUniqueDisplayNames assigns a unique, human-readable display name to
// every compile unit source path. Names start as the bare filename and grow
// parent directories one at a time until unique; units whose full paths
// cannot be told apart this way get a numbered fallback.
func MakeUniqueDisplayNames(fullpaths []string) map[string]string {
	remaining := make([]*cuName, 0, len(fullpaths))
	for _, p := range fullpaths {
		remaining = append(remaining, newCUName(p))
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].fullpath < remaining[j].fullpath })

	out := make(map[string]string, len(remaining))
	taken := make(map[string]struct{})

	for len(remaining) > 0 {
		counts := make(map[string]int, len(remaining))
		for _, c := range remaining {
			counts[c.displayName()]++
		}

		next := remaining[:0]
		for _, c := range remaining {
			name := c.displayName()
			if counts[name] == 1 {
				out[c.fullpath] = name
				taken[name] = struct{}{}
				continue
			}
			next = append(next, c)
		}
		remaining = next

		// The rest collided. Grow their names and try again.
		for _, c := range remaining {
			if err := c.goUp(); err != nil || len(c.displayName()) > maxCUDisplayNameLength {
				c.makeNumbered(taken)
			}
		}
	}
	return out
}
