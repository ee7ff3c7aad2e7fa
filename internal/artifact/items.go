package artifact

import (
	"fmt"
	"path"
	"strings"
)

// Item is a deployable source path relative to the source root.
type Item struct {
	Path string
	Dir  bool
}

func (i Item) String() string {
	if i.Dir {
		return i.Path + "/"
	}
	return i.Path
}

// ParseItems converts configured item strings. A trailing "/" marks a
// directory.
func ParseItems(specs []string) ([]Item, error) {
	items := make([]Item, 0, len(specs))
	seen := make(map[string]bool, len(specs))

	for _, spec := range specs {
		dir := strings.HasSuffix(spec, "/")
		clean := path.Clean(strings.TrimSuffix(spec, "/"))

		switch {
		case spec == "" || clean == ".":
			return nil, fmt.Errorf("empty item")
		case path.IsAbs(clean):
			return nil, fmt.Errorf("item %q must be relative", spec)
		case clean == ".." || strings.HasPrefix(clean, "../"):
			return nil, fmt.Errorf("item %q escapes the source root", spec)
		case seen[clean]:
			return nil, fmt.Errorf("item %q listed twice", spec)
		}

		seen[clean] = true
		items = append(items, Item{Path: clean, Dir: dir})
	}

	return items, nil
}
