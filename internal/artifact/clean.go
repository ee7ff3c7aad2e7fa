package artifact

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Clean removes each path recursively. Missing paths are not an error, so
// running it twice is the same as running it once.
func Clean(fs billy.Filesystem, paths ...string) error {
	for _, p := range paths {
		if err := util.RemoveAll(fs, p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", fs.Join(fs.Root(), p), err)
		}
	}
	return nil
}
