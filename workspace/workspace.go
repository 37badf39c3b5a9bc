// Package workspace locates the design repository a sweep runs in.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/cs217/hlsweep/assets"
	"github.com/cs217/hlsweep/util"
)

// Root walks up from start to the first directory holding a hlsweep.yaml
// or a .git entry. Without one, start itself is the root.
func Root(start string) (string, error) {
	start, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for dir := start; ; dir = filepath.Dir(dir) {
		if util.FileExists(filepath.Join(dir, assets.ConfigFileName)) {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		if dir == filepath.Dir(dir) {
			return start, nil
		}
	}
}
