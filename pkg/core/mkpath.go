package core

import (
	"io/fs"
	"os"
	"strings"

	"msftool/pkg/msf"
)

// MkPath creates every directory leading up to the last element of path.
// Both '/' and '\' separate components; directories are created using the
// forward slash form. Components that already exist as directories are fine.
// It succeeds only if every prefix is a directory afterwards.
func MkPath(path string, perm fs.FileMode) error {
	p := strings.ReplaceAll(path, `\`, "/")
	// Start at 1 so a leading '/' never yields an empty prefix.
	for i := 1; i < len(p); i++ {
		if p[i] != '/' || p[i-1] == '/' {
			continue
		}
		if err := ensureDir(p[:i], perm); err != nil {
			return err
		}
	}
	return nil
}

func ensureDir(dir string, perm fs.FileMode) error {
	err := os.Mkdir(dir, perm)
	if err == nil {
		return nil
	}
	if st, statErr := os.Stat(dir); statErr == nil && st.IsDir() {
		return nil
	}
	return msf.IOError("create directory "+dir, err)
}
