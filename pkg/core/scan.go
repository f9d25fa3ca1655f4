package core

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"msftool/pkg/msf"
)

// ScanOptions controls directory traversal.
type ScanOptions struct {
	Sort           bool
	NormalizeNames bool
}

// Scan walks root depth first and returns one entry per regular file, in
// visit order. Hidden entries (leading '.') are skipped at every depth, as is
// anything that is neither a regular file nor a directory. Symlinks are not
// followed.
//
// Unless opts.Sort is set, siblings are visited in the order the filesystem
// enumerates them, so the result is not reproducible across filesystems.
func Scan(root string, opts ScanOptions) ([]Entry, error) {
	var entries []Entry
	if err := scanDir(root, root, opts, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func scanDir(root, dir string, opts ScanOptions, entries *[]Entry) error {
	d, err := os.Open(dir)
	if err != nil {
		return msf.IOError("open directory "+dir, err)
	}
	// (*os.File).ReadDir keeps enumeration order, unlike os.ReadDir.
	dirents, err := d.ReadDir(-1)
	d.Close()
	if err != nil {
		return msf.IOError("read directory "+dir, err)
	}
	if opts.Sort {
		sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })
	}

	for _, de := range dirents {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, de.Name())
		info, err := de.Info()
		if err != nil {
			return msf.IOError("stat "+path, err)
		}

		switch {
		case info.IsDir():
			if err := scanDir(root, path, opts, entries); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			name, err := relName(root, path, opts.NormalizeNames)
			if err != nil {
				return err
			}
			if info.Size() > math.MaxUint32 {
				return fmt.Errorf("%s is %d bytes: %w", path, info.Size(), msf.ErrArchiveTooLarge)
			}
			*entries = append(*entries, Entry{
				Entry:    msf.Entry{Length: uint32(info.Size()), Name: name},
				FilePath: path,
			})
		}
	}
	return nil
}

// relName strips root from path and returns the remainder with forward
// slashes.
func relName(root, path string, normalize bool) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relative path for %s: %w", path, err)
	}
	name := filepath.ToSlash(rel)
	if normalize {
		name = norm.NFC.String(name)
	}
	if len(name) > msf.MaxNameLen {
		return "", fmt.Errorf("%s (%d bytes): %w", name, len(name), msf.ErrNameTooLong)
	}
	return name, nil
}
