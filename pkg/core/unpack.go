package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"msftool/pkg/logger"
	"msftool/pkg/msf"
	"msftool/pkg/progress"
)

// Unpack extracts every entry of the archive at archivePath under destDir.
func Unpack(ctx context.Context, archivePath, destDir string, opts Options) (*Result, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, msf.IOError("open archive", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, msf.IOError("stat archive", err)
	}
	return UnpackFrom(ctx, f, st.Size(), destDir, opts)
}

// UnpackFrom extracts an archive of the given size read through r. The whole
// table is parsed and checked before any file is written; entries are then
// extracted in table order, overwriting existing files.
func UnpackFrom(ctx context.Context, r io.ReaderAt, size int64, destDir string, opts Options) (*Result, error) {
	log := logger.FromContext(ctx)

	entries, err := msf.ReadIndex(r, size)
	if err != nil {
		return nil, err
	}
	if !opts.AllowTraversal {
		for i, e := range entries {
			if err := checkEntryName(e.Name); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
		}
	}
	if destDir == "" {
		destDir = "."
	}

	log.Info("unpacking files", "count", len(entries), "dest", destDir)

	tracker := progress.New(log, totalLength(entries))
	if opts.Progress {
		tracker.Start()
		defer tracker.Stop()
	}

	if opts.Workers > 1 && !hasDuplicateNames(entries) {
		err = extractParallel(ctx, r, destDir, entries, opts.Workers, tracker)
	} else {
		err = extractSequential(ctx, r, destDir, entries, tracker)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Files: len(entries), Bytes: tracker.Processed()}, nil
}

func extractSequential(ctx context.Context, r io.ReaderAt, destDir string, entries []msf.Entry, tracker *progress.Tracker) error {
	log := logger.FromContext(ctx)
	buf := make([]byte, copyBufferSize)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info("unpacking file", "name", e.Name, "length", e.Length)
		if err := extractEntry(r, destDir, e, buf, tracker); err != nil {
			return err
		}
	}
	return nil
}

func extractParallel(ctx context.Context, r io.ReaderAt, destDir string, entries []msf.Entry, workers int, tracker *progress.Tracker) error {
	log := logger.FromContext(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			log.Info("unpacking file", "name", e.Name, "length", e.Length)
			return extractEntry(r, destDir, e, make([]byte, copyBufferSize), tracker)
		})
	}
	return g.Wait()
}

// extractEntry writes e's data to destDir/e.Name, creating parent
// directories as needed. Backslashes in the name separate components.
func extractEntry(r io.ReaderAt, destDir string, e msf.Entry, buf []byte, tracker *progress.Tracker) error {
	dest := destDir + "/" + slashName(e.Name)
	if err := MkPath(dest, DirPerm); err != nil {
		return err
	}

	f, err := os.Create(dest)
	if err != nil {
		return msf.IOError("open "+dest+" for writing", err)
	}
	defer f.Close()

	sr := io.NewSectionReader(r, int64(e.Offset), int64(e.Length))
	n, err := io.CopyBuffer(tracker.Writer(f), sr, buf)
	if err != nil {
		return msf.IOError("extract "+e.Name, err)
	}
	if n != int64(e.Length) {
		return msf.IOError("extract "+e.Name, fmt.Errorf("expected %d bytes, got %d", e.Length, n))
	}
	if err := f.Close(); err != nil {
		return msf.IOError("close "+dest, err)
	}
	return nil
}

// checkEntryName rejects names that would land outside the destination:
// empty names, absolute or drive-qualified paths, and ".." components.
func checkEntryName(name string) error {
	p := slashName(name)
	switch {
	case p == "":
		return fmt.Errorf("empty name: %w", msf.ErrUnsafePath)
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("%q is absolute: %w", name, msf.ErrUnsafePath)
	case len(p) >= 2 && p[1] == ':':
		return fmt.Errorf("%q has a drive letter: %w", name, msf.ErrUnsafePath)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return fmt.Errorf("%q: %w", name, msf.ErrUnsafePath)
		}
	}
	return nil
}

// slashName returns name with both '/' and '\' as the separator, in the
// forward slash form used on disk.
func slashName(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

// hasDuplicateNames reports whether two entries resolve to the same file
// under the destination, so "a/b", "a//b", "./a/b" and `a\b` all collide.
func hasDuplicateNames(entries []msf.Entry) bool {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		key := path.Clean(slashName(e.Name))
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}
