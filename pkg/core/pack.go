package core

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"msftool/pkg/logger"
	"msftool/pkg/msf"
	"msftool/pkg/progress"
)

// Pack scans root and writes it as an MSF archive at archivePath. The archive
// is staged in a temporary file next to archivePath and renamed into place
// only once complete, so a failed pack never leaves a partial archive.
func Pack(ctx context.Context, archivePath, root string, opts Options) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(archivePath), DirPerm); err != nil {
		return nil, msf.IOError("create output directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), "."+filepath.Base(archivePath)+".*.tmp")
	if err != nil {
		return nil, msf.IOError("create output", err)
	}
	defer os.Remove(tmp.Name())

	res, err := PackTo(ctx, tmp, root, opts)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return nil, msf.IOError("chmod output", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, msf.IOError("close output", err)
	}
	if err := os.Rename(tmp.Name(), archivePath); err != nil {
		return nil, msf.IOError("rename output", err)
	}
	return res, nil
}

// PackTo scans root and streams the archive to w.
func PackTo(ctx context.Context, w io.Writer, root string, opts Options) (*Result, error) {
	log := logger.FromContext(ctx)

	log.Info("scanning directory", "root", root)
	entries, err := Scan(root, opts.scanOptions())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if len(entries) == 0 && !opts.AllowEmpty {
		return nil, fmt.Errorf("%s: %w", root, msf.ErrNothingToPack)
	}

	table := tableOf(entries)
	size, err := msf.AssignOffsets(table)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Offset = table[i].Offset
	}
	log.Info("writing archive", "files", len(entries), "size", progress.FormatSize(size))

	bw := bufio.NewWriter(w)
	if err := msf.WriteTable(bw, table); err != nil {
		return nil, err
	}

	tracker := progress.New(log, totalLength(table))
	if opts.Progress {
		tracker.Start()
		defer tracker.Stop()
	}

	// One staging buffer for the whole operation.
	buf := make([]byte, copyBufferSize)
	out := tracker.Writer(bw)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Info("packing file", "name", e.Name, "length", e.Length)
		if err := copyFileTo(out, e, buf); err != nil {
			return nil, err
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, msf.IOError("flush output", err)
	}
	return &Result{Files: len(entries), Bytes: tracker.Processed()}, nil
}

// copyFileTo appends exactly e.Length bytes of e's source file to w. A file
// that grew since the scan is cut at the scanned length; one that shrank is an
// error, since the table already promised the bytes.
func copyFileTo(w io.Writer, e Entry, buf []byte) error {
	f, err := os.Open(e.FilePath)
	if err != nil {
		return msf.IOError("read "+e.FilePath, err)
	}
	defer f.Close()

	n, err := io.CopyBuffer(w, io.LimitReader(f, int64(e.Length)), buf)
	if err != nil {
		return msf.IOError("copy "+e.FilePath, err)
	}
	if n != int64(e.Length) {
		return msf.IOError("read "+e.FilePath,
			fmt.Errorf("got %d of %d bytes, file shrank during pack", n, e.Length))
	}
	return nil
}
