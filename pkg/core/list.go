package core

import (
	"context"
	"os"

	"msftool/pkg/logger"
	"msftool/pkg/msf"
)

// List returns the table of the archive at archivePath without reading any
// file data.
func List(ctx context.Context, archivePath string) ([]msf.Entry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, msf.IOError("open archive", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, msf.IOError("stat archive", err)
	}

	entries, err := msf.ReadIndex(f, st.Size())
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("read table", "archive", archivePath, "entries", len(entries))
	return entries, nil
}
