package msf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// tablePrealloc caps the up-front allocation when the entry count cannot be
// checked against the stream size.
const tablePrealloc = 4096

// ReadHeader reads and validates the archive header. A stream shorter than
// the magic is treated as a magic mismatch.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if _, err := io.ReadFull(r, h.Magic[:]); err != nil {
		if isShort(err) {
			return h, fmt.Errorf("read magic: %w", ErrInvalidMagic)
		}
		return h, IOError("read magic", err)
	}
	if !h.Valid() {
		return h, fmt.Errorf("got % x: %w", h.Magic[:], ErrInvalidMagic)
	}
	if err := binary.Read(r, binary.BigEndian, &h.NumFiles); err != nil {
		if isShort(err) {
			return h, fmt.Errorf("read number of entries: %w", ErrCorruptTable)
		}
		return h, IOError("read number of entries", err)
	}
	return h, nil
}

// ReadEntry reads one table entry.
func ReadEntry(r io.Reader) (Entry, error) {
	var fixed [entryFixedSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if isShort(err) {
			return Entry{}, fmt.Errorf("truncated entry: %w", ErrCorruptTable)
		}
		return Entry{}, IOError("read entry", err)
	}

	name := make([]byte, fixed[8])
	if _, err := io.ReadFull(r, name); err != nil {
		if isShort(err) {
			return Entry{}, fmt.Errorf("name claims %d bytes past end of stream: %w", fixed[8], ErrCorruptTable)
		}
		return Entry{}, IOError("read entry name", err)
	}

	return Entry{
		Offset: binary.BigEndian.Uint32(fixed[0:4]),
		Length: binary.BigEndian.Uint32(fixed[4:8]),
		Name:   string(name),
	}, nil
}

// ReadTable reads n consecutive entries.
func ReadTable(r io.Reader, n uint32) ([]Entry, error) {
	entries := make([]Entry, 0, min(n, tablePrealloc))
	for i := uint32(0); i < n; i++ {
		e, err := ReadEntry(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadIndex parses the header and the whole table of an archive of the given
// size in one forward pass. Entry counts the stream cannot hold and data
// ranges that run past the end of the archive are rejected before anything
// is allocated for them or extracted from them.
func ReadIndex(r io.ReaderAt, size int64) ([]Entry, error) {
	br := bufio.NewReader(io.NewSectionReader(r, 0, size))

	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}

	remaining := uint64(size) - uint64(HeaderSize)
	if uint64(h.NumFiles)*entryFixedSize > remaining {
		return nil, fmt.Errorf("table of %d entries does not fit in %d bytes: %w: %w",
			h.NumFiles, remaining, ErrResourceExhausted, ErrCorruptTable)
	}

	entries, err := ReadTable(br, h.NumFiles)
	if err != nil {
		return nil, err
	}

	for i, e := range entries {
		if e.End() > uint64(size) {
			return nil, fmt.Errorf("entry %d (%s) spans %d..%d of a %d byte archive: %w",
				i, e.Name, e.Offset, e.End(), size, ErrCorruptTable)
		}
	}
	return entries, nil
}

func isShort(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
