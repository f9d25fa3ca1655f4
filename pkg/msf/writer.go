package msf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WriteHeader writes the magic followed by the entry count.
func WriteHeader(w io.Writer, numFiles uint32) error {
	if _, err := io.WriteString(w, Magic); err != nil {
		return IOError("write magic", err)
	}
	if err := binary.Write(w, binary.BigEndian, numFiles); err != nil {
		return IOError("write number of entries", err)
	}
	return nil
}

// WriteEntry serializes one table entry. Names that do not fit the one byte
// length field are rejected rather than truncated.
func WriteEntry(w io.Writer, e Entry) error {
	if err := checkName(e.Name); err != nil {
		return err
	}

	var fixed [entryFixedSize]byte
	binary.BigEndian.PutUint32(fixed[0:4], e.Offset)
	binary.BigEndian.PutUint32(fixed[4:8], e.Length)
	fixed[8] = uint8(len(e.Name))

	if _, err := w.Write(fixed[:]); err != nil {
		return IOError("write entry "+e.Name, err)
	}
	if _, err := io.WriteString(w, e.Name); err != nil {
		return IOError("write entry name "+e.Name, err)
	}
	return nil
}

// WriteTable writes the header and every entry in order. Offsets are written
// as given; use AssignOffsets first for a freshly laid out archive.
func WriteTable(w io.Writer, entries []Entry) error {
	if uint64(len(entries)) > math.MaxUint32 {
		return fmt.Errorf("%d entries: %w", len(entries), ErrArchiveTooLarge)
	}
	if err := WriteHeader(w, uint32(len(entries))); err != nil {
		return err
	}
	for i, e := range entries {
		if err := WriteEntry(w, e); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}
