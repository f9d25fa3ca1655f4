// Package msf defines the MSF archive layout: an 8-byte magic, a big-endian
// entry count, a flat table of (offset, length, name) entries and a data
// region holding the raw file contents.
package msf

import "math"

// Constants for the archive format
const (
	Magic      = "\x00\x00\x03\xe7\x00\x00\x00\x02" // Identifies an MSF stream
	MaxNameLen = 255                                // name_length is a single byte

	// HeaderSize is the magic plus the uint32 entry count.
	HeaderSize = len(Magic) + 4

	// entryFixedSize is offset + length + name_length.
	entryFixedSize = 4 + 4 + 1

	// MaxArchiveSize is the largest stream whose offsets fit the uint32 fields.
	MaxArchiveSize = math.MaxUint32
)

// Header is the fixed prefix of every archive.
type Header struct {
	Magic    [8]byte
	NumFiles uint32
}

// Valid reports whether the header carries the MSF magic.
func (h *Header) Valid() bool {
	return string(h.Magic[:]) == Magic
}

// Entry describes one packed file.
type Entry struct {
	Offset uint32 `json:"offset"` // Absolute offset of the data from the start of the stream
	Length uint32 `json:"length"` // Byte length of the data
	Name   string `json:"name"`   // Relative, slash separated path
}

// TableSize returns the number of bytes the entry occupies in the table.
func (e Entry) TableSize() int {
	return entryFixedSize + len(e.Name)
}

// End returns the offset one past the entry's last data byte.
func (e Entry) End() uint64 {
	return uint64(e.Offset) + uint64(e.Length)
}

// DataStart returns the offset at which the data region begins for a table
// holding entries.
func DataStart(entries []Entry) uint64 {
	start := uint64(HeaderSize)
	for _, e := range entries {
		start += uint64(e.TableSize())
	}
	return start
}

// AssignOffsets lays the entries out back to back right after the table, in
// table order, and returns the total archive size.
func AssignOffsets(entries []Entry) (uint64, error) {
	cursor := DataStart(entries)
	for i := range entries {
		if err := checkName(entries[i].Name); err != nil {
			return 0, err
		}
		if cursor+uint64(entries[i].Length) > MaxArchiveSize {
			return 0, archiveTooLarge(entries[i].Name, cursor+uint64(entries[i].Length))
		}
		entries[i].Offset = uint32(cursor)
		cursor += uint64(entries[i].Length)
	}
	if cursor > MaxArchiveSize {
		return 0, archiveTooLarge("", cursor)
	}
	return cursor, nil
}
