// Package core implements packing a directory tree into an MSF archive and
// unpacking one back onto disk.
package core

import (
	"io/fs"

	"msftool/pkg/msf"
)

// DirPerm is the mode used for every directory created during unpack.
const DirPerm fs.FileMode = 0755

// copyBufferSize is the size of the per-operation staging buffer.
const copyBufferSize = 256 * 1024

// Entry pairs a table entry with the file it was scanned from.
type Entry struct {
	msf.Entry
	FilePath string // Full file path on disk
}

// Options controls pack and unpack behavior. The zero value packs in
// enumeration order, rejects empty trees and extracts sequentially.
type Options struct {
	// Sort visits directory entries by name instead of enumeration order.
	Sort bool
	// AllowEmpty writes a zero-entry archive for a tree with no files.
	AllowEmpty bool
	// NormalizeNames stores entry names in Unicode NFC.
	NormalizeNames bool
	// Workers > 1 extracts entries concurrently.
	Workers int
	// AllowTraversal accepts absolute names and ".." components on unpack.
	AllowTraversal bool
	// Progress logs periodic throughput while data is copied.
	Progress bool
}

func (o Options) scanOptions() ScanOptions {
	return ScanOptions{Sort: o.Sort, NormalizeNames: o.NormalizeNames}
}

// Result summarizes a finished operation.
type Result struct {
	Files int
	Bytes uint64
}

func tableOf(entries []Entry) []msf.Entry {
	table := make([]msf.Entry, len(entries))
	for i, e := range entries {
		table[i] = e.Entry
	}
	return table
}

func totalLength(entries []msf.Entry) uint64 {
	var total uint64
	for _, e := range entries {
		total += uint64(e.Length)
	}
	return total
}
