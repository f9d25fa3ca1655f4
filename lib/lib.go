// Package lib provides packing and unpacking functions for the MSF format.
// This package re-exports the functionality from the core and msf packages
// for callers that do not need a context or logger.
package lib

import (
	"context"

	"msftool/pkg/core"
	"msftool/pkg/msf"
)

// Constants for archive format re-exported from msf
const (
	Magic      = msf.Magic      // Magic number to identify the archive
	MaxNameLen = msf.MaxNameLen // Longest entry name in bytes
)

// Entry re-exported from msf
type Entry = msf.Entry

// Options re-exported from core
type Options = core.Options

// Result re-exported from core
type Result = core.Result

// Errors re-exported from msf
var (
	ErrFormat            = msf.ErrFormat
	ErrInvalidMagic      = msf.ErrInvalidMagic
	ErrCorruptTable      = msf.ErrCorruptTable
	ErrIO                = msf.ErrIO
	ErrResourceExhausted = msf.ErrResourceExhausted
	ErrNameTooLong       = msf.ErrNameTooLong
	ErrNothingToPack     = msf.ErrNothingToPack
	ErrArchiveTooLarge   = msf.ErrArchiveTooLarge
	ErrUnsafePath        = msf.ErrUnsafePath
)

// Pack is a wrapper around core.Pack with default options
func Pack(archivePath, srcDir string) error {
	_, err := core.Pack(context.Background(), archivePath, srcDir, Options{})
	return err
}

// Unpack is a wrapper around core.Unpack with default options
func Unpack(archivePath, destDir string) error {
	_, err := core.Unpack(context.Background(), archivePath, destDir, Options{})
	return err
}

// PackWith packs with explicit options and reports what was written.
func PackWith(ctx context.Context, archivePath, srcDir string, opts Options) (*Result, error) {
	return core.Pack(ctx, archivePath, srcDir, opts)
}

// UnpackWith unpacks with explicit options and reports what was extracted.
func UnpackWith(ctx context.Context, archivePath, destDir string, opts Options) (*Result, error) {
	return core.Unpack(ctx, archivePath, destDir, opts)
}

// List is a wrapper around core.List
func List(archivePath string) ([]Entry, error) {
	return core.List(context.Background(), archivePath)
}
