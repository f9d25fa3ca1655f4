package msf

import (
	"errors"
	"fmt"
)

var (
	ErrFormat            = errors.New("malformed MSF archive")
	ErrInvalidMagic      = fmt.Errorf("invalid MSF magic: %w", ErrFormat)
	ErrCorruptTable      = fmt.Errorf("corrupt MSF table: %w", ErrFormat)
	ErrIO                = errors.New("I/O failure")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrNameTooLong       = fmt.Errorf("entry name longer than %d bytes", MaxNameLen)
	ErrNothingToPack     = errors.New("no files to pack")
	ErrArchiveTooLarge   = errors.New("archive exceeds 4 GiB offset range")
	ErrUnsafePath        = errors.New("entry name escapes destination")
)

func checkName(name string) error {
	if len(name) > MaxNameLen {
		return fmt.Errorf("%q (%d bytes): %w", name, len(name), ErrNameTooLong)
	}
	return nil
}

func archiveTooLarge(name string, end uint64) error {
	if name == "" {
		return fmt.Errorf("data ends at %d: %w", end, ErrArchiveTooLarge)
	}
	return fmt.Errorf("%s ends at %d: %w", name, end, ErrArchiveTooLarge)
}

// IOError annotates err with the failing operation and marks it as ErrIO.
func IOError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
