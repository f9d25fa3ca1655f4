package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"msftool/pkg/logger"
	"msftool/pkg/msf"
)

// buildArchive lays out entries with the given data in order and returns the
// serialized archive.
func buildArchive(t *testing.T, names []string, data [][]byte) []byte {
	t.Helper()
	entries := make([]msf.Entry, len(names))
	for i, name := range names {
		entries[i] = msf.Entry{Name: name, Length: uint32(len(data[i]))}
	}
	if _, err := msf.AssignOffsets(entries); err != nil {
		t.Fatalf("AssignOffsets: %v", err)
	}
	var buf bytes.Buffer
	if err := msf.WriteTable(&buf, entries); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	for _, d := range data {
		buf.Write(d)
	}
	return buf.Bytes()
}

func TestUnpackRejectsBadMagic(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "bad.msf")
	good := buildArchive(t, []string{"a.txt"}, [][]byte{[]byte("abc")})
	bad := append([]byte("NOTMSF!!"), good[8:]...)
	if err := os.WriteFile(archive, bad, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out")
	_, err := Unpack(testContext(), archive, dest, Options{})
	if !errors.Is(err, msf.ErrInvalidMagic) || !errors.Is(err, msf.ErrFormat) {
		t.Fatalf("expected invalid magic format error, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("expected nothing created at %s, stat err = %v", dest, err)
	}
}

func TestUnpackCreatesNestedDirectories(t *testing.T) {
	data := buildArchive(t, []string{"a/b/c/file.txt"}, [][]byte{[]byte("nested")})
	dest := t.TempDir()

	if _, err := UnpackFrom(testContext(), bytes.NewReader(data), int64(len(data)), dest, Options{}); err != nil {
		t.Fatalf("UnpackFrom failed: %v", err)
	}
	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		st, err := os.Stat(filepath.Join(dest, filepath.FromSlash(dir)))
		if err != nil || !st.IsDir() {
			t.Fatalf("expected directory %s, err = %v", dir, err)
		}
	}
	got, err := os.ReadFile(filepath.Join(dest, "a", "b", "c", "file.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "nested" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestUnpackOutOfOrderOffsets(t *testing.T) {
	// Entries whose data is stored in reverse order, with one entry reusing
	// another's bytes.
	entries := []msf.Entry{
		{Name: "first.txt", Length: 5},
		{Name: "second.txt", Length: 6},
		{Name: "alias.txt", Length: 5},
	}
	start := uint32(msf.DataStart(entries))
	entries[1].Offset = start
	entries[0].Offset = start + 6
	entries[2].Offset = start + 6

	var buf bytes.Buffer
	if err := msf.WriteTable(&buf, entries); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	buf.WriteString("SECONDfirst")

	dest := t.TempDir()
	if _, err := UnpackFrom(testContext(), bytes.NewReader(buf.Bytes()), int64(buf.Len()), dest, Options{}); err != nil {
		t.Fatalf("UnpackFrom failed: %v", err)
	}
	assertSameTree(t, map[string][]byte{
		"first.txt":  []byte("first"),
		"second.txt": []byte("SECOND"),
		"alias.txt":  []byte("first"),
	}, readTree(t, dest))
}

func TestUnpackTruncatedData(t *testing.T) {
	data := buildArchive(t, []string{"a.txt", "b.txt"}, [][]byte{[]byte("aaaa"), []byte("bbbb")})
	data = data[:len(data)-2]

	dest := t.TempDir()
	_, err := UnpackFrom(testContext(), bytes.NewReader(data), int64(len(data)), dest, Options{})
	if !errors.Is(err, msf.ErrCorruptTable) {
		t.Fatalf("expected ErrCorruptTable, got %v", err)
	}
	if got := readTree(t, dest); len(got) != 0 {
		t.Fatalf("expected nothing written, got %v", keys(got))
	}
}

func TestUnpackTraversal(t *testing.T) {
	names := []string{"ok.txt", "../evil.txt"}
	data := buildArchive(t, names, [][]byte{[]byte("ok"), []byte("evil")})

	t.Run("rejected by default", func(t *testing.T) {
		parent := t.TempDir()
		dest := filepath.Join(parent, "dest")
		_, err := UnpackFrom(testContext(), bytes.NewReader(data), int64(len(data)), dest, Options{})
		if !errors.Is(err, msf.ErrUnsafePath) {
			t.Fatalf("expected ErrUnsafePath, got %v", err)
		}
		if got := readTree(t, parent); len(got) != 0 {
			t.Fatalf("expected nothing written, got %v", keys(got))
		}
	})

	t.Run("allowed on request", func(t *testing.T) {
		parent := t.TempDir()
		dest := filepath.Join(parent, "dest")
		_, err := UnpackFrom(testContext(), bytes.NewReader(data), int64(len(data)), dest, Options{AllowTraversal: true})
		if err != nil {
			t.Fatalf("UnpackFrom failed: %v", err)
		}
		got, err := os.ReadFile(filepath.Join(parent, "evil.txt"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != "evil" {
			t.Fatalf("unexpected content %q", got)
		}
	})
}

func TestUnpackOverwritesExisting(t *testing.T) {
	data := buildArchive(t, []string{"f.txt"}, [][]byte{[]byte("new")})
	dest := t.TempDir()
	writeTree(t, dest, map[string][]byte{"f.txt": []byte("much longer old content")})

	if _, err := UnpackFrom(testContext(), bytes.NewReader(data), int64(len(data)), dest, Options{}); err != nil {
		t.Fatalf("UnpackFrom failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "f.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("file not truncated and overwritten: %q", got)
	}
}

func TestUnpackDestinationBlocked(t *testing.T) {
	data := buildArchive(t, []string{"a/b.txt"}, [][]byte{[]byte("b")})
	dest := t.TempDir()
	writeTree(t, dest, map[string][]byte{"a": []byte("a file, not a directory")})

	_, err := UnpackFrom(testContext(), bytes.NewReader(data), int64(len(data)), dest, Options{})
	if !errors.Is(err, msf.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestUnpackParallel(t *testing.T) {
	names := make([]string, 0, 64)
	data := make([][]byte, 0, 64)
	want := make(map[string][]byte)
	for i := 0; i < 64; i++ {
		name := fmt.Sprintf("dir%d/sub/file%d.txt", i%4, i)
		content := []byte(fmt.Sprintf("This is file %d with some content.", i))
		names = append(names, name)
		data = append(data, content)
		want[name] = content
	}
	archive := buildArchive(t, names, data)

	dest := t.TempDir()
	res, err := UnpackFrom(testContext(), bytes.NewReader(archive), int64(len(archive)), dest, Options{Workers: 8, Progress: true})
	if err != nil {
		t.Fatalf("UnpackFrom failed: %v", err)
	}
	if res.Files != 64 {
		t.Fatalf("unpacked %d files, want 64", res.Files)
	}
	assertSameTree(t, want, readTree(t, dest))
}

func TestUnpackDuplicateNamesLastWins(t *testing.T) {
	data := buildArchive(t,
		[]string{"same.txt", "other.txt", "same.txt"},
		[][]byte{[]byte("first"), []byte("other"), []byte("last")})

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			dest := t.TempDir()
			if _, err := UnpackFrom(testContext(), bytes.NewReader(data), int64(len(data)), dest, Options{Workers: workers}); err != nil {
				t.Fatalf("UnpackFrom failed: %v", err)
			}
			got, err := os.ReadFile(filepath.Join(dest, "same.txt"))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != "last" {
				t.Fatalf("expected last entry to win, got %q", got)
			}
		})
	}
}

func TestCheckEntryName(t *testing.T) {
	tests := []struct {
		name string
		safe bool
	}{
		{"file.txt", true},
		{"a/b/c.txt", true},
		{"a/..b/c", true},
		{"..hidden", true},
		{"", false},
		{"/etc/passwd", false},
		{`\windows\system32`, false},
		{"C:/x.txt", false},
		{"../escape", false},
		{"a/../../escape", false},
		{`a\..\escape`, false},
		{"..", false},
	}
	for _, tc := range tests {
		err := checkEntryName(tc.name)
		if tc.safe && err != nil {
			t.Errorf("%q: unexpected error %v", tc.name, err)
		}
		if !tc.safe && !errors.Is(err, msf.ErrUnsafePath) {
			t.Errorf("%q: expected ErrUnsafePath, got %v", tc.name, err)
		}
	}
}

func TestUnpackMissingArchive(t *testing.T) {
	_, err := Unpack(testContext(), filepath.Join(t.TempDir(), "missing.msf"), t.TempDir(), Options{})
	if !errors.Is(err, msf.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestUnpackBackslashSeparators(t *testing.T) {
	data := buildArchive(t,
		[]string{`a\b/c.txt`, `x\y.txt`},
		[][]byte{[]byte("mixed"), []byte("windows")})
	dest := t.TempDir()

	if _, err := UnpackFrom(testContext(), bytes.NewReader(data), int64(len(data)), dest, Options{}); err != nil {
		t.Fatalf("UnpackFrom failed: %v", err)
	}
	assertSameTree(t, map[string][]byte{
		"a/b/c.txt": []byte("mixed"),
		"x/y.txt":   []byte("windows"),
	}, readTree(t, dest))
}

func TestHasDuplicateNames(t *testing.T) {
	tests := []struct {
		names []string
		dup   bool
	}{
		{[]string{"a/b", "a/c"}, false},
		{[]string{"a/b", "a/b"}, true},
		{[]string{"a/b", "a//b"}, true},
		{[]string{"a/b", "./a/b"}, true},
		{[]string{"a/b", `a\b`}, true},
		{[]string{"a/b", "a/b/"}, true},
	}
	for _, tc := range tests {
		entries := make([]msf.Entry, len(tc.names))
		for i, name := range tc.names {
			entries[i] = msf.Entry{Name: name}
		}
		if got := hasDuplicateNames(entries); got != tc.dup {
			t.Errorf("%q: got %v want %v", tc.names, got, tc.dup)
		}
	}
}

func TestUnpackEquivalentNamesLastWins(t *testing.T) {
	data := buildArchive(t,
		[]string{"dir/same.txt", "dir//same.txt", "./dir/same.txt"},
		[][]byte{[]byte("first"), []byte("second"), []byte("last")})

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			dest := t.TempDir()
			if _, err := UnpackFrom(testContext(), bytes.NewReader(data), int64(len(data)), dest, Options{Workers: workers}); err != nil {
				t.Fatalf("UnpackFrom failed: %v", err)
			}
			assertSameTree(t, map[string][]byte{"dir/same.txt": []byte("last")}, readTree(t, dest))
		})
	}
}

func TestUnpackLogsEachFile(t *testing.T) {
	data := buildArchive(t, []string{"one.txt", "sub/two.txt"}, [][]byte{[]byte("1"), []byte("2")})

	var logs bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.Text(&logs, slog.LevelInfo))
	if _, err := UnpackFrom(ctx, bytes.NewReader(data), int64(len(data)), t.TempDir(), Options{}); err != nil {
		t.Fatalf("UnpackFrom failed: %v", err)
	}
	for _, name := range []string{"one.txt", "sub/two.txt"} {
		if !strings.Contains(logs.String(), `msg="unpacking file" name=`+name) {
			t.Errorf("no info line for %s in:\n%s", name, logs.String())
		}
	}
}
