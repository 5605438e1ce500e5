package pkzip

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
)

func TestLookupFindsFirstMatchingPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	mustAddFile(t, a, "a", "A", MethodStore)
	mustAddFile(t, a, "b", "B", MethodStore)
	mustAddFile(t, a, "b", "BB", MethodStore)

	e, err := a.Lookup("b")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil {
		t.Fatal("want entry, got nil")
	}
	if e.Path() != "b" {
		t.Fatalf("path: got %q want %q", e.Path(), "b")
	}
	if e.UncompressedSize() != 1 {
		t.Fatalf("want the first %q entry (size 1), got size %d", "b", e.UncompressedSize())
	}

	missing, err := a.Lookup("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("want nil for missing entry, got %v", missing)
	}
}

func TestIterateStopsWhenYieldReturnsFalse(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	mustAddFile(t, a, "a", "A", MethodStore)
	mustAddFile(t, a, "b", "B", MethodStore)
	mustAddFile(t, a, "c", "C", MethodStore)

	var seen []string
	err := a.Iterate(func(e *Entry) bool {
		seen = append(seen, e.Path())
		return len(seen) < 2
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 {
		t.Fatalf("want 2 entries visited, got %d: %v", len(seen), seen)
	}
}

func TestExtractRejectsUnsupportedMethod(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	e := mustAddFile(t, a, "x", "hi", MethodStore)
	e.central.compressionMethod = 99

	var buf bytes.Buffer
	_, err := a.Extract(e, 0, nil, &buf)
	var zerr *Error
	if !errors.As(err, &zerr) || zerr.Kind != ErrInvalidArchiveLevel {
		t.Fatalf("want ErrInvalidArchiveLevel, got %v", err)
	}
}

func TestExtractToPathDirectory(t *testing.T) {
	fs := afero.NewOsFs()
	dir := t.TempDir()
	archivePath := dir + "/a.zip"

	a := newTestArchive(t, fs, archivePath)
	defer a.Close()

	if _, err := a.AddDirectory("sub", epoch, 0, nil); err != nil {
		t.Fatal(err)
	}
	e, err := a.Lookup("sub/")
	if err != nil || e == nil {
		t.Fatalf("lookup sub/: %v %v", e, err)
	}

	target := dir + "/sub"
	if _, err := a.ExtractToPath(e, fs, target, 0, nil); err != nil {
		t.Fatal(err)
	}
	info, err := fs.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("extracted path is not a directory")
	}
}
