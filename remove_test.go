package pkzip

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
)

// Scenario 4 (spec §8): removing the middle entry of three leaves the
// other two intact, in order, with their content still extractable and the
// EOCD entry count decremented.
func TestRemoveMiddleEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	mustAddFile(t, a, "a", "A", MethodStore)
	b := mustAddFile(t, a, "b", "B", MethodStore)
	mustAddFile(t, a, "c", "C", MethodStore)

	if err := a.RemoveEntry(b, 0, nil); err != nil {
		t.Fatal(err)
	}

	entries, err := a.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(entries))
	}
	if entries[0].Path() != "a" || entries[1].Path() != "c" {
		t.Fatalf("want [a c], got [%s %s]", entries[0].Path(), entries[1].Path())
	}

	var bufA, bufC bytes.Buffer
	if _, err := a.Extract(entries[0], 0, nil, &bufA); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Extract(entries[1], 0, nil, &bufC); err != nil {
		t.Fatal(err)
	}
	if bufA.String() != "A" || bufC.String() != "C" {
		t.Fatalf("content: a=%q c=%q", bufA.String(), bufC.String())
	}
	if a.eocd.numEntriesTotal != 2 {
		t.Fatalf("EOCD entry count: got %d want 2", a.eocd.numEntriesTotal)
	}
}

func TestRemoveFirstAndLastEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	first := mustAddFile(t, a, "a", "A", MethodStore)
	mustAddFile(t, a, "b", "B", MethodDeflate)
	mustAddFile(t, a, "c", "C", MethodStore)

	if err := a.RemoveEntry(first, 0, nil); err != nil {
		t.Fatal(err)
	}
	// The first removal rewrote the archive, so "c" must be looked up again
	// to get an Entry whose offsets refer to the current file.
	last, err := a.Lookup("c")
	if err != nil || last == nil {
		t.Fatalf("lookup c after first removal: %v %v", last, err)
	}
	if err := a.RemoveEntry(last, 0, nil); err != nil {
		t.Fatal(err)
	}

	entries, err := a.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Path() != "b" {
		t.Fatalf("want [b], got %v", entries)
	}
	var buf bytes.Buffer
	if _, err := a.Extract(entries[0], 0, nil, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "B" {
		t.Fatalf("content: got %q want %q", buf.String(), "B")
	}
}

func TestRemoveOnReadOnlyArchiveFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	e := mustAddFile(t, a, "a", "A", MethodStore)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	ro, err := Open(fs, "a.zip", ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()

	err = ro.RemoveEntry(e, 0, nil)
	if err == nil {
		t.Fatal("want error removing from a read-only archive")
	}
}
