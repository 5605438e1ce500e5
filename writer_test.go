package pkzip

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
)

// Scenario 1 (spec §8): UTF-8 filename round-trips exactly and is flagged
// with general-purpose bit 11; extracted content matches its known CRC32.
func TestAddEntryUTF8FileName(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	mustAddFile(t, a, "héllo.txt", "abc", MethodStore)

	entries, err := a.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Path() != "héllo.txt" {
		t.Fatalf("path: got %q want %q", e.Path(), "héllo.txt")
	}
	if e.GeneralPurposeBitFlag()&gpbfLanguageEncUTF8 == 0 {
		t.Fatal("want UTF-8 flag bit set")
	}

	var buf bytes.Buffer
	crc, err := a.Extract(e, 0, nil, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if buf.String() != "abc" {
		t.Fatalf("content: got %q", buf.String())
	}
	if crc != 0x352441C2 {
		t.Fatalf("crc32: got %#x want %#x", crc, 0x352441C2)
	}
}

// Scenario 2: store round-trip, sizes equal, known CRC32.
func TestAddEntryStoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	mustAddFile(t, a, "x", "1234567890", MethodStore)

	entries, err := a.Entries()
	if err != nil {
		t.Fatal(err)
	}
	e := entries[0]
	if e.CompressedSize() != 10 || e.UncompressedSize() != 10 {
		t.Fatalf("sizes: compressed=%d uncompressed=%d", e.CompressedSize(), e.UncompressedSize())
	}
	if e.CompressionMethod() != MethodStore {
		t.Fatalf("method: got %v want store", e.CompressionMethod())
	}
	if e.CRC32() != 0x261DAEE5 {
		t.Fatalf("crc32: got %#x want %#x", e.CRC32(), 0x261DAEE5)
	}
}

// Scenario 3: deflate round-trip of 1 MiB of zeros compresses well and
// extracts back byte-identical, with CRC32 computed over the uncompressed
// stream (the Open Question resolution documented in DESIGN.md).
func TestAddEntryDeflateRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	payload := make([]byte, 1<<20)
	e, err := a.AddEntry("big", EntryTypeFile, int64(len(payload)), epoch, 0, MethodDeflate, 0, nil, bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}

	if e.UncompressedSize() != 1<<20 {
		t.Fatalf("uncompressedSize: got %d want %d", e.UncompressedSize(), 1<<20)
	}
	if e.CompressionMethod() != MethodDeflate {
		t.Fatalf("method: got %v want deflate", e.CompressionMethod())
	}
	if e.CompressedSize() >= e.UncompressedSize() {
		t.Fatalf("compressedSize %d should be significantly smaller than uncompressedSize %d", e.CompressedSize(), e.UncompressedSize())
	}

	var buf bytes.Buffer
	crc, err := a.Extract(e, 0, nil, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Fatal("extracted content does not match original payload")
	}
	if crc != e.CRC32() {
		t.Fatalf("crc32 mismatch: extract returned %#x, entry has %#x", crc, e.CRC32())
	}
}

// Scenario 5: directory entries get a trailing slash, zero size, and POSIX
// 0o755 | S_IFDIR packed into external attributes.
func TestAddEntryDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	if _, err := a.AddDirectory("dir", epoch, 0, nil); err != nil {
		t.Fatal(err)
	}

	entries, err := a.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Path() != "dir/" {
		t.Fatalf("path: got %q want %q", e.Path(), "dir/")
	}
	if e.Type() != EntryTypeDirectory {
		t.Fatalf("type: got %v want directory", e.Type())
	}
	if e.UncompressedSize() != 0 {
		t.Fatalf("uncompressedSize: got %d want 0", e.UncompressedSize())
	}
	wantAttrs := ((uint32(modeDir) | defaultDirectoryPermissions) & 0xffff) << 16
	if e.central.externalFileAttributes != wantAttrs {
		t.Fatalf("externalFileAttributes: got %#x want %#x", e.central.externalFileAttributes, wantAttrs)
	}
}

// Scenario 6: symlink round-trip extracts to a symbolic link whose target
// reads back verbatim.
func TestAddEntrySymlinkExtract(t *testing.T) {
	fs := afero.NewOsFs()
	dir := t.TempDir()
	archivePath := dir + "/a.zip"

	a := newTestArchive(t, fs, archivePath)
	defer a.Close()

	if _, err := a.AddSymlink("lnk", "target.txt", epoch, 0, nil); err != nil {
		t.Fatal(err)
	}

	entries, err := a.Entries()
	if err != nil {
		t.Fatal(err)
	}
	e := entries[0]
	if e.Type() != EntryTypeSymlink {
		t.Fatalf("type: got %v want symlink", e.Type())
	}

	linkPath := dir + "/lnk"
	if _, err := a.ExtractToPath(e, fs, linkPath, 0, nil); err != nil {
		t.Fatal(err)
	}

	reader, ok := fs.(interface {
		ReadlinkIfPossible(name string) (string, error)
	})
	if !ok {
		t.Fatal("filesystem does not support reading symlinks")
	}
	target, err := reader.ReadlinkIfPossible(linkPath)
	if err != nil {
		t.Fatal(err)
	}
	if target != "target.txt" {
		t.Fatalf("symlink target: got %q want %q", target, "target.txt")
	}
}

func TestAddEntryRejectsUnknownMethod(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()

	_, err := a.AddEntry("x", EntryTypeFile, 0, epoch, 0, CompressionMethod(99), 0, nil, bytes.NewReader(nil))
	var zerr *Error
	if !errors.As(err, &zerr) || zerr.Kind != ErrInvalidArchiveLevel {
		t.Fatalf("want ErrInvalidArchiveLevel, got %v", err)
	}
}

// Cancellation during a write must roll the archive back to its exact
// pre-write byte layout, per spec §4.4/§9.
func TestAddEntryCancellationRollsBack(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newTestArchive(t, fs, "a.zip")
	defer a.Close()
	mustAddFile(t, a, "first", "hello", MethodStore)

	before, err := afero.ReadFile(fs, "a.zip")
	if err != nil {
		t.Fatal(err)
	}

	progress := NewProgress(100)
	progress.Cancel()
	_, err = a.AddEntry("second", EntryTypeFile, 5, epoch, 0, MethodStore, 0, progress, bytes.NewReader([]byte("world")))
	var zerr *Error
	if !errors.As(err, &zerr) || zerr.Kind != ErrCancelled {
		t.Fatalf("want ErrCancelled, got %v", err)
	}

	after, err := afero.ReadFile(fs, "a.zip")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("archive bytes changed despite cancelled write")
	}
}
