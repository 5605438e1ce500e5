package pkzip

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// epoch is a fixed, DOS-representable modification time shared by tests so
// assertions never depend on wall-clock time.
var epoch = time.Date(2020, time.March, 15, 10, 30, 0, 0, time.UTC)

func newTestArchive(t *testing.T, fs afero.Fs, path string) *Archive {
	t.Helper()
	a, err := Open(fs, path, ModeCreate)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	return a
}

func mustAddFile(t *testing.T, a *Archive, path, content string, method CompressionMethod) *Entry {
	t.Helper()
	e, err := a.AddEntry(path, EntryTypeFile, int64(len(content)), epoch, 0, method, 0, nil, bytes.NewReader([]byte(content)))
	if err != nil {
		t.Fatalf("addEntry %s: %v", path, err)
	}
	return e
}
