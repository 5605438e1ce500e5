package pkzip

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/afero"
)

// Mode selects how Open binds an Archive to its backing file.
type Mode int

const (
	// ModeCreate requires the path not to already exist; it is initialized
	// with an empty End Of Central Directory record.
	ModeCreate Mode = iota
	// ModeRead requires the path to exist and opens it read-only.
	ModeRead
	// ModeUpdate requires the path to exist and opens it for read-write
	// mutation (AddEntry, RemoveEntry).
	ModeUpdate
)

// Archive is a handle bound to one backing file and one access Mode. It
// owns its file handle exclusively; Entry values returned by it are
// immutable snapshots that only remain meaningful while this Archive (and
// its backing file) is open. Archive is single-threaded and non-reentrant:
// callers must serialize their own access.
type Archive struct {
	fs   afero.Fs
	path string
	mode Mode
	file afero.File
	eocd eocdRecord
}

// Open binds a new Archive to path using fs, per Mode's semantics.
func Open(fs afero.Fs, path string, mode Mode) (*Archive, error) {
	switch mode {
	case ModeCreate:
		return createArchive(fs, path)
	case ModeRead:
		return openArchive(fs, path, os.O_RDONLY, ModeRead)
	case ModeUpdate:
		return openArchive(fs, path, os.O_RDWR, ModeUpdate)
	default:
		return nil, newErrorf("open", ErrUnknown, "unknown mode %d", mode)
	}
}

func createArchive(fs afero.Fs, path string) (*Archive, error) {
	if exists, _ := afero.Exists(fs, path); exists {
		return nil, newError("open", ErrFileNotAccessible, os.ErrExist).withContext("path", path)
	}
	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, newError("open", ErrFileNotAccessible, err).withContext("path", path)
	}

	a := &Archive{fs: fs, path: path, mode: ModeCreate, file: file}
	a.eocd = eocdRecord{}
	if _, err := file.Write(a.eocd.encode()); err != nil {
		file.Close()
		return nil, newError("open", ErrUnknown, err).withContext("path", path)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, newError("open", ErrUnknown, err).withContext("path", path)
	}
	return a, nil
}

func openArchive(fs afero.Fs, path string, flag int, mode Mode) (*Archive, error) {
	info, statErr := fs.Stat(path)
	if statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return nil, newError("open", ErrFileNotFound, statErr).withContext("path", path)
		}
		return nil, newError("open", ErrFileNotAccessible, statErr).withContext("path", path)
	}
	if info.IsDir() {
		return nil, newError("open", ErrFileNotAccessible, errors.New("path is a directory")).withContext("path", path)
	}

	file, err := fs.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, newError("open", ErrFileNotAccessible, err).withContext("path", path)
	}

	a := &Archive{fs: fs, path: path, mode: mode, file: file}
	if err := a.readEOCD(); err != nil {
		file.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the backing file handle.
func (a *Archive) Close() error {
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	if err != nil {
		return newError("close", ErrUnknown, err).withContext("path", a.path)
	}
	return nil
}

// Path returns the filesystem path this Archive is bound to.
func (a *Archive) Path() string { return a.path }

// Mode returns the access mode this Archive was opened with.
func (a *Archive) Mode() Mode { return a.mode }

func (a *Archive) requireWritable(operation string) *Error {
	if a.mode == ModeRead {
		return newErrorf(operation, ErrFileNotAccessible, "archive %q is open read-only", a.path)
	}
	return nil
}

func readFully(file afero.File, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(file, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
