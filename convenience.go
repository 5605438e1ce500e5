package pkzip

import (
	"strings"
	"time"

	"github.com/spf13/afero"
)

// OperationKind distinguishes the three core operations for the purpose of
// progress planning.
type OperationKind int

const (
	OperationAdd OperationKind = iota
	OperationExtract
	OperationRemove
)

// PlanTotalUnitCount returns the total unit count a Progress should be
// configured with before starting an operation: writer/reader charge
// uncompressedSize for files/symlinks and 1 for directories; remove
// charges the surviving-bytes estimate (startOfCentralDirectory -
// removedLocalSize).
func PlanTotalUnitCount(kind OperationKind, typ EntryType, uncompressedSize, startOfCentralDirectory, removedLocalSize int64) int64 {
	switch kind {
	case OperationRemove:
		total := startOfCentralDirectory - removedLocalSize
		if total < 0 {
			total = 0
		}
		return total
	default:
		if typ == EntryTypeDirectory {
			return 1
		}
		return uncompressedSize
	}
}

// AddFile is a convenience that sequences a filesystem read through
// AddEntry: it stats srcPath on srcFs for its modification time and mode,
// then streams its content into the archive at archivePath. It performs
// no new engine behavior beyond what AddEntry already does.
func (a *Archive) AddFile(srcFs afero.Fs, srcPath, archivePath string, method CompressionMethod, bufferSize int, progress *Progress) (*Entry, error) {
	info, err := srcFs.Stat(srcPath)
	if err != nil {
		return nil, newError("addFile", ErrFileNotFound, err).withContext("path", srcPath)
	}
	file, err := srcFs.Open(srcPath)
	if err != nil {
		return nil, newError("addFile", ErrFileNotAccessible, err).withContext("path", srcPath)
	}
	defer file.Close()

	return a.AddEntry(archivePath, EntryTypeFile, info.Size(), info.ModTime(), uint32(info.Mode().Perm()), method, bufferSize, progress, file)
}

// AddDirectory adds a directory entry with no content, mirroring how
// AddEntry expects directory providers to behave.
func (a *Archive) AddDirectory(archivePath string, modTime time.Time, permissions uint32, progress *Progress) (*Entry, error) {
	if !strings.HasSuffix(archivePath, "/") {
		archivePath += "/"
	}
	return a.AddEntry(archivePath, EntryTypeDirectory, 0, modTime, permissions, MethodStore, DefaultBufferSize, progress, nil)
}

// AddSymlink adds a symbolic link entry whose content is the link target
// string, verbatim.
func (a *Archive) AddSymlink(archivePath, target string, modTime time.Time, permissions uint32, progress *Progress) (*Entry, error) {
	return a.AddEntry(archivePath, EntryTypeSymlink, int64(len(target)), modTime, permissions, MethodStore, DefaultBufferSize, progress, strings.NewReader(target))
}

// ZipItem is a convenience like AddFile, but defaults to Deflate instead
// of Store.
func (a *Archive) ZipItem(srcFs afero.Fs, srcPath, archivePath string, bufferSize int, progress *Progress) (*Entry, error) {
	return a.AddFile(srcFs, srcPath, archivePath, MethodDeflate, bufferSize, progress)
}
