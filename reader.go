package pkzip

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/spf13/afero"
)

// eocdSearchWindow caps the EOCD backward scan at 66000 bytes from the end
// of the file: the maximum 65535-byte comment plus the 22-byte fixed
// record plus headroom.
const eocdSearchWindow = 66000

// locateEOCD finds and decodes the End Of Central Directory record with a
// single tail read followed by an in-memory backward search.
func locateEOCD(file afero.File) (*eocdRecord, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, newError("open", ErrUnknown, err)
	}
	fileSize := info.Size()
	if fileSize < eocdFixedSize {
		return nil, newError("open", ErrInvalidFormat, errors.New("file too small to contain an EOCD record"))
	}

	window := int64(eocdSearchWindow)
	if window > fileSize {
		window = fileSize
	}
	start := fileSize - window
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return nil, newError("open", ErrUnknown, err)
	}
	tail, err := readFully(file, int(window))
	if err != nil {
		return nil, newError("open", ErrUnknown, err)
	}

	for i := len(tail) - eocdFixedSize; i >= 0; i-- {
		if tail[i] == 0x50 && tail[i+1] == 0x4b && tail[i+2] == 0x05 && tail[i+3] == 0x06 {
			fixed := tail[i : i+eocdFixedSize]
			commentStart := i + eocdFixedSize
			commentLength := int(binary.LittleEndian.Uint16(fixed[20:22]))
			// A candidate only counts if its declared comment runs exactly
			// to the end of the file; otherwise a signature-like byte
			// sequence inside an earlier record's own comment could be
			// mistaken for the real EOCD (the same check archive/zip and
			// Info-ZIP's unzip apply). This has to be checked here, not
			// just inside the tail callback below, because decodeEOCDRecord
			// never invokes that callback when the comment length is zero.
			if commentStart+commentLength != len(tail) {
				continue
			}
			rec, err := decodeEOCDRecord(fixed, func(n int) ([]byte, error) {
				return tail[commentStart : commentStart+n], nil
			})
			if err != nil {
				continue
			}
			return rec, nil
		}
	}
	return nil, newError("open", ErrInvalidFormat, errors.New("end of central directory signature not found"))
}

func (a *Archive) readEOCD() error {
	rec, err := locateEOCD(a.file)
	if err != nil {
		return err
	}
	a.eocd = *rec
	return nil
}

func (a *Archive) fileTail(n int) ([]byte, error) {
	return readFully(a.file, n)
}

// Iterate walks the central directory in file order, yielding one Entry
// per call to yield until it returns false or the directory is exhausted.
// Entries whose versionNeededToExtract signals ZIP64 or whose general
// purpose flag marks them encrypted are skipped silently.
func (a *Archive) Iterate(yield func(*Entry) bool) error {
	cursor := int64(a.eocd.offsetOfCentralDir)
	for i := 0; i < int(a.eocd.numEntriesTotal); i++ {
		if _, err := a.file.Seek(cursor, io.SeekStart); err != nil {
			return newError("iterate", ErrUnknown, err)
		}
		fixed, err := readFully(a.file, centralDirectoryFixedSize)
		if err != nil {
			return newError("iterate", ErrInvalidFormat, err)
		}
		cd, err := decodeCentralDirectoryRecord(fixed, func(n int) ([]byte, error) { return a.fileTail(n) })
		if err != nil {
			return newError("iterate", ErrInvalidFormat, err)
		}
		cursor += int64(cd.totalSize())

		if cd.versionNeeded >= versionNeededZip64Floor || cd.flags&gpbfEncrypted != 0 {
			continue
		}

		if _, err := a.file.Seek(int64(cd.relativeOffsetLocalHdr), io.SeekStart); err != nil {
			return newError("iterate", ErrUnknown, err)
		}
		lfixed, err := readFully(a.file, localFileHeaderFixedSize)
		if err != nil {
			return newError("iterate", ErrInvalidFormat, err)
		}
		lh, err := decodeLocalFileHeader(lfixed, func(n int) ([]byte, error) { return a.fileTail(n) })
		if err != nil {
			return newError("iterate", ErrInvalidFormat, err)
		}

		entry := &Entry{central: *cd, local: *lh}

		if cd.flags&gpbfDataDescriptor != 0 {
			payloadSize := cd.compressedSize
			if cd.compressionMethod == uint16(MethodStore) {
				payloadSize = cd.uncompressedSize
			}
			descOffset := int64(cd.relativeOffsetLocalHdr) + int64(lh.size()) + int64(payloadSize)
			if _, err := a.file.Seek(descOffset, io.SeekStart); err != nil {
				return newError("iterate", ErrUnknown, err)
			}
			dfixed, err := readFully(a.file, dataDescriptorFixedSize)
			if err != nil {
				return newError("iterate", ErrInvalidFormat, err)
			}
			_, consumed, err := decodeDataDescriptor(dfixed)
			if err != nil {
				return newError("iterate", ErrInvalidFormat, err)
			}
			entry.descriptorLen = consumed
		}

		if !yield(entry) {
			return nil
		}
	}
	return nil
}

// Entries materializes the full central directory as a slice: each call
// re-reads from the backing file rather than caching a prior result.
func (a *Archive) Entries() ([]*Entry, error) {
	var entries []*Entry
	err := a.Iterate(func(e *Entry) bool {
		entries = append(entries, e)
		return true
	})
	return entries, err
}

// Lookup returns the first entry whose path equals the requested string.
// Duplicate paths are permitted by the format; first hit wins.
func (a *Archive) Lookup(path string) (*Entry, error) {
	var found *Entry
	err := a.Iterate(func(e *Entry) bool {
		if e.Path() == path {
			found = e
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (a *Archive) payloadOffset(e *Entry) int64 {
	return int64(e.localHeaderOffset()) + int64(e.local.size())
}

// Extract decompresses entry's content into dst, returning its CRC32.
// Compression methods outside {store, deflate} fail with
// ErrInvalidArchiveLevel.
func (a *Archive) Extract(entry *Entry, bufferSize int, progress *Progress, dst io.Writer) (uint32, error) {
	method := entry.CompressionMethod()
	if method != MethodStore && method != MethodDeflate {
		return 0, newErrorf("extract", ErrInvalidArchiveLevel, "unsupported compression method %d", method)
	}

	if progress != nil {
		if entry.Type() == EntryTypeDirectory {
			progress.SetTotalUnitCount(1)
		} else {
			progress.SetTotalUnitCount(int64(entry.UncompressedSize()))
		}
	}

	if entry.Type() == EntryTypeDirectory {
		progress.Advance(1)
		return 0, nil
	}

	if _, err := a.file.Seek(a.payloadOffset(entry), io.SeekStart); err != nil {
		return 0, newError("extract", ErrUnknown, err)
	}

	var crc uint32
	var zerr *Error
	switch method {
	case MethodStore:
		_, crc, zerr = storeCopy(dst, io.LimitReader(a.file, int64(entry.CompressedSize())), bufferSize, progress)
	case MethodDeflate:
		var data []byte
		data, crc, zerr = inflateAll(a.file, int64(entry.CompressedSize()), bufferSize, progress)
		if zerr == nil {
			if _, err := dst.Write(data); err != nil {
				zerr = newError("extract", ErrUnknown, err)
			}
		}
	}
	if zerr != nil {
		return crc, zerr
	}
	if crc != entry.CRC32() {
		return crc, newErrorf("extract", ErrInvalidFormat, "CRC32 mismatch: got %#x want %#x", crc, entry.CRC32())
	}
	return crc, nil
}

// symlinker is implemented by afero filesystems (notably *afero.OsFs) that
// can create symbolic links. Filesystems that don't implement it cause
// ExtractToPath to fail symlink entries with ErrFileNotAccessible.
type symlinker interface {
	SymlinkIfPossible(oldname, newname string) error
}

// ExtractToPath materializes entry at targetPath on targetFs: a regular
// file for EntryTypeFile, a directory for EntryTypeDirectory, or a
// symbolic link for EntryTypeSymlink, applying entry.Permissions() where
// the destination filesystem supports it.
func (a *Archive) ExtractToPath(entry *Entry, targetFs afero.Fs, targetPath string, bufferSize int, progress *Progress) (uint32, error) {
	switch entry.Type() {
	case EntryTypeDirectory:
		if err := targetFs.MkdirAll(targetPath, os.FileMode(entry.Permissions())); err != nil {
			return 0, newError("extractToPath", ErrFileNotAccessible, err).withContext("path", targetPath)
		}
		if progress != nil {
			progress.SetTotalUnitCount(1)
		}
		progress.Advance(1)
		return 0, nil

	case EntryTypeSymlink:
		var buf writeBuffer
		crc, err := a.Extract(entry, bufferSize, progress, &buf)
		if err != nil {
			return crc, err
		}
		sl, ok := targetFs.(symlinker)
		if !ok {
			return crc, newError("extractToPath", ErrFileNotAccessible, errors.New("filesystem does not support symbolic links")).withContext("path", targetPath)
		}
		if err := sl.SymlinkIfPossible(string(buf.data), targetPath); err != nil {
			return crc, newError("extractToPath", ErrFileNotAccessible, err).withContext("path", targetPath)
		}
		return crc, nil

	default:
		out, err := targetFs.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(entry.Permissions()))
		if err != nil {
			return 0, newError("extractToPath", ErrFileNotAccessible, err).withContext("path", targetPath)
		}
		defer out.Close()
		crc, err := a.Extract(entry, bufferSize, progress, out)
		if err != nil {
			return crc, err
		}
		if err := targetFs.Chmod(targetPath, os.FileMode(entry.Permissions())); err != nil {
			return crc, newError("extractToPath", ErrFileNotAccessible, err).withContext("path", targetPath)
		}
		return crc, nil
	}
}

// writeBuffer is a tiny io.Writer sink used where extraction needs the
// full content in memory (symlink targets, which are always small).
type writeBuffer struct {
	data []byte
}

func (b *writeBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
