package pkzip

import (
	"errors"
	"hash/crc32"
	"io"
	"math"
	"strings"
	"time"
)

// AddEntry appends one entry to the archive following the classic PKWARE
// two-pass local header protocol: a provisional header with zeroed
// crc32/compressedSize is written first, the body is streamed, then the
// header is rewritten in place once the true values are known. The
// existing central directory is preserved in memory, moved past the new
// entry, and rebuilt with one additional record.
//
// permissions of 0 selects the type-appropriate default (0o644 for files
// and symlinks, 0o755 for directories). provider supplies the entry's
// content: read as a byte stream for files, read once with a zero-length
// buffer to let it finalize for directories, and read to completion for
// the symlink target for symlinks.
func (a *Archive) AddEntry(
	path string,
	typ EntryType,
	expectedUncompressedSize int64,
	modTime time.Time,
	permissions uint32,
	method CompressionMethod,
	bufferSize int,
	progress *Progress,
	provider io.Reader,
) (*Entry, error) {
	const op = "addEntry"
	if zerr := a.requireWritable(op); zerr != nil {
		return nil, zerr
	}
	if method != MethodStore && method != MethodDeflate {
		return nil, newErrorf(op, ErrInvalidArchiveLevel, "unsupported compression method %d", method)
	}
	if typ == EntryTypeDirectory && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	if permissions == 0 {
		permissions = defaultPermissionsFor(typ)
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	info, err := a.file.Stat()
	if err != nil {
		return nil, newError(op, ErrUnknown, err)
	}
	originalSize := info.Size()
	localHeaderStart := int64(a.eocd.offsetOfCentralDir)

	// Step 1: snapshot the existing central directory before anything
	// overwrites it.
	if _, err := a.file.Seek(localHeaderStart, io.SeekStart); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}
	preservedCentralDir, err := readFully(a.file, int(a.eocd.sizeOfCentralDir))
	if err != nil {
		return nil, newError(op, ErrUnknown, err)
	}
	originalEOCD := a.eocd

	rollback := func() *Error {
		if _, err := a.file.Seek(localHeaderStart, io.SeekStart); err != nil {
			return newError(op, ErrUnknown, err)
		}
		if _, err := a.file.Write(preservedCentralDir); err != nil {
			return newError(op, ErrUnknown, err)
		}
		if _, err := a.file.Write(originalEOCD.encode()); err != nil {
			return newError(op, ErrUnknown, err)
		}
		if err := a.file.Truncate(originalSize); err != nil {
			return newError(op, ErrUnknown, err)
		}
		return nil
	}

	// Step 2/3: write the provisional local header.
	modDate, modTimePacked := timeToDos(modTime)
	actualMethod := method
	if typ != EntryTypeFile {
		actualMethod = MethodStore
	}
	header := localFileHeader{
		versionNeeded:     writerVersionNeeded,
		flags:             gpbfLanguageEncUTF8,
		compressionMethod: uint16(actualMethod),
		modTime:           modTimePacked,
		modDate:           modDate,
		fileName:          path,
	}
	if _, err := a.file.Seek(localHeaderStart, io.SeekStart); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}
	if _, err := a.file.Write(header.encode()); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}

	// Step 4: stream the body per entry type.
	var uncompressedSize, compressedSize int64
	var checksum uint32

	switch typ {
	case EntryTypeDirectory:
		if progress != nil {
			progress.SetTotalUnitCount(1)
		}
		if provider != nil {
			provider.Read(nil)
		}
		progress.Advance(1)

	case EntryTypeSymlink:
		if provider == nil {
			return nil, newErrorf(op, ErrUnknown, "symlink entry requires a target provider")
		}
		if progress != nil {
			progress.SetTotalUnitCount(expectedUncompressedSize)
		}
		target, err := io.ReadAll(provider)
		if err != nil {
			return nil, newError(op, ErrUnknown, err)
		}
		if _, err := a.file.Write(target); err != nil {
			return nil, newError(op, ErrUnknown, err)
		}
		uncompressedSize = int64(len(target))
		compressedSize = uncompressedSize
		checksum = crc32.ChecksumIEEE(target)
		progress.Advance(uncompressedSize)

	case EntryTypeFile:
		if provider == nil {
			return nil, newErrorf(op, ErrUnknown, "file entry requires a data provider")
		}
		if progress != nil {
			progress.SetTotalUnitCount(expectedUncompressedSize)
		}
		var zerr *Error
		switch method {
		case MethodStore:
			uncompressedSize, checksum, zerr = storeCopy(a.file, provider, bufferSize, progress)
			compressedSize = uncompressedSize
		case MethodDeflate:
			uncompressedSize, compressedSize, checksum, zerr = deflateCopy(a.file, provider, bufferSize, progress)
		}
		if zerr != nil {
			if zerr.Kind == ErrCancelled {
				if rerr := rollback(); rerr != nil {
					return nil, rerr
				}
			}
			return nil, zerr
		}
	}

	// Step 5: rewrite the local header now that sizes/crc are known.
	header.crc32 = checksum
	header.compressedSize = uint32(compressedSize)
	header.uncompressedSize = uint32(uncompressedSize)
	postBodyOffset, err := a.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, newError(op, ErrUnknown, err)
	}
	if _, err := a.file.Seek(localHeaderStart, io.SeekStart); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}
	if _, err := a.file.Write(header.encode()); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}

	// Step 6: the new start of the central directory. ZIP64 is out of
	// scope, so refuse placements that would exceed uint32 range, leaving
	// the archive untouched.
	if postBodyOffset > math.MaxUint32 {
		if rerr := rollback(); rerr != nil {
			return nil, rerr
		}
		return nil, newError(op, ErrInvalidStartOfCentralDirectoryOffset, errors.New("central directory would start past 4 GiB"))
	}
	if _, err := a.file.Seek(postBodyOffset, io.SeekStart); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}

	// Step 7: re-append the preserved central directory.
	if _, err := a.file.Write(preservedCentralDir); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}

	// Step 8: append the new entry's central directory record.
	central := centralDirectoryRecord{
		versionMadeBy:          uint16(creatorUnix)<<8 | writerVersionNeeded,
		versionNeeded:          writerVersionNeeded,
		flags:                  gpbfLanguageEncUTF8,
		compressionMethod:      uint16(actualMethod),
		modTime:                modTimePacked,
		modDate:                modDate,
		crc32:                  checksum,
		compressedSize:         uint32(compressedSize),
		uncompressedSize:       uint32(uncompressedSize),
		externalFileAttributes: encodeExternalAttributes(typ, permissions),
		relativeOffsetLocalHdr: uint32(localHeaderStart),
		fileName:               path,
	}
	if _, err := a.file.Write(central.encode()); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}

	// Step 9: updated EOCD.
	newEOCD := eocdRecord{
		numEntriesThisDisk: originalEOCD.numEntriesTotal + 1,
		numEntriesTotal:    originalEOCD.numEntriesTotal + 1,
		sizeOfCentralDir:   originalEOCD.sizeOfCentralDir + uint32(central.totalSize()),
		offsetOfCentralDir: uint32(postBodyOffset),
		comment:            originalEOCD.comment,
	}
	if _, err := a.file.Write(newEOCD.encode()); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}

	// Step 10.
	if err := a.file.Sync(); err != nil {
		return nil, newError(op, ErrUnknown, err)
	}

	a.eocd = newEOCD
	return &Entry{central: central, local: header}, nil
}
