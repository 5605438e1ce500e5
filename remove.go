package pkzip

import (
	"errors"
	"io"
	"os"

	"github.com/google/uuid"
)

// RemoveEntry rebuilds the archive by copying every surviving entry
// through to a unique sibling temp file that excludes target, followed by
// an atomic replace of the original. This avoids the in-place byte-
// shifting that removing an entry from the middle of the file would
// otherwise require.
func (a *Archive) RemoveEntry(target *Entry, bufferSize int, progress *Progress) error {
	const op = "remove"
	if zerr := a.requireWritable(op); zerr != nil {
		return zerr
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if progress != nil {
		total := int64(a.eocd.offsetOfCentralDir) - int64(target.localRegionSize())
		if total < 0 {
			total = 0
		}
		progress.SetTotalUnitCount(total)
	}

	tempPath := a.path + "." + uuid.New().String() + ".tmp"
	tempFile, err := a.fs.OpenFile(tempPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return newError(op, ErrFileNotAccessible, err).withContext("path", tempPath)
	}
	abandon := func() {
		tempFile.Close()
		a.fs.Remove(tempPath)
	}

	var centralRecords [][]byte
	var centralSize int64
	removed := false

	iterErr := a.Iterate(func(e *Entry) bool {
		if e.localHeaderOffset() == target.localHeaderOffset() {
			removed = true
			return true
		}

		newOffset, serr := tempFile.Seek(0, io.SeekCurrent)
		if serr != nil {
			err = newError(op, ErrUnknown, serr)
			return false
		}

		if _, serr := a.file.Seek(int64(e.localHeaderOffset()), io.SeekStart); serr != nil {
			err = newError(op, ErrUnknown, serr)
			return false
		}
		if zerr := copyRegion(tempFile, io.LimitReader(a.file, int64(e.localRegionSize())), int64(e.localRegionSize()), bufferSize, progress); zerr != nil {
			err = zerr
			return false
		}

		adjusted := e.central
		adjusted.relativeOffsetLocalHdr = uint32(newOffset)
		encoded := adjusted.encode()
		centralRecords = append(centralRecords, encoded)
		centralSize += int64(len(encoded))
		return true
	})

	if iterErr != nil {
		abandon()
		return iterErr
	}
	if err != nil {
		abandon()
		var zerr *Error
		if errors.As(err, &zerr) && zerr.Kind == ErrCancelled {
			return zerr
		}
		return err
	}
	if !removed {
		abandon()
		return newErrorf(op, ErrUnknown, "entry not found in archive")
	}

	centralDirOffset, err2 := tempFile.Seek(0, io.SeekCurrent)
	if err2 != nil {
		abandon()
		return newError(op, ErrUnknown, err2)
	}
	for _, rec := range centralRecords {
		if _, werr := tempFile.Write(rec); werr != nil {
			abandon()
			return newError(op, ErrUnknown, werr)
		}
	}

	newEOCD := eocdRecord{
		numEntriesThisDisk: a.eocd.numEntriesTotal - 1,
		numEntriesTotal:    a.eocd.numEntriesTotal - 1,
		sizeOfCentralDir:   uint32(centralSize),
		offsetOfCentralDir: uint32(centralDirOffset),
		comment:            a.eocd.comment,
	}
	if _, werr := tempFile.Write(newEOCD.encode()); werr != nil {
		abandon()
		return newError(op, ErrUnknown, werr)
	}
	if werr := tempFile.Sync(); werr != nil {
		abandon()
		return newError(op, ErrUnknown, werr)
	}
	if werr := tempFile.Close(); werr != nil {
		a.fs.Remove(tempPath)
		return newError(op, ErrUnknown, werr)
	}

	if cerr := a.file.Close(); cerr != nil {
		a.fs.Remove(tempPath)
		return newError(op, ErrUnknown, cerr)
	}
	a.file = nil

	if rerr := a.fs.Rename(tempPath, a.path); rerr != nil {
		// Fall back to remove-then-rename when the platform replace-item
		// primitive isn't available.
		if rerr2 := a.fs.Remove(a.path); rerr2 != nil {
			return newError(op, ErrUnknown, rerr2).withContext("path", a.path)
		}
		if rerr3 := a.fs.Rename(tempPath, a.path); rerr3 != nil {
			return newError(op, ErrUnknown, rerr3).withContext("path", a.path)
		}
	}

	newFile, oerr := a.fs.OpenFile(a.path, os.O_RDWR, 0o644)
	if oerr != nil {
		return newError(op, ErrFileNotAccessible, oerr).withContext("path", a.path)
	}
	a.file = newFile
	a.mode = ModeUpdate
	return a.readEOCD()
}

// copyRegion copies exactly n bytes from src to dst in bufferSize chunks,
// polling progress for cancellation between chunks.
func copyRegion(dst io.Writer, src io.Reader, n int64, bufferSize int, progress *Progress) *Error {
	buf := make([]byte, bufferSize)
	var copied int64
	for copied < n {
		if zerr := checkCancelled("remove", progress); zerr != nil {
			return zerr
		}
		chunk := int64(len(buf))
		if remaining := n - copied; remaining < chunk {
			chunk = remaining
		}
		read, rerr := io.ReadFull(src, buf[:chunk])
		if read > 0 {
			if _, werr := dst.Write(buf[:read]); werr != nil {
				return newError("remove", ErrUnknown, werr)
			}
			copied += int64(read)
			progress.Advance(int64(read))
		}
		if rerr != nil && rerr != io.EOF {
			return newError("remove", ErrUnknown, rerr)
		}
	}
	return nil
}
