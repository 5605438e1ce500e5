package pkzip

import "time"

// Entry is an immutable record identified by its path. It embeds copies
// of the central directory record, local file header, and optional data
// descriptor it was assembled from; it carries no reference back to the
// Archive that produced it. Its offsets are only meaningful while that
// Archive's backing file is unchanged.
type Entry struct {
	central       centralDirectoryRecord
	local         localFileHeader
	descriptorLen int // 0, 12, or 16: actual on-disk data descriptor length, if any
}

// Path is the entry's logical name, decoded from its raw filename bytes.
func (e *Entry) Path() string { return e.central.fileName }

// Type classifies the entry as file, directory, or symlink.
func (e *Entry) Type() EntryType {
	return entryType(e.central.versionMadeBy, e.central.externalFileAttributes, e.central.fileName)
}

// CompressionMethod reports how the entry's payload is stored on disk.
func (e *Entry) CompressionMethod() CompressionMethod {
	return CompressionMethod(e.central.compressionMethod)
}

// CRC32 is the checksum of the entry's uncompressed content.
func (e *Entry) CRC32() uint32 { return e.central.crc32 }

// CompressedSize is the on-disk payload length.
func (e *Entry) CompressedSize() uint32 { return e.central.compressedSize }

// UncompressedSize is the original content length.
func (e *Entry) UncompressedSize() uint32 { return e.central.uncompressedSize }

// ModTime decodes the entry's MS-DOS last-modified date/time into UTC.
func (e *Entry) ModTime() time.Time {
	return dosToTime(e.central.modDate, e.central.modTime)
}

// Permissions extracts POSIX permission bits from external attributes when
// the creator OS is unix/osx, else returns the type-appropriate default.
func (e *Entry) Permissions() uint32 {
	creatorOS := e.central.versionMadeBy >> 8
	if creatorOS == creatorUnix || creatorOS == creatorOSX {
		return (e.central.externalFileAttributes >> 16) &^ modeFmt
	}
	return defaultPermissionsFor(e.Type())
}

// GeneralPurposeBitFlag exposes the raw flag field, notably bit 11 (UTF-8
// filenames) and bit 3 (data descriptor present).
func (e *Entry) GeneralPurposeBitFlag() uint16 { return e.central.flags }

// Comment is the entry's central-directory file comment, if any.
func (e *Entry) Comment() string { return e.central.comment }

func (e *Entry) localHeaderOffset() uint32 { return e.central.relativeOffsetLocalHdr }

// localRegionSize is the total byte length of this entry's on-disk local
// region: local header (with its own filename/extra tails) + payload +
// optional data descriptor. Used by the remover to copy entries
// byte-for-byte.
func (e *Entry) localRegionSize() uint32 {
	return uint32(e.local.size()) + e.central.compressedSize + uint32(e.descriptorLen)
}
