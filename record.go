package pkzip

import (
	"encoding/binary"
	"fmt"
)

// Signatures for the four fixed-size records that make up a ZIP archive.
// Values are the little-endian magic numbers from the APPNOTE spec.
const (
	localFileHeaderSignature  = 0x04034b50
	dataDescriptorSignature   = 0x08074b50
	centralDirectorySignature = 0x02014b50
	eocdSignature             = 0x06054b50
)

// Fixed-size prefix lengths, not counting variable tails.
const (
	localFileHeaderFixedSize  = 30
	dataDescriptorFixedSize   = 16 // with leading signature; 12 without
	centralDirectoryFixedSize = 46
	eocdFixedSize             = 22
)

// versionNeededToExtract value this package writes for every entry it
// creates. Anything >= 45 signals ZIP64 and is refused on read.
const writerVersionNeeded = 20

// versionNeededZip64Floor is the threshold at which a central directory
// record is refused as ZIP64 on load.
const versionNeededZip64Floor = 45

// General purpose bit flag bits this package cares about.
const (
	gpbfEncrypted       = 1 << 0
	gpbfDataDescriptor  = 1 << 3
	gpbfLanguageEncUTF8 = 1 << 11
)

// tailReader fetches the next n bytes following a fixed-size record prefix.
// Implementations read from the archive's backing stream at its current
// position.
type tailReader func(n int) ([]byte, error)

// localFileHeader mirrors the 30-byte local file header plus its filename
// and extra-field tails.
type localFileHeader struct {
	versionNeeded     uint16
	flags             uint16
	compressionMethod uint16
	modTime           uint16
	modDate           uint16
	crc32             uint32
	compressedSize    uint32
	uncompressedSize  uint32
	fileName          string
	extraField        []byte
}

func decodeLocalFileHeader(fixed []byte, tail tailReader) (*localFileHeader, error) {
	if len(fixed) != localFileHeaderFixedSize {
		return nil, fmt.Errorf("local file header: want %d fixed bytes, got %d", localFileHeaderFixedSize, len(fixed))
	}
	if sig := binary.LittleEndian.Uint32(fixed[0:4]); sig != localFileHeaderSignature {
		return nil, fmt.Errorf("local file header: bad signature %#x", sig)
	}

	h := &localFileHeader{
		versionNeeded:     binary.LittleEndian.Uint16(fixed[4:6]),
		flags:             binary.LittleEndian.Uint16(fixed[6:8]),
		compressionMethod: binary.LittleEndian.Uint16(fixed[8:10]),
		modTime:           binary.LittleEndian.Uint16(fixed[10:12]),
		modDate:           binary.LittleEndian.Uint16(fixed[12:14]),
		crc32:             binary.LittleEndian.Uint32(fixed[14:18]),
		compressedSize:    binary.LittleEndian.Uint32(fixed[18:22]),
		uncompressedSize:  binary.LittleEndian.Uint32(fixed[22:26]),
	}
	nameLength := binary.LittleEndian.Uint16(fixed[26:28])
	extraLength := binary.LittleEndian.Uint16(fixed[28:30])

	tailBytes, err := tail(int(nameLength) + int(extraLength))
	if err != nil {
		return nil, err
	}
	if len(tailBytes) != int(nameLength)+int(extraLength) {
		return nil, fmt.Errorf("local file header: tail length mismatch: got %d want %d", len(tailBytes), int(nameLength)+int(extraLength))
	}
	h.fileName = decodeFileName(tailBytes[:nameLength], h.flags)
	if extraLength > 0 {
		h.extraField = tailBytes[nameLength:]
	}
	return h, nil
}

func (h *localFileHeader) size() int {
	return localFileHeaderFixedSize + len(h.fileName) + len(h.extraField)
}

func (h *localFileHeader) encode() []byte {
	nameBytes := []byte(h.fileName)
	buf := make([]byte, localFileHeaderFixedSize+len(nameBytes)+len(h.extraField))
	binary.LittleEndian.PutUint32(buf[0:4], localFileHeaderSignature)
	binary.LittleEndian.PutUint16(buf[4:6], h.versionNeeded)
	binary.LittleEndian.PutUint16(buf[6:8], h.flags)
	binary.LittleEndian.PutUint16(buf[8:10], h.compressionMethod)
	binary.LittleEndian.PutUint16(buf[10:12], h.modTime)
	binary.LittleEndian.PutUint16(buf[12:14], h.modDate)
	binary.LittleEndian.PutUint32(buf[14:18], h.crc32)
	binary.LittleEndian.PutUint32(buf[18:22], h.compressedSize)
	binary.LittleEndian.PutUint32(buf[22:26], h.uncompressedSize)
	binary.LittleEndian.PutUint16(buf[26:28], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(h.extraField)))
	copy(buf[30:], nameBytes)
	copy(buf[30+len(nameBytes):], h.extraField)
	return buf
}

// dataDescriptor carries crc32/sizes for entries whose general purpose bit
// 3 is set. This package never writes one (see writer.go: two-pass local
// header), but reads one when encountering archives produced elsewhere.
type dataDescriptor struct {
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
}

func decodeDataDescriptor(fixed []byte) (*dataDescriptor, int, error) {
	// The leading signature is a de-facto standard, not mandatory; detect
	// it and shift accordingly.
	if len(fixed) < 12 {
		return nil, 0, fmt.Errorf("data descriptor: need at least 12 bytes, got %d", len(fixed))
	}
	offset := 0
	if binary.LittleEndian.Uint32(fixed[0:4]) == dataDescriptorSignature {
		offset = 4
	}
	if len(fixed) < offset+12 {
		return nil, 0, fmt.Errorf("data descriptor: truncated record")
	}
	d := &dataDescriptor{
		crc32:            binary.LittleEndian.Uint32(fixed[offset : offset+4]),
		compressedSize:   binary.LittleEndian.Uint32(fixed[offset+4 : offset+8]),
		uncompressedSize: binary.LittleEndian.Uint32(fixed[offset+8 : offset+12]),
	}
	return d, offset + 12, nil
}

// centralDirectoryRecord mirrors the 46-byte central directory file header
// plus filename, extra field, and comment tails.
type centralDirectoryRecord struct {
	versionMadeBy          uint16
	versionNeeded          uint16
	flags                  uint16
	compressionMethod      uint16
	modTime                uint16
	modDate                uint16
	crc32                  uint32
	compressedSize         uint32
	uncompressedSize       uint32
	diskNumberStart        uint16
	internalFileAttributes uint16
	externalFileAttributes uint32
	relativeOffsetLocalHdr uint32
	fileName               string
	extraField             []byte
	comment                string
}

func decodeCentralDirectoryRecord(fixed []byte, tail tailReader) (*centralDirectoryRecord, error) {
	if len(fixed) != centralDirectoryFixedSize {
		return nil, fmt.Errorf("central directory record: want %d fixed bytes, got %d", centralDirectoryFixedSize, len(fixed))
	}
	if sig := binary.LittleEndian.Uint32(fixed[0:4]); sig != centralDirectorySignature {
		return nil, fmt.Errorf("central directory record: bad signature %#x", sig)
	}

	r := &centralDirectoryRecord{
		versionMadeBy:          binary.LittleEndian.Uint16(fixed[4:6]),
		versionNeeded:          binary.LittleEndian.Uint16(fixed[6:8]),
		flags:                  binary.LittleEndian.Uint16(fixed[8:10]),
		compressionMethod:      binary.LittleEndian.Uint16(fixed[10:12]),
		modTime:                binary.LittleEndian.Uint16(fixed[12:14]),
		modDate:                binary.LittleEndian.Uint16(fixed[14:16]),
		crc32:                  binary.LittleEndian.Uint32(fixed[16:20]),
		compressedSize:         binary.LittleEndian.Uint32(fixed[20:24]),
		uncompressedSize:       binary.LittleEndian.Uint32(fixed[24:28]),
		diskNumberStart:        binary.LittleEndian.Uint16(fixed[34:36]),
		internalFileAttributes: binary.LittleEndian.Uint16(fixed[36:38]),
		externalFileAttributes: binary.LittleEndian.Uint32(fixed[38:42]),
		relativeOffsetLocalHdr: binary.LittleEndian.Uint32(fixed[42:46]),
	}
	nameLength := binary.LittleEndian.Uint16(fixed[28:30])
	extraLength := binary.LittleEndian.Uint16(fixed[30:32])
	commentLength := binary.LittleEndian.Uint16(fixed[32:34])

	want := int(nameLength) + int(extraLength) + int(commentLength)
	tailBytes, err := tail(want)
	if err != nil {
		return nil, err
	}
	if len(tailBytes) != want {
		return nil, fmt.Errorf("central directory record: tail length mismatch: got %d want %d", len(tailBytes), want)
	}
	r.fileName = decodeFileName(tailBytes[:nameLength], r.flags)
	rest := tailBytes[nameLength:]
	if extraLength > 0 {
		r.extraField = rest[:extraLength]
	}
	rest = rest[extraLength:]
	if commentLength > 0 {
		r.comment = string(rest[:commentLength])
	}
	return r, nil
}

func (r *centralDirectoryRecord) totalSize() int {
	return centralDirectoryFixedSize + len(r.fileName) + len(r.extraField) + len(r.comment)
}

func (r *centralDirectoryRecord) encode() []byte {
	nameBytes := []byte(r.fileName)
	commentBytes := []byte(r.comment)
	buf := make([]byte, centralDirectoryFixedSize+len(nameBytes)+len(r.extraField)+len(commentBytes))

	binary.LittleEndian.PutUint32(buf[0:4], centralDirectorySignature)
	binary.LittleEndian.PutUint16(buf[4:6], r.versionMadeBy)
	binary.LittleEndian.PutUint16(buf[6:8], r.versionNeeded)
	binary.LittleEndian.PutUint16(buf[8:10], r.flags)
	binary.LittleEndian.PutUint16(buf[10:12], r.compressionMethod)
	binary.LittleEndian.PutUint16(buf[12:14], r.modTime)
	binary.LittleEndian.PutUint16(buf[14:16], r.modDate)
	binary.LittleEndian.PutUint32(buf[16:20], r.crc32)
	binary.LittleEndian.PutUint32(buf[20:24], r.compressedSize)
	binary.LittleEndian.PutUint32(buf[24:28], r.uncompressedSize)
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint16(buf[30:32], uint16(len(r.extraField)))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(len(commentBytes)))
	binary.LittleEndian.PutUint16(buf[34:36], r.diskNumberStart)
	binary.LittleEndian.PutUint16(buf[36:38], r.internalFileAttributes)
	binary.LittleEndian.PutUint32(buf[38:42], r.externalFileAttributes)
	binary.LittleEndian.PutUint32(buf[42:46], r.relativeOffsetLocalHdr)

	off := centralDirectoryFixedSize
	off += copy(buf[off:], nameBytes)
	off += copy(buf[off:], r.extraField)
	copy(buf[off:], commentBytes)
	return buf
}

// eocdRecord mirrors the 22-byte End Of Central Directory record plus its
// comment tail.
type eocdRecord struct {
	numEntriesThisDisk uint16
	numEntriesTotal    uint16
	sizeOfCentralDir   uint32
	offsetOfCentralDir uint32
	comment            string
}

func decodeEOCDRecord(fixed []byte, tail tailReader) (*eocdRecord, error) {
	if len(fixed) != eocdFixedSize {
		return nil, fmt.Errorf("EOCD record: want %d fixed bytes, got %d", eocdFixedSize, len(fixed))
	}
	if sig := binary.LittleEndian.Uint32(fixed[0:4]); sig != eocdSignature {
		return nil, fmt.Errorf("EOCD record: bad signature %#x", sig)
	}

	r := &eocdRecord{
		numEntriesThisDisk: binary.LittleEndian.Uint16(fixed[8:10]),
		numEntriesTotal:    binary.LittleEndian.Uint16(fixed[10:12]),
		sizeOfCentralDir:   binary.LittleEndian.Uint32(fixed[12:16]),
		offsetOfCentralDir: binary.LittleEndian.Uint32(fixed[16:20]),
	}
	commentLength := binary.LittleEndian.Uint16(fixed[20:22])
	if commentLength > 0 {
		tailBytes, err := tail(int(commentLength))
		if err != nil {
			return nil, err
		}
		if len(tailBytes) != int(commentLength) {
			return nil, fmt.Errorf("EOCD record: comment length mismatch: got %d want %d", len(tailBytes), commentLength)
		}
		r.comment = string(tailBytes)
	}
	return r, nil
}

func (r *eocdRecord) encode() []byte {
	commentBytes := []byte(r.comment)
	buf := make([]byte, eocdFixedSize+len(commentBytes))
	binary.LittleEndian.PutUint32(buf[0:4], eocdSignature)
	// disk number / disk-with-CD / per-disk entry count: always 0/0/total,
	// since multi-disk (spanned) archives aren't supported.
	binary.LittleEndian.PutUint16(buf[4:6], 0)
	binary.LittleEndian.PutUint16(buf[6:8], 0)
	binary.LittleEndian.PutUint16(buf[8:10], r.numEntriesThisDisk)
	binary.LittleEndian.PutUint16(buf[10:12], r.numEntriesTotal)
	binary.LittleEndian.PutUint32(buf[12:16], r.sizeOfCentralDir)
	binary.LittleEndian.PutUint32(buf[16:20], r.offsetOfCentralDir)
	binary.LittleEndian.PutUint16(buf[20:22], uint16(len(commentBytes)))
	copy(buf[22:], commentBytes)
	return buf
}
