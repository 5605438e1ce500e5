package pkzip

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Creator OS values: the upper byte of versionMadeBy.
const (
	creatorFAT  = 0
	creatorUnix = 3
	creatorOSX  = 19
)

// POSIX file type bits as packed into the upper 16 bits of
// externalFileAttributes by unix/osx creators.
const (
	modeFmt     = 0o170000
	modeRegular = 0o100000
	modeDir     = 0o040000
	modeSymlink = 0o120000
)

// MS-DOS file attribute bits, packed into the low byte of
// externalFileAttributes.
const (
	dosAttrDirectory = 0x10
)

// Default POSIX permissions applied when the caller doesn't specify any.
const (
	defaultFilePermissions      = 0o644
	defaultDirectoryPermissions = 0o755
)

// EntryType is derived from creator OS plus external attributes (or,
// failing that, the trailing slash / MS-DOS directory bit).
type EntryType int

const (
	EntryTypeFile EntryType = iota
	EntryTypeDirectory
	EntryTypeSymlink
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeDirectory:
		return "directory"
	case EntryTypeSymlink:
		return "symlink"
	default:
		return "file"
	}
}

// entryType derives the EntryType of a central directory record from its
// creator OS and external file attributes.
func entryType(versionMadeBy uint16, externalAttrs uint32, name string) EntryType {
	creatorOS := versionMadeBy >> 8
	switch creatorOS {
	case creatorUnix, creatorOSX:
		mode := (externalAttrs >> 16) & modeFmt
		switch mode {
		case modeRegular:
			return EntryTypeFile
		case modeDir:
			return EntryTypeDirectory
		case modeSymlink:
			return EntryTypeSymlink
		default:
			return EntryTypeFile
		}
	case creatorFAT:
		if strings.HasSuffix(name, "/") || (externalAttrs>>4)&0x01 == dosAttrDirectory>>4 {
			return EntryTypeDirectory
		}
		return EntryTypeFile
	default:
		if strings.HasSuffix(name, "/") {
			return EntryTypeDirectory
		}
		return EntryTypeFile
	}
}

// encodeExternalAttributes packs POSIX mode bits for a unix-creator entry:
// ((typeMode | permissions) & 0xFFFF) << 16.
func encodeExternalAttributes(t EntryType, permissions uint32) uint32 {
	var typeMode uint32
	switch t {
	case EntryTypeDirectory:
		typeMode = modeDir
	case EntryTypeSymlink:
		typeMode = modeSymlink
	default:
		typeMode = modeRegular
	}
	return ((typeMode | permissions) & 0xffff) << 16
}

// defaultPermissionsFor returns the default POSIX permission bits for an
// entry type.
func defaultPermissionsFor(t EntryType) uint32 {
	if t == EntryTypeDirectory {
		return defaultDirectoryPermissions
	}
	return defaultFilePermissions
}

// decodeFileName decodes a raw filename byte slice: UTF-8 when general
// purpose bit 11 is set, else IBM Code Page 437. An undecodable name
// yields an empty string rather than an error.
func decodeFileName(raw []byte, flags uint16) string {
	if flags&gpbfLanguageEncUTF8 != 0 {
		if !utf8.Valid(raw) {
			return ""
		}
		return string(raw)
	}
	decoded, err := charmap.CodePage437.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}
