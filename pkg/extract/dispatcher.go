package extract

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"strings"

	"github.com/binarysniffer/binarysniffer/pkg/model"
)

var sourceExtensions = map[string]bool{
	".c": true, ".h": true, ".cc": true, ".cpp": true, ".hpp": true,
	".py": true, ".java": true, ".kt": true, ".go": true, ".rs": true,
	".js": true, ".ts": true, ".cs": true, ".swift": true, ".rb": true,
	".php": true, ".m": true,
}

// Sniff classifies a file by magic number first, extension second, falling
// back to "generic binary". header should hold at least the first 512
// bytes of the file (fewer is fine for a short file).
func Sniff(header []byte, path string) model.FileType {
	switch {
	case bytes.HasPrefix(header, []byte("\x7fELF")):
		return model.FileTypeELF
	case bytes.HasPrefix(header, []byte("MZ")):
		return model.FileTypePE
	case isMachO(header):
		return model.FileTypeMachO
	case isDebPackage(header):
		return model.FileTypeDeb
	case bytes.HasPrefix(header, []byte("!<arch>\n")):
		return model.FileTypeAR
	case bytes.HasPrefix(header, []byte("dex\n")):
		return model.FileTypeDEX
	case bytes.HasPrefix(header, []byte("PK\x03\x04")), bytes.HasPrefix(header, []byte("PK\x05\x06")):
		return model.FileTypeZip
	case bytes.HasPrefix(header, []byte{0x1f, 0x8b}):
		return model.FileTypeTar // gzip-wrapped tar; the archive walker sniffs the inner stream
	case bytes.HasPrefix(header, []byte{0x28, 0xb5, 0x2f, 0xfd}):
		return model.FileTypeZstd
	case bytes.HasPrefix(header, []byte("BZh")):
		return model.FileTypeTar
	case bytes.HasPrefix(header, []byte{0x37, 0x7a, 0xbc, 0xaf, 0x27, 0x1c}):
		return model.FileTypeSevenZip
	case bytes.HasPrefix(header, []byte("Rar!\x1a\x07")):
		return model.FileTypeRAR
	case bytes.HasPrefix(header, []byte{0xed, 0xab, 0xee, 0xdb}):
		return model.FileTypeRPM
	case isCpio(header):
		return model.FileTypeCPIO
	case isPosixTar(header):
		return model.FileTypeTar
	}

	if sourceExtensions[strings.ToLower(filepath.Ext(path))] {
		return model.FileTypeSource
	}

	return model.FileTypeGeneric
}

func isMachO(header []byte) bool {
	if len(header) < 4 {
		return false
	}
	magic := binary.BigEndian.Uint32(header[:4])
	switch magic {
	case 0xfeedface, 0xfeedfacf, 0xcefaedfe, 0xcffaedfe, 0xcafebabe, 0xbebafeca:
		return true
	}
	return false
}

// isPosixTar checks the ustar magic at offset 257, which is only present
// once the header has been read far enough (headers are 512 bytes).
func isPosixTar(header []byte) bool {
	if len(header) < 262 {
		return false
	}
	return bytes.HasPrefix(header[257:], []byte("ustar"))
}

// isDebPackage recognizes a .deb by its ar magic followed by a first
// member named "debian-binary" in the fixed 16-byte name field — the
// same "!<arch>\n" container a plain .a static library uses, so the
// member name is what actually distinguishes the two.
func isDebPackage(header []byte) bool {
	if !bytes.HasPrefix(header, []byte("!<arch>\n")) || len(header) < 8+16 {
		return false
	}
	name := bytes.TrimRight(header[8:8+16], " ")
	return string(name) == "debian-binary"
}

// isCpio recognizes the ASCII cpio header magics: "070701"/"070702" for
// the "newc" and "newc+crc" formats, "070707" for the older odc format.
// The old binary-header cpio variant is not recognized; it is
// vanishingly rare outside historical Unix distributions.
func isCpio(header []byte) bool {
	if len(header) < 6 {
		return false
	}
	switch string(header[:6]) {
	case "070701", "070702", "070707":
		return true
	}
	return false
}
