package extract

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/binarysniffer/binarysniffer/pkg/errors"
)

// dexHeaderSize is the fixed size of a DEX file header (Dalvik executable
// format). No example repo in the retrieval pack, nor the standard
// library, ships a DEX parser, so string/type/method tables are read
// directly off the documented offsets: string_ids and their MUTF-8
// data_off pointers, type_ids (indices into the string table), and
// method_ids (class/proto/name-index triples).
const dexHeaderSize = 0x70

type dexHeader struct {
	StringIDsSize, StringIDsOff uint32
	TypeIDsSize, TypeIDsOff     uint32
	MethodIDsSize, MethodIDsOff uint32
}

// extractDEX pulls the string table, type-name table, and method-name
// table out of an Android DEX file.
func extractDEX(f *os.File, c *collector) error {
	data, err := io.ReadAll(f)
	if err != nil {
		return errors.New(errors.KindIO, f.Name(), err)
	}
	if len(data) < dexHeaderSize {
		return errors.New(errors.KindFormat, f.Name(), errShortDex)
	}

	h := dexHeader{
		StringIDsSize: binary.LittleEndian.Uint32(data[0x38:]),
		StringIDsOff:  binary.LittleEndian.Uint32(data[0x3c:]),
		TypeIDsSize:   binary.LittleEndian.Uint32(data[0x40:]),
		TypeIDsOff:    binary.LittleEndian.Uint32(data[0x44:]),
		MethodIDsSize: binary.LittleEndian.Uint32(data[0x58:]),
		MethodIDsOff:  binary.LittleEndian.Uint32(data[0x5c:]),
	}

	strs := readDexStrings(data, h)
	for _, s := range strs {
		if !c.add(s) {
			return nil
		}
	}

	for i := uint32(0); i < h.TypeIDsSize; i++ {
		off := h.TypeIDsOff + i*4
		if int(off)+4 > len(data) {
			break
		}
		idx := binary.LittleEndian.Uint32(data[off:])
		if int(idx) < len(strs) && !c.add("type:"+strs[idx]) {
			return nil
		}
	}

	for i := uint32(0); i < h.MethodIDsSize; i++ {
		off := h.MethodIDsOff + i*8
		if int(off)+8 > len(data) {
			break
		}
		nameIdx := binary.LittleEndian.Uint32(data[off+4:])
		if int(nameIdx) < len(strs) && !c.add("method:"+strs[nameIdx]) {
			return nil
		}
	}
	return nil
}

func readDexStrings(data []byte, h dexHeader) []string {
	out := make([]string, 0, h.StringIDsSize)
	for i := uint32(0); i < h.StringIDsSize; i++ {
		idOff := h.StringIDsOff + i*4
		if int(idOff)+4 > len(data) {
			break
		}
		dataOff := binary.LittleEndian.Uint32(data[idOff:])
		s, ok := readMUTF8(data, dataOff)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// readMUTF8 decodes a DEX string_data_item: a ULEB128 length (in UTF-16
// code units, ignored here) followed by modified-UTF-8 bytes terminated
// by a single 0x00. Treating the bytes as ordinary UTF-8 is a safe
// approximation for the printable-identifier features this feeds.
func readMUTF8(data []byte, off uint32) (string, bool) {
	if int(off) >= len(data) {
		return "", false
	}
	pos := int(off)
	for pos < len(data) && data[pos]&0x80 != 0 {
		pos++
	}
	pos++ // consume final ULEB128 byte
	start := pos
	for pos < len(data) && data[pos] != 0 {
		pos++
	}
	if pos > len(data) {
		return "", false
	}
	return string(data[start:pos]), true
}

type dexError string

func (e dexError) Error() string { return string(e) }

const errShortDex = dexError("file shorter than DEX header")
