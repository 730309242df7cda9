package obj

import (
	"encoding/binary"

	"github.com/emutools/objdiff/pkg/utils"
)

// Parse detects an object file's container format from its magic bytes and
// dispatches to the matching reader, per spec.md §4.1. Unrecognized input
// (including a truncated header too short to carry any known magic) yields
// ErrFormat.
func Parse(path string, data []byte, cfg Config) (*Object, error) {
	switch {
	case len(data) >= 4 && string(data[:4]) == "\x7fELF":
		return ParseELF(path, data, cfg)
	case len(data) >= 4 && isMachOMagic(data[:4]):
		return ParseMachO(path, data, cfg)
	case len(data) >= 20 && isCOFFMagic(data):
		return ParseCOFF(path, data, cfg)
	default:
		return nil, newParseError(path, utils.MakeError(ErrFormat, "unrecognized object file format"))
	}
}

func isMachOMagic(b []byte) bool {
	v := binary.BigEndian.Uint32(b)
	switch v {
	case 0xfeedface, 0xfeedfacf, 0xcafebabe, 0xcefaedfe, 0xcffaedfe, 0xbebafeca:
		return true
	}
	return false
}

func isCOFFMagic(data []byte) bool {
	switch coffByteOrder(data).Uint16(data[0:2]) {
	case coffMachineI386, coffMachineAMD64, coffMachinePPC, coffMachineARM, coffMachineARMNT:
		return true
	}
	return false
}
