package wire

import (
	"encoding/binary"
	"unsafe"
)

// Native is the host's byte order for the integer fields of the netlink
// header and family payloads. The wire format is host-endian throughout
// except where explicitly noted (phys-switch-id is network/big-endian;
// see iface.Attrs.PhysSwitchID).
//
// Detected at init by probing a known uint16 value's in-memory layout
// rather than assuming little-endian.
var Native binary.ByteOrder = detectNativeEndian()

func detectNativeEndian() binary.ByteOrder {
	var i int16 = 0x0102
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// PutUint32 encodes v in host byte order.
func PutUint32(b []byte, v uint32) { Native.PutUint32(b, v) }

// Uint32 decodes host-byte-order v.
func Uint32(b []byte) uint32 { return Native.Uint32(b) }

// PutUint16 encodes v in host byte order.
func PutUint16(b []byte, v uint16) { Native.PutUint16(b, v) }

// Uint16 decodes host-byte-order v.
func Uint16(b []byte) uint16 { return Native.Uint16(b) }
