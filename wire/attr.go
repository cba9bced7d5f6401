package wire

import (
	"github.com/m-lab/rtnl/rtnlerr"
)

// NestedFlag is the high bit the kernel sets on an attribute's type field
// to mark it as containing nested attributes. The wire codec does not act
// on it automatically; the consumer decides whether to recurse. It is
// exposed so callers that want to mask it before switching on type can
// do so.
const NestedFlag = 0x8000

// Attr is an attribute under construction. A leaf attribute carries a
// flat Payload; a nesting attribute carries Children instead, and its
// emitted length is fixed up after the children are serialized.
type Attr struct {
	Type     uint16
	Payload  []byte
	Children []*Attr
}

// NewAttr builds a leaf attribute carrying payload.
func NewAttr(t uint16, payload []byte) *Attr {
	return &Attr{Type: t, Payload: payload}
}

// NewU8Attr builds a one-byte integer attribute.
func NewU8Attr(t uint16, v uint8) *Attr { return NewAttr(t, []byte{v}) }

// NewU16Attr builds a host-endian two-byte integer attribute.
func NewU16Attr(t uint16, v uint16) *Attr {
	b := make([]byte, 2)
	PutUint16(b, v)
	return NewAttr(t, b)
}

// NewU32Attr builds a host-endian four-byte integer attribute.
func NewU32Attr(t uint16, v uint32) *Attr {
	b := make([]byte, 4)
	PutUint32(b, v)
	return NewAttr(t, b)
}

// NewBEU32Attr builds a big-endian (network order) four-byte integer
// attribute, used for IFLA_PHYS_SWITCH_ID.
func NewBEU32Attr(t uint16, v uint32) *Attr {
	b := make([]byte, 4)
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	return NewAttr(t, b)
}

// NewStringAttr builds a zero-terminated string attribute (IFLA_IFNAME,
// IFA_LABEL).
func NewStringAttr(t uint16, s string) *Attr {
	return NewAttr(t, zeroTerminated(s))
}

// NewNestAttr builds a nesting attribute from children. Its own Payload
// must stay nil; Bytes computes the length from the serialized children.
func NewNestAttr(t uint16, children ...*Attr) *Attr {
	return &Attr{Type: t, Children: children}
}

// AddChild appends a child to a nesting attribute.
func (a *Attr) AddChild(c *Attr) { a.Children = append(a.Children, c) }

// Bytes serializes the attribute: length, type, payload, then
// zero-padding to a 4-byte boundary. If Children is non-empty, Payload is
// ignored and replaced by the concatenation of each child's own Bytes();
// the length field covers header + the sum of child spans (which are
// already individually padded).
func (a *Attr) Bytes() []byte {
	var payload []byte
	if len(a.Children) > 0 {
		for _, c := range a.Children {
			payload = append(payload, c.Bytes()...)
		}
	} else {
		payload = a.Payload
	}
	length := 4 + len(payload)
	span := Align4(length)
	buf := make([]byte, span)
	PutUint16(buf[0:2], uint16(length))
	PutUint16(buf[2:4], a.Type)
	copy(buf[4:], payload)
	return buf
}

// ParsedAttr is one decoded attribute: its type and its raw value bytes
// (length-4 bytes, unpadded).
type ParsedAttr struct {
	Type  uint16
	Value []byte
}

// ParseAttrs walks buf yielding each attribute in order: while at least
// 4 bytes remain, read length/type, take the next length-4 bytes as
// value, advance by Align4(length). A stated length below 4 or
// exceeding the remaining buffer is MalformedMessage.
func ParseAttrs(buf []byte) ([]ParsedAttr, error) {
	var out []ParsedAttr
	for len(buf) >= 4 {
		length := int(Uint16(buf[0:2]))
		typ := Uint16(buf[2:4])
		if length < 4 {
			return nil, &rtnlerr.MalformedMessage{Reason: "attribute length below header size"}
		}
		if length > len(buf) {
			return nil, &rtnlerr.MalformedMessage{Reason: "attribute length exceeds buffer"}
		}
		out = append(out, ParsedAttr{Type: typ, Value: append([]byte(nil), buf[4:length]...)})
		span := Align4(length)
		if span > len(buf) {
			span = len(buf)
		}
		buf = buf[span:]
	}
	return out, nil
}

// ParseAttrMap is ParseAttrs indexed by type. Types are assumed unique;
// if a type repeats, the last occurrence wins.
func ParseAttrMap(buf []byte) (map[uint16][]byte, error) {
	attrs, err := ParseAttrs(buf)
	if err != nil {
		return nil, err
	}
	m := make(map[uint16][]byte, len(attrs))
	for _, a := range attrs {
		m[a.Type] = a.Value
	}
	return m, nil
}
