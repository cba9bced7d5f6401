package wire

import "github.com/m-lab/rtnl/rtnlerr"

// LinkInfoLen is the fixed size of the link-info family payload.
const LinkInfoLen = 16

// LinkInfo is the fixed-size ifinfomsg header: family, pad, link type,
// index, flags, change mask. Host byte order.
type LinkInfo struct {
	Family     uint8
	_          uint8
	Type       uint16
	Index      int32
	Flags      uint32
	ChangeMask uint32
}

// Bytes serializes the 16-byte link-info payload.
func (l LinkInfo) Bytes() []byte {
	b := make([]byte, LinkInfoLen)
	b[0] = l.Family
	PutUint16(b[2:4], l.Type)
	PutUint32(b[4:8], uint32(l.Index))
	PutUint32(b[8:12], l.Flags)
	PutUint32(b[12:16], l.ChangeMask)
	return b
}

// DecodeLinkInfo parses the fixed link-info payload from the front of buf
// and returns it along with the remaining (attribute) bytes.
func DecodeLinkInfo(buf []byte) (LinkInfo, []byte, error) {
	if len(buf) < LinkInfoLen {
		return LinkInfo{}, nil, &rtnlerr.MalformedMessage{Reason: "link-info payload truncated"}
	}
	l := LinkInfo{
		Family:     buf[0],
		Type:       Uint16(buf[2:4]),
		Index:      int32(Uint32(buf[4:8])),
		Flags:      Uint32(buf[8:12]),
		ChangeMask: Uint32(buf[12:16]),
	}
	return l, buf[LinkInfoLen:], nil
}

// AddrInfoLen is the fixed size of the address family payload.
const AddrInfoLen = 8

// AddrInfo is the fixed-size ifaddrmsg header: family, prefix length,
// flags, scope, index.
type AddrInfo struct {
	Family    uint8
	PrefixLen uint8
	Flags     uint8
	Scope     uint8
	Index     uint32
}

// Bytes serializes the 8-byte address payload.
func (a AddrInfo) Bytes() []byte {
	b := make([]byte, AddrInfoLen)
	b[0] = a.Family
	b[1] = a.PrefixLen
	b[2] = a.Flags
	b[3] = a.Scope
	PutUint32(b[4:8], a.Index)
	return b
}

// DecodeAddrInfo parses the fixed address payload from the front of buf.
func DecodeAddrInfo(buf []byte) (AddrInfo, []byte, error) {
	if len(buf) < AddrInfoLen {
		return AddrInfo{}, nil, &rtnlerr.MalformedMessage{Reason: "address payload truncated"}
	}
	a := AddrInfo{
		Family:    buf[0],
		PrefixLen: buf[1],
		Flags:     buf[2],
		Scope:     buf[3],
		Index:     Uint32(buf[4:8]),
	}
	return a, buf[AddrInfoLen:], nil
}

// RouteInfoLen is the fixed size of the route family payload.
const RouteInfoLen = 12

// RouteInfo is the fixed-size rtmsg header: family, dst/src prefix
// lengths, tos, table, protocol, scope, type, flags.
type RouteInfo struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	Tos      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

// Bytes serializes the 12-byte route payload.
func (r RouteInfo) Bytes() []byte {
	b := make([]byte, RouteInfoLen)
	b[0] = r.Family
	b[1] = r.DstLen
	b[2] = r.SrcLen
	b[3] = r.Tos
	b[4] = r.Table
	b[5] = r.Protocol
	b[6] = r.Scope
	b[7] = r.Type
	PutUint32(b[8:12], r.Flags)
	return b
}

// DecodeRouteInfo parses the fixed route payload from the front of buf.
func DecodeRouteInfo(buf []byte) (RouteInfo, []byte, error) {
	if len(buf) < RouteInfoLen {
		return RouteInfo{}, nil, &rtnlerr.MalformedMessage{Reason: "route payload truncated"}
	}
	r := RouteInfo{
		Family:   buf[0],
		DstLen:   buf[1],
		SrcLen:   buf[2],
		Tos:      buf[3],
		Table:    buf[4],
		Protocol: buf[5],
		Scope:    buf[6],
		Type:     buf[7],
		Flags:    Uint32(buf[8:12]),
	}
	return r, buf[RouteInfoLen:], nil
}
