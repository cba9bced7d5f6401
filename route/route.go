// Package route implements the Route model: the data an RTM_NEWROUTE/
// RTM_DELROUTE/RTM_GETROUTE message carries, and its bidirectional
// mapping to the wire attribute tree.
package route

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/m-lab/rtnl/rtnlerr"
	"github.com/m-lab/rtnl/wire"
)

// Route is one route entity.
type Route struct {
	OutIndex int32
	InIndex  int32 // populated on parse only, via RTA_IIF
	Dst      *net.IPNet
	Src      net.IP
	Gw       net.IP
	Tos      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

// Build serializes r into a route family payload and attribute list.
// verb is one of "add", "append", "replace", "del", "get".
func Build(r *Route, verb string) (wire.RouteInfo, []*wire.Attr, error) {
	var family uint8
	var familySet bool
	assertFamily := func(ip net.IP) (uint8, error) {
		f, err := familyOf(ip)
		if err != nil {
			return 0, err
		}
		if !familySet {
			family = f
			familySet = true
		} else if f != family {
			return 0, &rtnlerr.FamilyMismatch{Reason: "route endpoints mix address families"}
		}
		return f, nil
	}

	var attrs []*wire.Attr
	var dstLen uint8

	if r.Dst != nil {
		f, err := assertFamily(r.Dst.IP)
		if err != nil {
			return wire.RouteInfo{}, nil, err
		}
		ones, _ := r.Dst.Mask.Size()
		dstLen = uint8(ones)
		attrs = append(attrs, wire.NewAttr(rtaDst, octetsForFamily(f, r.Dst.IP)))
	}
	if r.Src != nil {
		f, err := assertFamily(r.Src)
		if err != nil {
			return wire.RouteInfo{}, nil, err
		}
		attrs = append(attrs, wire.NewAttr(rtaPrefsrc, octetsForFamily(f, r.Src)))
	}
	if r.Gw != nil {
		f, err := assertFamily(r.Gw)
		if err != nil {
			return wire.RouteInfo{}, nil, err
		}
		attrs = append(attrs, wire.NewAttr(rtaGateway, octetsForFamily(f, r.Gw)))
	}

	if r.OutIndex != 0 || verb != "get" {
		attrs = append(attrs, wire.NewU32Attr(rtaOif, uint32(r.OutIndex)))
	}

	table := r.Table
	protocol := r.Protocol
	if verb != "del" {
		if table == 0 {
			table = rtTableMain
		}
	}

	hdr := wire.RouteInfo{
		Family:   family,
		DstLen:   dstLen,
		Tos:      r.Tos,
		Table:    table,
		Protocol: protocol,
		Scope:    r.Scope,
		Type:     r.Type,
		Flags:    r.Flags,
	}
	return hdr, attrs, nil
}

// Parse decodes a route family payload plus its trailing attribute list
// into a Route.
func Parse(buf []byte) (*Route, error) {
	hdr, rest, err := wire.DecodeRouteInfo(buf)
	if err != nil {
		return nil, err
	}
	attrs, err := wire.ParseAttrs(rest)
	if err != nil {
		return nil, err
	}

	bits := 32
	if hdr.Family == unix.AF_INET6 {
		bits = 128
	}

	r := &Route{
		Tos:      hdr.Tos,
		Table:    hdr.Table,
		Protocol: hdr.Protocol,
		Scope:    hdr.Scope,
		Type:     hdr.Type,
		Flags:    hdr.Flags,
	}
	for _, a := range attrs {
		switch a.Type {
		case rtaDst:
			ip, err := ipFromAttr(a.Value)
			if err != nil {
				return nil, err
			}
			r.Dst = &net.IPNet{IP: ip, Mask: net.CIDRMask(int(hdr.DstLen), bits)}
		case rtaGateway:
			if r.Gw, err = ipFromAttr(a.Value); err != nil {
				return nil, err
			}
		case rtaPrefsrc:
			if r.Src, err = ipFromAttr(a.Value); err != nil {
				return nil, err
			}
		case rtaOif:
			r.OutIndex = int32(wire.Uint32(a.Value))
		case rtaIif:
			r.InIndex = int32(wire.Uint32(a.Value))
		}
	}
	return r, nil
}

// BuildGet builds an RTM_GETROUTE request for dst: an RTA_DST matching
// the queried address, length derived from its family.
func BuildGet(dst net.IP) (wire.RouteInfo, []*wire.Attr, error) {
	f, err := familyOf(dst)
	if err != nil {
		return wire.RouteInfo{}, nil, err
	}
	bits := uint8(32)
	if f == unix.AF_INET6 {
		bits = 128
	}
	hdr := wire.RouteInfo{Family: f, DstLen: bits}
	attrs := []*wire.Attr{wire.NewAttr(rtaDst, octetsForFamily(f, dst))}
	return hdr, attrs, nil
}

// ipFromAttr decodes a raw RTA_DST/RTA_GATEWAY/RTA_PREFSRC payload into
// a net.IP. The kernel only ever emits 4-byte (IPv4) or 16-byte (IPv6)
// values for these attributes; anything else is a malformed message.
func ipFromAttr(b []byte) (net.IP, error) {
	switch len(b) {
	case 4, 16:
		return append(net.IP(nil), b...), nil
	default:
		return nil, &rtnlerr.InvalidArgument{Reason: fmt.Sprintf("address attribute has impossible length %d (want 4 or 16)", len(b))}
	}
}

func familyOf(ip net.IP) (uint8, error) {
	if ip == nil {
		return 0, &rtnlerr.InvalidArgument{Reason: "nil IP"}
	}
	if ip.To4() != nil {
		return unix.AF_INET, nil
	}
	if ip.To16() != nil {
		return unix.AF_INET6, nil
	}
	return 0, &rtnlerr.InvalidArgument{Reason: "IP is neither v4 nor v6"}
}

func octetsForFamily(family uint8, ip net.IP) []byte {
	if family == unix.AF_INET {
		return ip.To4()
	}
	return ip.To16()
}
