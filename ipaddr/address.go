// Package ipaddr implements the Address model: the data an RTM_NEWADDR/
// RTM_DELADDR/RTM_GETADDR message carries for one interface address, and
// its bidirectional mapping to the wire attribute tree.
package ipaddr

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/m-lab/rtnl/rtnlerr"
	"github.com/m-lab/rtnl/wire"
)

// Address is one interface address entity.
type Address struct {
	Index             uint32
	IP                *net.IPNet // local prefix: address + mask
	Label             string
	Flags             uint8
	Scope             uint8
	Broadcast         net.IP     // IPv4 only; nil derives from the prefix
	Peer              *net.IPNet // point-to-point peer; nil means peer == IP
	PreferredLifetime uint32
	ValidLifetime     uint32
}

// Build serializes a into an address family payload and attribute list.
// index overrides a.Index (the caller may have just resolved it by
// looking the link up by name).
func Build(a *Address, index uint32) (wire.AddrInfo, []*wire.Attr, error) {
	if a.IP == nil {
		return wire.AddrInfo{}, nil, &rtnlerr.InvalidArgument{Reason: "address has no IP prefix"}
	}
	family, err := deriveFamily(a.IP.IP)
	if err != nil {
		return wire.AddrInfo{}, nil, err
	}

	local, err := octetsForFamily(family, a.IP.IP)
	if err != nil {
		return wire.AddrInfo{}, nil, err
	}

	peerNet := a.Peer
	if peerNet == nil {
		peerNet = a.IP
	}
	peer, err := octetsForFamily(family, peerNet.IP)
	if err != nil {
		return wire.AddrInfo{}, nil, err
	}

	ones, _ := a.IP.Mask.Size()
	hdr := wire.AddrInfo{
		Family:    family,
		PrefixLen: uint8(ones),
		Flags:     a.Flags,
		Scope:     a.Scope,
		Index:     index,
	}

	attrs := []*wire.Attr{
		wire.NewAttr(ifaLocal, local),
		wire.NewAttr(ifaAddress, peer),
	}
	if family == unix.AF_INET {
		bcast := a.Broadcast
		if bcast == nil {
			bcast = deriveBroadcast(a.IP)
		}
		if bcast != nil {
			if v4 := bcast.To4(); v4 != nil {
				attrs = append(attrs, wire.NewAttr(ifaBroadcast, v4))
			}
		}
		if a.Label != "" {
			attrs = append(attrs, wire.NewStringAttr(ifaLabel, a.Label))
		}
	}
	return hdr, attrs, nil
}

// Parse decodes an address family payload plus its trailing attribute
// list into an Address.
func Parse(buf []byte) (*Address, error) {
	hdr, rest, err := wire.DecodeAddrInfo(buf)
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

	var local, address, broadcast net.IP
	a := &Address{Index: hdr.Index, Flags: hdr.Flags, Scope: hdr.Scope}
	for _, at := range attrs {
		switch at.Type {
		case ifaAddress:
			if address, err = ipFromAttr(at.Value); err != nil {
				return nil, err
			}
		case ifaLocal:
			if local, err = ipFromAttr(at.Value); err != nil {
				return nil, err
			}
		case ifaBroadcast:
			if broadcast, err = ipFromAttr(at.Value); err != nil {
				return nil, err
			}
		case ifaLabel:
			a.Label = stripNUL(at.Value)
		case ifaCacheinfo:
			if len(at.Value) >= 8 {
				a.PreferredLifetime = wire.Uint32(at.Value[0:4])
				a.ValidLifetime = wire.Uint32(at.Value[4:8])
			}
		}
	}

	prefixIP := local
	if prefixIP == nil {
		prefixIP = address
	}
	if prefixIP != nil {
		a.IP = &net.IPNet{IP: prefixIP, Mask: net.CIDRMask(int(hdr.PrefixLen), bits)}
	}
	if address != nil && local != nil && !address.Equal(local) {
		a.Peer = &net.IPNet{IP: address, Mask: net.CIDRMask(int(hdr.PrefixLen), bits)}
	}
	a.Broadcast = broadcast
	return a, nil
}

// ipFromAttr decodes a raw IFA_ADDRESS/IFA_LOCAL/IFA_BROADCAST payload
// into a net.IP. The kernel only ever emits 4-byte (IPv4) or 16-byte
// (IPv6) values for these attributes; anything else is a malformed
// message rather than an address this package can represent.
func ipFromAttr(b []byte) (net.IP, error) {
	switch len(b) {
	case 4, 16:
		return append(net.IP(nil), b...), nil
	default:
		return nil, &rtnlerr.InvalidArgument{Reason: fmt.Sprintf("address attribute has impossible length %d (want 4 or 16)", len(b))}
	}
}

func deriveFamily(ip net.IP) (uint8, error) {
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

// octetsForFamily maps ip onto family's wire width, mapping v4<->v6
// canonically when possible and failing with FamilyMismatch otherwise.
func octetsForFamily(family uint8, ip net.IP) ([]byte, error) {
	switch family {
	case unix.AF_INET:
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, &rtnlerr.FamilyMismatch{Reason: "address is not representable as IPv4"}
	case unix.AF_INET6:
		if v4 := ip.To4(); v4 != nil {
			mapped := make([]byte, 16)
			mapped[10], mapped[11] = 0xff, 0xff
			copy(mapped[12:], v4)
			return mapped, nil
		}
		if v6 := ip.To16(); v6 != nil {
			return v6, nil
		}
		return nil, &rtnlerr.FamilyMismatch{Reason: "address is not representable as IPv6"}
	default:
		return nil, &rtnlerr.InvalidArgument{Reason: "unknown address family"}
	}
}

func deriveBroadcast(ipnet *net.IPNet) net.IP {
	v4 := ipnet.IP.To4()
	if v4 == nil {
		return nil
	}
	mask := ipnet.Mask
	if len(mask) == 16 {
		mask = mask[12:]
	}
	bcast := make(net.IP, 4)
	for i := range v4 {
		bcast[i] = v4[i] | ^mask[i]
	}
	return bcast
}

func stripNUL(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}
