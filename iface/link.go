// Package iface implements the Link model: a tagged variant over link
// kinds (Device, Dummy, Bridge, Veth) and the bidirectional mapping
// between that model and the wire attribute tree carried by RTM_NEWLINK/
// RTM_DELLINK/RTM_GETLINK messages.
package iface

import (
	"net"

	"github.com/m-lab/rtnl/wire"
)

// Kind tags the closed set of link variants: no virtual dispatch, just
// a tag plus the kind-specific pointer that applies.
type Kind int

const (
	Device Kind = iota
	Dummy
	Bridge
	Veth
)

func (k Kind) String() string {
	switch k {
	case Dummy:
		return "dummy"
	case Bridge:
		return "bridge"
	case Veth:
		return "veth"
	default:
		return "device"
	}
}

// XDPState captures the IFLA_XDP nested attributes.
type XDPState struct {
	FD         int32
	Attached   bool
	AttachMode uint32
	Flags      uint32
	ProgID     uint32
}

// Attrs is the common attribute bundle every Link kind carries.
type Attrs struct {
	Index        int32
	Name         string
	HWAddr       net.HardwareAddr
	MTU          uint32
	Flags        uint32 // flags the caller wants to set (e.g. UP)
	RawFlags     uint32 // ifi_flags as reported by the kernel on parse
	ParentIndex  int32
	MasterIndex  int32
	TxQueueLen   int32
	AliasName    string
	OperState    uint8
	PhysSwitchID int32
	NetnsID      int32
	GSOMaxSize   uint32
	GSOMaxSegs   uint32
	GROMaxSize   uint32
	NumTxQueues  int32
	NumRxQueues  int32
	Group        uint32
	XDP          *XDPState
	Stats        []byte // opaque, captured verbatim
	Stats64      []byte
	VFInfoList   []byte
	ProtInfo     []byte
}

// BridgeData holds the Bridge kind's optional kind-specific fields, each
// nil when the kernel/caller did not specify it.
type BridgeData struct {
	HelloTime         *uint32
	AgeingTime        *uint32
	MulticastSnooping *bool
	VlanFiltering     *bool
}

// PeerNS identifies a veth peer's target namespace, by pid or by fd (not
// both). UseFd selects which field applies.
type PeerNS struct {
	Pid   int32
	Fd    int32
	UseFd bool
}

// VethData holds the Veth kind's peer-side fields. A zero PeerMTU,
// PeerTxQueue, PeerNumTxQ or PeerNumRxQ takes the link's own value.
type VethData struct {
	PeerName     string
	PeerHWAddr   net.HardwareAddr
	PeerMTU      uint32
	PeerTxQueue  int32
	PeerNumTxQ   int32
	PeerNumRxQ   int32
	PeerNS       *PeerNS
}

// Link is the domain entity: common Attrs plus, depending on Kind, one
// of BridgeData/VethData (nil otherwise).
type Link struct {
	Kind       Kind
	Attrs      Attrs
	BridgeData *BridgeData
	VethData   *VethData
}

// Build serializes l into a link-info family payload and its top-level
// attribute list. up sets the UP bit in both the header's flags and
// change-mask (used by the facade's LinkSetup verb).
func Build(l *Link, up bool) (wire.LinkInfo, []*wire.Attr) {
	hdr := wire.LinkInfo{Family: ifAFUnspec, Index: l.Attrs.Index}
	if up || l.Attrs.Flags&iffUp != 0 {
		hdr.Flags = iffUp
		hdr.ChangeMask = iffUp
	}
	attrs := buildCommonAttrs(l.Attrs, false)
	attrs = append(attrs, buildLinkInfoAttr(l))
	return hdr, attrs
}

// buildCommonAttrs conditionally emits IFNAME (when a name is set), MTU,
// TXQLEN, NUM_TX_QUEUES, NUM_RX_QUEUES, ADDRESS -- the attribute set common to a
// top-level link and (with forceTxqlen) a veth peer description.
func buildCommonAttrs(a Attrs, forceTxqlen bool) []*wire.Attr {
	var attrs []*wire.Attr
	if a.Name != "" {
		attrs = append(attrs, wire.NewStringAttr(iflaIfname, a.Name))
	}
	if a.MTU != 0 {
		attrs = append(attrs, wire.NewU32Attr(iflaMTU, a.MTU))
	}
	if a.TxQueueLen != 0 || forceTxqlen {
		attrs = append(attrs, wire.NewU32Attr(iflaTxqlen, uint32(a.TxQueueLen)))
	}
	if a.NumTxQueues != 0 {
		attrs = append(attrs, wire.NewU32Attr(iflaNumTxQueues, uint32(a.NumTxQueues)))
	}
	if a.NumRxQueues != 0 {
		attrs = append(attrs, wire.NewU32Attr(iflaNumRxQueues, uint32(a.NumRxQueues)))
	}
	if len(a.HWAddr) > 0 {
		attrs = append(attrs, wire.NewAttr(iflaAddress, []byte(a.HWAddr)))
	}
	return attrs
}

// buildLinkInfoAttr emits the nested LINKINFO attribute: INFO_KIND (not
// zero-terminated) plus an INFO_DATA child when the kind carries
// kind-specific data.
func buildLinkInfoAttr(l *Link) *wire.Attr {
	kindAttr := wire.NewAttr(iflaInfoKind, []byte(l.Kind.String()))
	children := []*wire.Attr{kindAttr}

	switch l.Kind {
	case Bridge:
		if data := buildBridgeInfoData(l.BridgeData); data != nil {
			children = append(children, data)
		}
	case Veth:
		if data := buildVethInfoData(l.VethData, l.Attrs); data != nil {
			children = append(children, data)
		}
	}
	return wire.NewNestAttr(iflaLinkinfo, children...)
}

func buildBridgeInfoData(b *BridgeData) *wire.Attr {
	if b == nil {
		return nil
	}
	var children []*wire.Attr
	if b.HelloTime != nil {
		children = append(children, wire.NewU32Attr(iflaBrHelloTime, *b.HelloTime))
	}
	if b.AgeingTime != nil {
		children = append(children, wire.NewU32Attr(iflaBrAgeingTime, *b.AgeingTime))
	}
	if b.MulticastSnooping != nil {
		children = append(children, wire.NewU8Attr(iflaBrMcastSnooping, boolToU8(*b.MulticastSnooping)))
	}
	if b.VlanFiltering != nil {
		children = append(children, wire.NewU8Attr(iflaBrVlanFiltering, boolToU8(*b.VlanFiltering)))
	}
	if len(children) == 0 {
		return nil
	}
	return wire.NewNestAttr(iflaInfoData, children...)
}

// buildVethInfoData builds the single VETH_INFO_PEER child: a complete
// link-info header followed by the peer's own attribute list. This is
// not representable as a pure Attr-tree nest (the payload is a raw
// header prefix, not another TLV), so it is assembled by hand. Peer
// fields left zero take base's (the link's own) value.
func buildVethInfoData(v *VethData, base Attrs) *wire.Attr {
	if v == nil {
		return nil
	}
	peerHdr := wire.LinkInfo{Family: ifAFUnspec}
	peer := Attrs{
		Name:        v.PeerName,
		MTU:         v.PeerMTU,
		TxQueueLen:  v.PeerTxQueue,
		NumTxQueues: v.PeerNumTxQ,
		NumRxQueues: v.PeerNumRxQ,
		HWAddr:      v.PeerHWAddr,
	}
	if peer.MTU == 0 {
		peer.MTU = base.MTU
	}
	if peer.TxQueueLen == 0 {
		peer.TxQueueLen = base.TxQueueLen
	}
	if peer.NumTxQueues == 0 {
		peer.NumTxQueues = base.NumTxQueues
	}
	if peer.NumRxQueues == 0 {
		peer.NumRxQueues = base.NumRxQueues
	}
	peerAttrs := buildCommonAttrs(peer, true)
	if v.PeerNS != nil {
		if v.PeerNS.UseFd {
			peerAttrs = append(peerAttrs, wire.NewU32Attr(iflaNetNSFd, uint32(v.PeerNS.Fd)))
		} else {
			peerAttrs = append(peerAttrs, wire.NewU32Attr(iflaNetNSPid, uint32(v.PeerNS.Pid)))
		}
	}
	payload := peerHdr.Bytes()
	for _, a := range peerAttrs {
		payload = append(payload, a.Bytes()...)
	}
	peerAttr := wire.NewAttr(vethInfoPeer, payload)
	return wire.NewNestAttr(iflaInfoData, peerAttr)
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Parse decodes a link-info payload plus its trailing attribute list
// into a Link.
func Parse(buf []byte) (*Link, error) {
	li, rest, err := wire.DecodeLinkInfo(buf)
	if err != nil {
		return nil, err
	}
	attrs, err := wire.ParseAttrs(rest)
	if err != nil {
		return nil, err
	}

	base := Attrs{Index: li.Index, RawFlags: li.Flags}
	var linkType string
	var infoData map[uint16][]byte

	for _, a := range attrs {
		switch a.Type {
		case iflaIfname:
			base.Name = stripNUL(a.Value)
		case iflaAddress:
			base.HWAddr = append(net.HardwareAddr(nil), a.Value...)
		case iflaMTU:
			base.MTU = wire.Uint32(a.Value)
		case iflaLink:
			base.ParentIndex = int32(wire.Uint32(a.Value))
		case iflaMaster:
			base.MasterIndex = int32(wire.Uint32(a.Value))
		case iflaTxqlen:
			base.TxQueueLen = int32(wire.Uint32(a.Value))
		case iflaIfalias:
			base.AliasName = stripNUL(a.Value)
		case iflaOperstate:
			if len(a.Value) > 0 {
				base.OperState = a.Value[0]
			}
		case iflaPhysSwitchID:
			base.PhysSwitchID = int32(beUint32(a.Value))
		case iflaLinkNetnsid:
			base.NetnsID = int32(wire.Uint32(a.Value))
		case iflaGsoMaxSize:
			base.GSOMaxSize = wire.Uint32(a.Value)
		case iflaGsoMaxSegs:
			base.GSOMaxSegs = wire.Uint32(a.Value)
		case iflaGroMaxSize:
			base.GROMaxSize = wire.Uint32(a.Value)
		case iflaNumTxQueues:
			base.NumTxQueues = int32(wire.Uint32(a.Value))
		case iflaNumRxQueues:
			base.NumRxQueues = int32(wire.Uint32(a.Value))
		case iflaGroup:
			base.Group = wire.Uint32(a.Value)
		case iflaXdp:
			base.XDP = parseXDP(a.Value)
		case iflaStats:
			base.Stats = a.Value
		case iflaStats64:
			base.Stats64 = a.Value
		case iflaVfinfoList:
			base.VFInfoList = a.Value
		case iflaProtinfo:
			base.ProtInfo = a.Value
		case iflaLinkinfo:
			kind, data, err := extractLinkInfo(a.Value)
			if err != nil {
				return nil, err
			}
			linkType = kind
			infoData = data
		}
	}

	l := &Link{Attrs: base}
	switch linkType {
	case "dummy":
		l.Kind = Dummy
	case "bridge":
		l.Kind = Bridge
		l.BridgeData = &BridgeData{
			HelloTime:         u32Ptr(infoData, iflaBrHelloTime),
			AgeingTime:        u32Ptr(infoData, iflaBrAgeingTime),
			MulticastSnooping: boolPtr(infoData, iflaBrMcastSnooping),
			VlanFiltering:     boolPtr(infoData, iflaBrVlanFiltering),
		}
	case "veth":
		// Peer identification is not recoverable from a single dump
		// message; the peer fields stay empty on parse.
		l.Kind = Veth
		l.VethData = &VethData{}
	default:
		l.Kind = Device
	}
	return l, nil
}

func extractLinkInfo(buf []byte) (string, map[uint16][]byte, error) {
	children, err := wire.ParseAttrs(buf)
	if err != nil {
		return "", nil, err
	}
	var kind string
	var data map[uint16][]byte
	for _, c := range children {
		switch c.Type {
		case iflaInfoKind:
			// Built non-zero-terminated, but real kernel dumps may carry
			// a trailing NUL; strip it if present either way.
			kind = stripNUL(c.Value)
		case iflaInfoData:
			data, err = wire.ParseAttrMap(c.Value)
			if err != nil {
				return "", nil, err
			}
		}
	}
	return kind, data, nil
}

func parseXDP(buf []byte) *XDPState {
	children, err := wire.ParseAttrs(buf)
	if err != nil {
		return nil
	}
	x := &XDPState{}
	for _, c := range children {
		switch c.Type {
		case iflaXdpFd:
			x.FD = int32(wire.Uint32(c.Value))
		case iflaXdpAttached:
			if len(c.Value) > 0 {
				x.AttachMode = uint32(c.Value[0])
				x.Attached = c.Value[0] != 0
			}
		case iflaXdpFlags:
			x.Flags = wire.Uint32(c.Value)
		case iflaXdpProgID:
			x.ProgID = wire.Uint32(c.Value)
		}
	}
	return x
}

func stripNUL(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}

// beUint32 decodes a big-endian (network order) 4-byte value, used only
// for IFLA_PHYS_SWITCH_ID, the one exception to the otherwise
// host-endian rule.
func beUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func u32Ptr(m map[uint16][]byte, t uint16) *uint32 {
	v, ok := m[t]
	if !ok || len(v) < 4 {
		return nil
	}
	n := wire.Uint32(v)
	return &n
}

func boolPtr(m map[uint16][]byte, t uint16) *bool {
	v, ok := m[t]
	if !ok || len(v) < 1 {
		return nil
	}
	b := v[0] != 0
	return &b
}
