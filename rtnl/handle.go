// Package rtnl is the top-level facade: it keeps at most one socket per
// protocol family (NETLINK_ROUTE in scope) in a map, created lazily, and
// exposes the final verbs callers use -- link/address/route add, get,
// modify, delete -- each translated to the right message type and flag
// combination and driven through a txn.Conn.
package rtnl

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/m-lab/rtnl/iface"
	"github.com/m-lab/rtnl/ipaddr"
	"github.com/m-lab/rtnl/nlsock"
	"github.com/m-lab/rtnl/nsutil"
	"github.com/m-lab/rtnl/route"
	"github.com/m-lab/rtnl/rtnlerr"
	"github.com/m-lab/rtnl/txn"
	"github.com/m-lab/rtnl/wire"
)

// AddrCmd selects the flavor of an address mutation.
type AddrCmd int

const (
	AddrAdd AddrCmd = iota
	AddrChange
	AddrReplace
	AddrDel
)

// RtCmd selects the flavor of a route mutation.
type RtCmd int

const (
	RouteAdd RtCmd = iota
	RouteAppend
	RouteReplace
	RouteDel
)

// Handle is the facade: a lazily populated map of one txn.Conn per
// protocol family. Like the nlsock.Socket and txn.Conn it wraps, it is
// not safe for concurrent use; a caller that needs concurrency owns
// multiple Handles.
type Handle struct {
	conns map[int]*txn.Conn
}

// NewHandle returns an empty facade. Sockets are opened lazily, on first
// use of a verb that needs them, so a Handle can be built without root
// or CAP_NET_ADMIN until it is actually used.
func NewHandle() *Handle {
	return &Handle{conns: make(map[int]*txn.Conn)}
}

// Close releases every socket this Handle has opened.
func (h *Handle) Close() error {
	var first error
	for _, c := range h.conns {
		if s := c.Socket(); s != nil {
			if err := s.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (h *Handle) conn(protocol int) (*txn.Conn, error) {
	if c, ok := h.conns[protocol]; ok {
		return c, nil
	}
	sock, err := nlsock.Open(protocol, 0, 0)
	if err != nil {
		return nil, err
	}
	c := txn.NewConn(sock)
	h.conns[protocol] = c
	return c, nil
}

func (h *Handle) routeConn() (*txn.Conn, error) {
	return h.conn(unix.NETLINK_ROUTE)
}

// LinkGet resolves a link by attrs.Index or attrs.Name. Exactly one
// match is expected; a link the kernel reports as absent (ENODEV)
// surfaces as NotFound.
func (h *Handle) LinkGet(attrs iface.Attrs) (*iface.Link, error) {
	c, err := h.routeConn()
	if err != nil {
		return nil, err
	}
	hdr := wire.LinkInfo{Family: ifAFUnspec, Index: attrs.Index}
	req := &wire.Request{
		Header:  wire.Header{Type: wire.RTMGetLink, Flags: wire.FRequest | wire.FAck},
		Payload: hdr.Bytes(),
	}
	if attrs.Name != "" {
		req.Attrs = append(req.Attrs, wire.NewStringAttr(iflaIfname, attrs.Name))
	}
	bodies, err := c.Execute("link_get", req)
	if kerr, ok := err.(*rtnlerr.KernelError); ok && kerr.Errno == unix.ENODEV {
		return nil, &rtnlerr.NotFound{What: "link"}
	}
	if err != nil {
		return nil, err
	}
	switch len(bodies) {
	case 0:
		return nil, &rtnlerr.NotFound{What: "link"}
	case 1:
		return iface.Parse(bodies[0])
	default:
		return nil, &rtnlerr.Ambiguous{What: "link", Count: len(bodies)}
	}
}

// LinkList dumps every link the kernel knows about, the same DUMP
// technique AddrShow uses, generalized here to links since a caller
// enumerating the host's interfaces (rather than resolving one by name
// or index) has no other verb to reach for.
func (h *Handle) LinkList() ([]*iface.Link, error) {
	c, err := h.routeConn()
	if err != nil {
		return nil, err
	}
	hdr := wire.LinkInfo{Family: ifAFUnspec}
	req := &wire.Request{
		Header:  wire.Header{Type: wire.RTMGetLink, Flags: wire.FRequest | wire.FDump},
		Payload: hdr.Bytes(),
	}
	bodies, err := c.Execute("link_list", req)
	if err != nil {
		return nil, err
	}
	var out []*iface.Link
	for _, b := range bodies {
		l, err := iface.Parse(b)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// LinkAdd creates link, failing if one with the same name already
// exists (NLM_F_EXCL).
func (h *Handle) LinkAdd(l *iface.Link) error {
	return h.linkNew("link_add", l, false, wire.FRequest|wire.FCreate|wire.FExcl|wire.FAck)
}

// LinkModify updates an existing link in place.
func (h *Handle) LinkModify(l *iface.Link) error {
	return h.linkNew("link_modify", l, false, wire.FRequest|wire.FAck)
}

// LinkSetup brings l up, setting IFF_UP in both the flags and
// change-mask fields of the link-info payload.
func (h *Handle) LinkSetup(l *iface.Link) error {
	return h.linkNew("link_setup", l, true, wire.FRequest|wire.FAck)
}

func (h *Handle) linkNew(verb string, l *iface.Link, up bool, flags uint16) error {
	c, err := h.routeConn()
	if err != nil {
		return err
	}
	hdr, attrs := iface.Build(l, up)
	req := &wire.Request{
		Header:  wire.Header{Type: wire.RTMNewLink, Flags: flags},
		Payload: hdr.Bytes(),
		Attrs:   attrs,
	}
	_, err = c.Execute(verb, req)
	return err
}

// LinkDel removes the link identified by l.Attrs.Index, or by
// l.Attrs.Name when the index is not known.
func (h *Handle) LinkDel(l *iface.Link) error {
	c, err := h.routeConn()
	if err != nil {
		return err
	}
	hdr := wire.LinkInfo{Family: ifAFUnspec, Index: l.Attrs.Index}
	req := &wire.Request{
		Header:  wire.Header{Type: wire.RTMDelLink, Flags: wire.FRequest | wire.FAck},
		Payload: hdr.Bytes(),
	}
	if l.Attrs.Index == 0 && l.Attrs.Name != "" {
		req.Attrs = append(req.Attrs, wire.NewStringAttr(iflaIfname, l.Attrs.Name))
	}
	_, err = c.Execute("link_del", req)
	return err
}

// AddrShow issues an RTM_GETADDR dump and filters the result to l's
// index.
func (h *Handle) AddrShow(l *iface.Link) ([]*ipaddr.Address, error) {
	c, err := h.routeConn()
	if err != nil {
		return nil, err
	}
	hdr := wire.AddrInfo{Family: ifAFUnspec}
	req := &wire.Request{
		Header:  wire.Header{Type: wire.RTMGetAddr, Flags: wire.FRequest | wire.FDump},
		Payload: hdr.Bytes(),
	}
	bodies, err := c.Execute("addr_show", req)
	if err != nil {
		return nil, err
	}
	var out []*ipaddr.Address
	for _, b := range bodies {
		a, err := ipaddr.Parse(b)
		if err != nil {
			return nil, err
		}
		if a.Index == uint32(l.Attrs.Index) {
			out = append(out, a)
		}
	}
	return out, nil
}

// AddrHandle applies cmd to addr on l. If l.Attrs.Index is zero it is
// resolved by name first; a lookup failure is not itself fatal -- the
// index stays 0 and the kernel rejects the request, surfacing as a
// KernelError.
func (h *Handle) AddrHandle(cmd AddrCmd, l *iface.Link, addr *ipaddr.Address) error {
	c, err := h.routeConn()
	if err != nil {
		return err
	}
	index := l.Attrs.Index
	if index == 0 {
		if resolved, err := h.LinkGet(l.Attrs); err == nil {
			index = resolved.Attrs.Index
		}
	}

	var typ uint16
	var flags uint16
	switch cmd {
	case AddrAdd:
		typ, flags = wire.RTMNewAddr, wire.FRequest|wire.FCreate|wire.FExcl|wire.FAck
	case AddrChange:
		typ, flags = wire.RTMNewAddr, wire.FRequest|wire.FReplace|wire.FAck
	case AddrReplace:
		typ, flags = wire.RTMNewAddr, wire.FRequest|wire.FCreate|wire.FReplace|wire.FAck
	case AddrDel:
		typ, flags = wire.RTMDelAddr, wire.FRequest|wire.FAck
	}

	hdr, attrs, err := ipaddr.Build(addr, uint32(index))
	if err != nil {
		return err
	}
	req := &wire.Request{
		Header:  wire.Header{Type: typ, Flags: flags},
		Payload: hdr.Bytes(),
		Attrs:   attrs,
	}
	_, err = c.Execute(addrVerbName(cmd), req)
	return err
}

func addrVerbName(cmd AddrCmd) string {
	switch cmd {
	case AddrAdd:
		return "addr_add"
	case AddrChange:
		return "addr_change"
	case AddrReplace:
		return "addr_replace"
	default:
		return "addr_del"
	}
}

// RouteGet resolves the route(s) covering dst. At least one payload is
// expected; zero surfaces as NotFound.
func (h *Handle) RouteGet(dst net.IP) ([]*route.Route, error) {
	c, err := h.routeConn()
	if err != nil {
		return nil, err
	}
	hdr, attrs, err := route.BuildGet(dst)
	if err != nil {
		return nil, err
	}
	req := &wire.Request{
		Header:  wire.Header{Type: wire.RTMGetRoute, Flags: wire.FRequest | wire.FAck},
		Payload: hdr.Bytes(),
		Attrs:   attrs,
	}
	bodies, err := c.Execute("route_get", req)
	if err != nil {
		return nil, err
	}
	if len(bodies) == 0 {
		return nil, &rtnlerr.NotFound{What: "route"}
	}
	var out []*route.Route
	for _, b := range bodies {
		r, err := route.Parse(b)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// PeerNSByName resolves a named network namespace (as created by `ip
// netns add`) into a PeerNS carrying an open file descriptor for
// IFLA_NET_NS_FD. The caller closes the descriptor with nsutil.Close
// once the LinkAdd carrying it has completed.
func PeerNSByName(name string) (*iface.PeerNS, error) {
	fd, err := nsutil.FDByName(name)
	if err != nil {
		return nil, err
	}
	return &iface.PeerNS{Fd: int32(fd), UseFd: true}, nil
}

// PeerNSByPid builds a PeerNS placing the veth peer into pid's network
// namespace via IFLA_NET_NS_PID. No descriptor is opened.
func PeerNSByPid(pid int) *iface.PeerNS {
	return &iface.PeerNS{Pid: int32(pid)}
}

// PeerNSByPath opens the network namespace bind-mounted (or procfs-
// exposed, e.g. /proc/<pid>/ns/net) at path. The caller closes the
// descriptor with nsutil.Close once the LinkAdd carrying it has
// completed.
func PeerNSByPath(path string) (*iface.PeerNS, error) {
	fd, err := nsutil.FDByPath(path)
	if err != nil {
		return nil, err
	}
	return &iface.PeerNS{Fd: int32(fd), UseFd: true}, nil
}

// RouteHandle applies cmd to r.
func (h *Handle) RouteHandle(cmd RtCmd, r *route.Route) error {
	c, err := h.routeConn()
	if err != nil {
		return err
	}

	var typ uint16
	var flags uint16
	var verb string
	switch cmd {
	case RouteAdd:
		typ, flags, verb = wire.RTMNewRoute, wire.FRequest|wire.FCreate|wire.FExcl|wire.FAck, "add"
	case RouteAppend:
		typ, flags, verb = wire.RTMNewRoute, wire.FRequest|wire.FCreate|wire.FAppend|wire.FAck, "append"
	case RouteReplace:
		typ, flags, verb = wire.RTMNewRoute, wire.FRequest|wire.FCreate|wire.FReplace|wire.FAck, "replace"
	case RouteDel:
		typ, flags, verb = wire.RTMDelRoute, wire.FRequest|wire.FAck, "del"
	}

	hdr, attrs, err := route.Build(r, verb)
	if err != nil {
		return err
	}
	req := &wire.Request{
		Header:  wire.Header{Type: typ, Flags: flags},
		Payload: hdr.Bytes(),
		Attrs:   attrs,
	}
	_, err = c.Execute("route_"+verb, req)
	return err
}
