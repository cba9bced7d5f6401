package wire

import (
	"golang.org/x/sys/unix"

	"github.com/m-lab/rtnl/rtnlerr"
)

// HdrLen is the fixed size of a netlink message header.
const HdrLen = 16

// Header is the 16-byte netlink message header, laid out exactly as the
// kernel expects on the wire: total length, message type, flags,
// sequence number, port (pid).
type Header struct {
	Len   uint32
	Type  uint16
	Flags uint16
	Seq   uint32
	Pid   uint32
}

// Flag aliases for the per-verb tables in the facade.
const (
	FRequest = unix.NLM_F_REQUEST
	FMulti   = unix.NLM_F_MULTI
	FAck     = unix.NLM_F_ACK
	FDump    = unix.NLM_F_DUMP
	FCreate  = unix.NLM_F_CREATE
	FExcl    = unix.NLM_F_EXCL
	FReplace = unix.NLM_F_REPLACE
	FAppend  = unix.NLM_F_APPEND

	TypeError = unix.NLMSG_ERROR
	TypeDone  = unix.NLMSG_DONE
)

// DecodeHeader reads a Header from the front of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HdrLen {
		return Header{}, &rtnlerr.MalformedMessage{Reason: "buffer shorter than header"}
	}
	h := Header{
		Len:   Uint32(buf[0:4]),
		Type:  Uint16(buf[4:6]),
		Flags: Uint16(buf[6:8]),
		Seq:   Uint32(buf[8:12]),
		Pid:   Uint32(buf[12:16]),
	}
	if h.Len < HdrLen {
		return Header{}, &rtnlerr.MalformedMessage{Reason: "header length below minimum"}
	}
	return h, nil
}

func encodeHeader(buf []byte, h Header) {
	PutUint32(buf[0:4], h.Len)
	PutUint16(buf[4:6], h.Type)
	PutUint16(buf[6:8], h.Flags)
	PutUint32(buf[8:12], h.Seq)
	PutUint32(buf[12:16], h.Pid)
}

// Message is one demultiplexed netlink message: its header and the
// un-padded body that follows it (header.Len-16 bytes).
type Message struct {
	Header Header
	Body   []byte
}

// Demux splits a receive buffer into its constituent messages: while at
// least HdrLen bytes remain, read a header, take Align4(header.Len)
// bytes as that message's span, and yield the un-padded body.
func Demux(buf []byte) ([]Message, error) {
	var msgs []Message
	for len(buf) >= HdrLen {
		h, err := DecodeHeader(buf)
		if err != nil {
			return nil, err
		}
		span := Align4(int(h.Len))
		if span > len(buf) {
			return nil, &rtnlerr.MalformedMessage{Reason: "message length exceeds buffer"}
		}
		body := buf[HdrLen:h.Len]
		msgs = append(msgs, Message{Header: h, Body: append([]byte(nil), body...)})
		buf = buf[span:]
	}
	return msgs, nil
}

// Request is a single outgoing message under construction: a header
// (Type/Flags/Seq/Pid set by the caller; Len filled by Bytes), a fixed
// family payload, and a flat list of already-serialized top-level
// attributes.
type Request struct {
	Header  Header
	Payload []byte
	Attrs   []*Attr
}

// Bytes serializes the request: header (length placeholder), family
// payload, each attribute in order, then patches the first four bytes
// with the true total length, which is also stored in r.Header.Len.
func (r *Request) Bytes() []byte {
	body := append([]byte(nil), r.Payload...)
	for _, a := range r.Attrs {
		body = append(body, a.Bytes()...)
	}
	total := HdrLen + len(body)
	buf := make([]byte, total)
	r.Header.Len = uint32(total)
	encodeHeader(buf, r.Header)
	copy(buf[HdrLen:], body)
	return buf
}
