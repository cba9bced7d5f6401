// Package txn drives the request/reply transaction loop over a bound
// nlsock.Socket: sequence assignment, kernel-peer and local-port
// validation, ACK/DONE/ERROR classification, and dump accumulation.
package txn

import (
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m-lab/rtnl/metrics"
	"github.com/m-lab/rtnl/nlsock"
	"github.com/m-lab/rtnl/rtnlerr"
	"github.com/m-lab/rtnl/wire"
)

// socketIface is the slice of nlsock.Socket's method set Conn needs.
// Defined as an interface so tests can drive the classification loop
// against a fake transport instead of a real netlink socket.
type socketIface interface {
	Send([]byte) error
	Recv() ([]byte, uint32, error)
	LocalPort() uint32
}

// Conn pairs a bound socket with its private, monotonically increasing
// sequence counter. A Conn (like the Socket it wraps) must not be
// shared across concurrent callers.
type Conn struct {
	sock socketIface
	seq  uint32
}

// NewConn wraps an already-opened socket.
func NewConn(sock *nlsock.Socket) *Conn {
	return &Conn{sock: sock}
}

// Socket returns the underlying socket, e.g. for Close. Only meaningful
// when Conn was built with NewConn (a real socket); returns nil for
// connections built over a test fake.
func (c *Conn) Socket() *nlsock.Socket {
	s, _ := c.sock.(*nlsock.Socket)
	return s
}

// NextSeq assigns and returns the next sequence number for this
// connection. Strictly monotonic across both successful and failed
// transactions.
func (c *Conn) NextSeq() uint32 {
	return atomic.AddUint32(&c.seq, 1)
}

// Execute fills in req.Header.Seq and req.Header.Pid, sends it, and
// drives the receive loop until the terminal ACK/DONE/ERROR frame for
// this sequence arrives, returning the accumulated payload bodies.
// verb is a metrics label only (e.g. "link_add", "addr_show").
func (c *Conn) Execute(verb string, req *wire.Request) ([][]byte, error) {
	start := time.Now()
	var bodies [][]byte
	seq := c.NextSeq()
	req.Header.Seq = seq
	req.Header.Pid = c.sock.LocalPort()

	defer func() {
		metrics.SyscallTimeHistogram.With(prometheus.Labels{"verb": verb}).Observe(time.Since(start).Seconds())
		metrics.PayloadCountHistogram.With(prometheus.Labels{"verb": verb}).Observe(float64(len(bodies)))
	}()

	if err := c.sock.Send(req.Bytes()); err != nil {
		metrics.ErrorCount.With(prometheus.Labels{"kind": "SocketError"}).Inc()
		return nil, err
	}

	for {
		buf, peer, err := c.sock.Recv()
		if err != nil {
			metrics.ErrorCount.With(prometheus.Labels{"kind": "SocketError"}).Inc()
			return nil, err
		}
		msgs, err := wire.Demux(buf)
		if err != nil {
			metrics.ErrorCount.With(prometheus.Labels{"kind": "MalformedMessage"}).Inc()
			return nil, err
		}
		for _, m := range msgs {
			done, err := c.classify(&bodies, m, seq, peer)
			if err != nil {
				metrics.ErrorCount.With(prometheus.Labels{"kind": errKind(err)}).Inc()
				return bodies, err
			}
			if done {
				return bodies, nil
			}
		}
	}
}

// classify validates peer/sequence/pid, recognizes ERROR/DONE as
// terminal, and otherwise appends the body and continues. Returns
// done=true once the transaction's terminal frame has been seen.
func (c *Conn) classify(bodies *[][]byte, m wire.Message, seq uint32, peer uint32) (bool, error) {
	if peer != 0 {
		return false, &rtnlerr.UnexpectedPeer{Port: peer}
	}
	if m.Header.Seq != seq {
		return false, &rtnlerr.SequenceMismatch{Want: seq, Got: m.Header.Seq}
	}
	if m.Header.Pid != c.sock.LocalPort() {
		// Not addressed to us; skip without disturbing the transaction.
		return false, nil
	}
	if m.Header.Type == wire.TypeError || m.Header.Type == wire.TypeDone {
		if len(m.Body) < 4 {
			return false, &rtnlerr.MalformedMessage{Reason: "error/done frame shorter than 4 bytes"}
		}
		code := int32(wire.Uint32(m.Body[0:4]))
		if code == 0 {
			return true, nil
		}
		return false, &rtnlerr.KernelError{Errno: syscall.Errno(-code), Tail: m.Body[4:]}
	}
	*bodies = append(*bodies, m.Body)
	return false, nil
}

func errKind(err error) string {
	switch err.(type) {
	case *rtnlerr.SocketError:
		return "SocketError"
	case *rtnlerr.MalformedMessage:
		return "MalformedMessage"
	case *rtnlerr.UnexpectedPeer:
		return "UnexpectedPeer"
	case *rtnlerr.SequenceMismatch:
		return "SequenceMismatch"
	case *rtnlerr.KernelError:
		return "KernelError"
	case *rtnlerr.FamilyMismatch:
		return "FamilyMismatch"
	case *rtnlerr.NotFound:
		return "NotFound"
	case *rtnlerr.Ambiguous:
		return "Ambiguous"
	case *rtnlerr.InvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}
