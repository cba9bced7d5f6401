package wire

import (
	"bytes"
	"testing"

	"github.com/go-test/deep"
)

func TestAlign4(t *testing.T) {
	cases := map[int]int{0: 0, 1: 4, 3: 4, 4: 4, 5: 8, 17: 20}
	for in, want := range cases {
		if got := Align4(in); got != want {
			t.Errorf("Align4(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestAttrLeafRoundTrip(t *testing.T) {
	a := NewU32Attr(7, 0xdeadbeef)
	b := a.Bytes()
	if len(b)%4 != 0 {
		t.Fatalf("attribute span %d is not 4-byte aligned", len(b))
	}
	parsed, err := ParseAttrs(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 1 {
		t.Fatalf("got %d attrs, want 1", len(parsed))
	}
	if parsed[0].Type != 7 {
		t.Errorf("type = %d, want 7", parsed[0].Type)
	}
	if Uint32(parsed[0].Value) != 0xdeadbeef {
		t.Errorf("value = %#x, want 0xdeadbeef", Uint32(parsed[0].Value))
	}
	// trailing bytes between length and the aligned span must be zero.
	length := 4 + len(parsed[0].Value)
	for i := length; i < len(b); i++ {
		if b[i] != 0 {
			t.Errorf("padding byte %d = %#x, want 0", i, b[i])
		}
	}
}

func TestAttrStringZeroTerminated(t *testing.T) {
	a := NewStringAttr(1, "foo")
	b := a.Bytes()
	parsed, err := ParseAttrs(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(parsed[0].Value, []byte("foo\x00")) {
		t.Errorf("value = %q, want \"foo\\x00\"", parsed[0].Value)
	}
}

func TestNestedAttrLengthFixup(t *testing.T) {
	nest := NewNestAttr(10, NewU8Attr(1, 5), NewStringAttr(2, "bridge"))
	b := nest.Bytes()
	parsed, err := ParseAttrs(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 1 {
		t.Fatalf("got %d top-level attrs, want 1", len(parsed))
	}
	children, err := ParseAttrs(parsed[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2", len(children))
	}
	if children[1].Type != 2 || !bytes.Equal(children[1].Value, []byte("bridge\x00")) {
		t.Errorf("child 1 = %+v, want type 2 value \"bridge\\x00\"", children[1])
	}
}

func TestParseAttrMapLastWins(t *testing.T) {
	buf := append(NewU32Attr(5, 1).Bytes(), NewU32Attr(5, 2).Bytes()...)
	m, err := ParseAttrMap(buf)
	if err != nil {
		t.Fatal(err)
	}
	if Uint32(m[5]) != 2 {
		t.Errorf("m[5] = %d, want 2 (last wins)", Uint32(m[5]))
	}
}

func TestParseAttrsMalformed(t *testing.T) {
	// Stated length 2 is below the 4-byte attribute header minimum.
	buf := make([]byte, 4)
	PutUint16(buf[0:2], 2)
	if _, err := ParseAttrs(buf); err == nil {
		t.Error("expected MalformedMessage for length < 4")
	}
	// Stated length exceeds the buffer.
	buf2 := make([]byte, 4)
	PutUint16(buf2[0:2], 100)
	if _, err := ParseAttrs(buf2); err == nil {
		t.Error("expected MalformedMessage for length exceeding buffer")
	}
}

func TestRequestBytesLengthInvariant(t *testing.T) {
	req := &Request{
		Header:  Header{Type: 16, Flags: FRequest | FAck, Seq: 1, Pid: 100},
		Payload: LinkInfo{Family: 0, Index: 0, Flags: 0}.Bytes(),
		Attrs:   []*Attr{NewStringAttr(3, "foo"), NewU32Attr(4, 1500)},
	}
	b := req.Bytes()
	if len(b)%4 != 0 {
		t.Errorf("message length %d not 4-byte aligned", len(b))
	}
	h, err := DecodeHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if int(h.Len) != len(b) {
		t.Errorf("header.Len = %d, want %d", h.Len, len(b))
	}
}

func TestDemuxRoundTrip(t *testing.T) {
	req1 := &Request{Header: Header{Type: 16, Flags: FRequest, Seq: 1, Pid: 100}}
	req2 := &Request{Header: Header{Type: 3, Flags: FRequest, Seq: 2, Pid: 100},
		Attrs: []*Attr{NewU32Attr(1, 9)}}
	buf := append(req1.Bytes(), req2.Bytes()...)

	msgs, err := Demux(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if diff := deep.Equal(msgs[0].Header, req1.Header); diff != nil {
		t.Error(diff)
	}
	if diff := deep.Equal(msgs[1].Header, req2.Header); diff != nil {
		t.Error(diff)
	}
	if len(msgs[1].Body) != len(NewU32Attr(1, 9).Bytes()) {
		t.Errorf("body length = %d", len(msgs[1].Body))
	}
}

func TestFamilyPayloadRoundTrip(t *testing.T) {
	li := LinkInfo{Family: 0, Type: 1, Index: 4, Flags: 0x1003, ChangeMask: 0}
	got, rest, err := DecodeLinkInfo(li.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(got, li); diff != nil {
		t.Error(diff)
	}
	if len(rest) != 0 {
		t.Errorf("rest = %d bytes, want 0", len(rest))
	}

	ai := AddrInfo{Family: 2, PrefixLen: 24, Flags: 0, Scope: 0, Index: 1}
	gotA, _, err := DecodeAddrInfo(ai.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(gotA, ai); diff != nil {
		t.Error(diff)
	}

	ri := RouteInfo{Family: 2, DstLen: 24, Table: 254, Protocol: 3, Scope: 253, Type: 1, Flags: 0}
	gotR, _, err := DecodeRouteInfo(ri.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(gotR, ri); diff != nil {
		t.Error(diff)
	}
}
