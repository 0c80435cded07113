package transport

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// stream is a scripted byte stream: reads are served from in, writes
// are collected in out. chunk limits how many bytes a single Read may
// return, to exercise partial-read handling.
type stream struct {
	in    *bytes.Reader
	out   bytes.Buffer
	chunk int
}

func newStream(replies []byte) *stream {
	return &stream{in: bytes.NewReader(replies)}
}

func (s *stream) Read(p []byte) (int, error) {
	if s.chunk > 0 && len(p) > s.chunk {
		p = p[:s.chunk]
	}
	return s.in.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// shortWriter accepts at most max bytes per Write call.
type shortWriter struct {
	out bytes.Buffer
	max int
}

func (w *shortWriter) Read(p []byte) (int, error) { return 0, errors.New("not readable") }

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		p = p[:w.max]
	}
	return w.out.Write(p)
}

func TestSend_WritesAllBytes(t *testing.T) {
	s := newStream(nil)
	c := New(s)
	if err := c.Send("V#"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := s.out.String(); got != "V#" {
		t.Errorf("sent %q, want %q", got, "V#")
	}
}

func TestSend_PartialWrites(t *testing.T) {
	w := &shortWriter{max: 1}
	c := New(w)
	if err := c.Send("R00000000,00001000#"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := w.out.String(); got != "R00000000,00001000#" {
		t.Errorf("sent %q, want full command", got)
	}
}

func TestReadString_StripsTerminators(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"DATA\r\n\x00", "DATA"},
		{"DATA\n\r\x00", "DATA"},
		{"DATA\x00", "DATA"},
		{"DATA\x00junk after nul", "DATA"},
		{"\x00", ""},
	}

	for _, tc := range tests {
		c := New(newStream([]byte(tc.raw)))
		got, err := c.ReadString()
		if err != nil {
			t.Errorf("ReadString(%q) error = %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ReadString(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestReadString_PartialReads(t *testing.T) {
	s := newStream([]byte("nRF52840-QIAA\n\r\x00"))
	s.chunk = 3
	c := New(s)
	got, err := c.ReadString()
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if got != "nRF52840-QIAA" {
		t.Errorf("ReadString() = %q, want %q", got, "nRF52840-QIAA")
	}
}

func TestReadString_Overflow(t *testing.T) {
	// MaxReplyLen bytes with no NUL anywhere.
	c := New(newStream(bytes.Repeat([]byte{'A'}, MaxReplyLen)))
	_, err := c.ReadString()
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("ReadString() error = %v, want ViolationError", err)
	}
	if len(verr.Raw) != MaxReplyLen {
		t.Errorf("ViolationError.Raw length = %d, want %d", len(verr.Raw), MaxReplyLen)
	}
}

func TestReadString_TransportError(t *testing.T) {
	// Stream ends before a NUL is seen.
	c := New(newStream([]byte("partial")))
	_, err := c.ReadString()
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("ReadString() error = %v, want transport Error", err)
	}
}

func TestReadFull_AccumulatesPartialReads(t *testing.T) {
	s := newStream([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	s.chunk = 3
	c := New(s)
	buf := make([]byte, 8)
	if err := c.ReadFull(buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("ReadFull() = %v", buf)
	}
}

func TestExpect_Match(t *testing.T) {
	c := New(newStream([]byte("Y\n\r")))
	if err := c.Expect("Y\n\r"); err != nil {
		t.Fatalf("Expect() error = %v", err)
	}
}

func TestExpect_Mismatch(t *testing.T) {
	c := New(newStream([]byte("N\n\r")))
	err := c.Expect("Y\n\r")
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expect() error = %v, want ViolationError", err)
	}
	if !bytes.Equal(verr.Raw, []byte("N\n\r")) {
		t.Errorf("ViolationError.Raw = %q, want %q", verr.Raw, "N\n\r")
	}
}

func TestTrace_EchoesExchanges(t *testing.T) {
	s := newStream([]byte("v1.1\x00"))
	c := New(s)
	var trace strings.Builder
	c.Trace = &trace

	if err := c.Send("V#"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := c.ReadString(); err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}

	got := trace.String()
	if !strings.Contains(got, "> V#") {
		t.Errorf("trace %q missing sent command", got)
	}
	if !strings.Contains(got, "< v1.1") {
		t.Errorf("trace %q missing reply", got)
	}
}
