package transport

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

// MaxReplyLen caps the size of a NUL-terminated text reply. The longest
// legitimate reply is the version string, well under this.
const MaxReplyLen = 256

// sendPacing is slept between partial writes so a slow device-side
// input buffer is not overrun.
const sendPacing = 1 * time.Millisecond

// Error is a fault in the underlying byte stream (I/O error or
// timeout). It aborts the session; nothing retries it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ViolationError reports a device reply that breaks the protocol's
// framing rules. Raw carries the offending bytes for diagnosis.
type ViolationError struct {
	Reason string
	Raw    []byte
}

func (e *ViolationError) Error() string {
	if len(e.Raw) > 0 {
		return fmt.Sprintf("protocol violation: %s (raw: %q)", e.Reason, e.Raw)
	}
	return fmt.Sprintf("protocol violation: %s", e.Reason)
}

// Conn is the line transport for the request/response protocol. All
// exchanges are half-duplex and serialized through the one connection;
// there is exactly one consumer for the session's lifetime.
type Conn struct {
	rw io.ReadWriter

	// Trace, when set, receives every command sent ("> V#") and every
	// decoded text reply ("< ..."). Observability only, not part of the
	// protocol contract.
	Trace io.Writer
}

// New wraps a byte stream in a Conn.
func New(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw}
}

func (c *Conn) tracef(format string, args ...any) {
	if c.Trace != nil {
		fmt.Fprintf(c.Trace, format+"\n", args...)
	}
}

// Send writes a command to the device, blocking until every byte has
// been accepted.
func (c *Conn) Send(cmd string) error {
	c.tracef("> %s", cmd)
	return c.writeAll([]byte(cmd))
}

// SendData writes raw payload bytes following a command, with no
// framing of its own.
func (c *Conn) SendData(data []byte) error {
	c.tracef("> [%d data bytes]", len(data))
	return c.writeAll(data)
}

func (c *Conn) writeAll(data []byte) error {
	for len(data) > 0 {
		n, err := c.rw.Write(data)
		if err != nil {
			return &Error{Op: "write", Err: err}
		}
		data = data[n:]
		if len(data) > 0 {
			time.Sleep(sendPacing)
		}
	}
	return nil
}

// ReadFull blocks until buf has been filled, issuing repeated reads.
// Partial reads are not an error; underlying read errors are.
func (c *Conn) ReadFull(buf []byte) error {
	off := 0
	for off < len(buf) {
		n, err := c.rw.Read(buf[off:])
		if err != nil {
			return &Error{Op: "read", Err: err}
		}
		off += n
	}
	return nil
}

// ReadString reads a NUL-terminated text reply. The reply is truncated
// at the NUL and trailing CR/LF bytes are stripped, leaving the logical
// payload. A reply longer than MaxReplyLen is a protocol violation.
func (c *Conn) ReadString() (string, error) {
	buf := make([]byte, MaxReplyLen)
	off := 0
	for {
		n, err := c.rw.Read(buf[off:])
		if err != nil {
			return "", &Error{Op: "read", Err: err}
		}
		if i := bytes.IndexByte(buf[off:off+n], 0); i >= 0 {
			buf = buf[:off+i]
			break
		}
		off += n
		if off == len(buf) {
			return "", &ViolationError{
				Reason: fmt.Sprintf("reply exceeds %d bytes without terminator", MaxReplyLen),
				Raw:    buf,
			}
		}
	}

	line := strings.TrimRight(string(buf), "\r\n")
	c.tracef("< %s", line)
	return line, nil
}

// Expect consumes a fixed acknowledgement sequence, failing unless the
// device sent exactly the given literal.
func (c *Conn) Expect(lit string) error {
	buf := make([]byte, len(lit))
	if err := c.ReadFull(buf); err != nil {
		return err
	}
	if string(buf) != lit {
		return &ViolationError{
			Reason: fmt.Sprintf("unexpected acknowledgement, want %q", lit),
			Raw:    buf,
		}
	}
	c.tracef("< %q", lit)
	return nil
}
