package flasher

import (
	"io"

	"github.com/bigbag/samba-flasher/internal/device"
	"github.com/bigbag/samba-flasher/internal/protocol"
	"github.com/bigbag/samba-flasher/internal/transport"
)

// Reader streams the device's entire flash address space, page by
// page, from the base address to base + pages*size. It is a lazy,
// finite, non-restartable byte sequence: Read refills an internal page
// buffer on demand and returns io.EOF once every page has been
// produced. The device must already be in binary mode.
type Reader struct {
	conn  *transport.Conn
	flash device.FlashDescriptor
	buf   []byte
	page  uint32
	off   int
}

// NewReader creates a Reader over the full flash of dev.
func NewReader(dev *device.Device) *Reader {
	buf := make([]byte, dev.Flash.Size)
	return &Reader{
		conn:  dev.Conn,
		flash: dev.Flash,
		buf:   buf,
		off:   len(buf),
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.off == len(r.buf) {
		if r.page == r.flash.Pages {
			return 0, io.EOF
		}
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf[r.off:])
	r.off += n
	return n, nil
}

// fill fetches the next page into the buffer.
//
// The reference SAM firmware mis-handles bulk reads whose size is a
// power of two above 32 bytes. For such page sizes the first byte is
// fetched with a single-byte read and the bulk read covers the rest,
// starting one byte in.
func (r *Reader) fill() error {
	addr := r.flash.Addr + r.page*r.flash.Size
	r.page++

	var skew uint32
	size := uint32(len(r.buf))
	if size > 32 && size&(size-1) == 0 {
		if err := r.conn.Send(protocol.ReadByteCommand(addr)); err != nil {
			return err
		}
		if err := r.conn.ReadFull(r.buf[:1]); err != nil {
			return err
		}
		skew = 1
	}

	if err := r.conn.Send(protocol.ReadCommand(addr+skew, size-skew)); err != nil {
		return err
	}
	if err := r.conn.ReadFull(r.buf[skew:]); err != nil {
		return err
	}

	r.off = 0
	return nil
}
