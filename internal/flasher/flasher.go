package flasher

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bigbag/samba-flasher/internal/device"
	"github.com/bigbag/samba-flasher/internal/protocol"
)

// ProgressCallback is called after each written chunk.
type ProgressCallback func(current, total int)

// ErrNoWriteBuffer means the device did not advertise the
// write-buffer capability; no alternative write method exists.
var ErrNoWriteBuffer = errors.New("device does not support buffered writes")

// ImageTooLargeError means the firmware image does not fit the flash.
// Reported before any device communication begins.
type ImageTooLargeError struct {
	ImageSize int64
	FlashSize uint32
}

func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("firmware image is %d bytes, flash holds only %d", e.ImageSize, e.FlashSize)
}

// chunkDelay paces consecutive chunks so a slow device-side input
// buffer is not overrun. Pacing only, not synchronization.
const chunkDelay = 10 * time.Millisecond

// Flasher programs firmware images through the device's write buffer.
type Flasher struct {
	dev      *device.Device
	progress ProgressCallback

	// delay between chunks; tests zero it.
	delay time.Duration
}

// New creates a Flasher for an initialized device session.
func New(dev *device.Device) *Flasher {
	return &Flasher{dev: dev, delay: chunkDelay}
}

// SetProgressCallback sets the progress callback function.
func (f *Flasher) SetProgressCallback(cb ProgressCallback) {
	f.progress = cb
}

func (f *Flasher) reportProgress(current, total int) {
	if f.progress != nil {
		f.progress(current, total)
	}
}

// WriteImage streams a firmware image of the given size into flash,
// in chunks of up to protocol.ChunkSize bytes. Each chunk is uploaded
// into the device's write buffer and committed to its flash address; a
// short final chunk is zero-padded and its length rounded up to the
// next page multiple (capped at the chunk size), since partial pages
// cannot be programmed. After the last chunk the device is reset to
// run the new firmware, if it supports reset.
//
// Written contents are not verified against the source; read-back
// verification is deliberately left out for now.
func (f *Flasher) WriteImage(r io.Reader, size int64) error {
	caps, flash := f.dev.Caps, f.dev.Flash
	if !caps.WriteBuffer {
		return ErrNoWriteBuffer
	}
	if size > int64(flash.TotalSize()) {
		return &ImageTooLargeError{ImageSize: size, FlashSize: flash.TotalSize()}
	}

	if err := f.dev.EnterBinaryMode(); err != nil {
		return err
	}

	conn := f.dev.Conn
	totalChunks := int((size + protocol.ChunkSize - 1) / protocol.ChunkSize)
	buf := make([]byte, protocol.ChunkSize)
	var offset uint32

	for chunk := 0; ; chunk++ {
		n, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("failed to read firmware image: %w", err)
		}
		final := err == io.ErrUnexpectedEOF

		length := uint32(n)
		if n < len(buf) {
			// Partial pages are never written as partial pages: pad
			// with zeros and round the logical length up to a page
			// multiple, capped at the chunk size.
			clear(buf[n:])
			length = roundUpToPage(length, flash.Size)
			if length > protocol.ChunkSize {
				length = protocol.ChunkSize
			}
		}

		if err := conn.Send(protocol.WriteBufferCommand(flash.User, length)); err != nil {
			return err
		}
		if err := conn.SendData(buf[:length]); err != nil {
			return err
		}
		if err := conn.Send(protocol.CommitCommand(flash.User, 0)); err != nil {
			return err
		}
		if err := conn.Expect(protocol.AckCommit); err != nil {
			return err
		}
		if err := conn.Send(protocol.CommitCommand(flash.Addr+offset, length)); err != nil {
			return err
		}
		if err := conn.Expect(protocol.AckCommit); err != nil {
			return err
		}

		offset += length
		f.reportProgress(chunk+1, totalChunks)

		if final {
			break
		}
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
	}

	if caps.Reset {
		return f.dev.Reset()
	}
	return nil
}

func roundUpToPage(n, pageSize uint32) uint32 {
	return (n + pageSize - 1) / pageSize * pageSize
}
