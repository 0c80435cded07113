package device

import (
	"fmt"

	"github.com/bigbag/samba-flasher/internal/protocol"
	"github.com/bigbag/samba-flasher/internal/transport"
)

// FlashDescriptor describes one chip family's flash memory. Created
// only by exact-match lookup against the identify reply, never guessed
// or partially filled.
type FlashDescriptor struct {
	Name        string
	Addr        uint32 // flash base address
	Pages       uint32
	Size        uint32 // page size in bytes
	Planes      uint32
	LockRegions uint32
	User        uint32 // device write-buffer offset
	Stack       uint32
}

// TotalSize is the full flash capacity in bytes.
func (f FlashDescriptor) TotalSize() uint32 {
	return f.Pages * f.Size
}

// chipTable maps identify-command replies to flash geometry.
var chipTable = map[string]FlashDescriptor{
	"nRF52840-QIAA": {
		Name:        "nRF52840-QIAA",
		Addr:        0,
		Pages:       256,
		Size:        4096,
		Planes:      1,
		LockRegions: 0,
		User:        0,
		Stack:       0,
	},
}

// LookupChip resolves an identify reply to a flash descriptor.
func LookupChip(identity string) (FlashDescriptor, bool) {
	f, ok := chipTable[identity]
	return f, ok
}

// NotRecognizedError means the connected device is not one this tool
// knows how to program: it either lacks the identify capability or
// reported an identity outside the chip table. Unlike protocol and
// transport faults this is a reportable condition, not a session
// corruption.
type NotRecognizedError struct {
	Port string
}

func (e *NotRecognizedError) Error() string {
	return fmt.Sprintf("device at %q not recognized", e.Port)
}

// Device is one bootloader session: the transport plus the capability
// set and flash descriptor negotiated at init. Caps and Flash never
// change after Init.
type Device struct {
	Conn  *transport.Conn
	Port  string
	Caps  protocol.Capabilities
	Flash FlashDescriptor
}

// Init performs the session handshake: query the version reply, decode
// the embedded capability tag, then identify the chip and resolve its
// flash geometry. Returns NotRecognizedError when the device is not a
// known chip; any other error is a transport fault or protocol
// violation.
func Init(conn *transport.Conn, portName string) (*Device, error) {
	if err := conn.Send(protocol.CmdVersion); err != nil {
		return nil, err
	}
	version, err := conn.ReadString()
	if err != nil {
		return nil, err
	}

	tag, err := protocol.CapabilityTag(version)
	if err != nil {
		return nil, err
	}
	caps, err := protocol.ParseCapabilities(tag)
	if err != nil {
		return nil, err
	}

	if !caps.IdentifyChip {
		return nil, &NotRecognizedError{Port: portName}
	}

	if err := conn.Send(protocol.CmdIdentify); err != nil {
		return nil, err
	}
	identity, err := conn.ReadString()
	if err != nil {
		return nil, err
	}

	flash, ok := LookupChip(identity)
	if !ok {
		return nil, &NotRecognizedError{Port: portName}
	}

	return &Device{
		Conn:  conn,
		Port:  portName,
		Caps:  caps,
		Flash: flash,
	}, nil
}

// EnterBinaryMode switches the bootloader into binary mode, required
// before raw flash reads and writes.
func (d *Device) EnterBinaryMode() error {
	if err := d.Conn.Send(protocol.CmdBinaryMode); err != nil {
		return err
	}
	return d.Conn.Expect(protocol.AckBinaryMode)
}

// Reset makes the device leave the bootloader and run its firmware. No
// reply is sent. Returns an error if the device did not advertise the
// reset capability.
func (d *Device) Reset() error {
	if !d.Caps.Reset {
		return fmt.Errorf("device does not support reset")
	}
	return d.Conn.Send(protocol.CmdReset)
}
