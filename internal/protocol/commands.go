package protocol

import "fmt"

// Default baud rate for SAM-BA style bootloaders on native USB CDC.
const DefaultBaudRate = 230400

// Session commands. All commands are ASCII, terminated by '#';
// addresses and sizes are 8-digit uppercase hex.
const (
	CmdVersion    = "V#"
	CmdIdentify   = "I#"
	CmdBinaryMode = "N#"
	CmdReset      = "K#"
)

// Fixed acknowledgement literals.
const (
	AckBinaryMode = "\n\r"
	AckCommit     = "Y\n\r"
)

// ChunkSize is the write-path chunk: one buffered upload-then-commit
// cycle covers at most this many bytes.
const ChunkSize = 4096

// ReadByteCommand reads a single byte at addr. Used as the probe
// preceding power-of-two bulk reads (see flasher.Reader).
func ReadByteCommand(addr uint32) string {
	return fmt.Sprintf("o%08X,4#", addr)
}

// ReadCommand bulk-reads size raw bytes starting at addr.
func ReadCommand(addr, size uint32) string {
	return fmt.Sprintf("R%08X,%08X#", addr, size)
}

// WriteBufferCommand declares an upload of size raw bytes into the
// device's write buffer at the given offset. The payload follows the
// command directly, with no reply in between.
func WriteBufferCommand(offset, size uint32) string {
	return fmt.Sprintf("S%08X,%08X#", offset, size)
}

// CommitCommand triggers the device's buffer commit / page program
// step. With size 0 it acts on the write buffer at offset; with a real
// size it programs the buffered bytes to the flash address.
func CommitCommand(addr, size uint32) string {
	return fmt.Sprintf("Y%08X,%08X#", addr, size)
}
