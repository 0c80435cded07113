package protocol

import (
	"fmt"
	"strings"
)

// The capability tag is embedded in the version reply between these
// two markers, e.g. "v1.1 [Arduino:IKXYZ] Oct 10 2020".
const (
	capPrefix = "[Arduino:"
	capSuffix = "]"
)

// Single-letter capability codes found inside the tag.
const (
	CodeIdentifyChip   = 'I'
	CodeReset          = 'K'
	CodeChipErase      = 'X'
	CodeWriteBuffer    = 'Y'
	CodeChecksumBuffer = 'Z'
)

// Capabilities is the set of protocol operations the connected
// bootloader supports. Derived once per session from the version reply
// and never mutated afterward.
type Capabilities struct {
	ChipErase      bool
	WriteBuffer    bool
	ChecksumBuffer bool
	IdentifyChip   bool
	Reset          bool
}

// UnknownCapabilityError reports a byte in the capability tag that is
// not a recognized code.
type UnknownCapabilityError struct {
	Code byte
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("unknown capability code %q", e.Code)
}

// CapabilityTag extracts the capability tag from a version reply: the
// substring strictly between the "[Arduino:" marker and the following
// "]". Either marker missing is a protocol violation.
func CapabilityTag(version string) (string, error) {
	start := strings.Index(version, capPrefix)
	if start < 0 {
		return "", fmt.Errorf("no %q found in version reply %q", capPrefix, version)
	}
	rest := version[start+len(capPrefix):]
	end := strings.Index(rest, capSuffix)
	if end < 0 {
		return "", fmt.Errorf("no %q found in version reply %q", capSuffix, version)
	}
	return rest[:end], nil
}

// ParseCapabilities decodes a capability tag. Codes may appear in any
// order and may repeat; any unrecognized byte fails the decode.
func ParseCapabilities(tag string) (Capabilities, error) {
	var caps Capabilities
	for i := 0; i < len(tag); i++ {
		switch tag[i] {
		case CodeIdentifyChip:
			caps.IdentifyChip = true
		case CodeReset:
			caps.Reset = true
		case CodeChipErase:
			caps.ChipErase = true
		case CodeWriteBuffer:
			caps.WriteBuffer = true
		case CodeChecksumBuffer:
			caps.ChecksumBuffer = true
		default:
			return Capabilities{}, &UnknownCapabilityError{Code: tag[i]}
		}
	}
	return caps, nil
}

// String renders the set in the tag's letter notation, in a fixed
// order.
func (c Capabilities) String() string {
	var b strings.Builder
	if c.IdentifyChip {
		b.WriteByte(CodeIdentifyChip)
	}
	if c.Reset {
		b.WriteByte(CodeReset)
	}
	if c.ChipErase {
		b.WriteByte(CodeChipErase)
	}
	if c.WriteBuffer {
		b.WriteByte(CodeWriteBuffer)
	}
	if c.ChecksumBuffer {
		b.WriteByte(CodeChecksumBuffer)
	}
	return b.String()
}
