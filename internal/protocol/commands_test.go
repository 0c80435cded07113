package protocol

import "testing"

func TestReadByteCommand(t *testing.T) {
	got := ReadByteCommand(0x1000)
	if got != "o00001000,4#" {
		t.Errorf("ReadByteCommand(0x1000) = %q, want %q", got, "o00001000,4#")
	}
}

func TestReadCommand(t *testing.T) {
	tests := []struct {
		addr, size uint32
		want       string
	}{
		{0, 4096, "R00000000,00001000#"},
		{0x1001, 4095, "R00001001,00000FFF#"},
		{0xDEADBEEF, 0x20, "RDEADBEEF,00000020#"},
	}

	for _, tc := range tests {
		got := ReadCommand(tc.addr, tc.size)
		if got != tc.want {
			t.Errorf("ReadCommand(0x%X, 0x%X) = %q, want %q", tc.addr, tc.size, got, tc.want)
		}
	}
}

func TestWriteBufferCommand(t *testing.T) {
	got := WriteBufferCommand(0, 4096)
	if got != "S00000000,00001000#" {
		t.Errorf("WriteBufferCommand(0, 4096) = %q, want %q", got, "S00000000,00001000#")
	}
}

func TestCommitCommand(t *testing.T) {
	if got := CommitCommand(0, 0); got != "Y00000000,00000000#" {
		t.Errorf("CommitCommand(0, 0) = %q", got)
	}
	if got := CommitCommand(0x2000, 4096); got != "Y00002000,00001000#" {
		t.Errorf("CommitCommand(0x2000, 4096) = %q", got)
	}
}
