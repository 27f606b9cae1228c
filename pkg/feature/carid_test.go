package feature

import (
	"errors"
	"testing"
)

func TestParseCarID(t *testing.T) {
	tests := []struct {
		in      string
		want    CarID
		wantErr bool
	}{
		{"1", 0x1, false},
		{"00000001", 0x1, false},
		{"0x10", 0x10, false},
		{"0XDEADBEEF", 0xDEADBEEF, false},
		{" ffffffff ", 0xFFFFFFFF, false},
		{"", 0, true},
		{"0x", 0, true},
		{"123456789", 0, true},
		{"12g4", 0, true},
		{"-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCarID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCarID) {
					t.Errorf("ParseCarID(%q) error = %v, want ErrInvalidCarID", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCarID(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseCarID(%q) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestCarIDBytes(t *testing.T) {
	id := CarID(0x01020304)
	b := id.Bytes()
	if len(b) != 4 || b[0] != 1 || b[3] != 4 {
		t.Errorf("Bytes() = %x", b)
	}
	if id.String() != "01020304" {
		t.Errorf("String() = %s", id.String())
	}

	back, err := CarIDFromBytes(b)
	if err != nil || back != id {
		t.Errorf("CarIDFromBytes() = %v, %v", back, err)
	}
}
