package emu

import "testing"

func joypadClock(j *Joypad, out PinsOut) (uint8, uint8) {
	data := uint8(0xFF)
	var irq uint8
	j.Clock(out, &data, &irq)
	return data, irq
}

// TestJoypad_NoRowSelected: with both rows deselected the low nybble
// reads all ones.
func TestJoypad_NoRowSelected(t *testing.T) {
	j := NewJoypad()
	j.Press(ButtonA)
	joypadClock(j, WritePins(0xFF00, 0x30))
	data, _ := joypadClock(j, ReadPins(0xFF00))
	if data&0x0F != 0x0F {
		t.Errorf("deselected read: expected low nybble 0xF, got %#02x", data)
	}
}

// TestJoypad_RowSelect reads each row's buttons, active low.
func TestJoypad_RowSelect(t *testing.T) {
	testCases := []struct {
		name   string
		sel    uint8 // row select written to bits 5/4
		press  Button
		nybble uint8
	}{
		{"direction up", 0x20, ButtonUp, 0x0B},
		{"direction down", 0x20, ButtonDown, 0x07},
		{"direction left", 0x20, ButtonLeft, 0x0D},
		{"direction right", 0x20, ButtonRight, 0x0E},
		{"action a", 0x10, ButtonA, 0x0E},
		{"action b", 0x10, ButtonB, 0x0D},
		{"action select", 0x10, ButtonSelect, 0x0B},
		{"action start", 0x10, ButtonStart, 0x07},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			j := NewJoypad()
			joypadClock(j, WritePins(0xFF00, tc.sel))
			j.Press(tc.press)
			data, _ := joypadClock(j, ReadPins(0xFF00))
			if data&0x0F != tc.nybble {
				t.Errorf("low nybble: expected %#02x, got %#02x", tc.nybble, data&0x0F)
			}
		})
	}
}

// TestJoypad_EdgeInterrupt: a press on a selected row raises the joypad
// interrupt exactly once.
func TestJoypad_EdgeInterrupt(t *testing.T) {
	j := NewJoypad()
	joypadClock(j, WritePins(0xFF00, 0x20)) // select direction row

	if _, irq := joypadClock(j, ReadPins(0x0000)); irq != 0 {
		t.Fatal("no interrupt expected with no buttons pressed")
	}

	j.Press(ButtonUp)
	_, irq := joypadClock(j, ReadPins(0x0000))
	if irq&(1<<IntBitJoypad) == 0 {
		t.Error("expected joypad interrupt on press")
	}

	// Held button: no further edges.
	if _, irq := joypadClock(j, ReadPins(0x0000)); irq != 0 {
		t.Error("held button must not re-request the interrupt")
	}
}

// TestJoypad_UnselectedRowNoInterrupt: presses on a deselected row are
// invisible.
func TestJoypad_UnselectedRowNoInterrupt(t *testing.T) {
	j := NewJoypad()
	joypadClock(j, WritePins(0xFF00, 0x20)) // direction row only

	j.Press(ButtonA) // action row
	if _, irq := joypadClock(j, ReadPins(0x0000)); irq != 0 {
		t.Error("press on deselected row must not interrupt")
	}
}

// TestJoypad_Release clears the button bit again.
func TestJoypad_Release(t *testing.T) {
	j := NewJoypad()
	joypadClock(j, WritePins(0xFF00, 0x20))
	j.Press(ButtonUp)
	joypadClock(j, ReadPins(0x0000))

	j.Release(ButtonUp)
	data, _ := joypadClock(j, ReadPins(0xFF00))
	if data&0x0F != 0x0F {
		t.Errorf("after release: expected low nybble 0xF, got %#02x", data&0x0F)
	}
}
