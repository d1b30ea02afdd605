package memory

import "github.com/lmarzo/go-dotmatrix/dotmatrix/bit"

// Button is one of the eight joypad inputs.
type Button uint8

const (
	ButtonRight Button = iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

func (b Button) String() string {
	switch b {
	case ButtonRight:
		return "right"
	case ButtonLeft:
		return "left"
	case ButtonUp:
		return "up"
	case ButtonDown:
		return "down"
	case ButtonA:
		return "a"
	case ButtonB:
		return "b"
	case ButtonSelect:
		return "select"
	case ButtonStart:
		return "start"
	}
	return "unknown"
}

// joypad models the two active-low rows of the button matrix. P1 bits 4-5
// select which row the low nibble exposes.
type joypad struct {
	selectBits byte // last written bits 4-5
	dpad       byte // Right, Left, Up, Down in bits 0-3
	buttons    byte // A, B, Select, Start in bits 0-3
}

func newJoypad() joypad {
	return joypad{dpad: 0x0F, buttons: 0x0F}
}

// press updates a row bit and reports whether this was a new press
// (a released-to-pressed transition requests the Joypad interrupt).
func (j *joypad) press(button Button, pressed bool) bool {
	row := &j.buttons
	index := uint8(button - ButtonA)
	if button <= ButtonDown {
		row = &j.dpad
		index = uint8(button)
	}

	wasPressed := !bit.IsSet(index, *row)
	if pressed {
		*row = bit.Reset(index, *row)
	} else {
		*row = bit.Set(index, *row)
	}
	return pressed && !wasPressed
}

// read composes the P1 register: bits 6-7 always high, bits 4-5 echo the
// selection, and the low nibble holds the selected row. Selecting both
// rows ANDs them; selecting neither floats high.
func (j *joypad) read() byte {
	result := 0xC0 | j.selectBits | 0x0F

	selectDpad := !bit.IsSet(4, j.selectBits)
	selectButtons := !bit.IsSet(5, j.selectBits)

	switch {
	case selectDpad && selectButtons:
		result = result&0xF0 | j.dpad&j.buttons
	case selectDpad:
		result = result&0xF0 | j.dpad
	case selectButtons:
		result = result&0xF0 | j.buttons
	}
	return result
}

func (j *joypad) write(value byte) {
	j.selectBits = value & 0x30
}
