// Package dotmatrix assembles the emulated machine: a CPU stepping against
// the bus, advanced one instruction at a time until frames fall out.
package dotmatrix

import (
	"log/slog"

	"github.com/lmarzo/go-dotmatrix/dotmatrix/cpu"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/memory"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/video"
)

// CyclesPerFrame is the m-cycle length of one full frame
// (154 scanlines x 456 dots / 4).
const CyclesPerFrame = 17556

// Machine is the root of the emulation: it owns the CPU and the bus and
// drives them in lockstep.
type Machine struct {
	cpu *cpu.CPU
	bus *memory.Bus

	serialOut    []byte
	instructions uint64
	frames       uint64
}

// New builds a machine around a cartridge.
func New(cart *memory.Cartridge) *Machine {
	m := &Machine{}
	m.bus = memory.New(cart)
	m.cpu = cpu.New(m.bus)
	m.bus.SetSerialSink(func(b byte) {
		m.serialOut = append(m.serialOut, b)
	})
	return m
}

// NewWithFile loads a ROM image from disk and builds a machine around it.
func NewWithFile(path string) (*Machine, error) {
	cart, err := memory.NewCartridgeFromFile(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("machine ready", "rom", path, "title", cart.Title())
	return New(cart), nil
}

// StepInstruction advances the machine by one CPU step and ticks the bus
// by its cost. Interrupts the peripherals raise during the tick land in IF
// before the next instruction fetches.
func (m *Machine) StepInstruction() int {
	cycles := m.cpu.Step()
	m.bus.Tick(cycles)
	m.instructions++
	return cycles
}

// RunFrame steps the machine until the PPU signals a completed frame. With
// the LCD switched off no frame ever completes, so a whole frame's worth
// of cycles acts as the fallback boundary.
func (m *Machine) RunFrame() {
	start := m.bus.Cycles()
	for {
		m.StepInstruction()
		if m.bus.PPU().FrameReady() {
			m.frames++
			return
		}
		if m.bus.Cycles()-start >= CyclesPerFrame {
			m.frames++
			return
		}
	}
}

// Frame returns the last completed frame.
func (m *Machine) Frame() *video.FrameBuffer {
	return m.bus.PPU().Frame()
}

// SetButton feeds one host input into the joypad matrix.
func (m *Machine) SetButton(button memory.Button, pressed bool) {
	m.bus.SetButton(button, pressed)
}

// SerialOutput returns everything the cartridge has written to the link
// port so far. Test cartridges report their verdict here.
func (m *Machine) SerialOutput() string {
	return string(m.serialOut)
}

// Instructions returns the number of instructions executed since reset.
func (m *Machine) Instructions() uint64 {
	return m.instructions
}

// Frames returns the number of frames completed since reset.
func (m *Machine) Frames() uint64 {
	return m.frames
}

// CPU exposes the processor.
func (m *Machine) CPU() *cpu.CPU {
	return m.cpu
}

// Bus exposes the bus for the debug overlay and for tests.
func (m *Machine) Bus() *memory.Bus {
	return m.bus
}
