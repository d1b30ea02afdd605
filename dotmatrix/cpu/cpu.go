// Package cpu implements the Sharp LR35902 core: registers, the decoded
// opcode tables, interrupt servicing and the HALT/EI edge cases.
package cpu

import (
	"fmt"
	"log/slog"

	"github.com/lmarzo/go-dotmatrix/dotmatrix/bit"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/memory"
)

// Flag is one of the 4 flags in the F register (low byte of AF).
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// serviceCycles is the m-cycle cost of dispatching an interrupt.
const serviceCycles = 5

// CPU holds the processor state. All memory traffic goes through the bus.
type CPU struct {
	bus *memory.Bus

	a, f uint8
	b, c uint8
	d, e uint8
	h, l uint8
	sp   uint16
	pc   uint16

	ime        bool
	imePending bool // EI takes effect after the following instruction
	halted     bool
	haltBug    bool

	currentOpcode uint16
	cycles        uint64
}

// New returns a CPU with the post-boot register file, ready to execute
// from the cartridge entry point.
func New(bus *memory.Bus) *CPU {
	return &CPU{
		bus: bus,
		a:   0x01, f: 0xB0,
		b: 0x00, c: 0x13,
		d: 0x00, e: 0xD8,
		h: 0x01, l: 0x4D,
		sp: 0xFFFE,
		pc: 0x0100,
	}
}

// Step runs the next unit of work and returns its cost in m-cycles: one
// idle cycle while halted, five for an interrupt dispatch, otherwise the
// cost of the executed instruction. The caller ticks the bus by the
// returned amount.
func (c *CPU) Step() int {
	if c.halted {
		if !c.bus.InterruptPending() {
			c.cycles++
			return 1
		}
		c.halted = false
	}

	if c.ime {
		if source, ok := c.bus.NextInterrupt(); ok {
			c.ime = false
			c.bus.AcknowledgeInterrupt(source)
			c.pushStack(c.pc)
			c.pc = source.Vector()
			c.cycles += serviceCycles
			return serviceCycles
		}
	}

	enableAfter := c.imePending

	opcode := c.fetchOpcode()
	cycles := c.execute(opcode)

	// EI enables interrupts only after the instruction that follows it.
	// A DI in that slot clears the pending enable, so EI;DI stays closed.
	if enableAfter && c.imePending {
		c.ime = true
		c.imePending = false
	}

	c.cycles += uint64(cycles)
	return cycles
}

// fetchOpcode reads the next opcode byte. When the halt bug is armed the
// PC fails to advance, so the byte after HALT is decoded twice.
func (c *CPU) fetchOpcode() uint8 {
	opcode := c.bus.Read(c.pc)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.pc++
	}
	return opcode
}

func (c *CPU) execute(opcode uint8) int {
	if opcode == 0xCB {
		sub := c.readImmediate()
		c.currentOpcode = 0xCB00 | uint16(sub)
		return opcodeCBTable[sub](c)
	}
	c.currentOpcode = uint16(opcode)
	return opcodeTable[opcode](c)
}

// unimplemented logs an illegal opcode and treats it as a one-cycle no-op.
func unimplemented(c *CPU) int {
	slog.Warn("illegal opcode executed as no-op",
		"opcode", fmt.Sprintf("0x%02X", c.currentOpcode),
		"pc", fmt.Sprintf("0x%04X", c.pc-1))
	return 1
}

// halt implements the three HALT entry cases. With IME cleared and an
// interrupt already pending the CPU does not halt at all; it arms the
// halt bug instead.
func (c *CPU) halt() {
	if c.ime {
		c.halted = true
		return
	}
	if !c.bus.InterruptPending() {
		c.halted = true
		return
	}
	c.haltBug = true
}

// Halted reports whether the CPU is waiting for an interrupt.
func (c *CPU) Halted() bool {
	return c.halted
}

// IME reports whether the master interrupt enable is set.
func (c *CPU) IME() bool {
	return c.ime
}

// Cycles returns the cumulative m-cycle count.
func (c *CPU) Cycles() uint64 {
	return c.cycles
}

// PC returns the program counter.
func (c *CPU) PC() uint16 {
	return c.pc
}

// SP returns the stack pointer.
func (c *CPU) SP() uint16 {
	return c.sp
}

// AF returns the accumulator and flags pair.
func (c *CPU) AF() uint16 { return c.getAF() }

// BC returns the BC register pair.
func (c *CPU) BC() uint16 { return c.getBC() }

// DE returns the DE register pair.
func (c *CPU) DE() uint16 { return c.getDE() }

// HL returns the HL register pair.
func (c *CPU) HL() uint16 { return c.getHL() }

// 16-bit register pair accessors. F keeps its low nibble forced to zero.

func (c *CPU) getAF() uint16 { return bit.Combine(c.a, c.f) }
func (c *CPU) getBC() uint16 { return bit.Combine(c.b, c.c) }
func (c *CPU) getDE() uint16 { return bit.Combine(c.d, c.e) }
func (c *CPU) getHL() uint16 { return bit.Combine(c.h, c.l) }

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

// flag helpers

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

// immediate operand fetches

func (c *CPU) readImmediate() uint8 {
	value := c.bus.Read(c.pc)
	c.pc++
	return value
}

func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}
