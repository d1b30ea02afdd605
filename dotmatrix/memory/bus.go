// Package memory implements the bus: address decode, the cartridge, work
// and high RAM, the joypad matrix, OAM DMA and the per-cycle tick fan-out
// that drives the timer, PPU and serial port.
package memory

import (
	"github.com/lmarzo/go-dotmatrix/dotmatrix/addr"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/interrupt"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/serial"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/timer"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/video"
)

const oamSize = 0xA0

// Bus is the sole path from the CPU to memory and peripherals. It owns the
// PPU, timer, serial port and the interrupt registers.
type Bus struct {
	cart   *Cartridge
	ppu    *video.PPU
	timer  *timer.Timer
	serial *serial.Port

	wram [0x2000]byte
	hram [0x7F]byte
	io   [0x80]byte // write-through stub for unmodeled IO registers

	ie     byte
	iflags byte

	joypad joypad

	dmaReg    byte
	dmaActive bool
	dmaSource uint16
	dmaIndex  int

	cycles uint64 // m-cycles ticked since reset
}

// New wires a bus around a cartridge with all peripherals in their
// post-boot state.
func New(cart *Cartridge) *Bus {
	b := &Bus{
		cart:   cart,
		ppu:    video.New(),
		timer:  timer.New(),
		joypad: newJoypad(),
		iflags: 0x01, // VBlank is already pending after the boot ROM
	}
	b.serial = serial.New(nil)
	return b
}

// PPU exposes the video unit for the front-end and for frame scheduling.
func (b *Bus) PPU() *video.PPU {
	return b.ppu
}

// SetSerialSink routes outgoing serial bytes to the given function.
func (b *Bus) SetSerialSink(sink func(byte)) {
	b.serial.SetSink(sink)
}

// Cycles returns the number of m-cycles ticked since reset.
func (b *Bus) Cycles() uint64 {
	return b.cycles
}

// SetButton updates the joypad matrix, requesting a Joypad interrupt on a
// released-to-pressed transition.
func (b *Bus) SetButton(button Button, pressed bool) {
	if b.joypad.press(button, pressed) {
		b.RequestInterrupt(interrupt.Joypad)
	}
}

// RequestInterrupt sets the source's bit in IF.
func (b *Bus) RequestInterrupt(source interrupt.Source) {
	b.iflags = interrupt.Request(b.iflags, source)
}

// AcknowledgeInterrupt clears the source's bit in IF when the CPU starts
// servicing it.
func (b *Bus) AcknowledgeInterrupt(source interrupt.Source) {
	b.iflags = interrupt.Clear(b.iflags, source)
}

// InterruptPending reports whether any enabled interrupt is requested.
func (b *Bus) InterruptPending() bool {
	return interrupt.Pending(b.ie, b.iflags)
}

// NextInterrupt returns the highest-priority pending interrupt.
func (b *Bus) NextInterrupt() (interrupt.Source, bool) {
	return interrupt.HighestPriority(b.ie, b.iflags)
}

// dmaBlocks reports whether an address is unreachable for the CPU while
// OAM DMA is running. Only HRAM stays accessible.
func (b *Bus) dmaBlocks(address uint16) bool {
	return b.dmaActive && !(address >= 0xFF80 && address <= 0xFFFE)
}

// Read services a CPU read anywhere in the 16-bit address space.
func (b *Bus) Read(address uint16) byte {
	if b.dmaBlocks(address) {
		return 0xFF
	}

	switch {
	case address < 0x8000:
		return b.cart.Read(address)
	case address < 0xA000:
		return b.ppu.ReadVRAM(address)
	case address < 0xC000:
		return b.cart.Read(address)
	case address < 0xE000:
		return b.wram[address-0xC000]
	case address < 0xFE00:
		// echo RAM mirrors 0xC000-0xDDFF
		return b.wram[address-0xE000]
	case address <= addr.OAMEnd:
		return b.ppu.ReadOAM(address)
	case address < 0xFF00:
		return 0xFF
	case address < 0xFF80:
		return b.readIO(address)
	case address < 0xFFFF:
		return b.hram[address-0xFF80]
	default:
		return 0xE0 | b.ie
	}
}

// Write services a CPU write anywhere in the 16-bit address space.
func (b *Bus) Write(address uint16, value byte) {
	if b.dmaBlocks(address) {
		return
	}

	switch {
	case address < 0x8000:
		b.cart.Write(address, value)
	case address < 0xA000:
		b.ppu.WriteVRAM(address, value)
	case address < 0xC000:
		b.cart.Write(address, value)
	case address < 0xE000:
		b.wram[address-0xC000] = value
	case address < 0xFE00:
		b.wram[address-0xE000] = value
	case address <= addr.OAMEnd:
		b.ppu.WriteOAM(address, value)
	case address < 0xFF00:
		// unusable region
	case address < 0xFF80:
		b.writeIO(address, value)
	case address < 0xFFFF:
		b.hram[address-0xFF80] = value
	default:
		b.ie = value & interrupt.Mask
	}
}

func (b *Bus) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return b.joypad.read()
	case address == addr.SB || address == addr.SC:
		return b.serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return b.timer.Read(address)
	case address == addr.IF:
		return 0xE0 | b.iflags
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		// no APU behind these; a disabled unit reads back as all ones
		return 0xFF
	case address == addr.DMA:
		return b.dmaReg
	case address >= addr.LCDC && address <= addr.WX:
		return b.ppu.ReadRegister(address)
	default:
		return b.io[address-0xFF00]
	}
}

func (b *Bus) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		b.joypad.write(value)
	case address == addr.SB || address == addr.SC:
		b.serial.Write(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		b.timer.Write(address, value)
	case address == addr.IF:
		b.iflags = value & interrupt.Mask
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		b.io[address-0xFF00] = value
	case address == addr.DMA:
		b.startDMA(value)
	case address >= addr.LCDC && address <= addr.WX:
		b.iflags |= b.ppu.WriteRegister(address, value) & interrupt.Mask
	default:
		b.io[address-0xFF00] = value
	}
}

// startDMA latches the source page and begins the 160 m-cycle OAM copy.
func (b *Bus) startDMA(page byte) {
	b.dmaReg = page
	b.dmaActive = true
	b.dmaSource = uint16(page) << 8
	b.dmaIndex = 0
}

// dmaRead fetches a source byte for the DMA engine. The engine is not
// subject to its own lockout.
func (b *Bus) dmaRead(address uint16) byte {
	switch {
	case address < 0x8000:
		return b.cart.Read(address)
	case address < 0xA000:
		return b.ppu.ReadVRAM(address)
	case address < 0xC000:
		return b.cart.Read(address)
	case address < 0xE000:
		return b.wram[address-0xC000]
	case address < 0xFE00:
		return b.wram[address-0xE000]
	default:
		return 0xFF
	}
}

// Tick advances the machine by the given number of m-cycles: one DMA byte,
// four timer t-cycles, four PPU dots and four serial clocks per m-cycle.
// Interrupt requests collected from the peripherals land in IF.
func (b *Bus) Tick(mcycles int) {
	for range mcycles {
		b.cycles++

		if b.dmaActive {
			value := b.dmaRead(b.dmaSource + uint16(b.dmaIndex))
			b.ppu.DMAWrite(b.dmaIndex, value)
			b.dmaIndex++
			if b.dmaIndex == oamSize {
				b.dmaActive = false
			}
		}

		if b.timer.Tick(4) {
			b.RequestInterrupt(interrupt.Timer)
		}

		b.iflags |= b.ppu.Tick(4) & interrupt.Mask

		if b.serial.Tick(4) {
			b.RequestInterrupt(interrupt.Serial)
		}
	}
}
