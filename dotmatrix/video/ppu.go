// Package video implements the pixel processing unit: VRAM/OAM storage,
// the LCD register file, the per-scanline mode machine and the compositor.
//
// The PPU owns its memories. The bus reaches them only through the gated
// accessors below, which is how the mode-dependent lockout rules stay in
// one place.
package video

import (
	"github.com/lmarzo/go-dotmatrix/dotmatrix/addr"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/bit"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/interrupt"
)

// Mode is the PPU's current rendering stage. Values match STAT bits 1-0.
type Mode byte

const (
	ModeHBlank  Mode = 0
	ModeVBlank  Mode = 1
	ModeOAMScan Mode = 2
	ModeDrawing Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeHBlank:
		return "hblank"
	case ModeVBlank:
		return "vblank"
	case ModeOAMScan:
		return "oamscan"
	case ModeDrawing:
		return "drawing"
	}
	return "unknown"
}

const (
	oamScanDots = 80
	drawingDots = 172
	lineDots    = 456
	lastLine    = 153

	// Each sprite visible on the line stretches mode 3 by 6 dots, up to 60.
	spritePenaltyDots = 6
	maxSpritePenalty  = 60
)

// LCDC bit positions.
const (
	lcdcBGEnable      = 0
	lcdcSpriteEnable  = 1
	lcdcSpriteSize    = 2
	lcdcBGTileMap     = 3
	lcdcTileData      = 4
	lcdcWindowEnable  = 5
	lcdcWindowTileMap = 6
	lcdcLCDEnable     = 7
)

// STAT interrupt-enable bit positions.
const (
	statHBlankIRQ = 3
	statVBlankIRQ = 4
	statOAMIRQ    = 5
	statLYCIRQ    = 6
)

// PPU holds the video memories, registers and scanline state machine.
type PPU struct {
	vram [0x2000]byte
	oam  [0xA0]byte

	lcdc byte
	stat byte // writable bits 3-6 only; the rest is composed on read
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte

	mode Mode
	dot  int // t-cycles into the current scanline

	// SCX/SCY are latched when drawing starts so mid-line register writes
	// do not shear the line being drawn.
	scxLatch byte
	scyLatch byte

	penalty int // mode 3 stretch for the current line

	lineSprites     [maxSpritesPerLine]int
	lineSpriteCount int

	// The window keeps its own line counter, advancing only on lines where
	// it actually emitted pixels.
	windowLine      int
	windowTriggered bool

	// previous value of the STAT interrupt signal, for rising-edge detection
	statLine bool

	back       *FrameBuffer
	front      *FrameBuffer
	frameReady bool

	bgRow [FramebufferWidth]byte // raw 2bpp background indices of the line being composed
}

// New returns a PPU in the post-boot state: LCD on, first line, OAM scan.
func New() *PPU {
	p := &PPU{
		lcdc:  0x91,
		bgp:   0xFC,
		mode:  ModeOAMScan,
		back:  NewFrameBuffer(),
		front: NewFrameBuffer(),
	}
	p.front.Clear()
	p.back.Clear()
	p.windowTriggered = p.wy == p.ly
	return p
}

func (p *PPU) lcdEnabled() bool {
	return bit.IsSet(lcdcLCDEnable, p.lcdc)
}

func (p *PPU) spriteHeight() int {
	if bit.IsSet(lcdcSpriteSize, p.lcdc) {
		return 16
	}
	return 8
}

// Tick advances the PPU by the given number of t-cycles. The returned mask
// carries the VBlank/LCDStat interrupt requests raised during the window.
func (p *PPU) Tick(tcycles int) uint8 {
	if !p.lcdEnabled() {
		return 0
	}

	var requests uint8
	for range tcycles {
		p.dot++

		switch p.mode {
		case ModeOAMScan:
			if p.dot == oamScanDots {
				p.scxLatch, p.scyLatch = p.scx, p.scy
				p.scanSprites()
				p.penalty = p.lineSpriteCount * spritePenaltyDots
				if p.penalty > maxSpritePenalty {
					p.penalty = maxSpritePenalty
				}
				p.mode = ModeDrawing
			}
		case ModeDrawing:
			if p.dot == oamScanDots+drawingDots+p.penalty {
				p.renderScanline()
				p.mode = ModeHBlank
			}
		case ModeHBlank:
			if p.dot == lineDots {
				p.dot = 0
				p.ly++
				if int(p.ly) == FramebufferHeight {
					p.mode = ModeVBlank
					requests |= interrupt.VBlank.Bit()
					p.swapBuffers()
				} else {
					p.startLine()
				}
			}
		case ModeVBlank:
			if p.dot == lineDots {
				p.dot = 0
				if p.ly == lastLine {
					p.ly = 0
					p.windowLine = 0
					p.windowTriggered = false
					p.startLine()
				} else {
					p.ly++
				}
			}
		}

		requests |= p.updateStatSignal()
	}
	return requests
}

// startLine enters OAM scan for a new visible scanline and latches the
// window trigger for the frame.
func (p *PPU) startLine() {
	p.mode = ModeOAMScan
	if p.ly == p.wy {
		p.windowTriggered = true
	}
}

func (p *PPU) swapBuffers() {
	p.back, p.front = p.front, p.back
	p.frameReady = true
}

// FrameReady reports whether a new frame completed since the last call.
// Reading clears the flag.
func (p *PPU) FrameReady() bool {
	ready := p.frameReady
	p.frameReady = false
	return ready
}

// Frame returns the display target, the last completed frame.
func (p *PPU) Frame() *FrameBuffer {
	return p.front
}

// Mode returns the current rendering stage.
func (p *PPU) Mode() Mode {
	return p.mode
}

// LY returns the current scanline.
func (p *PPU) LY() byte {
	return p.ly
}

// statSignal computes the level of the shared STAT interrupt line.
func (p *PPU) statSignal() bool {
	if p.ly == p.lyc && bit.IsSet(statLYCIRQ, p.stat) {
		return true
	}
	switch p.mode {
	case ModeHBlank:
		return bit.IsSet(statHBlankIRQ, p.stat)
	case ModeVBlank:
		return bit.IsSet(statVBlankIRQ, p.stat)
	case ModeOAMScan:
		return bit.IsSet(statOAMIRQ, p.stat)
	}
	return false
}

// updateStatSignal samples the STAT line and requests an LCDStat interrupt
// on its rising edge, and only then.
func (p *PPU) updateStatSignal() uint8 {
	signal := p.statSignal()
	rising := signal && !p.statLine
	p.statLine = signal
	if rising {
		return interrupt.LCDStat.Bit()
	}
	return 0
}

// vramLocked reports whether the CPU side of VRAM is blocked.
func (p *PPU) vramLocked() bool {
	return p.lcdEnabled() && p.mode == ModeDrawing
}

// oamLocked reports whether the CPU side of OAM is blocked.
func (p *PPU) oamLocked() bool {
	return p.lcdEnabled() && (p.mode == ModeOAMScan || p.mode == ModeDrawing)
}

// ReadVRAM services a CPU read of 0x8000-0x9FFF.
func (p *PPU) ReadVRAM(address uint16) byte {
	if p.vramLocked() {
		return 0xFF
	}
	return p.vram[address-addr.TileData0]
}

// WriteVRAM services a CPU write of 0x8000-0x9FFF.
func (p *PPU) WriteVRAM(address uint16, value byte) {
	if p.vramLocked() {
		return
	}
	p.vram[address-addr.TileData0] = value
}

// ReadOAM services a CPU read of 0xFE00-0xFE9F.
func (p *PPU) ReadOAM(address uint16) byte {
	if p.oamLocked() {
		return 0xFF
	}
	return p.oam[address-addr.OAMStart]
}

// WriteOAM services a CPU write of 0xFE00-0xFE9F.
func (p *PPU) WriteOAM(address uint16, value byte) {
	if p.oamLocked() {
		return
	}
	p.oam[address-addr.OAMStart] = value
}

// DMAWrite stores one byte into OAM on behalf of the DMA engine, which is
// not subject to the mode lockout.
func (p *PPU) DMAWrite(offset int, value byte) {
	p.oam[offset] = value
}

// ReadRegister services a CPU read of an LCD register.
func (p *PPU) ReadRegister(address uint16) byte {
	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		value := 0x80 | p.stat | byte(p.mode)
		if p.ly == p.lyc {
			value = bit.Set(2, value)
		}
		return value
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	}
	return 0xFF
}

// WriteRegister services a CPU write of an LCD register. The returned mask
// carries an LCDStat request when the write itself raises the STAT line.
func (p *PPU) WriteRegister(address uint16, value byte) uint8 {
	switch address {
	case addr.LCDC:
		wasOn := p.lcdEnabled()
		p.lcdc = value
		if wasOn && !p.lcdEnabled() {
			p.lcdOff()
		} else if !wasOn && p.lcdEnabled() {
			p.dot = 0
			p.ly = 0
			p.startLine()
		}
	case addr.STAT:
		// only the interrupt-enable bits 3-6 are writable
		p.stat = value & 0x78
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LY:
		// read-only
	case addr.LYC:
		p.lyc = value
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	}

	if !p.lcdEnabled() {
		return 0
	}
	return p.updateStatSignal()
}

// lcdOff resets the scanline machinery. VRAM and OAM become fully
// accessible and no interrupts are produced until the LCD is re-enabled.
func (p *PPU) lcdOff() {
	p.ly = 0
	p.dot = 0
	p.mode = ModeHBlank
	p.windowLine = 0
	p.statLine = false
}
