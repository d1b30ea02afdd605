package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fillTile writes a solid 2bpp pattern into a tile slot.
func fillTile(p *PPU, tile int, pixel byte) {
	var low, high byte
	if pixel&1 != 0 {
		low = 0xFF
	}
	if pixel&2 != 0 {
		high = 0xFF
	}
	for row := 0; row < 8; row++ {
		p.vram[tile*16+row*2] = low
		p.vram[tile*16+row*2+1] = high
	}
}

// newRenderPPU returns a PPU staged for direct scanline rendering, with
// sprites enabled on top of the post-boot LCDC value.
func newRenderPPU() *PPU {
	p := New()
	p.lcdc |= 1 << lcdcSpriteEnable
	p.bgp = 0xE4
	p.obp0 = 0xE4
	p.obp1 = 0xE4
	return p
}

func rowPixel(p *PPU, x int) GBColor {
	return GBColor(p.back.buffer[int(p.ly)*FramebufferWidth+x])
}

func TestRender_solidBackground(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 0, 3) // tile map is all zeroes, so tile 0 covers the screen

	p.renderScanline()

	for x := 0; x < FramebufferWidth; x++ {
		assert.Equal(t, DarkestColor, rowPixel(p, x))
		assert.Equal(t, byte(3), p.bgRow[x])
	}
}

func TestRender_backgroundDisabledForcesColorZero(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 0, 3)
	p.lcdc &^= 1 << lcdcBGEnable

	p.renderScanline()

	for x := 0; x < FramebufferWidth; x++ {
		assert.Equal(t, LightestColor, rowPixel(p, x))
		assert.Equal(t, byte(0), p.bgRow[x])
	}
}

func TestRender_backgroundScrollWraps(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 1, 3)
	// tile column 31 of map row 0 uses tile 1; everything else tile 0
	p.vram[0x1800+31] = 1

	p.scxLatch = 248 // start inside tile 31; wraps back to tile 0 after 8 pixels

	p.renderScanline()

	assert.Equal(t, DarkestColor, rowPixel(p, 0))
	assert.Equal(t, DarkestColor, rowPixel(p, 7))
	assert.Equal(t, LightestColor, rowPixel(p, 8))
}

func TestRender_signedTileAddressing(t *testing.T) {
	p := newRenderPPU()
	p.lcdc &^= 1 << lcdcTileData // 0x8800 signed mode

	// tile index 0 in signed mode resolves to 0x9000
	base := 0x1000
	for row := 0; row < 8; row++ {
		p.vram[base+row*2] = 0xFF
		p.vram[base+row*2+1] = 0xFF
	}

	p.renderScanline()

	assert.Equal(t, DarkestColor, rowPixel(p, 0))
}

func TestRender_windowOverlaysBackground(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 0, 1)
	fillTile(p, 2, 3)
	// window uses tile map 1, which points everything at tile 2
	for i := 0x1C00; i < 0x1C00+32; i++ {
		p.vram[i] = 2
	}

	p.lcdc |= 1<<lcdcWindowEnable | 1<<lcdcWindowTileMap
	p.wy = 0
	p.wx = 80 + 7 // window covers the right half
	p.windowTriggered = true

	p.renderScanline()

	assert.Equal(t, LightColor, rowPixel(p, 79), "left of the window: background")
	assert.Equal(t, DarkestColor, rowPixel(p, 80), "window origin")
	assert.Equal(t, DarkestColor, rowPixel(p, 159))
	assert.Equal(t, 1, p.windowLine, "window line advances after emitting pixels")
}

func TestRender_windowLineOnlyAdvancesWhenVisible(t *testing.T) {
	p := newRenderPPU()
	p.lcdc |= 1 << lcdcWindowEnable
	p.windowTriggered = true

	p.wx = 200 // beyond the WX<=166 limit
	p.renderScanline()
	assert.Equal(t, 0, p.windowLine)

	p.wx = 7
	p.renderScanline()
	assert.Equal(t, 1, p.windowLine)
}

func TestRender_windowNotTriggeredStaysHidden(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 0, 0)
	fillTile(p, 2, 3)
	for i := 0x1C00; i < 0x1C00+32; i++ {
		p.vram[i] = 2
	}
	p.lcdc |= 1<<lcdcWindowEnable | 1<<lcdcWindowTileMap
	p.wx = 7
	p.windowTriggered = false

	p.renderScanline()

	assert.Equal(t, LightestColor, rowPixel(p, 0))
}

// stageSprite writes one OAM record directly; render tests drive the
// compositor without running the mode machine.
func stageSprite(p *PPU, index int, screenY, screenX int, tile, attr byte) {
	p.oam[index*4] = byte(screenY + 16)
	p.oam[index*4+1] = byte(screenX + 8)
	p.oam[index*4+2] = tile
	p.oam[index*4+3] = attr
}

func TestRender_spriteOverBackground(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 1, 3)
	stageSprite(p, 0, 0, 4, 1, 0x00)

	p.scanSprites()
	p.renderScanline()

	assert.Equal(t, LightestColor, rowPixel(p, 3), "background left of the sprite")
	assert.Equal(t, DarkestColor, rowPixel(p, 4))
	assert.Equal(t, DarkestColor, rowPixel(p, 11))
	assert.Equal(t, LightestColor, rowPixel(p, 12))
}

func TestRender_spriteColorZeroIsTransparent(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 0, 2) // background color 2 everywhere
	fillTile(p, 1, 0) // sprite tile is all transparent
	stageSprite(p, 0, 0, 0, 1, 0x00)

	p.scanSprites()
	p.renderScanline()

	assert.Equal(t, DarkColor, rowPixel(p, 0), "background shows through")
}

func TestRender_spriteBehindBackground(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 1, 3)
	stageSprite(p, 0, 0, 0, 1, 0x80) // behind-BG attribute

	t.Run("loses to non-zero background", func(t *testing.T) {
		fillTile(p, 0, 2)
		p.scanSprites()
		p.renderScanline()
		assert.Equal(t, DarkColor, rowPixel(p, 0))
	})

	t.Run("wins over background color zero", func(t *testing.T) {
		fillTile(p, 0, 0)
		p.scanSprites()
		p.renderScanline()
		assert.Equal(t, DarkestColor, rowPixel(p, 0))
	})
}

func TestRender_spritePriorityByX(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 1, 3) // darkest
	fillTile(p, 2, 1) // light

	stageSprite(p, 0, 0, 4, 1, 0x00) // X=4, OAM 0
	stageSprite(p, 1, 0, 0, 2, 0x00) // X=0, OAM 1: lower X wins the overlap

	p.scanSprites()
	p.renderScanline()

	assert.Equal(t, LightColor, rowPixel(p, 4), "lower X owns the overlapping pixels")
	assert.Equal(t, LightColor, rowPixel(p, 7))
	assert.Equal(t, DarkestColor, rowPixel(p, 8), "higher X keeps its own tail")
}

func TestRender_spritePriorityByOAMIndexOnSameX(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 1, 3)
	fillTile(p, 2, 1)

	stageSprite(p, 0, 0, 0, 1, 0x00)
	stageSprite(p, 1, 0, 0, 2, 0x00)

	p.scanSprites()
	p.renderScanline()

	assert.Equal(t, DarkestColor, rowPixel(p, 0), "lower OAM index wins at equal X")
}

func TestRender_spriteFlips(t *testing.T) {
	p := newRenderPPU()
	// tile 1: left half color 1, right half color 0
	for row := 0; row < 8; row++ {
		p.vram[16+row*2] = 0xF0
		p.vram[16+row*2+1] = 0x00
	}

	t.Run("no flip", func(t *testing.T) {
		stageSprite(p, 0, 0, 0, 1, 0x00)
		p.scanSprites()
		p.renderScanline()
		assert.Equal(t, LightColor, rowPixel(p, 0))
		assert.Equal(t, LightestColor, rowPixel(p, 4))
	})

	t.Run("x flip", func(t *testing.T) {
		stageSprite(p, 0, 0, 0, 1, 0x20)
		p.scanSprites()
		p.renderScanline()
		assert.Equal(t, LightestColor, rowPixel(p, 0))
		assert.Equal(t, LightColor, rowPixel(p, 4))
	})
}

func TestRender_spriteYFlipTall(t *testing.T) {
	p := newRenderPPU()
	p.lcdc |= 1 << lcdcSpriteSize // 8x16 sprites

	// top half (tile 2) color 1, bottom half (tile 3) color 3
	fillTile(p, 2, 1)
	fillTile(p, 3, 3)

	// tile index has its low bit forced to zero in 8x16 mode
	stageSprite(p, 0, 0, 0, 3, 0x00)
	p.scanSprites()
	p.renderScanline()
	assert.Equal(t, LightColor, rowPixel(p, 0), "row 0 comes from the even tile")

	// flipped vertically, row 0 samples the bottom half
	stageSprite(p, 0, 0, 0, 2, 0x40)
	p.scanSprites()
	p.renderScanline()
	assert.Equal(t, DarkestColor, rowPixel(p, 0))
}

func TestRender_tenSpriteLimit(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 1, 3)

	// twelve sprites on the line; the eleventh and twelfth never render
	for i := 0; i < 12; i++ {
		stageSprite(p, i, 0, i*8, 1, 0x00)
	}

	p.scanSprites()
	p.renderScanline()

	assert.Equal(t, DarkestColor, rowPixel(p, 9*8))
	assert.Equal(t, LightestColor, rowPixel(p, 10*8), "sprite beyond the limit is dropped")
	assert.Equal(t, LightestColor, rowPixel(p, 11*8))
}

func TestRender_offscreenSpritesStillCountTowardLimit(t *testing.T) {
	p := newRenderPPU()
	fillTile(p, 1, 3)

	// ten sprites parked at X=0 in OAM terms (entirely off-screen)
	for i := 0; i < 10; i++ {
		p.oam[i*4] = 16 // on line 0
		p.oam[i*4+1] = 0
		p.oam[i*4+2] = 1
	}
	// an on-screen sprite with a higher OAM index
	stageSprite(p, 10, 0, 20, 1, 0x00)

	p.scanSprites()
	p.renderScanline()

	assert.Equal(t, LightestColor, rowPixel(p, 20), "slots were consumed by off-screen sprites")
}
