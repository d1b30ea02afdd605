package video

import (
	"github.com/lmarzo/go-dotmatrix/dotmatrix/addr"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/bit"
)

// renderScanline composes one line into the back buffer: background first,
// then the window plane, then sprites on top.
func (p *PPU) renderScanline() {
	p.renderBackground()
	p.renderWindow()
	p.renderSprites()
}

// tileRow fetches the two bitplane bytes of one tile row. The tile index is
// interpreted as signed when the 0x8800 addressing mode is selected.
func (p *PPU) tileRow(tileIndex byte, row int) (low, high byte) {
	var base uint16
	if bit.IsSet(lcdcTileData, p.lcdc) {
		base = addr.TileData0 + uint16(tileIndex)*16
	} else {
		base = uint16(int(addr.TileData2) + int(int8(tileIndex))*16)
	}
	offset := base - addr.TileData0 + uint16(row*2)
	return p.vram[offset], p.vram[offset+1]
}

// pixelFrom extracts the 2bpp value at a column of a tile row. Column 0 is
// the leftmost pixel, stored in bit 7.
func pixelFrom(low, high byte, column int) byte {
	index := uint8(7 - column)
	return bit.Value(index, low) | bit.Value(index, high)<<1
}

// shade resolves a 2bpp value through a palette register.
func shade(palette, pixel byte) byte {
	return (palette >> (pixel * 2)) & 0x03
}

func (p *PPU) renderBackground() {
	y := int(p.ly)
	rowStart := y * FramebufferWidth

	if !bit.IsSet(lcdcBGEnable, p.lcdc) {
		// the background plane degrades to color 0 everywhere
		color := ShadeToColor(shade(p.bgp, 0))
		for x := 0; x < FramebufferWidth; x++ {
			p.bgRow[x] = 0
			p.back.buffer[rowStart+x] = uint32(color)
		}
		return
	}

	tileMap := addr.TileMap0
	if bit.IsSet(lcdcBGTileMap, p.lcdc) {
		tileMap = addr.TileMap1
	}

	mapY := (y + int(p.scyLatch)) & 0xFF
	mapRow := uint16(mapY/8) * 32
	tileY := mapY % 8

	for x := 0; x < FramebufferWidth; x++ {
		mapX := (x + int(p.scxLatch)) & 0xFF
		tileIndex := p.vram[tileMap-addr.TileData0+mapRow+uint16(mapX/8)]
		low, high := p.tileRow(tileIndex, tileY)
		pixel := pixelFrom(low, high, mapX%8)

		p.bgRow[x] = pixel
		p.back.buffer[rowStart+x] = uint32(ShadeToColor(shade(p.bgp, pixel)))
	}
}

func (p *PPU) renderWindow() {
	if !bit.IsSet(lcdcWindowEnable, p.lcdc) || !bit.IsSet(lcdcBGEnable, p.lcdc) {
		return
	}
	if !p.windowTriggered || p.wx > 166 {
		return
	}

	y := int(p.ly)
	rowStart := y * FramebufferWidth

	tileMap := addr.TileMap0
	if bit.IsSet(lcdcWindowTileMap, p.lcdc) {
		tileMap = addr.TileMap1
	}

	mapRow := uint16(p.windowLine/8) * 32
	tileY := p.windowLine % 8

	// WX holds the window origin offset by 7; values below 7 clip the
	// leftmost window columns instead of scrolling the screen.
	originX := int(p.wx) - 7
	startX := originX
	if startX < 0 {
		startX = 0
	}

	emitted := false
	for x := startX; x < FramebufferWidth; x++ {
		windowX := x - originX
		tileIndex := p.vram[tileMap-addr.TileData0+mapRow+uint16(windowX/8)]
		low, high := p.tileRow(tileIndex, tileY)
		pixel := pixelFrom(low, high, windowX%8)

		p.bgRow[x] = pixel
		p.back.buffer[rowStart+x] = uint32(ShadeToColor(shade(p.bgp, pixel)))
		emitted = true
	}

	if emitted {
		p.windowLine++
	}
}

func (p *PPU) renderSprites() {
	if !bit.IsSet(lcdcSpriteEnable, p.lcdc) {
		return
	}

	var sorted [maxSpritesPerLine]sprite
	count := p.sortedLineSprites(&sorted)

	y := int(p.ly)
	rowStart := y * FramebufferWidth
	height := p.spriteHeight()

	// Walk in reverse priority order: the lowest-priority sprite draws
	// first and the winner overwrites.
	for i := count - 1; i >= 0; i-- {
		s := sorted[i]

		row := y - s.y
		if s.flipY() {
			row = height - 1 - row
		}

		tileIndex := s.tile
		if height == 16 {
			tileIndex &= 0xFE
			if row >= 8 {
				tileIndex |= 0x01
				row -= 8
			}
		}

		// sprites always use unsigned addressing from 0x8000
		offset := uint16(tileIndex)*16 + uint16(row*2)
		low, high := p.vram[offset], p.vram[offset+1]

		palette := p.obp0
		if s.palette() == 1 {
			palette = p.obp1
		}

		for column := 0; column < 8; column++ {
			x := s.x + column
			if x < 0 || x >= FramebufferWidth {
				continue
			}

			sourceColumn := column
			if s.flipX() {
				sourceColumn = 7 - column
			}
			pixel := pixelFrom(low, high, sourceColumn)
			if pixel == 0 {
				continue // sprite color 0 is transparent
			}
			if s.behindBG() && p.bgRow[x] != 0 {
				continue
			}

			p.back.buffer[rowStart+x] = uint32(ShadeToColor(shade(palette, pixel)))
		}
	}
}
