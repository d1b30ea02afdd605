package video

import "github.com/lmarzo/go-dotmatrix/dotmatrix/bit"

// maxSpritesPerLine is the hardware limit enforced during OAM scan.
// Sprites beyond the first ten matching the scanline are never drawn,
// even when earlier ones end up off-screen.
const maxSpritesPerLine = 10

// sprite is one decoded OAM record.
type sprite struct {
	index int // OAM index, the priority tiebreaker
	y     int // top scanline (OAM value minus 16)
	x     int // leftmost pixel (OAM value minus 8)
	tile  byte
	attr  byte
}

func (s sprite) palette() int {
	if bit.IsSet(4, s.attr) {
		return 1
	}
	return 0
}

func (s sprite) flipX() bool { return bit.IsSet(5, s.attr) }
func (s sprite) flipY() bool { return bit.IsSet(6, s.attr) }

// behindBG reports whether the sprite loses to non-zero background pixels.
func (s sprite) behindBG() bool { return bit.IsSet(7, s.attr) }

// spriteAt decodes the OAM record at the given index.
func (p *PPU) spriteAt(index int) sprite {
	base := index * 4
	return sprite{
		index: index,
		y:     int(p.oam[base]) - 16,
		x:     int(p.oam[base+1]) - 8,
		tile:  p.oam[base+2],
		attr:  p.oam[base+3],
	}
}

// scanSprites walks OAM in index order and collects the first ten sprites
// overlapping the scanline. Only Y participates in selection; off-screen X
// still consumes a slot.
func (p *PPU) scanSprites() {
	p.lineSpriteCount = 0
	height := p.spriteHeight()
	line := int(p.ly)

	for index := 0; index < 40; index++ {
		y := int(p.oam[index*4]) - 16
		if line < y || line >= y+height {
			continue
		}
		p.lineSprites[p.lineSpriteCount] = index
		p.lineSpriteCount++
		if p.lineSpriteCount == maxSpritesPerLine {
			break
		}
	}
}

// sortedLineSprites returns the selected sprites ordered by (X ascending,
// OAM index ascending). The compositor walks the result in reverse so the
// highest-priority sprite is written last. Insertion sort keeps the hot
// path allocation free; the list never exceeds ten entries.
func (p *PPU) sortedLineSprites(out *[maxSpritesPerLine]sprite) int {
	n := p.lineSpriteCount
	for i := 0; i < n; i++ {
		s := p.spriteAt(p.lineSprites[i])
		j := i
		for j > 0 && (out[j-1].x > s.x || (out[j-1].x == s.x && out[j-1].index > s.index)) {
			out[j] = out[j-1]
			j--
		}
		out[j] = s
	}
	return n
}
