package video

// DebugTiles renders the first 360 tiles of tile data as a 20x18 grid,
// exactly filling one frame. The front-end uses it as a VRAM viewer; the
// current background palette is applied so tiles look as they would in
// the scene.
func (p *PPU) DebugTiles() *FrameBuffer {
	fb := NewFrameBuffer()

	for tile := 0; tile < 360; tile++ {
		baseX := (tile % 20) * 8
		baseY := (tile / 20) * 8
		offset := uint16(tile) * 16

		for row := 0; row < 8; row++ {
			low := p.vram[offset+uint16(row*2)]
			high := p.vram[offset+uint16(row*2)+1]
			for column := 0; column < 8; column++ {
				pixel := pixelFrom(low, high, column)
				fb.SetPixel(baseX+column, baseY+row, ShadeToColor(shade(p.bgp, pixel)))
			}
		}
	}
	return fb
}
