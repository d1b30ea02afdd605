package video

// GBColor is a packed 0xRRGGBBAA pixel.
type GBColor uint32

const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
	FramebufferSize   = FramebufferWidth * FramebufferHeight
)

// The classic green-tinted DMG palette.
const (
	LightestColor GBColor = 0xE0F8D0FF // color 0 (224,248,208)
	LightColor    GBColor = 0x88C070FF // color 1 (136,192,112)
	DarkColor     GBColor = 0x346856FF // color 2 (52,104,86)
	DarkestColor  GBColor = 0x081820FF // color 3 (8,24,32)
)

// ShadeToColor maps a palette shade (0-3) to its display color.
func ShadeToColor(shade byte) GBColor {
	switch shade {
	case 0:
		return LightestColor
	case 1:
		return LightColor
	case 2:
		return DarkColor
	case 3:
		return DarkestColor
	}
	return LightestColor
}

// FrameBuffer is one 160x144 RGBA frame in row-major, top-left order.
type FrameBuffer struct {
	buffer []uint32
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{buffer: make([]uint32, FramebufferSize)}
}

func (fb *FrameBuffer) GetPixel(x, y int) uint32 {
	return fb.buffer[y*FramebufferWidth+x]
}

func (fb *FrameBuffer) SetPixel(x, y int, color GBColor) {
	fb.buffer[y*FramebufferWidth+x] = uint32(color)
}

// ToSlice exposes the raw packed pixels.
func (fb *FrameBuffer) ToSlice() []uint32 {
	return fb.buffer
}

// Clear fills the frame with the lightest shade, the color of a blank LCD.
func (fb *FrameBuffer) Clear() {
	for i := range fb.buffer {
		fb.buffer[i] = uint32(LightestColor)
	}
}

// ToRGBA returns the frame as a contiguous 160x144x4 RGBA byte array.
func (fb *FrameBuffer) ToRGBA() []byte {
	data := make([]byte, len(fb.buffer)*4)
	for i, pixel := range fb.buffer {
		data[i*4] = byte(pixel >> 24)
		data[i*4+1] = byte(pixel >> 16)
		data[i*4+2] = byte(pixel >> 8)
		data[i*4+3] = byte(pixel)
	}
	return data
}

// ToShades converts the frame back to palette shades (0-3), which makes
// test comparisons independent of the display palette.
func (fb *FrameBuffer) ToShades() []byte {
	data := make([]byte, len(fb.buffer))
	for i, pixel := range fb.buffer {
		switch GBColor(pixel) {
		case LightestColor:
			data[i] = 0
		case LightColor:
			data[i] = 1
		case DarkColor:
			data[i] = 2
		case DarkestColor:
			data[i] = 3
		}
	}
	return data
}
