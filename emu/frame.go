package emu

import "image"

// Screen dimensions of the DMG LCD.
const (
	ScreenWidth  = 160
	ScreenHeight = 144
)

// The four DMG shades as RGBA32 values (little-endian byte order
// R,G,B,A), indexed by the 2-bit color id after palette translation.
const (
	ColorWhite     uint32 = 0xFFFFFFFF
	ColorLightGray uint32 = 0xFFAAAAAA
	ColorDarkGray  uint32 = 0xFF777777
	ColorBlack     uint32 = 0xFF000000
)

// Colors maps a translated color id to its RGBA32 value.
var Colors = [4]uint32{ColorWhite, ColorLightGray, ColorDarkGray, ColorBlack}

// PaletteColorID translates a 2-bit pixel color through a palette
// register (BGP, OBP0 or OBP1).
func PaletteColorID(palette uint8, pix uint8) uint8 {
	return (palette >> (pix * 2)) & 0x03
}

// Frame is one completed 160x144 picture, row-major, one RGBA32 value
// per pixel.
type Frame struct {
	Pix [ScreenWidth * ScreenHeight]uint32
}

// At returns the pixel at (x, y).
func (f *Frame) At(x, y int) uint32 {
	return f.Pix[y*ScreenWidth+x]
}

func (f *Frame) set(x, y int, c uint32) {
	f.Pix[y*ScreenWidth+x] = c
}

// WriteRGBA serializes the frame into dst as little-endian RGBA bytes,
// the layout ebiten's WritePixels and image.RGBA expect. dst must hold
// at least 160*144*4 bytes.
func (f *Frame) WriteRGBA(dst []byte) {
	for i, p := range f.Pix {
		dst[i*4+0] = uint8(p)
		dst[i*4+1] = uint8(p >> 8)
		dst[i*4+2] = uint8(p >> 16)
		dst[i*4+3] = uint8(p >> 24)
	}
}

// Image converts the frame to an image.RGBA.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	f.WriteRGBA(img.Pix)
	return img
}
