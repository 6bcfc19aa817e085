package emu

import "image"

// LCDC register bits.
const (
	LCDCEnable        uint8 = 0x80
	LCDCWindowTileMap uint8 = 0x40
	LCDCWindowEnable  uint8 = 0x20
	LCDCBGTileData    uint8 = 0x10
	LCDCBGTileMap     uint8 = 0x08
	LCDCObjSize       uint8 = 0x04
	LCDCObjEnable     uint8 = 0x02
	LCDCBGEnable      uint8 = 0x01
)

// STAT register bits. The mode and LYC-match bits are read-only on the
// bus; bit 7 reads as 1.
const (
	STATLYCInterrupt    uint8 = 0x40
	STATOAMInterrupt    uint8 = 0x20
	STATVBlankInterrupt uint8 = 0x10
	STATHBlankInterrupt uint8 = 0x08
	STATLYCEqualsLY     uint8 = 0x04
	STATModeMask        uint8 = 0x03
)

// PPU modes.
const (
	ModeHBlank  uint8 = 0
	ModeVBlank  uint8 = 1
	ModeOAMScan uint8 = 2
	ModeDrawing uint8 = 3
)

const (
	dotsPerLine  = 456
	linesPerFrame = 154
	oamScanDots  = 80

	// FrameTCycles is the length of a whole frame in T-states.
	FrameTCycles = dotsPerLine * linesPerFrame
)

// PPU is the picture processor: VRAM, OAM, the LCD registers, and a
// dot-clocked mode machine that renders one pixel per T-state through
// the fetcher and pixel FIFOs in ppu_fifo.go.
type PPU struct {
	tileData [0x1800]uint8 // 0x8000-0x97FF
	bgMap1   [0x400]uint8  // 0x9800-0x9BFF
	bgMap2   [0x400]uint8  // 0x9C00-0x9FFF
	oam      [0xA0]uint8   // 0xFE00-0xFE9F

	lcdc uint8
	stat uint8
	scy  uint8
	scx  uint8
	ly   uint8
	lyc  uint8
	wy   uint8
	wx   uint8
	bgp  uint8
	obp0 uint8
	obp1 uint8

	dot  int // T-state within the current line, 0..455
	mode uint8

	// Mode 2 results: visible sprites ordered by (xpos, OAM index).
	sprites     [10]oamEntry
	spriteCount int
	spriteNext  int // next sprite to fetch during mode 3

	// Mode 3 state
	lx           int // next output x; negative while discarding SCX%8
	insideWindow bool
	windowDrawn  bool
	wyPassed     bool // LY has matched WY this frame
	windowLine   int

	bgFIFO     pixelFIFO
	spriteFIFO spriteFIFO
	fetcher    fetcher

	statLine   bool // level of the STAT interrupt line
	pendingIRQ uint8

	front *Frame
	back  *Frame
}

// NewPPU returns a PPU at the top of a frame.
func NewPPU() *PPU {
	p := &PPU{
		front: &Frame{},
		back:  &Frame{},
	}
	p.mode = ModeOAMScan
	p.stat = ModeOAMScan
	return p
}

// Frame returns the most recently completed frame. The pointer is
// stable until the next VBlank flip.
func (p *PPU) Frame() *Frame { return p.front }

// Clock implements Chip: bus IO once per M-cycle, then four dots.
func (p *PPU) Clock(out PinsOut, data *uint8, irq *uint8) {
	p.performIO(out, data)
	for i := 0; i < 4; i++ {
		p.tick()
	}
	*irq |= p.pendingIRQ
	p.pendingIRQ = 0
}

// WriteOAM stores a byte into OAM directly, bypassing the bus. Used by
// the OAM DMA engine.
func (p *PPU) WriteOAM(off uint8, v uint8) {
	p.oam[off] = v
}

// Peek reads VRAM without bus side effects (OAM DMA).
func (p *PPU) Peek(addr uint16) uint8 {
	switch {
	case addr >= 0x8000 && addr <= 0x97FF:
		return p.tileData[addr-0x8000]
	case addr >= 0x9800 && addr <= 0x9BFF:
		return p.bgMap1[addr-0x9800]
	case addr >= 0x9C00 && addr <= 0x9FFF:
		return p.bgMap2[addr-0x9C00]
	}
	return 0xFF
}

// performIO services a CPU access to VRAM, OAM or an LCD register.
func (p *PPU) performIO(out PinsOut, data *uint8) {
	addr := out.Addr
	if out.IsRead {
		switch {
		case addr >= 0x8000 && addr <= 0x97FF:
			*data = p.tileData[addr-0x8000]
		case addr >= 0x9800 && addr <= 0x9BFF:
			*data = p.bgMap1[addr-0x9800]
		case addr >= 0x9C00 && addr <= 0x9FFF:
			*data = p.bgMap2[addr-0x9C00]
		case addr >= 0xFE00 && addr <= 0xFE9F:
			*data = p.oam[addr-0xFE00]
		case addr >= 0xFF40 && addr <= 0xFF4B:
			*data = p.readRegister(addr)
		}
		return
	}
	switch {
	case addr >= 0x8000 && addr <= 0x97FF:
		p.tileData[addr-0x8000] = out.Data
	case addr >= 0x9800 && addr <= 0x9BFF:
		p.bgMap1[addr-0x9800] = out.Data
	case addr >= 0x9C00 && addr <= 0x9FFF:
		p.bgMap2[addr-0x9C00] = out.Data
	case addr >= 0xFE00 && addr <= 0xFE9F:
		p.oam[addr-0xFE00] = out.Data
	case addr >= 0xFF40 && addr <= 0xFF4B:
		p.writeRegister(addr, out.Data)
	}
}

func (p *PPU) readRegister(addr uint16) uint8 {
	switch addr {
	case 0xFF40:
		return p.lcdc
	case 0xFF41:
		return p.stat | 0x80
	case 0xFF42:
		return p.scy
	case 0xFF43:
		return p.scx
	case 0xFF44:
		return p.ly
	case 0xFF45:
		return p.lyc
	case 0xFF47:
		return p.bgp
	case 0xFF48:
		return p.obp0
	case 0xFF49:
		return p.obp1
	case 0xFF4A:
		return p.wy
	case 0xFF4B:
		return p.wx
	}
	return 0xFF
}

func (p *PPU) writeRegister(addr uint16, v uint8) {
	switch addr {
	case 0xFF40:
		p.lcdc = v
	case 0xFF41:
		p.stat = p.stat&0x07 | v&0x78
		p.updateSTATLine()
	case 0xFF42:
		p.scy = v
	case 0xFF43:
		p.scx = v
	case 0xFF44:
		p.setLY(v)
	case 0xFF45:
		p.lyc = v
		p.setLY(p.ly)
	case 0xFF47:
		p.bgp = v
	case 0xFF48:
		p.obp0 = v
	case 0xFF49:
		p.obp1 = v
	case 0xFF4A:
		p.wy = v
	case 0xFF4B:
		p.wx = v
	}
}

// setLY updates LY and the LYC comparison flag.
func (p *PPU) setLY(ly uint8) {
	p.ly = ly
	if p.ly == p.lyc {
		p.stat |= STATLYCEqualsLY
	} else {
		p.stat &^= STATLYCEqualsLY
	}
	p.updateSTATLine()
}

// setMode updates the mode bits in STAT.
func (p *PPU) setMode(mode uint8) {
	p.mode = mode
	p.stat = p.stat&^STATModeMask | mode
	p.updateSTATLine()
}

// updateSTATLine recomputes the level-triggered STAT interrupt line and
// requests the interrupt on a rising edge.
func (p *PPU) updateSTATLine() {
	var line bool
	switch p.mode {
	case ModeHBlank:
		line = p.stat&STATHBlankInterrupt != 0
	case ModeVBlank:
		line = p.stat&STATVBlankInterrupt != 0
	case ModeOAMScan:
		line = p.stat&STATOAMInterrupt != 0
	}
	if p.stat&STATLYCInterrupt != 0 && p.stat&STATLYCEqualsLY != 0 {
		line = true
	}
	if line && !p.statLine {
		p.pendingIRQ |= 1 << IntBitStat
	}
	p.statLine = line
}

// tick advances the mode machine by one T-state.
func (p *PPU) tick() {
	switch p.mode {
	case ModeOAMScan:
		if p.dot == 0 {
			// Line start: latch the WY match and empty the sprite
			// buffer before the scan.
			if p.ly == p.wy {
				p.wyPassed = true
			}
			p.spriteCount = 0
		}
		if p.dot%2 == 0 {
			p.scanOAMEntry(p.dot / 2)
		}
		if p.dot == oamScanDots-1 {
			p.beginDrawing()
		}
	case ModeDrawing:
		p.tickDrawing()
	}

	p.dot++
	if p.dot == dotsPerLine {
		p.dot = 0
		p.endLine()
	}
}

// beginDrawing enters mode 3: reset the fetcher to background mode and
// arrange for the first SCX%8 pixels to be discarded.
func (p *PPU) beginDrawing() {
	p.setMode(ModeDrawing)
	p.bgFIFO.clear()
	p.spriteFIFO.clear()
	p.fetcher.reset(false)
	p.lx = -int(p.scx % 8)
	p.insideWindow = false
	p.spriteNext = 0
}

// endLine advances to the next scanline at dot 456.
func (p *PPU) endLine() {
	if p.windowDrawn {
		p.windowLine++
		p.windowDrawn = false
	}

	if p.ly < ScreenHeight-1 {
		p.setLY(p.ly + 1)
		p.setMode(ModeOAMScan)
		return
	}
	if p.ly == ScreenHeight-1 {
		// Entering VBlank: flip the frame buffers and request the
		// interrupt once.
		p.setLY(p.ly + 1)
		p.setMode(ModeVBlank)
		p.front, p.back = p.back, p.front
		p.pendingIRQ |= 1 << IntBitVBlank
		return
	}
	if p.ly == 153 {
		p.setLY(0)
		p.windowLine = 0
		p.wyPassed = false
		p.setMode(ModeOAMScan)
		return
	}
	p.setLY(p.ly + 1)
}

// TileDataImage renders the whole tile data block through BGP into an
// image, 16 tiles per row. Debug aid.
func (p *PPU) TileDataImage() *image.RGBA {
	const tilesPerRow = 16
	tiles := len(p.tileData) / 16
	rows := tiles / tilesPerRow
	img := image.NewRGBA(image.Rect(0, 0, tilesPerRow*8, rows*8))
	for t := 0; t < tiles; t++ {
		bx := (t % tilesPerRow) * 8
		by := (t / tilesPerRow) * 8
		for y := 0; y < 8; y++ {
			lo := p.tileData[t*16+2*y]
			hi := p.tileData[t*16+2*y+1]
			for x := 0; x < 8; x++ {
				bit := uint(7 - x)
				pix := (hi>>bit)&1<<1 | (lo>>bit)&1
				c := Colors[PaletteColorID(p.bgp, pix)]
				i := img.PixOffset(bx+x, by+y)
				img.Pix[i+0] = uint8(c)
				img.Pix[i+1] = uint8(c >> 8)
				img.Pix[i+2] = uint8(c >> 16)
				img.Pix[i+3] = uint8(c >> 24)
			}
		}
	}
	return img
}
