package emu

// pixel is one entry in a pixel FIFO: a 2-bit color plus, for sprite
// pixels, the palette select and background-priority flag.
type pixel struct {
	color      uint8
	obp1       bool
	bgPriority bool
}

// pixelFIFO is the background/window FIFO. The fetcher keeps it more
// than eight pixels deep; pixels only shift out while a full tile is
// banked up behind them.
type pixelFIFO struct {
	pix  [16]pixel
	head int
	n    int
}

func (q *pixelFIFO) clear() {
	q.head = 0
	q.n = 0
}

func (q *pixelFIFO) push(p pixel) {
	q.pix[(q.head+q.n)%len(q.pix)] = p
	q.n++
}

func (q *pixelFIFO) pop() (pixel, bool) {
	if q.n <= 8 {
		return pixel{}, false
	}
	p := q.pix[q.head]
	q.head = (q.head + 1) % len(q.pix)
	q.n--
	return p, true
}

// spriteFIFO holds up to eight sprite pixels aligned with the current
// output position. Popping past the end yields transparent pixels.
type spriteFIFO struct {
	pix [8]pixel
	n   int
}

func (q *spriteFIFO) clear() { q.n = 0 }

func (q *spriteFIFO) pop() pixel {
	if q.n == 0 {
		return pixel{}
	}
	p := q.pix[0]
	copy(q.pix[:], q.pix[1:q.n])
	q.n--
	return p
}

// merge lays a fetched sprite row into the FIFO. offset clips pixels
// that already scrolled past the output position (sprites overhanging
// the left edge). Pixels already in the FIFO win unless transparent,
// which realizes the DMG rule that the lower-xpos sprite (loaded first)
// has priority.
func (q *spriteFIFO) merge(row [8]pixel, offset int) {
	for i := offset; i < len(row); i++ {
		slot := i - offset
		if slot < q.n {
			if q.pix[slot].color == 0 {
				q.pix[slot] = row[i]
			}
		} else {
			q.pix[q.n] = row[i]
			q.n++
		}
	}
}

// fetcher walks the tile maps and tile data, producing eight pixels
// every four steps (two dots per step). It is borrowed for sprite rows
// while a sprite fetch is in progress.
type fetcher struct {
	step    int
	x       uint8 // tile counter within the line
	window  bool
	tileNo  uint8
	rowAddr int
	lo      uint8
	hi      uint8

	spriteMode bool
	sprite     oamEntry
	sLo        uint8
}

// reset restarts the fetcher at the left edge of the background or, for
// window mode, the window.
func (f *fetcher) reset(window bool) {
	f.step = 0
	f.x = 0
	f.window = window
	f.spriteMode = false
}

// tickDrawing advances mode 3 by one dot: run the fetcher, trigger
// sprite fetches, and shift one pixel out of the FIFOs.
func (p *PPU) tickDrawing() {
	if p.fetcher.spriteMode {
		if p.dot%2 == 0 {
			p.fetcherStepSprite()
		}
		return
	}

	// A buffered sprite whose leftmost pixel has reached the output
	// position stalls the pipe while its row is fetched.
	if p.lcdc&LCDCObjEnable != 0 && p.spriteNext < p.spriteCount {
		if s := p.sprites[p.spriteNext]; int(s.xpos)-8 <= p.lx {
			p.spriteNext++
			p.fetcher.spriteMode = true
			p.fetcher.sprite = s
			p.fetcher.step = 0
			return
		}
	}

	// Window entry: once WY has been reached and the output position
	// hits WX-7, restart the fetcher on the window map.
	if !p.insideWindow && p.lcdc&LCDCWindowEnable != 0 && p.wyPassed &&
		p.lx >= int(p.wx)-7 {
		p.insideWindow = true
		p.bgFIFO.clear()
		p.fetcher.reset(true)
	}

	if p.dot%2 == 0 {
		p.fetcherStepBG()
	}
	if pix, ok := p.bgFIFO.pop(); ok {
		p.outputPixel(pix)
	}
}

// outputPixel mixes a background pixel with the sprite FIFO and writes
// the result to the back frame.
func (p *PPU) outputPixel(bg pixel) {
	// The sprite FIFO stays aligned with the output position, so it
	// drains even while the SCX fine-scroll pixels are discarded.
	sp := p.spriteFIFO.pop()

	if p.lx >= 0 {
		bgColor := bg.color
		if p.lcdc&LCDCBGEnable == 0 {
			bgColor = 0
		}

		var c uint32
		if sp.color != 0 && (!sp.bgPriority || bgColor == 0) {
			pal := p.obp0
			if sp.obp1 {
				pal = p.obp1
			}
			c = Colors[PaletteColorID(pal, sp.color)]
		} else {
			c = Colors[PaletteColorID(p.bgp, bgColor)]
		}
		p.back.set(p.lx, int(p.ly), c)

		if p.insideWindow {
			p.windowDrawn = true
		}
	}

	p.lx++
	if p.lx >= ScreenWidth {
		p.setMode(ModeHBlank)
		p.bgFIFO.clear()
		p.spriteFIFO.clear()
	}
}

// fetcherStepBG advances the background/window fetch state machine by
// one step: tile number, data low, data high, push.
func (p *PPU) fetcherStepBG() {
	f := &p.fetcher
	switch f.step {
	case 0:
		f.tileNo = p.fetchTileNumber()
		f.step = 1
	case 1:
		f.rowAddr = p.tileRowAddr(f.tileNo)
		f.lo = p.tileData[f.rowAddr]
		f.step = 2
	case 2:
		f.hi = p.tileData[f.rowAddr+1]
		f.step = 3
	case 3:
		// Push once there is room for a whole tile row.
		if p.bgFIFO.n <= 8 {
			p.pushTileRow(f.lo, f.hi)
			f.x++
			f.step = 0
		}
	}
}

// pushTileRow expands a pair of bitplane bytes into eight pixels.
func (p *PPU) pushTileRow(lo, hi uint8) {
	for bit := 7; bit >= 0; bit-- {
		p.bgFIFO.push(pixel{
			color: (hi>>bit)&1<<1 | (lo>>bit)&1,
		})
	}
}

// fetchTileNumber reads the tile index for the fetcher's position from
// the selected tile map.
func (p *PPU) fetchTileNumber() uint8 {
	var mapSel uint8
	var off uint16
	if p.fetcher.window {
		mapSel = p.lcdc & LCDCWindowTileMap
		off = uint16(p.windowLine/8)*32 + uint16(p.fetcher.x)
	} else {
		mapSel = p.lcdc & LCDCBGTileMap
		y := p.ly + p.scy
		off = uint16(y/8)*32 + (uint16(p.scx/8)+uint16(p.fetcher.x))&0x1F
	}
	off &= 0x3FF
	if mapSel != 0 {
		return p.bgMap2[off]
	}
	return p.bgMap1[off]
}

// tileRowAddr returns the tile-data offset of the fetched row, honoring
// the signed addressing mode selected by LCDC.
func (p *PPU) tileRowAddr(tileNo uint8) int {
	var base int
	if p.lcdc&LCDCBGTileData != 0 {
		base = int(tileNo) * 16
	} else {
		base = 0x1000 + int(int8(tileNo))*16
	}
	var row int
	if p.fetcher.window {
		row = p.windowLine % 8
	} else {
		row = int(p.ly+p.scy) % 8
	}
	return base + 2*row
}

// fetcherStepSprite fetches the current sprite's row and merges it into
// the sprite FIFO: address, data low, data high + merge.
func (p *PPU) fetcherStepSprite() {
	f := &p.fetcher
	switch f.step {
	case 0:
		f.rowAddr = p.spriteRowAddr(f.sprite)
		f.step = 1
	case 1:
		f.sLo = p.tileData[f.rowAddr]
		f.step = 2
	default:
		sHi := p.tileData[f.rowAddr+1]
		var row [8]pixel
		for i := 0; i < 8; i++ {
			bit := uint(7 - i)
			if f.sprite.xFlip() {
				bit = uint(i)
			}
			row[i] = pixel{
				color:      (sHi>>bit)&1<<1 | (f.sLo>>bit)&1,
				obp1:       f.sprite.obp1(),
				bgPriority: f.sprite.bgPriority(),
			}
		}
		offset := 0
		if start := int(f.sprite.xpos) - 8; start < p.lx {
			offset = p.lx - start
		}
		p.spriteFIFO.merge(row, offset)
		f.spriteMode = false
		f.step = 0
	}
}

// spriteRowAddr returns the tile-data offset of the sprite's row on the
// current scanline, honoring Y-flip and 8x16 tile pairing. Sprite tiles
// always use unsigned 0x8000 addressing.
func (p *PPU) spriteRowAddr(s oamEntry) int {
	height := p.spriteHeight()
	row := p.ly + 16 - s.ypos
	if s.yFlip() {
		row = height - 1 - row
	}
	tile := s.tile
	if height == 16 {
		tile &= 0xFE
	}
	return int(tile)*16 + int(row)*2
}
