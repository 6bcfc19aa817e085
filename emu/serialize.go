package emu

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Save state format constants
const (
	stateVersion    = 1
	stateMagic      = "GBEMUSAVSTATE"
	stateHeaderSize = 23 // magic(13) + version(2) + romCRC(4) + dataCRC(4)
)

// ROMCRC32 returns the CRC32 of the loaded ROM image, used to pair save
// states with the right cartridge.
func (c *Cart) ROMCRC32() uint32 {
	return crc32.ChecksumIEEE(c.rom)
}

// SerializeSize returns the byte size of a save state.
func (g *Gameboy) SerializeSize() int {
	return stateHeaderSize +
		12 + // CPU registers
		6 + // CPU execution flags
		6 + // latched CPU input pins
		6 + // IE/IF, DMA, serial
		0x2000 + 0x7F + // WRAM + HRAM
		0x2000 + 4 + // cart RAM + MBC1 control
		5 + // timer
		9 + // joypad
		ppuStateSize
}

const ppuStateSize = 0x1800 + 0x400 + 0x400 + 0xA0 + // memories
	11 + // registers
	3 + // dot, mode
	10*5 + 2 + // sprite buffer
	2 + // lx
	3 + // insideWindow, windowDrawn, wyPassed
	2 + // windowLine
	2 + // statLine, pendingIRQ
	16 + 2 + // bg FIFO
	8 + 1 + // sprite FIFO
	15 // fetcher

// Serialize creates a save state. The machine is first advanced to the
// next instruction boundary so the CPU's execution-phase cursor does not
// need to be captured.
func (g *Gameboy) Serialize() ([]byte, error) {
	for g.cpu.qLen != 0 && !g.cpu.trapped {
		g.Clock()
	}

	data := make([]byte, g.SerializeSize())
	copy(data[0:13], stateMagic)
	binary.LittleEndian.PutUint16(data[13:15], stateVersion)
	binary.LittleEndian.PutUint32(data[15:19], g.cart.ROMCRC32())

	offset := stateHeaderSize
	offset = g.serializeCPU(data, offset)
	offset = g.serializeBus(data, offset)
	offset = g.serializeMemory(data, offset)
	offset = g.serializeCart(data, offset)
	offset = g.serializeTimer(data, offset)
	offset = g.serializeJoypad(data, offset)
	g.serializePPU(data, offset)

	crc := crc32.ChecksumIEEE(data[stateHeaderSize:])
	binary.LittleEndian.PutUint32(data[19:23], crc)
	return data, nil
}

// Deserialize restores a save state created by Serialize.
func (g *Gameboy) Deserialize(data []byte) error {
	if err := g.VerifyState(data); err != nil {
		return err
	}

	offset := stateHeaderSize
	offset = g.deserializeCPU(data, offset)
	offset = g.deserializeBus(data, offset)
	offset = g.deserializeMemory(data, offset)
	offset = g.deserializeCart(data, offset)
	offset = g.deserializeTimer(data, offset)
	offset = g.deserializeJoypad(data, offset)
	g.deserializePPU(data, offset)

	// The state was taken at an instruction boundary: an empty micro-op
	// queue plus the latched input pins resume execution exactly.
	g.cpu.qHead = 0
	g.cpu.qLen = 0
	return nil
}

// VerifyState checks a save state without loading it.
func (g *Gameboy) VerifyState(data []byte) error {
	if len(data) < g.SerializeSize() {
		return errors.New("save state too short")
	}
	if string(data[0:13]) != stateMagic {
		return errors.New("invalid save state magic")
	}
	if binary.LittleEndian.Uint16(data[13:15]) > stateVersion {
		return errors.New("unsupported save state version")
	}
	if binary.LittleEndian.Uint32(data[15:19]) != g.cart.ROMCRC32() {
		return errors.New("save state is for a different ROM")
	}
	expected := binary.LittleEndian.Uint32(data[19:23])
	if expected != crc32.ChecksumIEEE(data[stateHeaderSize:]) {
		return errors.New("save state data is corrupted")
	}
	return nil
}

func putBool(data []byte, offset int, v bool) int {
	if v {
		data[offset] = 1
	} else {
		data[offset] = 0
	}
	return offset + 1
}

func getBool(data []byte, offset int) (bool, int) {
	return data[offset] != 0, offset + 1
}

func (g *Gameboy) serializeCPU(data []byte, offset int) int {
	r := &g.cpu.reg
	for _, b := range [8]uint8{r.A, r.F, r.B, r.C, r.D, r.E, r.H, r.L} {
		data[offset] = b
		offset++
	}
	binary.LittleEndian.PutUint16(data[offset:], r.SP)
	offset += 2
	binary.LittleEndian.PutUint16(data[offset:], r.PC)
	offset += 2

	offset = putBool(data, offset, g.cpu.ime)
	offset = putBool(data, offset, g.cpu.eiPending)
	offset = putBool(data, offset, g.cpu.halted)
	offset = putBool(data, offset, g.cpu.stopped)
	offset = putBool(data, offset, g.cpu.haltBug)
	offset = putBool(data, offset, g.cpu.trapped)

	in := &g.cpuIn
	data[offset] = in.Data
	offset++
	offset = putBool(data, offset, in.IntVBlank)
	offset = putBool(data, offset, in.IntStat)
	offset = putBool(data, offset, in.IntTimer)
	offset = putBool(data, offset, in.IntSerial)
	offset = putBool(data, offset, in.IntJoypad)
	return offset
}

func (g *Gameboy) deserializeCPU(data []byte, offset int) int {
	r := &g.cpu.reg
	r.A, r.F = data[offset], data[offset+1]&0xF0
	r.B, r.C = data[offset+2], data[offset+3]
	r.D, r.E = data[offset+4], data[offset+5]
	r.H, r.L = data[offset+6], data[offset+7]
	offset += 8
	r.SP = binary.LittleEndian.Uint16(data[offset:])
	offset += 2
	r.PC = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	g.cpu.ime, offset = getBool(data, offset)
	g.cpu.eiPending, offset = getBool(data, offset)
	g.cpu.halted, offset = getBool(data, offset)
	g.cpu.stopped, offset = getBool(data, offset)
	g.cpu.haltBug, offset = getBool(data, offset)
	g.cpu.trapped, offset = getBool(data, offset)

	g.cpuIn.Data = data[offset]
	offset++
	g.cpuIn.IntVBlank, offset = getBool(data, offset)
	g.cpuIn.IntStat, offset = getBool(data, offset)
	g.cpuIn.IntTimer, offset = getBool(data, offset)
	g.cpuIn.IntSerial, offset = getBool(data, offset)
	g.cpuIn.IntJoypad, offset = getBool(data, offset)
	return offset
}

func (g *Gameboy) serializeBus(data []byte, offset int) int {
	data[offset] = g.ie
	data[offset+1] = g.ifr
	data[offset+2] = g.dmaSource
	data[offset+3] = uint8(g.dmaIdx)
	offset += 4
	offset = putBool(data, offset, g.dmaActive)
	data[offset] = g.serialData
	return offset + 1
}

func (g *Gameboy) deserializeBus(data []byte, offset int) int {
	g.ie = data[offset]
	g.ifr = data[offset+1]
	g.dmaSource = data[offset+2]
	g.dmaIdx = int(data[offset+3])
	offset += 4
	g.dmaActive, offset = getBool(data, offset)
	g.serialData = data[offset]
	return offset + 1
}

func (g *Gameboy) serializeMemory(data []byte, offset int) int {
	copy(data[offset:], g.mem.wram[:])
	offset += len(g.mem.wram)
	copy(data[offset:], g.mem.hram[:])
	return offset + len(g.mem.hram)
}

func (g *Gameboy) deserializeMemory(data []byte, offset int) int {
	copy(g.mem.wram[:], data[offset:])
	offset += len(g.mem.wram)
	copy(g.mem.hram[:], data[offset:])
	return offset + len(g.mem.hram)
}

func (g *Gameboy) serializeCart(data []byte, offset int) int {
	copy(data[offset:], g.cart.ram[:])
	offset += len(g.cart.ram)
	offset = putBool(data, offset, g.cart.ramEnable)
	data[offset] = g.cart.bankLow
	data[offset+1] = g.cart.bankHigh
	offset += 2
	return putBool(data, offset, g.cart.modeSel)
}

func (g *Gameboy) deserializeCart(data []byte, offset int) int {
	copy(g.cart.ram[:], data[offset:])
	offset += len(g.cart.ram)
	g.cart.ramEnable, offset = getBool(data, offset)
	g.cart.bankLow = data[offset]
	g.cart.bankHigh = data[offset+1]
	offset += 2
	g.cart.modeSel, offset = getBool(data, offset)
	return offset
}

func (g *Gameboy) serializeTimer(data []byte, offset int) int {
	binary.LittleEndian.PutUint16(data[offset:], g.timer.div)
	data[offset+2] = g.timer.tima
	data[offset+3] = g.timer.tma
	data[offset+4] = g.timer.tac
	return offset + 5
}

func (g *Gameboy) deserializeTimer(data []byte, offset int) int {
	g.timer.div = binary.LittleEndian.Uint16(data[offset:])
	g.timer.tima = data[offset+2]
	g.timer.tma = data[offset+3]
	g.timer.tac = data[offset+4]
	return offset + 5
}

func (g *Gameboy) serializeJoypad(data []byte, offset int) int {
	j := g.joypad
	for _, b := range [8]bool{j.up, j.down, j.left, j.right, j.a, j.b, j.selectB, j.start} {
		offset = putBool(data, offset, b)
	}
	data[offset] = j.p1
	return offset + 1
}

func (g *Gameboy) deserializeJoypad(data []byte, offset int) int {
	j := g.joypad
	j.up, offset = getBool(data, offset)
	j.down, offset = getBool(data, offset)
	j.left, offset = getBool(data, offset)
	j.right, offset = getBool(data, offset)
	j.a, offset = getBool(data, offset)
	j.b, offset = getBool(data, offset)
	j.selectB, offset = getBool(data, offset)
	j.start, offset = getBool(data, offset)
	j.p1 = data[offset]
	return offset + 1
}

// packPixel encodes a FIFO pixel as color | obp1<<2 | bgPriority<<3.
func packPixel(p pixel) uint8 {
	v := p.color
	if p.obp1 {
		v |= 1 << 2
	}
	if p.bgPriority {
		v |= 1 << 3
	}
	return v
}

func unpackPixel(v uint8) pixel {
	return pixel{
		color:      v & 0x03,
		obp1:       v&(1<<2) != 0,
		bgPriority: v&(1<<3) != 0,
	}
}

func (g *Gameboy) serializePPU(data []byte, offset int) int {
	p := g.ppu
	copy(data[offset:], p.tileData[:])
	offset += len(p.tileData)
	copy(data[offset:], p.bgMap1[:])
	offset += len(p.bgMap1)
	copy(data[offset:], p.bgMap2[:])
	offset += len(p.bgMap2)
	copy(data[offset:], p.oam[:])
	offset += len(p.oam)

	for _, b := range [11]uint8{p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc, p.wy, p.wx, p.bgp, p.obp0, p.obp1} {
		data[offset] = b
		offset++
	}

	binary.LittleEndian.PutUint16(data[offset:], uint16(p.dot))
	offset += 2
	data[offset] = p.mode
	offset++

	for i := range p.sprites {
		s := p.sprites[i]
		data[offset] = s.ypos
		data[offset+1] = s.xpos
		data[offset+2] = s.tile
		data[offset+3] = s.flags
		data[offset+4] = s.index
		offset += 5
	}
	data[offset] = uint8(p.spriteCount)
	data[offset+1] = uint8(p.spriteNext)
	offset += 2

	binary.LittleEndian.PutUint16(data[offset:], uint16(int16(p.lx)))
	offset += 2
	offset = putBool(data, offset, p.insideWindow)
	offset = putBool(data, offset, p.windowDrawn)
	offset = putBool(data, offset, p.wyPassed)
	binary.LittleEndian.PutUint16(data[offset:], uint16(p.windowLine))
	offset += 2
	offset = putBool(data, offset, p.statLine)
	data[offset] = p.pendingIRQ
	offset++

	for i := range p.bgFIFO.pix {
		data[offset] = packPixel(p.bgFIFO.pix[i])
		offset++
	}
	data[offset] = uint8(p.bgFIFO.head)
	data[offset+1] = uint8(p.bgFIFO.n)
	offset += 2

	for i := range p.spriteFIFO.pix {
		data[offset] = packPixel(p.spriteFIFO.pix[i])
		offset++
	}
	data[offset] = uint8(p.spriteFIFO.n)
	offset++

	f := &p.fetcher
	data[offset] = uint8(f.step)
	data[offset+1] = f.x
	offset += 2
	offset = putBool(data, offset, f.window)
	data[offset] = f.tileNo
	offset++
	binary.LittleEndian.PutUint16(data[offset:], uint16(f.rowAddr))
	offset += 2
	data[offset] = f.lo
	data[offset+1] = f.hi
	offset += 2
	offset = putBool(data, offset, f.spriteMode)
	s := f.sprite
	data[offset] = s.ypos
	data[offset+1] = s.xpos
	data[offset+2] = s.tile
	data[offset+3] = s.flags
	data[offset+4] = s.index
	data[offset+5] = f.sLo
	return offset + 6
}

func (g *Gameboy) deserializePPU(data []byte, offset int) int {
	p := g.ppu
	copy(p.tileData[:], data[offset:])
	offset += len(p.tileData)
	copy(p.bgMap1[:], data[offset:])
	offset += len(p.bgMap1)
	copy(p.bgMap2[:], data[offset:])
	offset += len(p.bgMap2)
	copy(p.oam[:], data[offset:])
	offset += len(p.oam)

	p.lcdc, p.stat = data[offset], data[offset+1]
	p.scy, p.scx = data[offset+2], data[offset+3]
	p.ly, p.lyc = data[offset+4], data[offset+5]
	p.wy, p.wx = data[offset+6], data[offset+7]
	p.bgp, p.obp0, p.obp1 = data[offset+8], data[offset+9], data[offset+10]
	offset += 11

	p.dot = int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	p.mode = data[offset]
	offset++

	for i := range p.sprites {
		p.sprites[i] = oamEntry{
			ypos:  data[offset],
			xpos:  data[offset+1],
			tile:  data[offset+2],
			flags: data[offset+3],
			index: data[offset+4],
		}
		offset += 5
	}
	p.spriteCount = int(data[offset])
	p.spriteNext = int(data[offset+1])
	offset += 2

	p.lx = int(int16(binary.LittleEndian.Uint16(data[offset:])))
	offset += 2
	p.insideWindow, offset = getBool(data, offset)
	p.windowDrawn, offset = getBool(data, offset)
	p.wyPassed, offset = getBool(data, offset)
	p.windowLine = int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	p.statLine, offset = getBool(data, offset)
	p.pendingIRQ = data[offset]
	offset++

	for i := range p.bgFIFO.pix {
		p.bgFIFO.pix[i] = unpackPixel(data[offset])
		offset++
	}
	p.bgFIFO.head = int(data[offset])
	p.bgFIFO.n = int(data[offset+1])
	offset += 2

	for i := range p.spriteFIFO.pix {
		p.spriteFIFO.pix[i] = unpackPixel(data[offset])
		offset++
	}
	p.spriteFIFO.n = int(data[offset])
	offset++

	f := &p.fetcher
	f.step = int(data[offset])
	f.x = data[offset+1]
	offset += 2
	f.window, offset = getBool(data, offset)
	f.tileNo = data[offset]
	offset++
	f.rowAddr = int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	f.lo, f.hi = data[offset], data[offset+1]
	offset += 2
	f.spriteMode, offset = getBool(data, offset)
	f.sprite = oamEntry{
		ypos:  data[offset],
		xpos:  data[offset+1],
		tile:  data[offset+2],
		flags: data[offset+3],
		index: data[offset+4],
	}
	f.sLo = data[offset+5]
	return offset + 6
}
