package emu

// Gameboy owns the CPU and every chip on the bus. Clock is the only
// mutation entry point: it runs one M-cycle, passing the CPU's pin
// output through each chip in a fixed order and assembling the CPU's
// next input from the data line and the interrupt registers.
type Gameboy struct {
	cpu    *CPU
	ppu    *PPU
	mem    *Memory
	cart   *Cart
	timer  *Timer
	joypad *Joypad

	chips [5]Chip

	ie  uint8 // interrupt enable, 0xFFFF
	ifr uint8 // interrupt flags, 0xFF0F

	cpuIn PinsIn

	// OAM DMA engine: one byte per M-cycle for 160 cycles. While it
	// runs the CPU sees 0xFF everywhere but high RAM.
	dmaSource uint8
	dmaIdx    int
	dmaActive bool

	serialData uint8 // scratch serial data register, 0xFF01
}

// ClockDebug reports what one M-cycle did, for steppers and test ROMs.
type ClockDebug struct {
	IsFetchCycle bool   // this cycle drove an opcode fetch
	Opcode       uint16 // opcode decoded this cycle; CB-prefixed as 0xCBxx
	OpcodeValid  bool
	SerialByte   uint8 // byte written to the serial data register
	SerialValid  bool
}

// New builds a Gameboy around the given cartridge image. The mapper is
// selected by ROM header byte 0x147; unknown mappers fail here.
func New(rom []byte) (*Gameboy, error) {
	cart, err := NewCart(rom)
	if err != nil {
		return nil, err
	}
	g := &Gameboy{
		cpu:    NewCPU(),
		ppu:    NewPPU(),
		mem:    NewMemory(),
		cart:   cart,
		timer:  &Timer{},
		joypad: NewJoypad(),
	}
	g.chips = [5]Chip{g.ppu, g.mem, g.cart, g.timer, g.joypad}
	return g, nil
}

// Reset returns the CPU to the cartridge entry point and clears the
// interrupt registers.
func (g *Gameboy) Reset() {
	g.cpu.Reset()
	g.ie = 0
	g.ifr = 0
	g.cpuIn = PinsIn{}
	g.dmaActive = false
}

// CPU exposes the processor for tests and save states.
func (g *Gameboy) CPU() *CPU { return g.cpu }

// PPU exposes the picture processor for tests and save states.
func (g *Gameboy) PPU() *PPU { return g.ppu }

// Cart exposes the cartridge, e.g. for battery RAM persistence.
func (g *Gameboy) Cart() *Cart { return g.cart }

// Frame returns the most recently completed frame.
func (g *Gameboy) Frame() *Frame { return g.ppu.Frame() }

// Press pushes a button down. Serialized with Clock by the caller.
func (g *Gameboy) Press(b Button) { g.joypad.Press(b) }

// Release lets a button up.
func (g *Gameboy) Release(b Button) { g.joypad.Release(b) }

// Clock advances the whole machine by one M-cycle.
func (g *Gameboy) Clock() ClockDebug {
	out := g.cpu.Clock(g.cpuIn)

	var dbg ClockDebug

	// Every chip observes the same bus operation; the data accumulator
	// starts at the open-bus value and only the selected chip drives it.
	data := uint8(0xFF)
	irq := g.ifr
	for _, chip := range g.chips {
		chip.Clock(out, &data, &irq)
	}
	g.ifr = irq & 0x1F

	// IE, IF and the serial scratch register live at the top level.
	if !out.IsRead {
		switch out.Addr {
		case 0xFF01:
			g.serialData = out.Data
			dbg.SerialByte = out.Data
			dbg.SerialValid = true
		case 0xFF0F:
			g.ifr = out.Data & 0x1F
		case 0xFF46:
			g.startDMA(out.Data)
		case 0xFFFF:
			g.ie = out.Data & 0x1F
		}
	}

	// Vector dispatch clears the acknowledged IF bit.
	if ack := g.cpu.TakeIRQAck(); ack >= 0 {
		g.ifr &^= 1 << ack
	}

	g.stepDMA()

	if out.IsRead {
		switch out.Addr {
		case 0xFF01:
			data = g.serialData
		case 0xFF0F:
			data = g.ifr | 0xE0
		case 0xFF46:
			data = g.dmaSource
		case 0xFFFF:
			data = g.ie
		}
		if g.dmaActive && !(out.Addr >= 0xFF80 && out.Addr <= 0xFFFE) {
			data = 0xFF
		}
	}

	sig := g.ie & g.ifr
	g.cpuIn = PinsIn{
		Data:      data,
		IntVBlank: sig&(1<<IntBitVBlank) != 0,
		IntStat:   sig&(1<<IntBitStat) != 0,
		IntTimer:  sig&(1<<IntBitTimer) != 0,
		IntSerial: sig&(1<<IntBitSerial) != 0,
		IntJoypad: sig&(1<<IntBitJoypad) != 0,
	}

	dbg.IsFetchCycle = g.cpu.FetchCycle()
	dbg.Opcode, dbg.OpcodeValid = g.cpu.DecodedOpcode()
	return dbg
}

// StepInstruction clocks until the current instruction fetches its
// successor, leaving the machine at an instruction boundary.
func (g *Gameboy) StepInstruction() ClockDebug {
	for {
		if dbg := g.Clock(); dbg.IsFetchCycle {
			return dbg
		}
	}
}

// startDMA begins a 160-cycle OAM copy from page data<<8.
func (g *Gameboy) startDMA(page uint8) {
	g.dmaSource = page
	g.dmaIdx = 0
	g.dmaActive = true
}

// stepDMA copies one byte per M-cycle into OAM.
func (g *Gameboy) stepDMA() {
	if !g.dmaActive {
		return
	}
	addr := uint16(g.dmaSource)<<8 + uint16(g.dmaIdx)
	g.ppu.WriteOAM(uint8(g.dmaIdx), g.peek(addr))
	g.dmaIdx++
	if g.dmaIdx == 160 {
		g.dmaActive = false
	}
}

// peek reads a bus address without clocking any chip. The DMA engine
// uses it so the copy does not disturb chip timing.
func (g *Gameboy) peek(addr uint16) uint8 {
	switch {
	case addr < 0x8000, addr >= 0xA000 && addr < 0xC000:
		return g.cart.Peek(addr)
	case addr >= 0x8000 && addr < 0xA000:
		return g.ppu.Peek(addr)
	default:
		return g.mem.Peek(addr)
	}
}

// IE returns the interrupt-enable register. Test and save-state hook.
func (g *Gameboy) IE() uint8 { return g.ie }

// IF returns the interrupt-flag register. Test and save-state hook.
func (g *Gameboy) IF() uint8 { return g.ifr }

// SetIE sets the interrupt-enable register.
func (g *Gameboy) SetIE(v uint8) { g.ie = v & 0x1F }

// SetIF sets the interrupt-flag register.
func (g *Gameboy) SetIF(v uint8) { g.ifr = v & 0x1F }
