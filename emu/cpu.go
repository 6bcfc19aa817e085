package emu

import "log"

// microOp is one machine cycle of an instruction. It consumes the data
// byte returned by the previous cycle's bus operation and produces the
// bus operation for this cycle.
type microOp func(c *CPU, data uint8) PinsOut

// CPU is the LR35902 core. Clock advances exactly one M-cycle: it pops
// one micro-op from the current instruction's queue, and when the queue
// is empty the incoming data byte is the opcode fetched by the previous
// instruction's final cycle (fetch/execute overlap). Decoding pushes the
// remaining cycles of the new instruction onto the queue.
type CPU struct {
	reg Registers

	ime       bool // interrupt master enable
	eiPending bool // EI executed, IME set after the next instruction's decode

	halted  bool
	stopped bool
	haltBug bool // next fetch does not advance PC

	trapped bool // undefined opcode executed; CPU holds until reset

	queue [8]microOp
	qHead int
	qLen  int

	op     opcode // opcode of the instruction being executed
	cbOp   opcode // CB-prefixed opcode, when op == 0xCB
	wz     uint16 // internal address/operand latch
	vector uint16 // interrupt vector being dispatched

	// Per-clock observations, read by the bus after each Clock call.
	fetchCycle bool   // this cycle drove an opcode fetch
	decoded    uint16 // opcode decoded this cycle (0xCBxx for CB prefix)
	decodedOK  bool
	irqAck     int // interrupt index acknowledged this cycle, -1 if none
}

// NewCPU returns a CPU ready to fetch its first opcode.
func NewCPU() *CPU {
	c := &CPU{}
	c.Reset()
	return c
}

// Reset places the CPU at the cartridge entry point: PC=0x0100,
// SP=0xFFFE, IME off, first opcode fetch pending.
func (c *CPU) Reset() {
	*c = CPU{}
	c.reg.PC = 0x0100
	c.reg.SP = 0xFFFE
	c.irqAck = -1
	c.enq(opBootFetch)
}

// Registers returns a copy of the register file.
func (c *CPU) Registers() Registers { return c.reg }

// SetRegisters replaces the register file. Test and save-state hook.
func (c *CPU) SetRegisters(r Registers) {
	c.reg = r
	c.reg.F &= 0xF0
}

// IME reports the interrupt master enable bit.
func (c *CPU) IME() bool { return c.ime }

// SetIME sets the interrupt master enable bit. Test and save-state hook.
func (c *CPU) SetIME(v bool) { c.ime = v }

// Halted reports whether the CPU is in the HALT state.
func (c *CPU) Halted() bool { return c.halted }

// Trapped reports whether the CPU hit an undefined opcode.
func (c *CPU) Trapped() bool { return c.trapped }

// FetchCycle reports whether the last Clock call drove an opcode fetch.
func (c *CPU) FetchCycle() bool { return c.fetchCycle }

// DecodedOpcode returns the opcode decoded during the last Clock call.
// CB-prefixed opcodes are reported as 0xCB00|op once the second byte has
// been decoded.
func (c *CPU) DecodedOpcode() (uint16, bool) { return c.decoded, c.decodedOK }

// TakeIRQAck returns the interrupt index acknowledged during the last
// Clock call, or -1. The bus uses it to clear the matching IF bit at
// dispatch time.
func (c *CPU) TakeIRQAck() int {
	ack := c.irqAck
	c.irqAck = -1
	return ack
}

// Clock advances the CPU by one M-cycle and returns its bus operation.
func (c *CPU) Clock(in PinsIn) PinsOut {
	c.fetchCycle = false
	c.decodedOK = false
	c.irqAck = -1

	if c.trapped {
		return ReadPins(c.reg.PC)
	}
	if c.halted || c.stopped {
		return c.clockIdle(in)
	}

	if c.qLen == 0 {
		c.boundary(in)
	}
	return c.deq()(c, in.Data)
}

// clockIdle handles the HALT and STOP states: no bus activity beyond
// redriving PC, until an interrupt line wakes the core.
func (c *CPU) clockIdle(in PinsIn) PinsOut {
	wake := pendingIRQ(in) >= 0
	if c.stopped {
		wake = in.IntJoypad
	}
	if !wake {
		return ReadPins(c.reg.PC)
	}
	c.halted = false
	c.stopped = false
	if c.ime {
		c.beginDispatch(pendingIRQ(in))
		return c.deq()(c, in.Data)
	}
	return c.fetch()
}

// boundary runs between instructions: it either begins an interrupt
// dispatch or decodes the opcode byte on the data bus.
func (c *CPU) boundary(in PinsIn) {
	if c.ime {
		if idx := pendingIRQ(in); idx >= 0 {
			// The opcode fetched by the previous instruction's final
			// cycle is discarded; roll PC back to point at it so the
			// dispatch pushes the right return address.
			c.reg.PC--
			c.beginDispatch(idx)
			return
		}
	}
	// EI enables interrupts one instruction late: promote after the
	// following instruction has reached its decode point.
	if c.eiPending {
		c.ime = true
		c.eiPending = false
	}
	c.decode(opcode(in.Data), in)
}

// pendingIRQ returns the lowest-index pending interrupt line, or -1.
func pendingIRQ(in PinsIn) int {
	switch {
	case in.IntVBlank:
		return IntBitVBlank
	case in.IntStat:
		return IntBitStat
	case in.IntTimer:
		return IntBitTimer
	case in.IntSerial:
		return IntBitSerial
	case in.IntJoypad:
		return IntBitJoypad
	}
	return -1
}

// beginDispatch starts the five-cycle interrupt service sequence: two
// internal cycles, the PC push (high then low), and the fetch of the
// handler's first byte.
func (c *CPU) beginDispatch(idx int) {
	c.ime = false
	c.irqAck = idx
	c.vector = 0x0040 + uint16(idx)*8
	c.enq(opInternal, opInternal, opPushPCHi, opDispatchPushLo, opFetch)
}

// fetch drives the read of the next opcode and advances PC. The HALT bug
// suppresses the PC increment for one fetch.
func (c *CPU) fetch() PinsOut {
	c.fetchCycle = true
	pc := c.reg.PC
	if c.haltBug {
		c.haltBug = false
	} else {
		c.reg.PC = pc + 1
	}
	return ReadPins(pc)
}

// readImm drives the read of an operand byte at PC and advances PC.
func (c *CPU) readImm() PinsOut {
	pc := c.reg.PC
	c.reg.PC = pc + 1
	return ReadPins(pc)
}

func (c *CPU) enq(ops ...microOp) {
	for _, op := range ops {
		c.queue[(c.qHead+c.qLen)%len(c.queue)] = op
		c.qLen++
	}
}

func (c *CPU) deq() microOp {
	op := c.queue[c.qHead]
	c.qHead = (c.qHead + 1) % len(c.queue)
	c.qLen--
	return op
}

// trap records an undefined opcode and freezes the core. Programs that
// reach one are broken; the condition is surfaced, never ignored.
func (c *CPU) trap(op opcode) {
	log.Printf("cpu: undefined opcode %#02x at %#04x", uint8(op), c.reg.PC-1)
	c.trapped = true
	c.enq(opTrapIdle)
}

// Shared micro-ops. Instruction-specific ones live in cpu_ops.go.

// opBootFetch drives the very first opcode fetch after reset.
func opBootFetch(c *CPU, _ uint8) PinsOut { return c.fetch() }

// opFetch ends an instruction by fetching the next opcode.
func opFetch(c *CPU, _ uint8) PinsOut { return c.fetch() }

// opInternal is a machine cycle with no bus transfer; the address bus
// redrives PC and the result is discarded.
func opInternal(c *CPU, _ uint8) PinsOut { return ReadPins(c.reg.PC) }

// opTrapIdle holds a trapped CPU on the bus.
func opTrapIdle(c *CPU, _ uint8) PinsOut { return ReadPins(c.reg.PC) }

// opPushPCHi decrements SP and writes the high byte of PC. Used by CALL,
// RST and interrupt dispatch.
func opPushPCHi(c *CPU, _ uint8) PinsOut {
	c.reg.SP--
	return WritePins(c.reg.SP, uint8(c.reg.PC>>8))
}

// opDispatchPushLo finishes the interrupt PC push and jumps to the
// latched vector.
func opDispatchPushLo(c *CPU, _ uint8) PinsOut {
	c.reg.SP--
	pins := WritePins(c.reg.SP, uint8(c.reg.PC))
	c.reg.PC = c.vector
	return pins
}
