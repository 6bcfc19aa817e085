package emu

// decode consumes the opcode byte on the data bus and queues the
// remaining machine cycles of the instruction. One-cycle instructions do
// all their register work here and queue only the next-opcode fetch.
// The incoming pins are consulted for HALT's entry conditions.
func (c *CPU) decode(op opcode, in PinsIn) {
	c.op = op
	c.decoded = uint16(op)
	c.decodedOK = true

	switch op.x() {
	case 0:
		c.decodeX0(op)
	case 1:
		if op.z() == 6 && op.y() == 6 {
			c.decodeHalt(in)
			return
		}
		// LD r,r'
		switch {
		case op.z() == 6: // LD r,(HL)
			c.enq(opReadHL, opLdYFetch)
		case op.y() == 6: // LD (HL),r
			c.enq(opWriteHLZ, opFetch)
		default:
			c.set8(reg8(op.y()), c.get8(reg8(op.z())))
			c.enq(opFetch)
		}
	case 2:
		// ALU A,r
		if op.z() == 6 {
			c.enq(opReadHL, opAluFetch)
		} else {
			c.aluOp(op.y(), c.get8(reg8(op.z())))
			c.enq(opFetch)
		}
	case 3:
		c.decodeX3(op)
	}
}

func (c *CPU) decodeX0(op opcode) {
	switch op.z() {
	case 0:
		switch op.y() {
		case 0: // NOP
			c.enq(opFetch)
		case 1: // LD (a16),SP
			c.enq(opReadImm, opImmLoReadImm, opWriteSPLo, opWriteSPHi, opFetch)
		case 2: // STOP: behaves as a NOP held until a joypad wake
			c.stopped = true
			c.enq(opIdle)
		case 3: // JR e
			c.enq(opReadImm, opJRJump, opFetch)
		default: // JR cc,e
			if c.cond(op.y() - 4) {
				c.enq(opReadImm, opJRJump, opFetch)
			} else {
				c.enq(opReadImm, opFetch)
			}
		}
	case 1:
		if op.q() == 0 { // LD rp,d16
			c.enq(opReadImm, opImmLoReadImm, opLd16Fetch)
		} else { // ADD HL,rp
			c.addHL(c.get16(rp(op.p())))
			c.enq(opInternal, opFetch)
		}
	case 2:
		// LD (rr),A / LD A,(rr) with the HL+/- variants
		switch op.p() {
		case 0:
			c.wz = c.reg.BC()
		case 1:
			c.wz = c.reg.DE()
		case 2:
			c.wz = c.reg.HL()
			c.reg.SetHL(c.wz + 1)
		case 3:
			c.wz = c.reg.HL()
			c.reg.SetHL(c.wz - 1)
		}
		if op.q() == 0 {
			c.enq(opWriteAWZ, opFetch)
		} else {
			c.enq(opReadWZ, opLdAFetch)
		}
	case 3: // INC/DEC rp
		v := c.get16(rp(op.p()))
		if op.q() == 0 {
			v++
		} else {
			v--
		}
		c.set16(rp(op.p()), v)
		c.enq(opInternal, opFetch)
	case 4: // INC r
		if op.y() == 6 {
			c.enq(opReadHL, opIncHL, opFetch)
		} else {
			r := reg8(op.y())
			c.set8(r, c.inc8(c.get8(r)))
			c.enq(opFetch)
		}
	case 5: // DEC r
		if op.y() == 6 {
			c.enq(opReadHL, opDecHL, opFetch)
		} else {
			r := reg8(op.y())
			c.set8(r, c.dec8(c.get8(r)))
			c.enq(opFetch)
		}
	case 6: // LD r,d8
		if op.y() == 6 {
			c.enq(opReadImm, opWriteHLData, opFetch)
		} else {
			c.enq(opReadImm, opLdYFetch)
		}
	case 7:
		switch op.y() {
		case 0, 1, 2, 3:
			// RLCA/RRCA/RLA/RRA: CB semantics with Z forced clear
			c.reg.A = c.rotOp(op.y(), c.reg.A)
			c.reg.SetFlag(FlagZ, false)
		case 4:
			c.daa()
		case 5: // CPL
			c.reg.A = ^c.reg.A
			c.reg.SetFlag(FlagN, true)
			c.reg.SetFlag(FlagH, true)
		case 6: // SCF
			c.reg.SetFlag(FlagC, true)
			c.reg.SetFlag(FlagN, false)
			c.reg.SetFlag(FlagH, false)
		case 7: // CCF
			c.reg.SetFlag(FlagC, !c.reg.Flag(FlagC))
			c.reg.SetFlag(FlagN, false)
			c.reg.SetFlag(FlagH, false)
		}
		c.enq(opFetch)
	}
}

func (c *CPU) decodeX3(op opcode) {
	switch op.z() {
	case 0:
		switch op.y() {
		case 0, 1, 2, 3: // RET cc
			if c.cond(op.y()) {
				c.enq(opInternal, opPopRead, opPopLoRead, opRetJump, opFetch)
			} else {
				c.enq(opInternal, opFetch)
			}
		case 4: // LDH (a8),A
			c.enq(opReadImm, opLdhWriteA, opFetch)
		case 5: // ADD SP,e
			c.enq(opReadImm, opAddSPCalc, opAddSPStore, opFetch)
		case 6: // LDH A,(a8)
			c.enq(opReadImm, opLdhReadA, opLdAFetch)
		case 7: // LD HL,SP+e
			c.enq(opReadImm, opLdHLSPe, opFetch)
		}
	case 1:
		if op.q() == 0 { // POP rp2
			c.enq(opPopRead, opPopLoRead, opPopSetFetch)
			return
		}
		switch op.p() {
		case 0: // RET
			c.enq(opPopRead, opPopLoRead, opRetJump, opFetch)
		case 1: // RETI
			c.ime = true
			c.enq(opPopRead, opPopLoRead, opRetJump, opFetch)
		case 2: // JP HL
			c.reg.PC = c.reg.HL()
			c.enq(opFetch)
		case 3: // LD SP,HL
			c.reg.SP = c.reg.HL()
			c.enq(opInternal, opFetch)
		}
	case 2:
		switch op.y() {
		case 0, 1, 2, 3: // JP cc,a16
			if c.cond(op.y()) {
				c.enq(opReadImm, opImmLoReadImm, opJPJump, opFetch)
			} else {
				c.enq(opReadImm, opImmLoReadImm, opFetch)
			}
		case 4: // LD (C),A
			c.wz = 0xFF00 | uint16(c.reg.C)
			c.enq(opWriteAWZ, opFetch)
		case 5: // LD (a16),A
			c.enq(opReadImm, opImmLoReadImm, opWriteAWZHi, opFetch)
		case 6: // LD A,(C)
			c.wz = 0xFF00 | uint16(c.reg.C)
			c.enq(opReadWZ, opLdAFetch)
		case 7: // LD A,(a16)
			c.enq(opReadImm, opImmLoReadImm, opReadWZHi, opLdAFetch)
		}
	case 3:
		switch op.y() {
		case 0: // JP a16
			c.enq(opReadImm, opImmLoReadImm, opJPJump, opFetch)
		case 1: // CB prefix
			c.enq(opReadImm, opCBDecode)
		case 6: // DI
			c.ime = false
			c.eiPending = false
			c.enq(opFetch)
		case 7: // EI
			c.eiPending = true
			c.enq(opFetch)
		default:
			c.trap(op)
		}
	case 4:
		if op.y() < 4 { // CALL cc,a16
			if c.cond(op.y()) {
				c.enq(opReadImm, opImmLoReadImm, opCallInternal, opPushPCHi, opCallPushLoJump, opFetch)
			} else {
				c.enq(opReadImm, opImmLoReadImm, opFetch)
			}
		} else {
			c.trap(op)
		}
	case 5:
		if op.q() == 0 { // PUSH rp2
			c.enq(opInternal, opPushHi, opPushLo, opFetch)
		} else if op.p() == 0 { // CALL a16
			c.enq(opReadImm, opImmLoReadImm, opCallInternal, opPushPCHi, opCallPushLoJump, opFetch)
		} else {
			c.trap(op)
		}
	case 6: // ALU A,d8
		c.enq(opReadImm, opAluFetch)
	case 7: // RST y*8
		c.enq(opInternal, opPushPCHi, opRstPushLoJump, opFetch)
	}
}

// decodeHalt enters the HALT state. With IME clear and an interrupt
// already pending, HALT falls through and the next fetch fails to
// advance PC (the HALT bug).
func (c *CPU) decodeHalt(in PinsIn) {
	if !c.ime && pendingIRQ(in) >= 0 {
		c.haltBug = true
		c.enq(opFetch)
		return
	}
	c.halted = true
	c.enq(opIdle)
}

// Micro-ops. Each consumes the data byte produced by the previous
// cycle's bus operation and emits the current cycle's operation.

func opIdle(c *CPU, _ uint8) PinsOut { return ReadPins(c.reg.PC) }

func opReadImm(c *CPU, _ uint8) PinsOut { return c.readImm() }

// opImmLoReadImm latches the operand low byte and reads the high byte.
func opImmLoReadImm(c *CPU, data uint8) PinsOut {
	c.wz = uint16(data)
	return c.readImm()
}

// opLd16Fetch completes LD rp,d16.
func opLd16Fetch(c *CPU, data uint8) PinsOut {
	c.wz |= uint16(data) << 8
	c.set16(rp(c.op.p()), c.wz)
	return c.fetch()
}

func opReadHL(c *CPU, _ uint8) PinsOut { return ReadPins(c.reg.HL()) }

func opReadWZ(c *CPU, _ uint8) PinsOut { return ReadPins(c.wz) }

// opReadWZHi latches the address high byte and reads from it.
func opReadWZHi(c *CPU, data uint8) PinsOut {
	c.wz |= uint16(data) << 8
	return ReadPins(c.wz)
}

func opLdAFetch(c *CPU, data uint8) PinsOut {
	c.reg.A = data
	return c.fetch()
}

// opLdYFetch stores the read byte into the register selected by y.
func opLdYFetch(c *CPU, data uint8) PinsOut {
	c.set8(reg8(c.op.y()), data)
	return c.fetch()
}

func opAluFetch(c *CPU, data uint8) PinsOut {
	c.aluOp(c.op.y(), data)
	return c.fetch()
}

func opWriteAWZ(c *CPU, _ uint8) PinsOut { return WritePins(c.wz, c.reg.A) }

// opWriteAWZHi latches the address high byte and writes A to it.
func opWriteAWZHi(c *CPU, data uint8) PinsOut {
	c.wz |= uint16(data) << 8
	return WritePins(c.wz, c.reg.A)
}

func opWriteHLZ(c *CPU, _ uint8) PinsOut {
	return WritePins(c.reg.HL(), c.get8(reg8(c.op.z())))
}

func opWriteHLData(c *CPU, data uint8) PinsOut {
	return WritePins(c.reg.HL(), data)
}

func opIncHL(c *CPU, data uint8) PinsOut {
	return WritePins(c.reg.HL(), c.inc8(data))
}

func opDecHL(c *CPU, data uint8) PinsOut {
	return WritePins(c.reg.HL(), c.dec8(data))
}

// opWriteSPLo latches the address high byte and writes SP low.
func opWriteSPLo(c *CPU, data uint8) PinsOut {
	c.wz |= uint16(data) << 8
	return WritePins(c.wz, uint8(c.reg.SP))
}

func opWriteSPHi(c *CPU, _ uint8) PinsOut {
	return WritePins(c.wz+1, uint8(c.reg.SP>>8))
}

// opJRJump applies the signed displacement during an internal cycle.
func opJRJump(c *CPU, data uint8) PinsOut {
	c.reg.PC += uint16(int16(int8(data)))
	return ReadPins(c.reg.PC)
}

// opJPJump latches the target high byte and jumps.
func opJPJump(c *CPU, data uint8) PinsOut {
	c.wz |= uint16(data) << 8
	c.reg.PC = c.wz
	return ReadPins(c.reg.PC)
}

// opPopRead drives a stack read and bumps SP.
func opPopRead(c *CPU, _ uint8) PinsOut {
	pins := ReadPins(c.reg.SP)
	c.reg.SP++
	return pins
}

// opPopLoRead latches the popped low byte and reads the high byte.
func opPopLoRead(c *CPU, data uint8) PinsOut {
	c.wz = uint16(data)
	pins := ReadPins(c.reg.SP)
	c.reg.SP++
	return pins
}

// opRetJump completes RET: loads PC during an internal cycle.
func opRetJump(c *CPU, data uint8) PinsOut {
	c.wz |= uint16(data) << 8
	c.reg.PC = c.wz
	return ReadPins(c.reg.PC)
}

// opPopSetFetch completes POP rp2.
func opPopSetFetch(c *CPU, data uint8) PinsOut {
	c.wz |= uint16(data) << 8
	c.set16(rp2(c.op.p()), c.wz)
	return c.fetch()
}

func opPushHi(c *CPU, _ uint8) PinsOut {
	c.reg.SP--
	return WritePins(c.reg.SP, uint8(c.get16(rp2(c.op.p()))>>8))
}

func opPushLo(c *CPU, _ uint8) PinsOut {
	c.reg.SP--
	return WritePins(c.reg.SP, uint8(c.get16(rp2(c.op.p()))))
}

// opCallInternal latches the call target during the internal cycle.
func opCallInternal(c *CPU, data uint8) PinsOut {
	c.wz |= uint16(data) << 8
	return ReadPins(c.reg.PC)
}

// opCallPushLoJump writes the return address low byte and jumps.
func opCallPushLoJump(c *CPU, _ uint8) PinsOut {
	c.reg.SP--
	pins := WritePins(c.reg.SP, uint8(c.reg.PC))
	c.reg.PC = c.wz
	return pins
}

// opRstPushLoJump writes the return address low byte and jumps to the
// restart vector selected by y.
func opRstPushLoJump(c *CPU, _ uint8) PinsOut {
	c.reg.SP--
	pins := WritePins(c.reg.SP, uint8(c.reg.PC))
	c.reg.PC = uint16(c.op.y()) * 8
	return pins
}

// opLdhWriteA writes A into the high IO page.
func opLdhWriteA(c *CPU, data uint8) PinsOut {
	c.wz = 0xFF00 | uint16(data)
	return WritePins(c.wz, c.reg.A)
}

// opLdhReadA reads from the high IO page.
func opLdhReadA(c *CPU, data uint8) PinsOut {
	return ReadPins(0xFF00 | uint16(data))
}

// opAddSPCalc computes SP+e into the latch during an internal cycle.
func opAddSPCalc(c *CPU, data uint8) PinsOut {
	c.wz = c.addSPRel(data)
	return ReadPins(c.reg.PC)
}

func opAddSPStore(c *CPU, _ uint8) PinsOut {
	c.reg.SP = c.wz
	return ReadPins(c.reg.PC)
}

func opLdHLSPe(c *CPU, data uint8) PinsOut {
	c.reg.SetHL(c.addSPRel(data))
	return ReadPins(c.reg.PC)
}
