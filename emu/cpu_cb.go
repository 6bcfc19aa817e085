package emu

// opCBDecode consumes the byte after the CB prefix and queues the rest
// of the bit operation. Register targets finish in this cycle; (HL)
// targets add the memory access cycles.
func opCBDecode(c *CPU, data uint8) PinsOut {
	op := opcode(data)
	c.cbOp = op
	c.decoded = 0xCB00 | uint16(data)
	c.decodedOK = true

	if op.z() != 6 {
		r := reg8(op.z())
		switch op.x() {
		case 0:
			c.set8(r, c.rotOp(op.y(), c.get8(r)))
		case 1:
			c.bitTest(op.y(), c.get8(r))
		case 2:
			c.set8(r, c.get8(r)&^(1<<op.y()))
		case 3:
			c.set8(r, c.get8(r)|1<<op.y())
		}
		return c.fetch()
	}

	// (HL) target: BIT only reads; the others read, modify, write back.
	if op.x() == 1 {
		c.enq(opCBBitFetch)
	} else {
		c.enq(opCBWriteHL, opFetch)
	}
	return ReadPins(c.reg.HL())
}

// opCBBitFetch tests a bit of the byte read from (HL).
func opCBBitFetch(c *CPU, data uint8) PinsOut {
	c.bitTest(c.cbOp.y(), data)
	return c.fetch()
}

// opCBWriteHL applies a rotate/shift/RES/SET to the byte read from (HL)
// and writes it back.
func opCBWriteHL(c *CPU, data uint8) PinsOut {
	op := c.cbOp
	var v uint8
	switch op.x() {
	case 0:
		v = c.rotOp(op.y(), data)
	case 2:
		v = data &^ (1 << op.y())
	default:
		v = data | 1<<op.y()
	}
	return WritePins(c.reg.HL(), v)
}

// bitTest sets Z from the complement of the tested bit; C is preserved.
func (c *CPU) bitTest(bit uint8, v uint8) {
	c.reg.SetFlag(FlagZ, v&(1<<bit) == 0)
	c.reg.SetFlag(FlagN, false)
	c.reg.SetFlag(FlagH, true)
}
