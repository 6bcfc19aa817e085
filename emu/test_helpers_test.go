package emu

// createTestROM builds a ROM image with the given number of 16KB banks
// and mapper id. Each bank is filled with its bank number so tests can
// verify which bank is mapped.
func createTestROM(banks int, mapper uint8) []byte {
	rom := make([]byte, banks*romBankSize)
	for b := 0; b < banks; b++ {
		for i := 0; i < romBankSize; i++ {
			rom[b*romBankSize+i] = byte(b)
		}
	}
	rom[0x0147] = mapper
	return rom
}

// cpuTester drives a bare CPU against a flat 64KB memory, recording
// every bus write. It plays the role of the rest of the machine.
type cpuTester struct {
	cpu    *CPU
	mem    [0x10000]uint8
	in     PinsIn
	writes []PinsOut
}

// newCPUTester places code at addr and points the CPU at it.
func newCPUTester(code []byte, addr uint16) *cpuTester {
	ct := &cpuTester{cpu: NewCPU()}
	copy(ct.mem[addr:], code)
	r := ct.cpu.Registers()
	r.PC = addr
	ct.cpu.SetRegisters(r)
	return ct
}

func (ct *cpuTester) setReg(f func(*Registers)) {
	r := ct.cpu.Registers()
	f(&r)
	ct.cpu.SetRegisters(r)
}

// clock runs one M-cycle, servicing the CPU's bus operation.
func (ct *cpuTester) clock() PinsOut {
	out := ct.cpu.Clock(ct.in)
	if out.IsRead {
		ct.in.Data = ct.mem[out.Addr]
	} else {
		ct.mem[out.Addr] = out.Data
		ct.writes = append(ct.writes, out)
		ct.in.Data = 0
	}
	return out
}

// prime performs the initial opcode fetch pending after reset.
func (ct *cpuTester) prime() { ct.clock() }

// step runs to the next instruction boundary and returns the number of
// M-cycles consumed, including the overlapped fetch of the next opcode.
func (ct *cpuTester) step() int {
	for n := 1; ; n++ {
		ct.clock()
		if ct.cpu.FetchCycle() {
			return n
		}
	}
}

// newTestGameboy builds a full machine around a ROM-only cart whose
// entry point holds the given code.
func newTestGameboy(code []byte) *Gameboy {
	rom := createTestROM(2, 0x00)
	copy(rom[0x0100:], code)
	g, err := New(rom)
	if err != nil {
		panic(err)
	}
	g.Reset()
	return g
}
