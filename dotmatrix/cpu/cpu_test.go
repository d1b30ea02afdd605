package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const codeBase = 0xC000

// loadProgram places code in work RAM and points the PC at it, which keeps
// instruction fetches independent of any cartridge.
func loadProgram(c *CPU, program ...byte) {
	for i, b := range program {
		c.bus.Write(codeBase+uint16(i), b)
	}
	c.pc = codeBase
}

func TestCPU_postBootState(t *testing.T) {
	cpu := newTestCPU()

	assert.Equal(t, uint16(0x01B0), cpu.getAF())
	assert.Equal(t, uint16(0x0013), cpu.getBC())
	assert.Equal(t, uint16(0x00D8), cpu.getDE())
	assert.Equal(t, uint16(0x014D), cpu.getHL())
	assert.Equal(t, uint16(0xFFFE), cpu.sp)
	assert.Equal(t, uint16(0x0100), cpu.pc)
}

func TestCPU_afLowNibbleMasked(t *testing.T) {
	cpu := newTestCPU()

	cpu.setAF(0x12FF)

	assert.Equal(t, uint8(0x12), cpu.a)
	assert.Equal(t, uint8(0xF0), cpu.f, "low nibble of F must always read zero")
}

func TestCPU_pushPopAF_isIdentity(t *testing.T) {
	cpu := newTestCPU()

	cpu.a = 0x3C
	cpu.f = 0xB0
	cpu.sp = 0xFFFE

	cpu.pushStack(cpu.getAF())
	cpu.setAF(cpu.popStack())

	assert.Equal(t, uint8(0x3C), cpu.a)
	assert.Equal(t, uint8(0xB0), cpu.f)
	assert.Equal(t, uint16(0xFFFE), cpu.sp)
}

func TestCPU_instructionTimings(t *testing.T) {
	testCases := []struct {
		desc    string
		program []byte
		setup   func(*CPU)
		cycles  int
	}{
		{desc: "NOP", program: []byte{0x00}, cycles: 1},
		{desc: "LD BC,nn", program: []byte{0x01, 0x34, 0x12}, cycles: 3},
		{desc: "LD B,n", program: []byte{0x06, 0x42}, cycles: 2},
		{desc: "LD B,C", program: []byte{0x41}, cycles: 1},
		{desc: "LD B,(HL)", program: []byte{0x46}, cycles: 2},
		{desc: "LD (HL),B", program: []byte{0x70}, cycles: 2},
		{desc: "INC (HL)", program: []byte{0x34}, cycles: 3},
		{desc: "JR taken", program: []byte{0x18, 0x02}, cycles: 3},
		{desc: "JR NZ untaken", program: []byte{0x20, 0x02}, setup: func(c *CPU) { c.setFlag(zeroFlag) }, cycles: 2},
		{desc: "JP taken", program: []byte{0xC3, 0x00, 0xC1}, cycles: 4},
		{desc: "JP NZ untaken", program: []byte{0xC2, 0x00, 0xC1}, setup: func(c *CPU) { c.setFlag(zeroFlag) }, cycles: 3},
		{desc: "CALL taken", program: []byte{0xCD, 0x00, 0xC1}, cycles: 6},
		{desc: "CALL NC untaken", program: []byte{0xD4, 0x00, 0xC1}, setup: func(c *CPU) { c.setFlag(carryFlag) }, cycles: 3},
		{desc: "RET", program: []byte{0xC9}, cycles: 4},
		{desc: "RET Z taken", program: []byte{0xC8}, setup: func(c *CPU) { c.setFlag(zeroFlag) }, cycles: 5},
		{desc: "RET Z untaken", program: []byte{0xC8}, cycles: 2},
		{desc: "RETI", program: []byte{0xD9}, cycles: 4},
		{desc: "PUSH BC", program: []byte{0xC5}, cycles: 4},
		{desc: "POP BC", program: []byte{0xC1}, cycles: 3},
		{desc: "RST 28h", program: []byte{0xEF}, cycles: 4},
		{desc: "LD (nn),A", program: []byte{0xEA, 0x00, 0xC8}, cycles: 4},
		{desc: "LD (nn),SP", program: []byte{0x08, 0x00, 0xC8}, cycles: 5},
		{desc: "ADD SP,n", program: []byte{0xE8, 0x01}, cycles: 4},
		{desc: "LD HL,SP+n", program: []byte{0xF8, 0x01}, cycles: 3},
		{desc: "CB RLC B", program: []byte{0xCB, 0x00}, cycles: 2},
		{desc: "CB RLC (HL)", program: []byte{0xCB, 0x06}, cycles: 4},
		{desc: "CB BIT 0,(HL)", program: []byte{0xCB, 0x46}, cycles: 3},
		{desc: "illegal opcode is a 1-cycle no-op", program: []byte{0xD3}, cycles: 1},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cpu := newTestCPU()
			cpu.f = 0
			cpu.sp = 0xDFF0
			cpu.setHL(0xD000)
			loadProgram(cpu, tC.program...)
			if tC.setup != nil {
				tC.setup(cpu)
			}
			assert.Equal(t, tC.cycles, cpu.Step())
		})
	}
}

func TestCPU_eiTakesEffectAfterNextInstruction(t *testing.T) {
	cpu := newTestCPU()
	loadProgram(cpu, 0xFB, 0x00, 0x00) // EI; NOP; NOP

	cpu.Step() // EI
	assert.False(t, cpu.ime, "IME must not be set right after EI")

	cpu.Step() // NOP
	assert.True(t, cpu.ime, "IME must be set after the instruction following EI")
}

func TestCPU_eiThenDiLeavesInterruptsDisabled(t *testing.T) {
	cpu := newTestCPU()
	loadProgram(cpu, 0xFB, 0xF3, 0x00) // EI; DI; NOP

	cpu.Step() // EI
	cpu.Step() // DI
	assert.False(t, cpu.ime)
	assert.False(t, cpu.imePending)

	cpu.Step() // NOP
	assert.False(t, cpu.ime)
}

func TestCPU_retiEnablesImmediately(t *testing.T) {
	cpu := newTestCPU()
	cpu.sp = 0xDFF0
	cpu.pushStack(0xC123)
	loadProgram(cpu, 0xD9) // RETI

	cpu.Step()

	assert.True(t, cpu.ime)
	assert.Equal(t, uint16(0xC123), cpu.pc)
}

func TestCPU_interruptServicing(t *testing.T) {
	cpu := newTestCPU()
	loadProgram(cpu, 0x00)
	cpu.sp = 0xDFF0
	cpu.ime = true
	cpu.bus.Write(0xFFFF, 0x04) // IE = Timer
	cpu.bus.Write(0xFF0F, 0x04) // IF = Timer

	cycles := cpu.Step()

	assert.Equal(t, serviceCycles, cycles)
	assert.Equal(t, uint16(0x0050), cpu.pc, "timer vector")
	assert.False(t, cpu.ime)
	assert.Equal(t, uint8(0xE0), cpu.bus.Read(0xFF0F), "IF bit must be acknowledged")

	// the old PC was pushed
	assert.Equal(t, uint16(codeBase), cpu.popStack())
}

func TestCPU_interruptPriorityOrder(t *testing.T) {
	cpu := newTestCPU()
	loadProgram(cpu, 0x00)
	cpu.sp = 0xDFF0
	cpu.ime = true
	cpu.bus.Write(0xFFFF, 0x1F)
	cpu.bus.Write(0xFF0F, 0x14) // Timer and Joypad both pending

	cpu.Step()

	assert.Equal(t, uint16(0x0050), cpu.pc, "lower bit index wins")
	assert.Equal(t, uint8(0xF0), cpu.bus.Read(0xFF0F), "only the serviced bit is cleared")
}

func TestCPU_haltWakesAndServicesWithIME(t *testing.T) {
	cpu := newTestCPU()
	loadProgram(cpu, 0x76, 0x00) // HALT; NOP
	cpu.sp = 0xDFF0
	cpu.ime = true

	cpu.Step()
	assert.True(t, cpu.Halted())

	// nothing pending: the CPU idles one cycle at a time
	assert.Equal(t, 1, cpu.Step())
	assert.True(t, cpu.Halted())

	cpu.bus.Write(0xFFFF, 0x04)
	cpu.bus.Write(0xFF0F, 0x04)

	cycles := cpu.Step()
	assert.Equal(t, serviceCycles, cycles)
	assert.False(t, cpu.Halted())
	assert.Equal(t, uint16(0x0050), cpu.pc)
}

func TestCPU_haltWithoutIMEWakesWithoutServicing(t *testing.T) {
	cpu := newTestCPU()
	loadProgram(cpu, 0x76, 0x3C) // HALT; INC A
	cpu.a = 0x01
	cpu.ime = false
	cpu.bus.Write(0xFFFF, 0x04)

	cpu.Step()
	assert.True(t, cpu.Halted())

	cpu.bus.Write(0xFF0F, 0x04)

	cpu.Step() // wake, execute INC A
	assert.False(t, cpu.Halted())
	assert.Equal(t, uint8(0x02), cpu.a)
	assert.Equal(t, uint8(0xE4), cpu.bus.Read(0xFF0F), "IF must not be cleared without servicing")
}

func TestCPU_haltBugExecutesNextByteTwice(t *testing.T) {
	cpu := newTestCPU()
	loadProgram(cpu, 0x76, 0x3C, 0x00) // HALT; INC A; NOP
	cpu.a = 0x01
	cpu.ime = false
	cpu.bus.Write(0xFFFF, 0x04)
	cpu.bus.Write(0xFF0F, 0x04) // already pending: HALT must not halt

	cpu.Step() // HALT arms the bug
	assert.False(t, cpu.Halted())
	assert.True(t, cpu.haltBug)

	cpu.Step() // INC A without the PC advancing
	cpu.Step() // INC A again

	assert.Equal(t, uint8(0x03), cpu.a)
	assert.False(t, cpu.isSetFlag(zeroFlag))
	assert.Equal(t, uint16(codeBase+2), cpu.pc)
}

func TestCPU_loadAndStoreRoundTrip(t *testing.T) {
	cpu := newTestCPU()
	// LD A,0x7E; LD (0xC800),A; LD B,(0xC800 via HL)
	loadProgram(cpu,
		0x3E, 0x7E, // LD A, n
		0xEA, 0x00, 0xC8, // LD (nn), A
		0x21, 0x00, 0xC8, // LD HL, nn
		0x46, // LD B, (HL)
	)

	for range 4 {
		cpu.Step()
	}

	assert.Equal(t, uint8(0x7E), cpu.b)
}

func TestCPU_conditionalFlow(t *testing.T) {
	cpu := newTestCPU()
	// XOR A; JR Z,+1; INC B (skipped); INC C
	loadProgram(cpu,
		0xAF,       // XOR A
		0x28, 0x01, // JR Z, +1
		0x04, // INC B (skipped)
		0x0C, // INC C
	)
	cpu.b = 0
	cpu.c = 0

	cpu.Step()
	cpu.Step()
	cpu.Step()

	assert.Equal(t, uint8(0), cpu.b)
	assert.Equal(t, uint8(1), cpu.c)
}

func TestCPU_rst_jumpsToFixedVector(t *testing.T) {
	cpu := newTestCPU()
	cpu.sp = 0xDFF0
	loadProgram(cpu, 0xEF) // RST 28h

	cpu.Step()

	assert.Equal(t, uint16(0x0028), cpu.pc)
	assert.Equal(t, uint16(codeBase+1), cpu.popStack(), "pushed PC points past the opcode")
}
