package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lmarzo/go-dotmatrix/dotmatrix/addr"
)

// newStoppedTimer returns a timer with the divider at zero so tests can
// count edges from a known phase.
func newStoppedTimer() *Timer {
	t := New()
	t.counter = 0
	t.lastBit = false
	return t
}

func TestTimer_divCountsAt16384Hz(t *testing.T) {
	tm := newStoppedTimer()

	tm.Tick(255)
	assert.Equal(t, uint8(0), tm.Read(addr.DIV))

	tm.Tick(1)
	assert.Equal(t, uint8(1), tm.Read(addr.DIV))

	tm.Tick(256)
	assert.Equal(t, uint8(2), tm.Read(addr.DIV))
}

func TestTimer_divWriteResetsCounter(t *testing.T) {
	tm := newStoppedTimer()

	tm.Tick(1000)
	assert.NotEqual(t, uint8(0), tm.Read(addr.DIV))

	tm.Write(addr.DIV, 0x5A) // value is irrelevant
	assert.Equal(t, uint8(0), tm.Read(addr.DIV))
}

func TestTimer_timaRates(t *testing.T) {
	testCases := []struct {
		desc   string
		tac    byte
		period int // t-cycles per TIMA increment
	}{
		{desc: "4096 Hz", tac: 0x04, period: 1024},
		{desc: "262144 Hz", tac: 0x05, period: 16},
		{desc: "65536 Hz", tac: 0x06, period: 64},
		{desc: "16384 Hz", tac: 0x07, period: 256},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			tm := newStoppedTimer()
			tm.Write(addr.TAC, tC.tac)

			tm.Tick(tC.period * 4)
			assert.Equal(t, uint8(4), tm.Read(addr.TIMA))
		})
	}
}

func TestTimer_disabledTimerDoesNotCount(t *testing.T) {
	tm := newStoppedTimer()
	tm.Write(addr.TAC, 0x00)

	tm.Tick(4096)
	assert.Equal(t, uint8(0), tm.Read(addr.TIMA))
}

func TestTimer_divWriteCanIncrementTIMA(t *testing.T) {
	tm := newStoppedTimer()
	tm.Write(addr.TAC, 0x05) // enabled, bit 3 selected

	// advance until the selected bit is high
	tm.Tick(8)
	assert.Equal(t, uint8(0), tm.Read(addr.TIMA))

	// resetting DIV drops the selected bit: falling edge, TIMA increments
	tm.Write(addr.DIV, 0x00)
	assert.Equal(t, uint8(1), tm.Read(addr.TIMA))
}

func TestTimer_disablingTimerCanIncrementTIMA(t *testing.T) {
	tm := newStoppedTimer()
	tm.Write(addr.TAC, 0x05)
	tm.Tick(8) // selected bit high

	tm.Write(addr.TAC, 0x01) // disable: the AND falls
	assert.Equal(t, uint8(1), tm.Read(addr.TIMA))
}

func TestTimer_overflowReloadWindow(t *testing.T) {
	tm := newStoppedTimer()
	tm.Write(addr.TMA, 0xAB)
	tm.Write(addr.TAC, 0x05)
	tm.Write(addr.TIMA, 0xFF)

	// run up to the overflow edge (bit 3 falls at counter 16)
	var irq bool
	for i := 0; i < 16; i++ {
		irq = tm.Tick(1) || irq
	}
	assert.False(t, irq)
	assert.Equal(t, uint8(0x00), tm.Read(addr.TIMA), "TIMA reads 0 during the reload window")

	// 3 more cycles: still zero, no interrupt yet
	for i := 0; i < 3; i++ {
		irq = tm.Tick(1) || irq
	}
	assert.False(t, irq)
	assert.Equal(t, uint8(0x00), tm.Read(addr.TIMA))

	// 4th cycle: reload from TMA and request the interrupt
	irq = tm.Tick(1)
	assert.True(t, irq)
	assert.Equal(t, uint8(0xAB), tm.Read(addr.TIMA))
}

func TestTimer_writeDuringReloadWindowIsDeferred(t *testing.T) {
	tm := newStoppedTimer()
	tm.Write(addr.TMA, 0xAB)
	tm.Write(addr.TAC, 0x05)
	tm.Write(addr.TIMA, 0xFF)

	tm.Tick(16) // overflow
	assert.Equal(t, uint8(0x00), tm.Read(addr.TIMA))

	// a write inside the window overrides the TMA reload
	tm.Write(addr.TIMA, 0x55)

	tm.Tick(4)
	assert.Equal(t, uint8(0x55), tm.Read(addr.TIMA))
}

func TestTimer_writeAfterReloadSticks(t *testing.T) {
	tm := newStoppedTimer()
	tm.Write(addr.TMA, 0xAB)
	tm.Write(addr.TAC, 0x05)
	tm.Write(addr.TIMA, 0xFF)

	tm.Tick(16 + 4) // overflow plus the full reload window
	assert.Equal(t, uint8(0xAB), tm.Read(addr.TIMA))

	tm.Write(addr.TIMA, 0x55)
	assert.Equal(t, uint8(0x55), tm.Read(addr.TIMA))
}

func TestTimer_tacReadsUnusedBitsHigh(t *testing.T) {
	tm := newStoppedTimer()
	tm.Write(addr.TAC, 0x05)
	assert.Equal(t, uint8(0xFD), tm.Read(addr.TAC))
}
