package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lmarzo/go-dotmatrix/dotmatrix/addr"
)

func TestPort_internalClockTransfer(t *testing.T) {
	var sent []byte
	p := New(func(b byte) { sent = append(sent, b) })

	p.Write(addr.SB, 0x41)
	p.Write(addr.SC, 0x81)

	assert.Equal(t, []byte{0x41}, sent, "the outgoing byte is captured at transfer start")
	assert.Equal(t, uint8(0xFF), p.Read(addr.SC), "start bit reads back high while shifting")

	// 8 bits at 512 t-cycles each
	var irq bool
	for i := 0; i < 1023; i++ {
		irq = p.Tick(4) || irq
	}
	assert.False(t, irq, "transfer must not complete before 4096 t-cycles")

	irq = p.Tick(4)
	assert.True(t, irq, "serial interrupt on the 8th bit")
	assert.Equal(t, uint8(0xFF), p.Read(addr.SB), "idle line shifts in ones")
	assert.Equal(t, uint8(0x7F), p.Read(addr.SC), "start bit cleared on completion")
}

func TestPort_externalClockNeverCompletes(t *testing.T) {
	p := New(nil)

	p.Write(addr.SB, 0x41)
	p.Write(addr.SC, 0x80) // start bit without the internal clock

	for i := 0; i < 4096; i++ {
		assert.False(t, p.Tick(4))
	}
	assert.Equal(t, uint8(0x41), p.Read(addr.SB))
	assert.Equal(t, uint8(0xFE), p.Read(addr.SC), "start bit stays pending")
}

func TestPort_idleTickDoesNothing(t *testing.T) {
	p := New(nil)
	assert.False(t, p.Tick(4096))
	assert.Equal(t, uint8(0x00), p.Read(addr.SB))
}
