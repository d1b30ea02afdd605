// Package serial implements the link port against an unplugged cable.
// Outgoing bytes are delivered to a sink; incoming bits are the idle-high
// line, so a completed transfer always leaves 0xFF in SB.
package serial

import (
	"log/slog"

	"github.com/lmarzo/go-dotmatrix/dotmatrix/addr"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/bit"
)

// bitCycles is the t-cycle cost of shifting one bit with the internal
// clock (8192 Hz bit clock at 4.19 MHz).
const bitCycles = 512

// Port is the SB/SC register pair plus the shift engine.
type Port struct {
	sb byte
	sc byte

	shifting  bool
	bitsLeft  int
	countdown int

	sink   func(byte)
	logger *slog.Logger

	// line buffers serial text so test ROM output logs as whole lines
	line []byte
}

// New creates a port. The sink receives each byte as its transfer starts
// and may be nil.
func New(sink func(byte)) *Port {
	return &Port{sink: sink, logger: slog.Default()}
}

// SetSink replaces the outgoing byte sink.
func (p *Port) SetSink(sink func(byte)) {
	p.sink = sink
}

// Read returns SB or SC. Unwired SC bits read as 1.
func (p *Port) Read(address uint16) byte {
	switch address {
	case addr.SB:
		return p.sb
	case addr.SC:
		return 0x7E | (p.sc & 0x81)
	}
	return 0xFF
}

// Write stores SB or SC. Setting SC bit 7 with the internal clock selected
// starts a transfer; with the external clock the start bit just sticks,
// since no peer will ever drive the line.
func (p *Port) Write(address uint16, value byte) {
	switch address {
	case addr.SB:
		p.sb = value
	case addr.SC:
		p.sc = value & 0x81
		if bit.IsSet(7, p.sc) && bit.IsSet(0, p.sc) && !p.shifting {
			p.startTransfer()
		}
	}
}

// Tick advances the shift clock and reports whether a Serial interrupt was
// requested (the 8th bit completed).
func (p *Port) Tick(tcycles int) bool {
	if !p.shifting {
		return false
	}
	p.countdown -= tcycles
	for p.countdown <= 0 && p.bitsLeft > 0 {
		p.sb = p.sb<<1 | 1
		p.bitsLeft--
		p.countdown += bitCycles
	}
	if p.bitsLeft == 0 {
		p.shifting = false
		p.sc = bit.Reset(7, p.sc)
		return true
	}
	return false
}

func (p *Port) startTransfer() {
	b := p.sb
	if p.sink != nil {
		p.sink(b)
	}
	if b == 0 || b == '\n' || b == '\r' {
		if len(p.line) > 0 {
			p.logger.Info("serial", "line", string(p.line))
			p.line = p.line[:0]
		}
	} else {
		p.line = append(p.line, b)
	}

	p.shifting = true
	p.bitsLeft = 8
	p.countdown = bitCycles
}
