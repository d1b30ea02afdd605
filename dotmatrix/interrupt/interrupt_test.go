package interrupt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_vectors(t *testing.T) {
	assert.Equal(t, uint16(0x0040), VBlank.Vector())
	assert.Equal(t, uint16(0x0048), LCDStat.Vector())
	assert.Equal(t, uint16(0x0050), Timer.Vector())
	assert.Equal(t, uint16(0x0058), Serial.Vector())
	assert.Equal(t, uint16(0x0060), Joypad.Vector())
}

func TestRequestAndClear(t *testing.T) {
	var iflags uint8

	iflags = Request(iflags, Timer)
	iflags = Request(iflags, Joypad)
	assert.Equal(t, uint8(0x14), iflags)

	iflags = Clear(iflags, Timer)
	assert.Equal(t, uint8(0x10), iflags)
}

func TestPending(t *testing.T) {
	testCases := []struct {
		desc    string
		ie, ifl uint8
		want    bool
	}{
		{desc: "nothing requested", ie: 0x1F, ifl: 0x00, want: false},
		{desc: "requested but masked", ie: 0x00, ifl: 0x1F, want: false},
		{desc: "enabled and requested", ie: 0x04, ifl: 0x04, want: true},
		{desc: "unwired high bits are ignored", ie: 0xE0, ifl: 0xE0, want: false},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.want, Pending(tC.ie, tC.ifl))
		})
	}
}

func TestHighestPriority(t *testing.T) {
	testCases := []struct {
		desc    string
		ie, ifl uint8
		want    Source
		ok      bool
	}{
		{desc: "none pending", ie: 0x1F, ifl: 0x00, ok: false},
		{desc: "single source", ie: 0x1F, ifl: 0x08, want: Serial, ok: true},
		{desc: "vblank beats everything", ie: 0x1F, ifl: 0x1F, want: VBlank, ok: true},
		{desc: "lower index wins among enabled", ie: 0x18, ifl: 0x1F, want: Serial, ok: true},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			got, ok := HighestPriority(tC.ie, tC.ifl)
			assert.Equal(t, tC.ok, ok)
			if tC.ok {
				assert.Equal(t, tC.want, got)
			}
		})
	}
}
