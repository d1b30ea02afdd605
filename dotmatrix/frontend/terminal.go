// Package frontend renders frames into a terminal with tcell, using
// half-block characters so two scanlines share one text row, and feeds
// keyboard input back into the joypad matrix.
package frontend

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lmarzo/go-dotmatrix/dotmatrix"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/memory"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/timing"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/video"
)

// keyHoldDuration is how long a keypress keeps its button held. Terminals
// only deliver key-down events, so releases are synthesized on a timer.
const keyHoldDuration = 150 * time.Millisecond

// Terminal is the interactive tcell front-end.
type Terminal struct {
	machine *dotmatrix.Machine
	screen  tcell.Screen
	limiter timing.Limiter

	keyStates map[memory.Button]time.Time
	showTiles bool
	running   bool
}

// New creates a terminal front-end around a machine.
func New(machine *dotmatrix.Machine) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("initializing terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("initializing terminal: %w", err)
	}

	return &Terminal{
		machine:   machine,
		screen:    screen,
		limiter:   timing.NewFrameLimiter(),
		keyStates: make(map[memory.Button]time.Time),
	}, nil
}

// Run drives the emulation loop until the user quits.
func (t *Terminal) Run() error {
	defer t.screen.Fini()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			events <- t.screen.PollEvent()
		}
	}()

	t.running = true
	t.limiter.Reset()

	for t.running {
		t.drainEvents(events)
		t.releaseStaleKeys()

		t.machine.RunFrame()
		t.draw()
		t.limiter.WaitForNextFrame()
	}

	slog.Info("session ended",
		"frames", t.machine.Frames(),
		"instructions", t.machine.Instructions())
	return nil
}

func (t *Terminal) drainEvents(events chan tcell.Event) {
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				t.handleKey(ev)
			case *tcell.EventResize:
				t.screen.Sync()
			}
		default:
			return
		}
	}
}

func (t *Terminal) handleKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		t.running = false
	case tcell.KeyUp:
		t.press(memory.ButtonUp)
	case tcell.KeyDown:
		t.press(memory.ButtonDown)
	case tcell.KeyLeft:
		t.press(memory.ButtonLeft)
	case tcell.KeyRight:
		t.press(memory.ButtonRight)
	case tcell.KeyEnter:
		t.press(memory.ButtonStart)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		t.press(memory.ButtonSelect)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'z', 'Z':
			t.press(memory.ButtonA)
		case 'x', 'X':
			t.press(memory.ButtonB)
		case 'v', 'V':
			t.showTiles = !t.showTiles
		case 'q', 'Q':
			t.running = false
		}
	}
}

func (t *Terminal) press(button memory.Button) {
	t.machine.SetButton(button, true)
	t.keyStates[button] = time.Now()
}

// releaseStaleKeys synthesizes key-up events for buttons whose last
// key-down is older than the hold window.
func (t *Terminal) releaseStaleKeys() {
	now := time.Now()
	for button, pressed := range t.keyStates {
		if now.Sub(pressed) > keyHoldDuration {
			t.machine.SetButton(button, false)
			delete(t.keyStates, button)
		}
	}
}

func (t *Terminal) draw() {
	frame := t.machine.Frame()
	if t.showTiles {
		frame = t.machine.Bus().PPU().DebugTiles()
	}

	buffer := frame.ToSlice()
	for y := 0; y < video.FramebufferHeight; y += 2 {
		for x := 0; x < video.FramebufferWidth; x++ {
			top := pixelColor(buffer[y*video.FramebufferWidth+x])
			bottom := pixelColor(buffer[(y+1)*video.FramebufferWidth+x])
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			t.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
	t.screen.Show()
}

func pixelColor(pixel uint32) tcell.Color {
	return tcell.NewRGBColor(
		int32(pixel>>24&0xFF),
		int32(pixel>>16&0xFF),
		int32(pixel>>8&0xFF))
}
