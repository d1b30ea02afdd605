package memory

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	titleAddress         = 0x134
	titleLength          = 16
	cartridgeTypeAddress = 0x147
	romSizeAddress       = 0x148
	ramSizeAddress       = 0x149
	versionNumberAddress = 0x14C

	maxROMSize = 0x8000 // flat 32 KiB, no banking
	extRAMSize = 0x2000
)

// Cartridge is a flat ROM-only cartridge with 8 KiB of external RAM.
// Banked controllers are rejected at load time.
type Cartridge struct {
	rom []byte
	ram [extRAMSize]byte

	title    string
	cartType uint8
	version  uint8
}

// NewCartridge creates an empty cartridge. All ROM reads return 0xFF, which
// matches powering on with nothing inserted.
func NewCartridge() *Cartridge {
	return &Cartridge{}
}

// NewCartridgeWithData initializes a cartridge from a raw ROM image.
func NewCartridgeWithData(data []byte) (*Cartridge, error) {
	if len(data) > maxROMSize {
		return nil, fmt.Errorf("ROM is %d bytes, only flat 32 KiB cartridges are supported", len(data))
	}
	if len(data) < 0x150 {
		return nil, fmt.Errorf("ROM is %d bytes, too small to contain a cartridge header", len(data))
	}

	cart := &Cartridge{
		rom:      data,
		cartType: data[cartridgeTypeAddress],
		version:  data[versionNumberAddress],
	}

	title := data[titleAddress : titleAddress+titleLength]
	cart.title = strings.TrimRight(string(title), "\x00")

	// 0x00 = ROM only, 0x08/0x09 = ROM+RAM variants without a controller.
	switch cart.cartType {
	case 0x00, 0x08, 0x09:
	default:
		return nil, fmt.Errorf("unsupported cartridge type 0x%02X (MBC cartridges are not handled)", cart.cartType)
	}

	slog.Debug("loaded cartridge",
		"title", cart.title,
		"type", fmt.Sprintf("0x%02X", cart.cartType),
		"rom_size", fmt.Sprintf("0x%02X", data[romSizeAddress]),
		"ram_size", fmt.Sprintf("0x%02X", data[ramSizeAddress]),
		"version", cart.version)

	return cart, nil
}

// NewCartridgeFromFile loads a ROM image from disk.
func NewCartridgeFromFile(path string) (*Cartridge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ROM: %w", err)
	}
	return NewCartridgeWithData(data)
}

// Title returns the game title from the cartridge header.
func (c *Cartridge) Title() string {
	return c.title
}

// Read returns a byte from ROM (0x0000-0x7FFF) or external RAM
// (0xA000-0xBFFF). Out of range ROM reads return 0xFF.
func (c *Cartridge) Read(address uint16) byte {
	switch {
	case address < 0x8000:
		if int(address) >= len(c.rom) {
			return 0xFF
		}
		return c.rom[address]
	case address >= 0xA000 && address < 0xC000:
		return c.ram[address-0xA000]
	}
	return 0xFF
}

// Write stores to external RAM. ROM writes are dropped; with no bank
// controller there is nothing for them to latch.
func (c *Cartridge) Write(address uint16, value byte) {
	if address >= 0xA000 && address < 0xC000 {
		c.ram[address-0xA000] = value
	}
}
