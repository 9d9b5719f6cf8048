//go:build linux

package sensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/reef-pi/rpi/i2c"
)

// ADS1115 registers and config bits.
const (
	regConversion = 0x00
	regConfig     = 0x01

	configOsSingle    uint16 = 0x8000
	configModeSingle  uint16 = 0x0100
	configDataRate860 uint16 = 0x00E0
	configGainOne     uint16 = 0x0200 // +/- 4.096V
	configCompDisable uint16 = 0x0003

	convTimeout  = 50 * time.Millisecond
	convPollWait = 200 * time.Microsecond
)

// DefaultAddress is the ADS1115 address with ADDR tied to GND.
const DefaultAddress = 0x48

// Channels maps each sensor to an ADS1115 single-ended input.
type Channels struct {
	PH    int
	EC    int
	Light int
}

// DefaultChannels wires pH to AIN0, EC to AIN1 and the light sensor to AIN2.
var DefaultChannels = Channels{PH: 0, EC: 1, Light: 2}

// ADS1115 reads three single-ended channels from a TI ADS1115 over I²C.
// Conversions are shifted down to 12 bits so that Convert works with
// DefaultRawMax regardless of the converter.
type ADS1115 struct {
	bus      i2c.Bus
	address  byte
	channels Channels
}

// NewADS1115 opens the I²C bus and returns a reader for the ADC at address.
func NewADS1115(address byte, channels Channels) (*ADS1115, error) {
	for _, ch := range []int{channels.PH, channels.EC, channels.Light} {
		if _, ok := muxForChannel(ch); !ok {
			return nil, fmt.Errorf("ads1115: invalid channel %d", ch)
		}
	}
	bus, err := i2c.New()
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	return &ADS1115{bus: bus, address: address, channels: channels}, nil
}

// Read converts each channel in turn.
func (a *ADS1115) Read() (Raw, error) {
	ph, err := a.readChannel(a.channels.PH)
	if err != nil {
		return Raw{}, fmt.Errorf("ph channel: %w", err)
	}
	ec, err := a.readChannel(a.channels.EC)
	if err != nil {
		return Raw{}, fmt.Errorf("ec channel: %w", err)
	}
	light, err := a.readChannel(a.channels.Light)
	if err != nil {
		return Raw{}, fmt.Errorf("light channel: %w", err)
	}
	return Raw{PH: ph, EC: ec, Light: light}, nil
}

func (a *ADS1115) readChannel(ch int) (int, error) {
	mux, _ := muxForChannel(ch)
	config := configOsSingle | configModeSingle | configDataRate860 | configGainOne | configCompDisable | mux

	if err := a.bus.WriteToReg(a.address, regConfig, []byte{byte(config >> 8), byte(config)}); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}

	// Poll the OS bit until the single-shot conversion is done.
	deadline := time.Now().Add(convTimeout)
	cfg := make([]byte, 2)
	for {
		if err := a.bus.ReadFromReg(a.address, regConfig, cfg); err != nil {
			return 0, fmt.Errorf("read config: %w", err)
		}
		if binary.BigEndian.Uint16(cfg)&configOsSingle != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, errors.New("conversion timeout")
		}
		time.Sleep(convPollWait)
	}

	b := make([]byte, 2)
	if err := a.bus.ReadFromReg(a.address, regConversion, b); err != nil {
		return 0, fmt.Errorf("read conversion: %w", err)
	}
	raw := int16(binary.BigEndian.Uint16(b))
	if raw < 0 {
		raw = 0
	}
	return int(raw) >> 3, nil
}

// Close releases the I²C bus.
func (a *ADS1115) Close() error {
	if err := a.bus.Close(); err != nil {
		return fmt.Errorf("close i2c bus: %w", err)
	}
	return nil
}

func muxForChannel(ch int) (uint16, bool) {
	switch ch {
	case 0:
		return 0x4000, true
	case 1:
		return 0x5000, true
	case 2:
		return 0x6000, true
	case 3:
		return 0x7000, true
	default:
		return 0, false
	}
}
