//go:build !linux

package sensor

import "errors"

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

// ADS1115 is not available on non-Linux platforms.
type ADS1115 struct{}

// NewADS1115 returns an error on non-Linux platforms.
func NewADS1115(address byte, channels Channels) (*ADS1115, error) {
	return nil, errors.New("sensor: ads1115 not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (a *ADS1115) Read() (Raw, error) {
	return Raw{}, errors.New("sensor: not supported")
}

// Close is not implemented on non-Linux platforms.
func (a *ADS1115) Close() error {
	return nil
}
