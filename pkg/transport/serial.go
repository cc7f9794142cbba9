// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package transport

import "fmt"

// SerialConfig describes a serial line. The port is always configured
// raw 8N1 with no flow control; framing is the decoder's job.
type SerialConfig struct {
	Device string // e.g. /dev/ttyUSB0
	Baud   int    // one of the standard rates, e.g. 115200
}

func (c SerialConfig) validate() error {
	if c.Device == "" {
		return fmt.Errorf("serial: device path required")
	}
	if !supportedBaud(c.Baud) {
		return fmt.Errorf("serial: unsupported baud rate %d", c.Baud)
	}
	return nil
}

func supportedBaud(baud int) bool {
	switch baud {
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400:
		return true
	}
	return false
}

// OpenSerial opens a platform-appropriate serial transport.
func OpenSerial(cfg SerialConfig) (Transport, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return openSerial(cfg)
}
