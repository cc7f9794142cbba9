//go:build !linux

package transport

import (
	"fmt"
	"runtime"
)

func openSerial(cfg SerialConfig) (Transport, error) {
	return nil, fmt.Errorf("serial transport not supported on %s", runtime.GOOS)
}
