package source

import (
	"fmt"
	"io"

	"github.com/tarm/serial"
)

func openSerial(device string, baud int) (io.ReadWriteCloser, error) {
	if device == "" {
		return nil, ErrNoDevice
	}
	if baud == 0 {
		baud = 9600
	}
	p, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return p, nil
}
