package detect

import (
	"fmt"

	"github.com/bigbag/samba-flasher/internal/device"
	"github.com/bigbag/samba-flasher/internal/protocol"
	"github.com/bigbag/samba-flasher/internal/serial"
	"github.com/bigbag/samba-flasher/internal/transport"
)

// Result represents a detected SAM-BA bootloader device.
type Result struct {
	Port  string
	Caps  protocol.Capabilities
	Flash device.FlashDescriptor
}

// DetectDevice tries the init handshake on every available serial
// port and returns the first recognized device.
func DetectDevice(baudRate int) (*Result, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("no serial ports found")
	}

	var lastErr error
	for _, portName := range ports {
		result, err := tryPort(portName, baudRate)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no bootloader device found (last error: %w)", lastErr)
	}
	return nil, fmt.Errorf("no bootloader device found")
}

// DetectOnPort tries the init handshake on a specific port.
func DetectOnPort(portName string, baudRate int) (*Result, error) {
	return tryPort(portName, baudRate)
}

// ListDevices scans all ports and returns every recognized device.
func ListDevices(baudRate int) ([]Result, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	var results []Result
	for _, portName := range ports {
		result, err := tryPort(portName, baudRate)
		if err == nil {
			results = append(results, *result)
		}
	}

	return results, nil
}

func tryPort(portName string, baudRate int) (*Result, error) {
	port, err := serial.Open(portName, baudRate)
	if err != nil {
		return nil, err
	}
	defer port.Close()

	dev, err := device.Init(transport.New(port), portName)
	if err != nil {
		return nil, err
	}

	return &Result{
		Port:  portName,
		Caps:  dev.Caps,
		Flash: dev.Flash,
	}, nil
}
