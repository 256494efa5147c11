package main

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// serialStream adapts a serial port to the link byte stream. The short
// read timeout makes Read behave like a drain of whatever bytes have
// arrived, which is what the receive schedule wants.
type serialStream struct {
	port serial.Port
}

func openSerial(device string, baud int) (*serialStream, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &serialStream{port: port}, nil
}

func (s *serialStream) ReadAvailable(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *serialStream) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialStream) Close() error {
	return s.port.Close()
}
