package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	serialBaud        = 115200
	serialReadTimeout = time.Second
)

// serialMode is the fixed 8N1 line setup the receiving hardware expects.
var serialMode = serial.Mode{
	BaudRate: serialBaud,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// WriteError reports a frame that did not reach the serial device in full.
type WriteError struct {
	Device string
	Frame  []byte
	N      int
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("serial: write % X to %s (%d/%d bytes): %v", e.Frame, e.Device, e.N, len(e.Frame), e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SerialPort wraps a go.bug.st/serial port with a frame-send helper.
type SerialPort struct {
	device string
	port   serial.Port
	closed bool
}

// OpenSerial opens the named serial device with the fixed line settings.
func OpenSerial(device string) (*SerialPort, error) {
	mode := serialMode
	p, err := serial.Open(device, &mode)
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortNotFound {
			return nil, fmt.Errorf("serial: device %s not found: %w", device, err)
		}
		return nil, fmt.Errorf("serial: open %s: %w", device, err)
	}
	if err := p.SetReadTimeout(serialReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serial: set read timeout on %s: %w", device, err)
	}
	logger.Info("serial: port opened", "device", device, "baud", mode.BaudRate, "data_bits", mode.DataBits)
	return newSerialPort(device, p), nil
}

func newSerialPort(device string, p serial.Port) *SerialPort {
	return &SerialPort{device: device, port: p}
}

// WriteFrame encodes f and hands it to the device in a single write.
func (s *SerialPort) WriteFrame(f Frame) error {
	data := f.Encode()
	n, err := s.port.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &WriteError{Device: s.device, Frame: data, N: n, Err: err}
	}
	logger.Info("serial: frame sent", "format", f.Format, "bytes", fmt.Sprintf("% X", data))
	return nil
}

// Close closes the underlying serial port. Calling it twice is a no-op.
func (s *SerialPort) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	logger.Info("serial: closing port", "device", s.device)
	return s.port.Close()
}

// listSerialPorts describes every serial device the OS reports, with USB
// identifiers where available.
func listSerialPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		// The detailed enumerator is not available everywhere; fall back to
		// plain device names.
		logger.Debug("serial: detailed enumeration failed", "err", err)
		names, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("serial: list ports: %w", err)
		}
		return names, nil
	}
	out := make([]string, 0, len(ports))
	for _, p := range ports {
		if !p.IsUSB {
			out = append(out, p.Name)
			continue
		}
		desc := []string{p.Name, "usb " + p.VID + ":" + p.PID}
		if p.Product != "" {
			desc = append(desc, p.Product)
		}
		if p.SerialNumber != "" {
			desc = append(desc, "sn "+p.SerialNumber)
		}
		out = append(out, strings.Join(desc, " "))
	}
	return out, nil
}
