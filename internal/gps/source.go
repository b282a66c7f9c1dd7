// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"context"
	"fmt"
	"io"
	"net"

	serial "github.com/jacobsa/go-serial/serial"
)

// SerialSource is a GPS receiver attached to a serial port
// (/dev/serial0, /dev/ttyAMA0, /dev/ttyUSB0, ...).
type SerialSource struct {
	PortName string
	BaudRate uint
}

func (s SerialSource) Open(_ context.Context) (io.ReadCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:              s.PortName,
		BaudRate:              s.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	})
}

func (s SerialSource) String() string {
	return fmt.Sprintf("serial %s@%d", s.PortName, s.BaudRate)
}

// TCPSource is a raw NMEA stream served over TCP, such as gpsd's NMEA
// port or a phone app sharing its location.
type TCPSource struct {
	Addr string
}

func (s TCPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", s.Addr)
}

func (s TCPSource) String() string {
	return "tcp " + s.Addr
}
