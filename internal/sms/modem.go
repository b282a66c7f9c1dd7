// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

const ctrlZ = "\x1a"

var (
	// ErrModemRejected is returned when the modem answers ERROR or +CMS ERROR.
	ErrModemRejected = errors.New("modem rejected command")
	// ErrTimeout is returned when the modem does not answer in time.
	ErrTimeout = errors.New("modem did not answer in time")
	// ErrModemClosed is returned once the serial port has been closed.
	ErrModemClosed = errors.New("modem port closed")
)

// Modem drives a GSM modem in SMS text mode over a serial port using
// Hayes AT commands. Sends are serialized.
type Modem struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	log     logrus.FieldLogger

	mu     sync.Mutex
	chunks chan []byte
	buf    []byte
	closed atomic.Bool
}

// OpenModem opens the serial port and puts the modem into text mode.
func OpenModem(portName string, baud uint, timeout time.Duration, log logrus.FieldLogger) (*Modem, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:   portName,
		BaudRate:   baud,
		DataBits:   8,
		StopBits:   1,
		ParityMode: serial.PARITY_NONE,
		// Reads return (0, io.EOF) after 100ms of silence so the reader
		// goroutine notices Close.
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("open modem %s: %w", portName, err)
	}

	m, err := NewModem(port, timeout, log)
	if err != nil {
		return nil, err
	}
	log.Infof("GSM modem ready on %s at %d baud", portName, baud)
	return m, nil
}

// NewModem initializes a modem on an already open port. The port is
// closed when initialization fails.
func NewModem(port io.ReadWriteCloser, timeout time.Duration, log logrus.FieldLogger) (*Modem, error) {
	m := &Modem{
		port:    port,
		timeout: timeout,
		log:     log,
		chunks:  make(chan []byte, 16),
	}
	go m.readLoop()

	ctx := context.Background()
	for _, cmd := range []string{"AT", "ATE0", "AT+CMGF=1"} {
		if err := m.command(ctx, cmd+"\r", "OK"); err != nil {
			m.Close()
			return nil, fmt.Errorf("modem init %s: %w", cmd, err)
		}
	}
	return m, nil
}

// SendText submits one SMS and waits for the modem to confirm it.
func (m *Modem) SendText(ctx context.Context, destination, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.commandLocked(ctx, fmt.Sprintf("AT+CMGS=\"%s\"\r", destination), ">"); err != nil {
		return fmt.Errorf("start SMS to %s: %w", destination, err)
	}
	if err := m.commandLocked(ctx, sanitize(text)+ctrlZ, "OK"); err != nil {
		return fmt.Errorf("send SMS to %s: %w", destination, err)
	}
	return nil
}

func (m *Modem) Close() error {
	m.closed.Store(true)
	return m.port.Close()
}

func (m *Modem) command(ctx context.Context, cmd, want string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commandLocked(ctx, cmd, want)
}

func (m *Modem) commandLocked(ctx context.Context, cmd, want string) error {
	m.drain()
	if _, err := io.WriteString(m.port, cmd); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return m.expect(ctx, want)
}

// expect reads until want appears, an error result code appears, the
// timeout elapses or ctx is done. The buffer is consumed either way.
func (m *Modem) expect(ctx context.Context, want string) error {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	for {
		if i := bytes.Index(m.buf, []byte(want)); i >= 0 {
			m.buf = m.buf[:0]
			return nil
		}
		if line, ok := errorLine(m.buf); ok {
			m.buf = m.buf[:0]
			return fmt.Errorf("%w: %s", ErrModemRejected, line)
		}

		select {
		case chunk, ok := <-m.chunks:
			if !ok {
				return ErrModemClosed
			}
			m.buf = append(m.buf, chunk...)
		case <-timer.C:
			m.log.Debugf("modem timeout waiting for %q, got %q", want, m.buf)
			m.buf = m.buf[:0]
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain discards unsolicited output received between commands.
func (m *Modem) drain() {
	m.buf = m.buf[:0]
	for {
		select {
		case _, ok := <-m.chunks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (m *Modem) readLoop() {
	defer close(m.chunks)

	b := make([]byte, 256)
	for {
		n, err := m.port.Read(b)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, b[:n])
			m.chunks <- chunk
		}
		if err == nil {
			continue
		}
		if m.closed.Load() {
			return
		}
		// An idle read timeout looks like EOF on a tty.
		if n == 0 && errors.Is(err, io.EOF) {
			continue
		}
		m.log.WithError(err).Warn("modem read stopped")
		return
	}
}

func errorLine(buf []byte) (string, bool) {
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "ERROR" || strings.HasPrefix(line, "+CMS ERROR") || strings.HasPrefix(line, "+CME ERROR") {
			return line, true
		}
	}
	return "", false
}

// sanitize removes the characters that end or abort text entry.
func sanitize(text string) string {
	return strings.NewReplacer(ctrlZ, "", "\x1b", "").Replace(text)
}
