package sms

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort answers AT commands the way a SIM800-class modem does.
type fakePort struct {
	mu      sync.Mutex
	written []string
	reply   func(cmd string) string

	out    chan []byte
	closed bool
}

func newFakePort(reply func(cmd string) string) *fakePort {
	return &fakePort{reply: reply, out: make(chan []byte, 16)}
}

func okModem(cmd string) string {
	switch {
	case strings.HasPrefix(cmd, "AT+CMGS="):
		return "\r\n> "
	case strings.HasSuffix(cmd, ctrlZ):
		return "\r\n+CMGS: 17\r\n\r\nOK\r\n"
	default:
		return "\r\nOK\r\n"
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	cmd := string(b)
	p.written = append(p.written, cmd)
	if r := p.reply(cmd); r != "" {
		p.out <- []byte(r)
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	chunk, ok := <-p.out
	if !ok {
		return 0, io.EOF
	}
	return copy(b, chunk), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.out)
	}
	return nil
}

// ttyPort reads like a serial port opened with VMIN=0 and VTIME>0: when
// nothing arrives within the inter-character timeout the read returns
// (0, io.EOF), and the port stays usable.
type ttyPort struct {
	*fakePort
	vtime time.Duration
}

func (p ttyPort) Read(b []byte) (int, error) {
	select {
	case chunk, ok := <-p.out:
		if !ok {
			return 0, os.ErrClosed
		}
		return copy(b, chunk), nil
	case <-time.After(p.vtime):
		return 0, io.EOF
	}
}

func (p *fakePort) commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

func testLog() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func TestModem_InitAndSend(t *testing.T) {
	port := newFakePort(okModem)
	m, err := NewModem(port, time.Second, testLog())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.SendText(context.Background(), "07473424585", "1700000000000,No Location!;"))

	assert.Equal(t, []string{
		"AT\r",
		"ATE0\r",
		"AT+CMGF=1\r",
		"AT+CMGS=\"07473424585\"\r",
		"1700000000000,No Location!;\x1a",
	}, port.commands())
}

func TestModem_Rejected(t *testing.T) {
	port := newFakePort(func(cmd string) string {
		if strings.HasSuffix(cmd, ctrlZ) {
			return "\r\n+CMS ERROR: 500\r\n"
		}
		return okModem(cmd)
	})
	m, err := NewModem(port, time.Second, testLog())
	require.NoError(t, err)
	defer m.Close()

	err = m.SendText(context.Background(), "07591849894", "x;")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModemRejected)
	assert.Contains(t, err.Error(), "+CMS ERROR: 500")
}

func TestModem_Timeout(t *testing.T) {
	port := newFakePort(func(cmd string) string {
		if strings.HasPrefix(cmd, "AT+CMGS=") {
			return ""
		}
		return okModem(cmd)
	})
	m, err := NewModem(port, 50*time.Millisecond, testLog())
	require.NoError(t, err)
	defer m.Close()

	err = m.SendText(context.Background(), "07591849894", "x;")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestModem_InitFails(t *testing.T) {
	port := newFakePort(func(cmd string) string {
		if cmd == "AT+CMGF=1\r" {
			return "\r\nERROR\r\n"
		}
		return okModem(cmd)
	})

	_, err := NewModem(port, time.Second, testLog())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModemRejected)
	assert.Contains(t, err.Error(), "AT+CMGF=1")
}

func TestModem_Closed(t *testing.T) {
	port := newFakePort(okModem)
	m, err := NewModem(port, time.Second, testLog())
	require.NoError(t, err)
	require.NoError(t, m.Close())

	assert.Error(t, m.SendText(context.Background(), "07473424585", "x;"))
}

func TestModem_SurvivesIdleReadTimeouts(t *testing.T) {
	port := ttyPort{fakePort: newFakePort(okModem), vtime: 2 * time.Millisecond}
	m, err := NewModem(port, time.Second, testLog())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.SendText(context.Background(), "07473424585", "first;"))

	// many idle reads between beacon periods
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, m.SendText(context.Background(), "07591849894", "second;"))
	assert.Equal(t, "second;\x1a", port.commands()[len(port.commands())-1])
}

func TestModem_IdlePortClosed(t *testing.T) {
	port := ttyPort{fakePort: newFakePort(okModem), vtime: 2 * time.Millisecond}
	m, err := NewModem(port, time.Second, testLog())
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Close())

	err = m.SendText(context.Background(), "07473424585", "x;")
	assert.Error(t, err)
}

func TestModem_InitFailureClosesPort(t *testing.T) {
	port := newFakePort(func(cmd string) string {
		if cmd == "AT\r" {
			return "\r\nERROR\r\n"
		}
		return okModem(cmd)
	})

	_, err := NewModem(port, time.Second, testLog())
	require.Error(t, err)

	port.mu.Lock()
	defer port.mu.Unlock()
	assert.True(t, port.closed)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "abc;", sanitize("a\x1ab\x1bc;"))
}
