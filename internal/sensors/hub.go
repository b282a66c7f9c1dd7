// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DelayNormal is the default polling delay for a registered listener.
const DelayNormal = 200 * time.Millisecond

// Kind identifies what a Source measures.
type Kind int

const (
	Pressure    Kind = iota // hPa
	Temperature             // °C
	Gravity                 // m/s²
)

func (k Kind) String() string {
	switch k {
	case Pressure:
		return "pressure"
	case Temperature:
		return "temperature"
	case Gravity:
		return "gravity"
	default:
		return "unknown"
	}
}

// Source is a single sensor channel.
type Source interface {
	Kind() Kind
	Name() string
	Read() (float64, error)
}

// Event is one reading delivered to a Listener.
type Event struct {
	Kind   Kind
	Source string
	Value  float64
	Time   time.Time
}

// Listener receives readings from the sources it is registered with.
// Listeners are used as map keys by the Hub, so implementations must be
// comparable (pointer types are).
type Listener interface {
	OnSensorChanged(ev Event)
}

type funcListener struct {
	fn func(Event)
}

func (l *funcListener) OnSensorChanged(ev Event) { l.fn(ev) }

// ListenerFunc wraps fn as a Listener. Each call returns a distinct
// listener, so keep the result to unregister it later.
func ListenerFunc(fn func(Event)) Listener {
	return &funcListener{fn: fn}
}

type registration struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Hub owns the available sources and the polling goroutines of every
// registered listener.
type Hub struct {
	log     logrus.FieldLogger
	sources []Source
	closers []func() error

	mu   sync.Mutex
	regs map[Listener][]*registration
}

// NewHub returns a hub over the given sources. Nil sources are skipped.
func NewHub(log logrus.FieldLogger, sources ...Source) *Hub {
	h := &Hub{
		log:  log,
		regs: make(map[Listener][]*registration),
	}
	for _, s := range sources {
		if s != nil {
			h.sources = append(h.sources, s)
		}
	}
	return h
}

// DefaultSensor returns the first source of the given kind, or nil when
// the device has none.
func (h *Hub) DefaultSensor(kind Kind) Source {
	for _, s := range h.sources {
		if s.Kind() == kind {
			return s
		}
	}
	return nil
}

// Register starts polling src every delay and delivering readings to l.
// It returns false when src is nil. A listener may be registered with
// several sources; registering the same pair twice polls it twice.
func (h *Hub) Register(l Listener, src Source, delay time.Duration) bool {
	if l == nil || src == nil {
		return false
	}
	if delay <= 0 {
		delay = DelayNormal
	}

	ctx, cancel := context.WithCancel(context.Background())
	reg := &registration{cancel: cancel, done: make(chan struct{})}

	h.mu.Lock()
	h.regs[l] = append(h.regs[l], reg)
	h.mu.Unlock()

	go h.poll(ctx, reg, l, src, delay)

	h.log.WithField("sensor", src.Name()).Debugf("listener registered (%s every %v)", src.Kind(), delay)
	return true
}

// Unregister stops every registration of l and waits for its goroutines
// to exit, so no callback runs after Unregister returns.
func (h *Hub) Unregister(l Listener) {
	h.mu.Lock()
	regs := h.regs[l]
	delete(h.regs, l)
	h.mu.Unlock()

	for _, reg := range regs {
		reg.cancel()
	}
	for _, reg := range regs {
		<-reg.done
	}
	if len(regs) > 0 {
		h.log.Debugf("listener unregistered (%d sources)", len(regs))
	}
}

// Registered reports how many active registrations l has.
func (h *Hub) Registered(l Listener) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.regs[l])
}

// Close unregisters every listener and releases the hardware.
func (h *Hub) Close() error {
	h.mu.Lock()
	listeners := make([]Listener, 0, len(h.regs))
	for l := range h.regs {
		listeners = append(listeners, l)
	}
	h.mu.Unlock()

	for _, l := range listeners {
		h.Unregister(l)
	}

	var firstErr error
	for _, c := range h.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *Hub) poll(ctx context.Context, reg *registration, l Listener, src Source, delay time.Duration) {
	defer close(reg.done)

	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		h.readOnce(l, src)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Hub) readOnce(l Listener, src Source) {
	v, err := src.Read()
	if err != nil {
		h.log.WithError(err).WithField("sensor", src.Name()).Warn("sensor read error")
		return
	}
	l.OnSensorChanged(Event{
		Kind:   src.Kind(),
		Source: src.Name(),
		Value:  v,
		Time:   time.Now(),
	})
}
