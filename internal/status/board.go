// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package status

import (
	"context"
	"sync"
	"time"

	"github.com/relabs-tech/sms_beacon/internal/beacon"
	"github.com/relabs-tech/sms_beacon/internal/gps"
)

const (
	LabelWaiting    = "Status: Waiting for location..."
	LabelAcquired   = "Status: Location acquired!"
	LabelNoLocation = "Status: No Location!"
)

// State is what the status surfaces show.
type State struct {
	Label           string          `json:"label"`
	ProviderEnabled bool            `json:"provider_enabled"`
	Paused          bool            `json:"paused"`
	Location        *gps.Fix        `json:"location,omitempty"`
	LastMessage     *beacon.Message `json:"last_message,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Board holds the current State and fans changes out to subscribers.
// Subscribers that fall behind miss intermediate states.
type Board struct {
	mu    sync.RWMutex
	state State
	subs  map[chan State]struct{}
	now   func() time.Time
}

var _ beacon.Sink = (*Board)(nil)

func NewBoard() *Board {
	return &Board{
		state: State{Label: LabelWaiting, ProviderEnabled: true},
		subs:  make(map[chan State]struct{}),
		now:   time.Now,
	}
}

// SetLocation updates the label the way the location callback does: a
// fix means acquired, nil means no location.
func (b *Board) SetLocation(fix *gps.Fix) {
	b.update(func(s *State) {
		if fix == nil {
			s.Label = LabelNoLocation
			s.Location = nil
			return
		}
		cp := *fix
		s.Label = LabelAcquired
		s.Location = &cp
	})
}

func (b *Board) SetProviderEnabled(enabled bool) {
	b.update(func(s *State) { s.ProviderEnabled = enabled })
}

func (b *Board) SetPaused(paused bool) {
	b.update(func(s *State) { s.Paused = paused })
}

// Deliver records the latest beacon message.
func (b *Board) Deliver(_ context.Context, msg beacon.Message) error {
	b.update(func(s *State) {
		m := msg
		s.LastMessage = &m
	})
	return nil
}

// State returns a copy of the current state.
func (b *Board) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Subscribe returns a channel of state changes and a function that ends
// the subscription and closes the channel.
func (b *Board) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Board) update(fn func(*State)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fn(&b.state)
	b.state.UpdatedAt = b.now()

	for ch := range b.subs {
		select {
		case ch <- b.state:
		default:
		}
	}
}
