// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package beacon runs the periodic timer that formats the current record
// and hands the text to every sink.
package beacon

//go:generate mockgen -source=message.go -destination=mocks/mock_sink.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Formatter renders the message body for a send time.
type Formatter interface {
	Message(now time.Time) string
}

// Beacon fires at a fixed rate after an initial delay. Ticks that would
// overlap a slow delivery are dropped rather than queued.
type Beacon struct {
	src          Formatter
	sinks        []Sink
	period       time.Duration
	initialDelay time.Duration
	log          logrus.FieldLogger

	now   func() time.Time
	newID func() uuid.UUID
}

func New(src Formatter, period, initialDelay time.Duration, log logrus.FieldLogger, sinks ...Sink) *Beacon {
	return &Beacon{
		src:          src,
		sinks:        sinks,
		period:       period,
		initialDelay: initialDelay,
		log:          log,
		now:          time.Now,
		newID:        uuid.New,
	}
}

// Run fires until ctx is cancelled.
func (b *Beacon) Run(ctx context.Context) error {
	if b.initialDelay > 0 {
		timer := time.NewTimer(b.initialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	b.log.Infof("beacon started: every %v to %d sinks", b.period, len(b.sinks))

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for {
		b.Fire(ctx)

		select {
		case <-ctx.Done():
			b.log.Info("beacon stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Fire formats one message and delivers it to every sink. Sink errors are
// logged; delivery continues with the next sink.
func (b *Beacon) Fire(ctx context.Context) Message {
	now := b.now()
	msg := Message{
		ID:     b.newID(),
		Text:   b.src.Message(now),
		SentAt: now,
	}

	log := b.log.WithField("dispatch_id", msg.ID)
	log.Debugf("beacon: %s", msg.Text)

	for _, s := range b.sinks {
		if err := s.Deliver(ctx, msg); err != nil {
			log.WithError(err).Warn("beacon delivery failed")
		}
	}
	return msg
}
