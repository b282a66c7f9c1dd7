// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sms

//go:generate mockgen -source=sender.go -destination=mocks/mock_sender.go -package=mocks

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/sms_beacon/internal/beacon"
)

// Sender transmits one text message to one destination number.
type Sender interface {
	SendText(ctx context.Context, destination, text string) error
}

// LogSender logs messages instead of sending them.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) SendText(_ context.Context, destination, text string) error {
	s.Log.WithField("to", destination).Infof("SMS (not sent): %s", text)
	return nil
}

// Dispatcher sends every beacon message to a fixed list of destinations.
type Dispatcher struct {
	sender       Sender
	destinations []string
	log          logrus.FieldLogger
}

var _ beacon.Sink = (*Dispatcher)(nil)

func NewDispatcher(sender Sender, destinations []string, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		sender:       sender,
		destinations: append([]string(nil), destinations...),
		log:          log,
	}
}

// Deliver sends msg to each destination in order. A failure for one
// destination is logged and does not stop the rest; there is no retry.
// The returned error joins every per-destination failure.
func (d *Dispatcher) Deliver(ctx context.Context, msg beacon.Message) error {
	var errs []error
	for _, dest := range d.destinations {
		log := d.log.WithField("to", dest).WithField("dispatch_id", msg.ID)
		if err := d.sender.SendText(ctx, dest, msg.Text); err != nil {
			log.WithError(err).Warn("SMS send failed")
			errs = append(errs, err)
			continue
		}
		log.Debug("SMS sent")
	}
	return errors.Join(errs...)
}
