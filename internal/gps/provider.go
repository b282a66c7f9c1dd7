// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Source opens a stream of NMEA lines.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// Provider reads NMEA from a Source and reports fixes to a Listener.
// It registers with a zero distance filter: every valid fix is reported
// as long as at least MinInterval has passed since the previous one.
type Provider struct {
	Name        string
	Source      Source
	Listener    Listener
	MinInterval time.Duration
	Log         logrus.FieldLogger

	now      func() time.Time
	lastEmit time.Time
}

// NewProvider builds a provider with the given name ("gps", "network").
func NewProvider(name string, src Source, l Listener, minInterval time.Duration, log logrus.FieldLogger) *Provider {
	return &Provider{
		Name:        name,
		Source:      src,
		Listener:    l,
		MinInterval: minInterval,
		Log:         log.WithField("provider", name),
		now:         time.Now,
	}
}

// Run opens the source and processes sentences until the stream ends or
// ctx is cancelled. The provider is reported enabled once the source opens
// and disabled when it fails. There is no reconnect: a failed provider
// stays disabled until the process restarts.
func (p *Provider) Run(ctx context.Context) error {
	rc, err := p.Source.Open(ctx)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			p.Log.Warnf("no location permission granted for %s", p.Source)
		} else {
			p.Log.WithError(err).Warnf("location source %s unavailable", p.Source)
		}
		p.Listener.OnProviderDisabled(p.Name)
		return fmt.Errorf("%s provider: open %s: %w", p.Name, p.Source, err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			rc.Close()
		case <-stop:
			rc.Close()
		}
	}()

	p.Log.Infof("location source %s opened", p.Source)
	p.Listener.OnProviderEnabled(p.Name)

	tracker := NewTracker(p.Name)
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		fix, status, err := tracker.Feed(scanner.Text())
		if err != nil {
			// noisy receivers emit partial sentences
			p.Log.WithError(err).Debug("NMEA parse error")
			continue
		}
		if status != "" {
			p.Log.Infof("status changed: %s", status)
			p.Listener.OnStatusChanged(p.Name, status)
		}
		if fix != nil {
			p.emit(fix)
		}
	}

	if ctx.Err() != nil {
		return nil
	}

	err = scanner.Err()
	if err == nil {
		err = io.EOF
	}
	p.Log.WithError(err).Warn("location source closed")
	p.Listener.OnProviderDisabled(p.Name)
	return fmt.Errorf("%s provider: read: %w", p.Name, err)
}

func (p *Provider) emit(fix *Fix) {
	now := p.now()
	if !p.lastEmit.IsZero() && now.Sub(p.lastEmit) < p.MinInterval {
		return
	}
	p.lastEmit = now
	if fix.Time.IsZero() {
		fix.Time = now.UTC()
	}
	p.Listener.OnLocationChanged(fix)
}
