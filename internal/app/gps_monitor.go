package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/sms_beacon/internal/config"
	"github.com/relabs-tech/sms_beacon/internal/gps"
	"github.com/relabs-tech/sms_beacon/internal/snapshot"
)

// fixPrinter prints every callback and the beacon text the fix would
// produce, without sensors.
type fixPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	record *snapshot.Record
	now    func() time.Time
}

func (p *fixPrinter) OnLocationChanged(fix *gps.Fix) {
	p.record.SetLocation(fix)

	p.mu.Lock()
	defer p.mu.Unlock()
	if fix == nil {
		fmt.Fprintln(p.w, "[GPS ]  no location")
	} else {
		fmt.Fprintf(p.w, "[GPS ]  %-7s time=%s lat=%.6f lon=%.6f alt=%.1fm speed=%.1fm/s bearing=%.1f° acc=%.1fm\n",
			fix.Provider, fix.Time.Format(time.RFC3339), fix.Latitude, fix.Longitude,
			fix.Altitude, fix.Speed, fix.Bearing, fix.Accuracy)
	}
	fmt.Fprintf(p.w, "[SMS ]  %s\n", p.record.Message(p.now()))
}

func (p *fixPrinter) OnStatusChanged(provider, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[STAT]  %s %s\n", provider, status)
}

func (p *fixPrinter) OnProviderEnabled(provider string) {
	p.record.SetProviderEnabled(true)
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[STAT]  %s enabled\n", provider)
}

func (p *fixPrinter) OnProviderDisabled(provider string) {
	p.record.SetProviderEnabled(false)
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[STAT]  %s disabled\n", provider)
}

// RunGPSMonitor runs the configured location providers and prints their
// fixes until ctx is cancelled or every provider has stopped.
func RunGPSMonitor(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	locations := locationSources(cfg)
	if len(locations) == 0 {
		return errors.New("no location provider configured (set GPS_SERIAL_PORT or NETWORK_NMEA_ADDR)")
	}
	return monitor(ctx, locations, cfg.GPSMinInterval(), os.Stdout, log)
}

func monitor(ctx context.Context, locations []LocationSource, minInterval time.Duration, w io.Writer, log logrus.FieldLogger) error {
	printer := &fixPrinter{w: w, record: snapshot.New(), now: time.Now}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, loc := range locations {
		p := gps.NewProvider(loc.Name, loc.Source, printer, minInterval, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
