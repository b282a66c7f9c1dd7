package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/sms_beacon/internal/beacon"
	"github.com/relabs-tech/sms_beacon/internal/gps"
	"github.com/relabs-tech/sms_beacon/internal/sensors"
	"github.com/relabs-tech/sms_beacon/internal/snapshot"
	"github.com/relabs-tech/sms_beacon/internal/status"
)

// LocationSource is a named NMEA stream ("gps" or "network").
type LocationSource struct {
	Name   string
	Source gps.Source
}

// Settings are the timing and provider choices for a Controller.
type Settings struct {
	Locations    []LocationSource
	MinInterval  time.Duration // location updates
	SensorDelay  time.Duration
	Period       time.Duration // beacon
	InitialDelay time.Duration
}

// Controller owns the shared record and drives it through the lifecycle:
// Create starts the location providers and the beacon, Resume and Pause
// attach and detach the environment sensors, Destroy stops everything.
type Controller struct {
	settings Settings
	hub      *sensors.Hub
	board    *status.Board
	sinks    []beacon.Sink
	log      logrus.FieldLogger

	record *snapshot.Record

	// Default sensors, looked up on Create. Any of them may be nil.
	pressure    sensors.Source
	temperature sensors.Source
	gravity     sensors.Source
	listener    sensors.Listener

	mu      sync.Mutex
	created bool
	resumed bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var (
	_ gps.Listener     = (*Controller)(nil)
	_ status.Lifecycle = (*Controller)(nil)
)

var ErrAlreadyCreated = errors.New("controller already created")

// NewController wires a controller. Every beacon message goes to sinks in
// order and then to the board.
func NewController(hub *sensors.Hub, board *status.Board, settings Settings, log logrus.FieldLogger, sinks ...beacon.Sink) *Controller {
	c := &Controller{
		settings: settings,
		hub:      hub,
		board:    board,
		sinks:    append(append([]beacon.Sink{}, sinks...), board),
		log:      log,
		record:   snapshot.New(),
	}
	c.listener = sensors.ListenerFunc(c.onSensorChanged)
	return c
}

// Record exposes the shared record.
func (c *Controller) Record() *snapshot.Record {
	return c.record
}

// Create starts the location providers and the beacon timer. Providers stay
// registered until Destroy; Pause does not stop them.
func (c *Controller) Create(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.created {
		return ErrAlreadyCreated
	}
	c.created = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for _, loc := range c.settings.Locations {
		p := gps.NewProvider(loc.Name, loc.Source, c, c.settings.MinInterval, c.log)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := p.Run(runCtx); err != nil {
				c.log.WithError(err).Warn("location provider stopped")
			}
		}()
	}
	if len(c.settings.Locations) == 0 {
		c.log.Warn("no location providers configured")
	}

	c.pressure = c.hub.DefaultSensor(sensors.Pressure)
	c.temperature = c.hub.DefaultSensor(sensors.Temperature)
	c.gravity = c.hub.DefaultSensor(sensors.Gravity)

	b := beacon.New(c.record, c.settings.Period, c.settings.InitialDelay, c.log, c.sinks...)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := b.Run(runCtx); err != nil {
			c.log.WithError(err).Error("beacon stopped")
		}
	}()

	c.log.Info("created")
	return nil
}

// Resume registers the sensor listener with every sensor the device has.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resumed {
		return
	}
	c.resumed = true

	for _, src := range []sensors.Source{c.pressure, c.temperature, c.gravity} {
		if src == nil {
			continue
		}
		c.hub.Register(c.listener, src, c.settings.SensorDelay)
	}
	c.board.SetPaused(false)
	c.log.Info("resumed")
}

// Pause unregisters the sensor listener. The last readings stay in the
// record and keep being sent.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopSensorsLocked() {
		return
	}
	c.board.SetPaused(true)
	c.log.Info("paused")
}

// stopSensorsLocked unregisters the sensor listener and reports whether it
// was registered. c.mu must be held.
func (c *Controller) stopSensorsLocked() bool {
	if !c.resumed {
		return false
	}
	c.resumed = false
	c.hub.Unregister(c.listener)
	return true
}

// Destroy releases the sensors, then stops the providers and the beacon and
// waits for them to exit. The board keeps its paused flag as it was, so the
// last published status reflects the running state rather than a pause.
func (c *Controller) Destroy() {
	c.mu.Lock()
	c.stopSensorsLocked()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.log.Info("destroyed")
}

func (c *Controller) OnLocationChanged(fix *gps.Fix) {
	c.record.SetLocation(fix)
	c.board.SetLocation(fix)
	if fix != nil {
		c.log.WithFields(logrus.Fields{
			"provider": fix.Provider,
			"lat":      fix.Latitude,
			"lon":      fix.Longitude,
		}).Debug("location changed")
	}
}

func (c *Controller) OnStatusChanged(provider, status string) {
	c.log.WithField("provider", provider).Infof("provider status: %s", status)
}

func (c *Controller) OnProviderEnabled(provider string) {
	c.record.SetProviderEnabled(true)
	c.board.SetProviderEnabled(true)
}

func (c *Controller) OnProviderDisabled(provider string) {
	c.record.SetProviderEnabled(false)
	c.board.SetProviderEnabled(false)
}

func (c *Controller) onSensorChanged(ev sensors.Event) {
	switch ev.Kind {
	case sensors.Pressure:
		c.record.SetPressure(float32(ev.Value))
	case sensors.Temperature:
		c.record.SetTemperature(float32(ev.Value))
	case sensors.Gravity:
		c.record.SetGravity(float32(ev.Value))
	}
}
