// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package snapshot holds the most recent location and sensor readings and
// renders them into the beacon's SMS text.
package snapshot

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/sms_beacon/internal/gps"
)

const (
	MsgTerminator = ";"
	DataSeparator = ","
	NoLocation    = "No Location!"
)

// Record is the single mutable "current" state. Every setter locks
// independently, so a Message built between two setter calls may combine
// a new location with older sensor values. Nothing is kept beyond the
// latest value of each field.
type Record struct {
	mu sync.Mutex

	loc             *gps.Fix
	providerEnabled bool
	pressure        float32 // hPa
	temperature     float32 // °C
	gravity         float32 // m/s²
}

// Values is a copy of a Record's fields at one instant.
type Values struct {
	Location        *gps.Fix `json:"location"`
	ProviderEnabled bool     `json:"provider_enabled"`
	Pressure        float32  `json:"pressure_hpa"`
	Temperature     float32  `json:"temp_c"`
	Gravity         float32  `json:"gravity_mps2"`
}

// New returns a record with no location, the provider marked enabled and
// all sensor readings at zero.
func New() *Record {
	return &Record{providerEnabled: true}
}

func (r *Record) SetLocation(fix *gps.Fix) {
	var cp *gps.Fix
	if fix != nil {
		v := *fix
		cp = &v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loc = cp
}

func (r *Record) SetProviderEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providerEnabled = enabled
}

func (r *Record) SetPressure(hPa float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pressure = hPa
}

func (r *Record) SetTemperature(celsius float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.temperature = celsius
}

func (r *Record) SetGravity(mps2 float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gravity = mps2
}

// Snapshot copies the current values.
func (r *Record) Snapshot() Values {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := Values{
		ProviderEnabled: r.providerEnabled,
		Pressure:        r.pressure,
		Temperature:     r.temperature,
		Gravity:         r.gravity,
	}
	if r.loc != nil {
		loc := *r.loc
		v.Location = &loc
	}
	return v
}

// Message renders the SMS body for the given send time:
//
//	now,lon,lat,alt,speed,bearing,accuracy,fixTime,providerEnabled,temp,gravity,pressure;
//
// Times are Unix milliseconds. Without a location the body is
// "now,No Location!;".
func (r *Record) Message(now time.Time) string {
	return r.Snapshot().Message(now)
}

// Message renders v the same way Record.Message does.
func (v Values) Message(now time.Time) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteString(DataSeparator)

	if v.Location == nil {
		b.WriteString(NoLocation)
		b.WriteString(MsgTerminator)
		return b.String()
	}

	loc := v.Location
	fields := []string{
		formatDouble(loc.Longitude),
		formatDouble(loc.Latitude),
		formatDouble(loc.Altitude),
		formatFloat(loc.Speed),
		formatFloat(loc.Bearing),
		formatFloat(loc.Accuracy),
		strconv.FormatInt(loc.Time.UnixMilli(), 10),
		strconv.FormatBool(v.ProviderEnabled),
		formatFloat(v.Temperature),
		formatFloat(v.Gravity),
		formatFloat(v.Pressure),
	}
	b.WriteString(strings.Join(fields, DataSeparator))
	b.WriteString(MsgTerminator)
	return b.String()
}

// formatDouble and formatFloat print the shortest representation that
// round-trips at 64 and 32 bits, always with a fractional part. Magnitudes
// outside [1e-3, 1e7) use d.dddE<n> notation, so -0.0005 reads "-5.0E-4"
// and whole numbers read "0.0" and "545.0" on the receiving side.
func formatDouble(f float64) string {
	return decimal(f, 64)
}

func formatFloat(f float32) string {
	return decimal(float64(f), 32)
}

func decimal(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if a := math.Abs(f); a == 0 || (a >= 1e-3 && a < 1e7) {
		return withFraction(strconv.FormatFloat(f, 'f', -1, bits))
	}
	// "5.144E-04" -> "5.144E-4", "1E+07" -> "1.0E7"
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'E', -1, bits), "E")
	n, _ := strconv.Atoi(exp)
	return withFraction(mant) + "E" + strconv.Itoa(n)
}

func withFraction(s string) string {
	if strings.ContainsAny(s, ".NI") {
		return s
	}
	return s + ".0"
}
