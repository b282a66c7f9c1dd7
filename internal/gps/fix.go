package gps

import "time"

// Fix is one location reading from a provider. Only valid fixes are ever
// produced; a missing location is represented by a nil *Fix.
type Fix struct {
	Provider  string    `json:"provider"`    // "gps" or "network"
	Time      time.Time `json:"time"`        // UTC time the fix was taken
	Latitude  float64   `json:"lat"`         // decimal degrees
	Longitude float64   `json:"lon"`         // decimal degrees
	Altitude  float64   `json:"alt_m"`       // metres above mean sea level
	Speed     float32   `json:"speed_mps"`   // speed over ground
	Bearing   float32   `json:"bearing_deg"` // course over ground
	Accuracy  float32   `json:"accuracy_m"`  // estimated horizontal error
}

// Listener receives location callbacks. Providers call it from their own
// goroutine, so implementations must be safe for concurrent use.
type Listener interface {
	OnLocationChanged(fix *Fix)
	OnStatusChanged(provider, status string)
	OnProviderEnabled(provider string)
	OnProviderDisabled(provider string)
}
