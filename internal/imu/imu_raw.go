package imu

import "math"

// StandardGravity is g₀ in m/s².
const StandardGravity = 9.80665

// AccelRaw is one raw accelerometer sample in device LSB.
type AccelRaw struct {
	Source string `json:"source"`

	Ax int16 `json:"ax"`
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`
}

// Magnitude returns |a| in m/s² for a sensor scaled at lsbPerG counts per g
// (16384 for the MPU9250 ±2g range).
func (a AccelRaw) Magnitude(lsbPerG float64) float64 {
	x := float64(a.Ax)
	y := float64(a.Ay)
	z := float64(a.Az)
	return math.Sqrt(x*x+y*y+z*z) / lsbPerG * StandardGravity
}
