package gps

import (
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

const (
	knotsToMetresPerSecond = 0.514444

	// Nominal user equivalent range error, used to turn HDOP into metres
	// when the receiver does not emit GST sentences.
	uereMetres = 5.0
)

// Tracker accumulates NMEA sentences into fixes. RMC carries position,
// speed, course and time; GGA carries altitude, HDOP and fix quality; GST
// (when the receiver sends it) carries the horizontal error estimate.
//
// A Tracker is not safe for concurrent use; each provider owns one.
type Tracker struct {
	provider string
	parser   *nmea.SentenceParser

	altitude float64
	hdop     float64
	haveHDOP bool
	gstError float64
	haveGST  bool
	quality  string
}

// NewTracker returns a tracker that stamps fixes with the given provider name.
func NewTracker(provider string) *Tracker {
	return &Tracker{provider: provider, parser: newSentenceParser()}
}

// Feed parses one NMEA line. It returns a fix when the line is a valid
// RMC, and a non-empty status when a GGA changes the fix quality. Lines
// that are not NMEA sentences are ignored; malformed sentences return the
// parser error.
func (t *Tracker) Feed(line string) (*Fix, string, error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return nil, "", nil
	}

	sentence, err := t.parser.Parse(line)
	if err != nil {
		return nil, "", err
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			return nil, "", nil
		}
		return t.fixFromRMC(m), "", nil

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		t.altitude = m.Altitude
		t.hdop = m.HDOP
		t.haveHDOP = m.HDOP > 0
		if m.FixQuality != t.quality {
			t.quality = m.FixQuality
			return nil, qualityName(m.FixQuality), nil
		}

	case TypeGST:
		m := sentence.(GST)
		t.gstError = math.Hypot(m.LatitudeError, m.LongitudeError)
		t.haveGST = t.gstError > 0
	}

	return nil, "", nil
}

func (t *Tracker) fixFromRMC(m nmea.RMC) *Fix {
	return &Fix{
		Provider:  t.provider,
		Time:      fixTime(m.Date, m.Time),
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Altitude:  t.altitude,
		Speed:     float32(m.Speed * knotsToMetresPerSecond),
		Bearing:   float32(m.Course),
		Accuracy:  float32(t.accuracy()),
	}
}

func (t *Tracker) accuracy() float64 {
	switch {
	case t.haveGST:
		return t.gstError
	case t.haveHDOP:
		return t.hdop * uereMetres
	default:
		return 0
	}
}

// fixTime combines the RMC date and time into a UTC timestamp. Receivers
// report a two-digit year; NMEA 0183 devices in service are all post-2000.
func fixTime(d nmea.Date, tm nmea.Time) time.Time {
	if !d.Valid || !tm.Valid {
		return time.Time{}
	}
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		tm.Hour, tm.Minute, tm.Second, tm.Millisecond*int(time.Millisecond), time.UTC)
}

func qualityName(q string) string {
	switch q {
	case nmea.Invalid:
		return "out_of_service"
	case nmea.GPS, nmea.DGPS, nmea.PPS, nmea.RTK, nmea.FRTK:
		return "available:" + q
	case nmea.EST:
		return "temporarily_unavailable"
	default:
		return "unknown:" + q
	}
}
