package gps

import (
	nmea "github.com/adrianmo/go-nmea"
)

// TypeGST is the GNSS pseudorange error statistics sentence, which go-nmea
// does not parse itself.
const TypeGST = "GST"

// GST carries the receiver's 1-sigma error estimates in metres.
type GST struct {
	nmea.BaseSentence
	Time           nmea.Time
	RMS            float64 // RMS of the pseudorange residuals
	SemiMajorError float64
	SemiMinorError float64
	SemiMajorAngle float64 // degrees from true north
	LatitudeError  float64
	LongitudeError float64
	AltitudeError  float64
}

func newGST(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeGST)
	return GST{
		BaseSentence:   s,
		Time:           p.Time(0, "time"),
		RMS:            p.Float64(1, "rms"),
		SemiMajorError: p.Float64(2, "semi-major error"),
		SemiMinorError: p.Float64(3, "semi-minor error"),
		SemiMajorAngle: p.Float64(4, "semi-major angle"),
		LatitudeError:  p.Float64(5, "latitude error"),
		LongitudeError: p.Float64(6, "longitude error"),
		AltitudeError:  p.Float64(7, "altitude error"),
	}, p.Err()
}

// newSentenceParser returns a parser that also understands GST.
func newSentenceParser() *nmea.SentenceParser {
	return &nmea.SentenceParser{
		CustomParsers: map[string]nmea.ParserFunc{
			TypeGST: newGST,
		},
	}
}
