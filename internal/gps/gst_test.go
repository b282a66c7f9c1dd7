package gps

import (
	"testing"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ggaEstimated = "$GPGGA,123523,4807.038,N,01131.000,E,6,04,2.0,545.4,M,46.9,M,,*4E"

func TestSentenceParser_GST(t *testing.T) {
	s, err := newSentenceParser().Parse(gstLine)
	require.NoError(t, err)
	require.Equal(t, TypeGST, s.DataType())

	gst, ok := s.(GST)
	require.True(t, ok)
	assert.True(t, gst.Time.Valid)
	assert.Equal(t, 12, gst.Time.Hour)
	assert.InDelta(t, 0.006, gst.RMS, 1e-9)
	assert.InDelta(t, 273.6, gst.SemiMajorAngle, 1e-9)
	assert.InDelta(t, 3.0, gst.LatitudeError, 1e-9)
	assert.InDelta(t, 4.0, gst.LongitudeError, 1e-9)
	assert.InDelta(t, 0.031, gst.AltitudeError, 1e-9)
}

func TestSentenceParser_GSTBadField(t *testing.T) {
	line := "$GPGST,123519.00,0.006,0.023,0.020,273.6,x,4.0,0.031"
	_, err := newSentenceParser().Parse(line + "*" + nmea.Checksum(line[1:]))
	assert.Error(t, err)
}

func TestTracker_EstimatedQuality(t *testing.T) {
	_, status, err := NewTracker("gps").Feed(ggaEstimated)
	require.NoError(t, err)
	assert.Equal(t, "temporarily_unavailable", status)
}
