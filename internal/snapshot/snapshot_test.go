package snapshot

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sms_beacon/internal/gps"
)

var sendTime = time.UnixMilli(1768480521000)

func TestMessage_NoLocation(t *testing.T) {
	r := New()
	r.SetPressure(1013.25)

	assert.Equal(t, "1768480521000,No Location!;", r.Message(sendTime))
}

func TestMessage_FullRecord(t *testing.T) {
	r := New()
	r.SetLocation(&gps.Fix{
		Longitude: -0.125,
		Latitude:  51.5,
		Altitude:  35,
		Speed:     1.5,
		Bearing:   90,
		Accuracy:  4.5,
		Time:      time.UnixMilli(1768480520000),
	})
	r.SetTemperature(21.5)
	r.SetGravity(9.81)
	r.SetPressure(1013.25)

	assert.Equal(t,
		"1768480521000,-0.125,51.5,35.0,1.5,90.0,4.5,1768480520000,true,21.5,9.81,1013.25;",
		r.Message(sendTime))
}

func TestMessage_DefaultsAndDisabledProvider(t *testing.T) {
	r := New()
	r.SetLocation(&gps.Fix{Longitude: 11.5, Latitude: 48.125, Time: time.UnixMilli(0)})
	r.SetProviderEnabled(false)

	assert.Equal(t,
		"1768480521000,11.5,48.125,0.0,0.0,0.0,0.0,0,false,0.0,0.0,0.0;",
		r.Message(sendTime))
}

func TestMessage_FieldShape(t *testing.T) {
	r := New()
	r.SetLocation(&gps.Fix{Longitude: 1, Latitude: 2, Time: sendTime})

	msg := r.Message(sendTime)
	require.True(t, strings.HasSuffix(msg, MsgTerminator))
	assert.Equal(t, 1, strings.Count(msg, MsgTerminator))
	assert.Len(t, strings.Split(strings.TrimSuffix(msg, MsgTerminator), DataSeparator), 12)
}

func TestSetLocation_NilClearsAndCopies(t *testing.T) {
	r := New()
	fix := &gps.Fix{Latitude: 1}
	r.SetLocation(fix)
	fix.Latitude = 99

	require.NotNil(t, r.Snapshot().Location)
	assert.Equal(t, 1.0, r.Snapshot().Location.Latitude)

	r.SetLocation(nil)
	assert.Nil(t, r.Snapshot().Location)
	assert.Equal(t, "1768480521000,No Location!;", r.Message(sendTime))
}

func TestNew_InitialValues(t *testing.T) {
	v := New().Snapshot()
	assert.Nil(t, v.Location)
	assert.True(t, v.ProviderEnabled)
	assert.Zero(t, v.Pressure)
	assert.Zero(t, v.Temperature)
	assert.Zero(t, v.Gravity)
}

func TestFormatting(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{-3, "-3.0"},
		{51.507351, "51.507351"},
		{0.001, "0.001"},
		{9999999, "9999999.0"},
		{-0.0005, "-5.0E-4"},
		{1e7, "1.0E7"},
		{12345678.9, "1.23456789E7"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, c := range cases {
		t.Run(fmt.Sprint(c.in), func(t *testing.T) {
			assert.Equal(t, c.want, formatDouble(c.in))
		})
	}

	assert.Equal(t, "9.81", formatFloat(9.81))
	assert.Equal(t, "1013.0", formatFloat(1013))
	assert.Equal(t, "5.144E-4", formatFloat(0.0005144))
	assert.Equal(t, "2.5E7", formatFloat(2.5e7))
	assert.Equal(t, "NaN", formatFloat(float32(math.NaN())))
}

func TestMessage_SmallMagnitudes(t *testing.T) {
	r := New()
	r.SetLocation(&gps.Fix{Longitude: -0.0005, Latitude: 51.5, Speed: 0.0005144, Time: time.UnixMilli(0)})

	assert.Equal(t,
		"1768480521000,-5.0E-4,51.5,0.0,5.144E-4,0.0,0.0,0,true,0.0,0.0,0.0;",
		r.Message(sendTime))
}

func TestRecord_ConcurrentSetters(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(4)
		go func(i int) { defer wg.Done(); r.SetPressure(float32(i)) }(i)
		go func(i int) { defer wg.Done(); r.SetTemperature(float32(i)) }(i)
		go func(i int) { defer wg.Done(); r.SetLocation(&gps.Fix{Latitude: float64(i)}) }(i)
		go func() { defer wg.Done(); _ = r.Message(sendTime) }()
	}
	wg.Wait()

	assert.NotNil(t, r.Snapshot().Location)
}
