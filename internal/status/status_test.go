package status

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/sms_beacon/internal/beacon"
	"github.com/relabs-tech/sms_beacon/internal/gps"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLifecycle struct {
	board   *Board
	pauses  int
	resumes int
}

func (f *fakeLifecycle) Pause()  { f.pauses++; f.board.SetPaused(true) }
func (f *fakeLifecycle) Resume() { f.resumes++; f.board.SetPaused(false) }

func TestBoard_Labels(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, LabelWaiting, b.State().Label)
	assert.True(t, b.State().ProviderEnabled)

	b.SetLocation(&gps.Fix{Latitude: 51.5})
	assert.Equal(t, LabelAcquired, b.State().Label)
	require.NotNil(t, b.State().Location)

	b.SetLocation(nil)
	assert.Equal(t, LabelNoLocation, b.State().Label)
	assert.Nil(t, b.State().Location)
}

func TestBoard_SubscribeReceivesChanges(t *testing.T) {
	b := NewBoard()
	updates, cancel := b.Subscribe()

	b.SetProviderEnabled(false)
	st := <-updates
	assert.False(t, st.ProviderEnabled)

	msg := beacon.Message{ID: uuid.New(), Text: "1,No Location!;"}
	require.NoError(t, b.Deliver(context.Background(), msg))
	st = <-updates
	require.NotNil(t, st.LastMessage)
	assert.Equal(t, msg.Text, st.LastMessage.Text)

	cancel()
	_, ok := <-updates
	assert.False(t, ok)
	cancel() // idempotent

	b.SetPaused(true) // no subscriber left, must not block
	assert.True(t, b.State().Paused)
}

func TestBoard_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBoard()
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.SetPaused(i%2 == 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("updates blocked on a slow subscriber")
	}
}

func litPixels(img *image1bit.VerticalLSB, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRender(t *testing.T) {
	empty := Render(State{Label: LabelWaiting, ProviderEnabled: true})
	assert.Equal(t, image.Rect(0, 0, 128, 64), empty.Bounds())
	assert.NotZero(t, litPixels(empty, image.Rect(0, 0, 128, 16)), "label row drawn")
	assert.Zero(t, litPixels(empty, image.Rect(0, 42, 128, 64)), "nothing below the fix line")

	full := Render(State{
		Label:       LabelAcquired,
		Location:    &gps.Fix{Latitude: 51.5, Longitude: -0.125},
		LastMessage: &beacon.Message{SentAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)},
	})
	assert.NotZero(t, litPixels(full, image.Rect(0, 30, 128, 42)), "longitude row drawn")
	assert.NotZero(t, litPixels(full, image.Rect(0, 42, 128, 64)), "last send row drawn")
}

func TestFormatCoord(t *testing.T) {
	assert.Equal(t, "51.50000N", formatCoord(51.5, "N", "S"))
	assert.Equal(t, "0.12500W", formatCoord(-0.125, "E", "W"))
}

type recordingDrawer struct {
	mu    sync.Mutex
	draws int
}

func (d *recordingDrawer) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }
func (d *recordingDrawer) Draw(image.Rectangle, image.Image, image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws++
	return nil
}

func TestRunDisplay(t *testing.T) {
	log, _ := test.NewNullLogger()
	d := &recordingDrawer{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunDisplay(ctx, d, NewBoard(), 5*time.Millisecond, log)
		close(done)
	}()

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.draws >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func newTestServer() (*Server, *Board, *fakeLifecycle) {
	log, _ := test.NewNullLogger()
	b := NewBoard()
	lc := &fakeLifecycle{board: b}
	return NewServer(b, lc, log), b, lc
}

func TestServer_Status(t *testing.T) {
	s, b, _ := newTestServer()
	b.SetLocation(&gps.Fix{Latitude: 51.5, Longitude: -0.125})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var st State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, LabelAcquired, st.Label)
	require.NotNil(t, st.Location)
	assert.Equal(t, 51.5, st.Location.Latitude)
}

func TestServer_Message(t *testing.T) {
	s, b, _ := newTestServer()

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/message", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, b.Deliver(context.Background(), beacon.Message{ID: uuid.New(), Text: "1,No Location!;"}))

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/message", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"1,No Location!;"`)
}

func TestServer_Lifecycle(t *testing.T) {
	s, _, lc := newTestServer()

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/lifecycle/pause", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paused":true`)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/lifecycle/resume", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paused":false`)

	assert.Equal(t, 1, lc.pauses)
	assert.Equal(t, 1, lc.resumes)
}

func TestServer_WebsocketStreamsChanges(t *testing.T) {
	s, b, _ := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var st State
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, LabelWaiting, st.Label)

	// The subscription starts before the first write, so this change is
	// delivered after the initial state.
	b.SetLocation(&gps.Fix{Latitude: 1, Longitude: 2})
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, LabelAcquired, st.Label)
}
