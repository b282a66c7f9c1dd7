package status

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Drawer is the part of a display driver the renderer needs.
type Drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// OLED is an SSD1306 128x64 panel on an I²C bus.
type OLED struct {
	*ssd1306.Dev
	bus i2c.BusCloser
}

// OpenOLED opens the I²C bus (empty name selects the first bus) and
// initializes the panel. periph's host must already be initialized.
func OpenOLED(busName string) (*OLED, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	return &OLED{Dev: dev, bus: bus}, nil
}

func (o *OLED) Close() error {
	if err := o.Dev.Halt(); err != nil {
		o.bus.Close()
		return err
	}
	return o.bus.Close()
}

// RunDisplay redraws the panel every interval until ctx is cancelled.
func RunDisplay(ctx context.Context, dev Drawer, board *Board, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("display: starting update loop")
	for {
		if err := dev.Draw(dev.Bounds(), Render(board.State()), image.Point{}); err != nil {
			log.WithError(err).Warn("display: update failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Render draws the state onto a 128x64 monochrome frame: the label split
// over two lines, the position and the time of the last beacon.
func Render(s State) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	line := func(y int, text string) {
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(text)
	}

	// "Status: Location acquired!" does not fit in 18 columns.
	label := strings.TrimPrefix(s.Label, "Status: ")
	if s.Paused {
		label = "Paused"
	}
	line(13, label)

	if s.Location == nil {
		line(26, "No fix")
	} else {
		line(26, formatCoord(s.Location.Latitude, "N", "S"))
		line(39, formatCoord(s.Location.Longitude, "E", "W"))
	}

	if s.LastMessage != nil {
		line(52, "Sent "+s.LastMessage.SentAt.Format("15:04:05"))
	} else if !s.ProviderEnabled {
		line(52, "GPS off")
	}

	return img
}

func formatCoord(v float64, pos, neg string) string {
	dir := pos
	if v < 0 {
		dir = neg
		v = -v
	}
	return fmt.Sprintf("%.5f%s", v, dir)
}
