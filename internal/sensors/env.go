package sensors

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/sms_beacon/internal/env"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
)

// BMP is a BMP280/BME280 barometer. One device serves both the pressure
// and the temperature channel; Sense calls are serialized because two
// listeners may poll it from different goroutines.
type BMP struct {
	name string

	mu   sync.Mutex
	port spi.PortCloser
	dev  *bmxx80.Dev
}

// OpenBMP initializes the barometer on the given SPI device. periph's host
// must already be initialized.
func OpenBMP(spiDev string) (*BMP, error) {
	port, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("BMP SPI open (%s): %w", spiDev, err)
	}

	dev, err := bmxx80.NewSPI(port, &bmxx80.DefaultOpts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("BMP init (%s): %w", spiDev, err)
	}

	return &BMP{name: "bmp:" + spiDev, port: port, dev: dev}, nil
}

// ReadEnv reads temperature and pressure together.
func (b *BMP) ReadEnv() (env.Sample, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("%s sense: %w", b.name, err)
	}

	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return env.Sample{
		Source:      b.name,
		Temperature: e.Temperature.Celsius(),
		Pressure:    pressurePa / 100.0,
	}, nil
}

// Pressure returns the pressure channel in hPa.
func (b *BMP) Pressure() Source { return &bmpChannel{bmp: b, kind: Pressure} }

// Temperature returns the temperature channel in °C.
func (b *BMP) Temperature() Source { return &bmpChannel{bmp: b, kind: Temperature} }

func (b *BMP) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.dev.Halt(); err != nil {
		b.port.Close()
		return fmt.Errorf("%s halt: %w", b.name, err)
	}
	return b.port.Close()
}

type bmpChannel struct {
	bmp  *BMP
	kind Kind
}

func (c *bmpChannel) Kind() Kind   { return c.kind }
func (c *bmpChannel) Name() string { return c.bmp.name + "/" + c.kind.String() }

func (c *bmpChannel) Read() (float64, error) {
	s, err := c.bmp.ReadEnv()
	if err != nil {
		return 0, err
	}
	if c.kind == Temperature {
		return s.Temperature, nil
	}
	return s.Pressure, nil
}
