package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration values.
type Config struct {
	// SMS
	SMSDestinations   []string `validate:"min=1,dive,phone"`
	SMSPeriodMS       int      `validate:"gt=0"`
	SMSInitialDelayMS int      `validate:"gte=0"`
	SMSDriver         string   `validate:"oneof=modem log"`

	// GSM modem
	ModemSerialPort string `validate:"required_if=SMSDriver modem"`
	ModemBaudRate   int    `validate:"gt=0"`
	ModemTimeoutMS  int    `validate:"gt=0"`

	// Location providers. An empty port or address disables that provider.
	GPSSerialPort    string
	GPSBaudRate      int `validate:"gt=0"`
	GPSMinIntervalMS int `validate:"gte=0"`
	NetworkNMEAAddr  string `validate:"omitempty,hostname_port"`

	// Sensors
	// SensorDriver: "periph" for real hardware, "mock" for generated values, "none" to disable.
	SensorDriver    string  `validate:"oneof=periph mock none"`
	SensorDelayMS   int     `validate:"gt=0"`
	BMPSPIDevice    string
	IMUSPIDevice    string
	IMUCSPin        string
	IMUAccelLSBPerG float64 `validate:"gt=0"`

	// MQTT mirror. An empty broker disables it.
	MQTTBroker   string `validate:"omitempty,url"`
	MQTTClientID string `validate:"required_with=MQTTBroker"`
	TopicBeacon  string `validate:"required_with=MQTTBroker"`
	TopicStatus  string `validate:"required_with=MQTTBroker"`

	// Web Server (0 disables)
	WebServerPort int `validate:"gte=0,lte=65535"`

	// Display
	DisplayEnabled        bool
	DisplayI2CBus         string
	DisplayUpdateInterval int `validate:"gt=0"` // milliseconds

	// Logging
	LogLevel  string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `validate:"oneof=text json"`
}

// Keys lists every configuration key understood by Load. Each one can be
// overridden by an environment variable of the same name.
var Keys = []string{
	"SMS_DESTINATIONS", "SMS_PERIOD_MS", "SMS_INITIAL_DELAY_MS", "SMS_DRIVER",
	"MODEM_SERIAL_PORT", "MODEM_BAUD_RATE", "MODEM_TIMEOUT_MS",
	"GPS_SERIAL_PORT", "GPS_BAUD_RATE", "GPS_MIN_INTERVAL_MS", "NETWORK_NMEA_ADDR",
	"SENSOR_DRIVER", "SENSOR_DELAY_MS", "BMP_SPI_DEVICE", "IMU_SPI_DEVICE", "IMU_CS_PIN", "IMU_ACCEL_LSB_PER_G",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "TOPIC_BEACON", "TOPIC_STATUS",
	"WEB_SERVER_PORT",
	"DISPLAY_ENABLED", "DISPLAY_I2C_BUS", "DISPLAY_UPDATE_INTERVAL",
	"LOG_LEVEL", "LOG_FORMAT",
}

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{3,15}$`)

// Default returns the configuration used when a key is absent from both
// the config file and the environment.
func Default() *Config {
	return &Config{
		SMSDestinations:       []string{"07473424585", "07591849894"},
		SMSPeriodMS:           10000,
		SMSInitialDelayMS:     0,
		SMSDriver:             "modem",
		ModemSerialPort:       "/dev/ttyUSB2",
		ModemBaudRate:         115200,
		ModemTimeoutMS:        10000,
		GPSSerialPort:         "/dev/serial0",
		GPSBaudRate:           9600,
		GPSMinIntervalMS:      500,
		SensorDriver:          "periph",
		SensorDelayMS:         200,
		BMPSPIDevice:          "/dev/spidev0.0",
		IMUSPIDevice:          "/dev/spidev0.1",
		IMUCSPin:              "8",
		IMUAccelLSBPerG:       16384,
		MQTTClientID:          "sms-beacon",
		TopicBeacon:           "beacon/message",
		TopicStatus:           "beacon/status",
		WebServerPort:         8080,
		DisplayUpdateInterval: 1000,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Load reads the configuration file, applies environment overrides and
// returns a validated Config. A missing file is not an error: defaults and
// environment variables are used instead.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		values, err := godotenv.Read(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
				return nil, fmt.Errorf("config file %s: %w", configPath, err)
			}
		}
	}

	for _, key := range Keys {
		if value, ok := os.LookupEnv(key); ok {
			if err := cfg.setValue(key, strings.TrimSpace(value)); err != nil {
				return nil, fmt.Errorf("environment: %w", err)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// SMS
	case "SMS_DESTINATIONS":
		c.SMSDestinations = splitList(value)
	case "SMS_PERIOD_MS":
		c.SMSPeriodMS, err = parseInt(key, value)
	case "SMS_INITIAL_DELAY_MS":
		c.SMSInitialDelayMS, err = parseInt(key, value)
	case "SMS_DRIVER":
		c.SMSDriver = value

	// GSM modem
	case "MODEM_SERIAL_PORT":
		c.ModemSerialPort = value
	case "MODEM_BAUD_RATE":
		c.ModemBaudRate, err = parseInt(key, value)
	case "MODEM_TIMEOUT_MS":
		c.ModemTimeoutMS, err = parseInt(key, value)

	// Location providers
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value)
	case "GPS_MIN_INTERVAL_MS":
		c.GPSMinIntervalMS, err = parseInt(key, value)
	case "NETWORK_NMEA_ADDR":
		c.NetworkNMEAAddr = value

	// Sensors
	case "SENSOR_DRIVER":
		c.SensorDriver = value
	case "SENSOR_DELAY_MS":
		c.SensorDelayMS, err = parseInt(key, value)
	case "BMP_SPI_DEVICE":
		c.BMPSPIDevice = value
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_LSB_PER_G":
		c.IMUAccelLSBPerG, err = strconv.ParseFloat(value, 64)
		if err != nil {
			err = fmt.Errorf("invalid %s %q: %w", key, value, err)
		}

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_BEACON":
		c.TopicBeacon = value
	case "TOPIC_STATUS":
		c.TopicStatus = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FORMAT":
		c.LogFormat = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks field constraints declared in the struct tags.
func (c *Config) validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register phone validation: %w", err)
	}

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SMSPeriod is the fixed period between beacon messages.
func (c *Config) SMSPeriod() time.Duration {
	return time.Duration(c.SMSPeriodMS) * time.Millisecond
}

// SMSInitialDelay is the delay before the first beacon message.
func (c *Config) SMSInitialDelay() time.Duration {
	return time.Duration(c.SMSInitialDelayMS) * time.Millisecond
}

func (c *Config) ModemTimeout() time.Duration {
	return time.Duration(c.ModemTimeoutMS) * time.Millisecond
}

func (c *Config) GPSMinInterval() time.Duration {
	return time.Duration(c.GPSMinIntervalMS) * time.Millisecond
}

func (c *Config) SensorDelay() time.Duration {
	return time.Duration(c.SensorDelayMS) * time.Millisecond
}

func (c *Config) DisplayInterval() time.Duration {
	return time.Duration(c.DisplayUpdateInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once so repeated calls keep the first result.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
