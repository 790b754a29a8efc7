package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker            string
	MQTTClientIDProducer  string
	MQTTClientIDConsole   string
	MQTTClientIDWeb       string
	MQTTClientIDDisplay   string
	MQTTClientIDReference string

	// Topics
	TopicMag        string
	TopicHeading    string
	TopicHeadingRef string

	// Magnetometer hardware
	MagI2CBus  string // periph bus name, e.g. "1" or "/dev/i2c-1"
	MagI2CAddr uint16

	// Magnetometer settings
	// Gain: 0-7 selecting 1370/1090/820/660/440/390/330/230 LSB per Gauss
	MagGain byte
	// Averaging: 0-3 for 1/2/4/8 samples per output
	MagAveraging byte
	// Rate: 0-6 for 0.75/1.5/3/7.5/15/30/75 Hz continuous output
	MagRate byte
	// Mode: "continuous" or "single"
	MagMode string
	// Run the self-test calibration for the configured gain at startup
	MagCalibrateOnStart bool

	// Heading
	MagDeclinationDeg float64 // local magnetic declination, east positive

	// Reference heading sensor (NMEA over serial)
	RefSerialPort string
	RefBaudRate   int

	// Timing
	MagSampleInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_REFERENCE":
		c.MQTTClientIDReference = value

	// Topics
	case "TOPIC_MAG":
		c.TopicMag = value
	case "TOPIC_HEADING":
		c.TopicHeading = value
	case "TOPIC_HEADING_REF":
		c.TopicHeadingRef = value

	// Magnetometer hardware
	case "MAG_I2C_BUS":
		c.MagI2CBus = value
	case "MAG_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid MAG_I2C_ADDR %q: %w", value, err)
		}
		c.MagI2CAddr = uint16(addr)

	// Magnetometer settings
	case "MAG_GAIN":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAG_GAIN %q: %w", value, err)
		}
		if val < 0 || val > 7 {
			return fmt.Errorf("MAG_GAIN must be 0-7 (0=1370 ... 7=230 LSB/Gauss), got %d", val)
		}
		c.MagGain = byte(val)
	case "MAG_AVERAGING":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAG_AVERAGING %q: %w", value, err)
		}
		if val < 0 || val > 3 {
			return fmt.Errorf("MAG_AVERAGING must be 0-3 (0=1, 1=2, 2=4, 3=8 samples), got %d", val)
		}
		c.MagAveraging = byte(val)
	case "MAG_RATE":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAG_RATE %q: %w", value, err)
		}
		if val < 0 || val > 6 {
			return fmt.Errorf("MAG_RATE must be 0-6 (0=0.75Hz ... 6=75Hz), got %d", val)
		}
		c.MagRate = byte(val)
	case "MAG_MODE":
		if value != "continuous" && value != "single" {
			return fmt.Errorf("MAG_MODE must be \"continuous\" or \"single\", got %q", value)
		}
		c.MagMode = value
	case "MAG_CALIBRATE_ON_START":
		val, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MAG_CALIBRATE_ON_START %q: %w", value, err)
		}
		c.MagCalibrateOnStart = val

	// Heading
	case "MAG_DECLINATION_DEG":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MAG_DECLINATION_DEG %q: %w", value, err)
		}
		c.MagDeclinationDeg = val

	// Reference heading sensor
	case "REF_SERIAL_PORT":
		c.RefSerialPort = value
	case "REF_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid REF_BAUD_RATE %q: %w", value, err)
		}
		c.RefBaudRate = rate

	// Timing
	case "MAG_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAG_SAMPLE_INTERVAL %q: %w", value, err)
		}
		if interval <= 0 {
			return fmt.Errorf("MAG_SAMPLE_INTERVAL must be positive, got %d", interval)
		}
		c.MagSampleInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
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
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
