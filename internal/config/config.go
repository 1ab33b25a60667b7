// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_viewer/internal/acquisition"
	"github.com/relabs-tech/inertial_viewer/internal/frame"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
	"github.com/relabs-tech/inertial_viewer/internal/serialport"
)

// Config holds all application configuration values.
type Config struct {
	// Serial link
	SerialPort        string
	SerialDriver      string // "bugst" or "termios"
	SerialBaudRate    int
	SerialDataBits    int
	SerialStopBits    int
	SerialParity      string
	SerialReadTimeout int // milliseconds

	// Framing: "fixed" waits for the sync marker and reads 12 payload bytes,
	// "line" reads newline-terminated records.
	FrameMode string

	// Acquisition
	PollInterval     int // milliseconds
	WindowCapacity   int
	PublishEvery     int
	DefaultAlgorithm orientation.Algorithm

	// Orientation tuning
	GyroLSBPerDPS      float64
	ComplementaryAlpha float64
	KalmanQ            float64
	KalmanR            float64

	// MQTT
	MQTTBroker          string
	MQTTClientIDViewer  string
	MQTTClientIDConsole string
	MQTTClientIDDisplay string

	// Topics
	TopicSnapshot  string
	TopicPose      string
	TopicAlgorithm string

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	// Frame simulator
	SimInterval int // milliseconds
}

// Package-level unexported variables for the singleton: InitGlobal sets the
// config once, Get reads it under a read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for any key a file leaves out.
func Default() *Config {
	return &Config{
		SerialDriver:      string(serialport.DriverBugst),
		SerialBaudRate:    115200,
		SerialDataBits:    8,
		SerialStopBits:    1,
		SerialParity:      "N",
		SerialReadTimeout: 1000,

		FrameMode: frame.ModeFixed.String(),

		PollInterval:     50,
		WindowCapacity:   50,
		PublishEvery:     5,
		DefaultAlgorithm: orientation.AccelTilt,

		GyroLSBPerDPS:      orientation.DefaultGyroLSBPerDPS,
		ComplementaryAlpha: orientation.DefaultAlpha,
		KalmanQ:            orientation.DefaultKalmanQ,
		KalmanR:            orientation.DefaultKalmanR,

		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDViewer:  "inertial-viewer",
		MQTTClientIDConsole: "inertial-viewer-console",
		MQTTClientIDDisplay: "inertial-viewer-display",

		TopicSnapshot:  "inertial/viewer/snapshot",
		TopicPose:      "inertial/viewer/pose",
		TopicAlgorithm: "inertial/viewer/algorithm",

		WebServerPort: 8080,

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 200,

		SimInterval: 20,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
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
	var err error

	switch key {
	// Serial link
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_DRIVER":
		c.SerialDriver = strings.ToLower(value)
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = intInRange(key, value, 50, 4000000)
	case "SERIAL_DATA_BITS":
		c.SerialDataBits, err = intInRange(key, value, 5, 8)
	case "SERIAL_STOP_BITS":
		c.SerialStopBits, err = intInRange(key, value, 1, 2)
	case "SERIAL_PARITY":
		c.SerialParity = value
	case "SERIAL_READ_TIMEOUT":
		c.SerialReadTimeout, err = intInRange(key, value, 1, 60000)

	// Framing
	case "FRAME_MODE":
		if _, perr := frame.ParseMode(value); perr != nil {
			return perr
		}
		c.FrameMode = strings.ToLower(value)

	// Acquisition
	case "POLL_INTERVAL":
		c.PollInterval, err = intInRange(key, value, 1, 60000)
	case "WINDOW_CAPACITY":
		c.WindowCapacity, err = intInRange(key, value, 1, 100000)
	case "PUBLISH_EVERY":
		c.PublishEvery, err = intInRange(key, value, 1, 10000)
	case "DEFAULT_ALGORITHM":
		algo, perr := orientation.ParseAlgorithm(value)
		if perr != nil {
			return fmt.Errorf("invalid DEFAULT_ALGORITHM: %w", perr)
		}
		c.DefaultAlgorithm = algo

	// Orientation tuning
	case "GYRO_LSB_PER_DPS":
		c.GyroLSBPerDPS, err = positiveFloat(key, value)
	case "COMPLEMENTARY_ALPHA":
		alpha, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid COMPLEMENTARY_ALPHA %q: %w", value, perr)
		}
		if alpha <= 0 || alpha > 1 {
			return fmt.Errorf("COMPLEMENTARY_ALPHA must be in (0, 1], got %g", alpha)
		}
		c.ComplementaryAlpha = alpha
	case "KALMAN_Q":
		c.KalmanQ, err = positiveFloat(key, value)
	case "KALMAN_R":
		c.KalmanR, err = positiveFloat(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_VIEWER":
		c.MQTTClientIDViewer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_SNAPSHOT":
		c.TopicSnapshot = value
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_ALGORITHM":
		c.TopicAlgorithm = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = intInRange(key, value, 0, 65535)

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = intInRange(key, value, 1, 60000)

	// Frame simulator
	case "SIM_INTERVAL":
		c.SimInterval, err = intInRange(key, value, 1, 60000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func intInRange(key, value string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, n)
	}
	return n, nil
}

func positiveFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %g", key, f)
	}
	return f, nil
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required")
	}
	if _, err := c.SerialOptions().Normalize(); err != nil {
		return fmt.Errorf("serial settings: %w", err)
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicSnapshot == "" || c.TopicPose == "" || c.TopicAlgorithm == "" {
		return fmt.Errorf("TOPIC_SNAPSHOT, TOPIC_POSE and TOPIC_ALGORITHM are required")
	}
	return nil
}

// SerialOptions returns the serial link settings.
func (c *Config) SerialOptions() serialport.Options {
	return serialport.Options{
		Driver:      serialport.Driver(c.SerialDriver),
		BaudRate:    c.SerialBaudRate,
		DataBits:    c.SerialDataBits,
		StopBits:    c.SerialStopBits,
		Parity:      c.SerialParity,
		ReadTimeout: time.Duration(c.SerialReadTimeout) * time.Millisecond,
	}
}

// FrameOptions returns the decoder settings.
func (c *Config) FrameOptions() frame.Options {
	mode, _ := frame.ParseMode(c.FrameMode) // validated in setValue
	return frame.Options{Mode: mode}
}

// AcquisitionConfig returns the loop settings.
func (c *Config) AcquisitionConfig() acquisition.Config {
	return acquisition.Config{
		Capacity:     c.WindowCapacity,
		PublishEvery: c.PublishEvery,
		Params: orientation.Params{
			GyroLSBPerDPS: c.GyroLSBPerDPS,
			Alpha:         c.ComplementaryAlpha,
			KalmanQ:       c.KalmanQ,
			KalmanR:       c.KalmanR,
		},
	}
}

// PollDuration returns the acquisition tick period.
func (c *Config) PollDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
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
