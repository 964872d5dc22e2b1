// Package config defines the fleet controller's configuration tree. The
// core owns the struct shape, defaults, and validation; discovering and
// parsing an actual config file is an external caller's job, done through
// a *viper.Viper the caller already populated.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Valid ranges for the scanning and monitoring tunables, one Min/Max pair
// per bounded field.
const (
	MaxAttemptsMin = 1
	MaxAttemptsMax = 20

	HistoryIntervalMin = 1 * time.Minute
	HistoryIntervalMax = 24 * time.Hour

	PollingPeriodMin = 1 * time.Second
	PollingPeriodMax = 1 * time.Hour
)

// SerialConfig describes the RS-485 link.
type SerialConfig struct {
	Port     string
	Baudrate int
	Parity   string // "N", "E", or "O"
	StopBits int    // 1 or 2
	ByteSize int    // 7 or 8
	Timeout  time.Duration
}

// ApplicationConfig is small persisted application state, not behavior.
type ApplicationConfig struct {
	LastConnectedID   string
	DiscoveredDevices []int
}

// MonitoringConfig controls the Monitor Scheduler and History Writer.
type MonitoringConfig struct {
	HistoryEnabled         bool
	HistoryIntervalMinutes int
	HistoryIncludeCells    bool
	PollingPeriod          time.Duration
}

// ScanningConfig controls battery discovery and the Initializer's wake-up
// retry budget.
type ScanningConfig struct {
	StartID         int
	EndID           int
	MaxAttempts     int
	ProgressiveWait bool
	ScanTimeout     time.Duration
}

// LoggingConfig controls the clog-backed logging façade.
type LoggingConfig struct {
	LogLevel           string // DEBUG, INFO, WARNING, ERROR, CRITICAL, NONE
	LogFormat          string
	MaxConsoleMessages int
	VerboseModules     []string
}

// Config is the complete configuration tree.
type Config struct {
	Serial     SerialConfig
	Application ApplicationConfig
	Monitoring MonitoringConfig
	Scanning   ScanningConfig
	Logging    LoggingConfig
}

// Defaults returns the documented defaults for every field.
func Defaults() Config {
	return Config{
		Serial: SerialConfig{
			Baudrate: 9600,
			Parity:   "N",
			StopBits: 1,
			ByteSize: 8,
			Timeout:  1 * time.Second,
		},
		Monitoring: MonitoringConfig{
			HistoryEnabled:         true,
			HistoryIntervalMinutes: 2,
			PollingPeriod:          8 * time.Second,
		},
		Scanning: ScanningConfig{
			StartID:         1,
			EndID:           247,
			MaxAttempts:     5,
			ProgressiveWait: true,
			ScanTimeout:     2 * time.Second,
		},
		Logging: LoggingConfig{
			LogLevel:           "INFO",
			LogFormat:          "text",
			MaxConsoleMessages: 500,
		},
	}
}

// Valid fills in zero-valued fields with defaults and validates the rest.
func (c *Config) Valid() error {
	if c == nil {
		return errors.New("invalid pointer")
	}
	defaults := Defaults()

	if c.Serial.Baudrate == 0 {
		c.Serial.Baudrate = defaults.Serial.Baudrate
	}
	if c.Serial.Parity == "" {
		c.Serial.Parity = defaults.Serial.Parity
	} else if c.Serial.Parity != "N" && c.Serial.Parity != "E" && c.Serial.Parity != "O" {
		return fmt.Errorf("serial.parity must be one of N, E, O, got %q", c.Serial.Parity)
	}
	if c.Serial.StopBits == 0 {
		c.Serial.StopBits = defaults.Serial.StopBits
	} else if c.Serial.StopBits != 1 && c.Serial.StopBits != 2 {
		return fmt.Errorf("serial.stopbits must be 1 or 2, got %d", c.Serial.StopBits)
	}
	if c.Serial.ByteSize == 0 {
		c.Serial.ByteSize = defaults.Serial.ByteSize
	} else if c.Serial.ByteSize != 7 && c.Serial.ByteSize != 8 {
		return fmt.Errorf("serial.bytesize must be 7 or 8, got %d", c.Serial.ByteSize)
	}
	if c.Serial.Timeout == 0 {
		c.Serial.Timeout = defaults.Serial.Timeout
	}

	if c.Monitoring.PollingPeriod == 0 {
		c.Monitoring.PollingPeriod = defaults.Monitoring.PollingPeriod
	} else if c.Monitoring.PollingPeriod < PollingPeriodMin || c.Monitoring.PollingPeriod > PollingPeriodMax {
		return fmt.Errorf("monitoring.polling_period not in [%s, %s]", PollingPeriodMin, PollingPeriodMax)
	}
	if c.Monitoring.HistoryIntervalMinutes == 0 {
		c.Monitoring.HistoryIntervalMinutes = defaults.Monitoring.HistoryIntervalMinutes
	}
	historyInterval := time.Duration(c.Monitoring.HistoryIntervalMinutes) * time.Minute
	if historyInterval < HistoryIntervalMin || historyInterval > HistoryIntervalMax {
		return fmt.Errorf("monitoring.history_interval_minutes not in [%s, %s]", HistoryIntervalMin, HistoryIntervalMax)
	}

	if c.Scanning.MaxAttempts == 0 {
		c.Scanning.MaxAttempts = defaults.Scanning.MaxAttempts
	} else if c.Scanning.MaxAttempts < MaxAttemptsMin || c.Scanning.MaxAttempts > MaxAttemptsMax {
		return fmt.Errorf("scanning.max_attempts not in [%d, %d]", MaxAttemptsMin, MaxAttemptsMax)
	}
	if c.Scanning.ScanTimeout == 0 {
		c.Scanning.ScanTimeout = defaults.Scanning.ScanTimeout
	}
	if c.Scanning.EndID == 0 {
		c.Scanning.EndID = defaults.Scanning.EndID
	}
	if c.Scanning.StartID == 0 {
		c.Scanning.StartID = defaults.Scanning.StartID
	}
	if c.Scanning.StartID > c.Scanning.EndID {
		return fmt.Errorf("scanning.start_id (%d) must not exceed scanning.end_id (%d)", c.Scanning.StartID, c.Scanning.EndID)
	}

	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = defaults.Logging.LogLevel
	}
	if c.Logging.MaxConsoleMessages == 0 {
		c.Logging.MaxConsoleMessages = defaults.Logging.MaxConsoleMessages
	}

	return nil
}
