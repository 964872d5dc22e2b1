package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidFillsDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Valid())

	assert.Equal(t, 9600, cfg.Serial.Baudrate)
	assert.Equal(t, "N", cfg.Serial.Parity)
	assert.Equal(t, 1, cfg.Serial.StopBits)
	assert.Equal(t, 8, cfg.Serial.ByteSize)
	assert.Equal(t, 1*time.Second, cfg.Serial.Timeout)
	assert.Equal(t, 5, cfg.Scanning.MaxAttempts)
	assert.Equal(t, 1, cfg.Scanning.StartID)
	assert.Equal(t, 247, cfg.Scanning.EndID)
	assert.Equal(t, "INFO", cfg.Logging.LogLevel)
}

func TestValidRejectsBadParity(t *testing.T) {
	cfg := Defaults()
	cfg.Serial.Parity = "X"
	assert.Error(t, cfg.Valid())
}

func TestValidRejectsStartAfterEnd(t *testing.T) {
	cfg := Defaults()
	cfg.Scanning.StartID = 100
	cfg.Scanning.EndID = 10
	assert.Error(t, cfg.Valid())
}

func TestValidRejectsMaxAttemptsOutOfRange(t *testing.T) {
	cfg := Defaults()
	cfg.Scanning.MaxAttempts = MaxAttemptsMax + 1
	assert.Error(t, cfg.Valid())
}

func TestLoadAppliesViperOverridesOverDefaults(t *testing.T) {
	v := viper.New()
	v.Set("serial.port", "/dev/ttyUSB0")
	v.Set("serial.baudrate", 19200)
	v.Set("scanning.max_attempts", 3)
	v.Set("logging.log_level", "DEBUG")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 19200, cfg.Serial.Baudrate)
	assert.Equal(t, 3, cfg.Scanning.MaxAttempts)
	assert.Equal(t, "DEBUG", cfg.Logging.LogLevel)
	// untouched fields keep their defaults
	assert.Equal(t, "N", cfg.Serial.Parity)
}

func TestLoadRejectsInvalidOverride(t *testing.T) {
	v := viper.New()
	v.Set("scanning.start_id", 200)
	v.Set("scanning.end_id", 5)

	_, err := Load(v)
	assert.Error(t, err)
}
