package config

import (
	"github.com/spf13/viper"
)

// Load reads the fleet controller's configuration tree out of v, which the
// caller has already pointed at a config source (file, env, flags). Keys
// follow the nested dotted form, e.g. "serial.port", "scanning.max_attempts".
func Load(v *viper.Viper) (Config, error) {
	cfg := Defaults()

	cfg.Serial.Port = v.GetString("serial.port")
	if v.IsSet("serial.baudrate") {
		cfg.Serial.Baudrate = v.GetInt("serial.baudrate")
	}
	if v.IsSet("serial.parity") {
		cfg.Serial.Parity = v.GetString("serial.parity")
	}
	if v.IsSet("serial.stopbits") {
		cfg.Serial.StopBits = v.GetInt("serial.stopbits")
	}
	if v.IsSet("serial.bytesize") {
		cfg.Serial.ByteSize = v.GetInt("serial.bytesize")
	}
	if v.IsSet("serial.timeout") {
		cfg.Serial.Timeout = v.GetDuration("serial.timeout")
	}

	cfg.Application.LastConnectedID = v.GetString("application.last_connected_id")
	cfg.Application.DiscoveredDevices = v.GetIntSlice("application.discovered_devices")

	if v.IsSet("monitoring.history_enabled") {
		cfg.Monitoring.HistoryEnabled = v.GetBool("monitoring.history_enabled")
	}
	if v.IsSet("monitoring.history_interval_minutes") {
		cfg.Monitoring.HistoryIntervalMinutes = v.GetInt("monitoring.history_interval_minutes")
	}
	if v.IsSet("monitoring.history_include_cells") {
		cfg.Monitoring.HistoryIncludeCells = v.GetBool("monitoring.history_include_cells")
	}
	if v.IsSet("monitoring.polling_period") {
		cfg.Monitoring.PollingPeriod = v.GetDuration("monitoring.polling_period")
	}

	if v.IsSet("scanning.start_id") {
		cfg.Scanning.StartID = v.GetInt("scanning.start_id")
	}
	if v.IsSet("scanning.end_id") {
		cfg.Scanning.EndID = v.GetInt("scanning.end_id")
	}
	if v.IsSet("scanning.max_attempts") {
		cfg.Scanning.MaxAttempts = v.GetInt("scanning.max_attempts")
	}
	if v.IsSet("scanning.progressive_wait") {
		cfg.Scanning.ProgressiveWait = v.GetBool("scanning.progressive_wait")
	}
	if v.IsSet("scanning.scan_timeout") {
		cfg.Scanning.ScanTimeout = v.GetDuration("scanning.scan_timeout")
	}

	if v.IsSet("logging.log_level") {
		cfg.Logging.LogLevel = v.GetString("logging.log_level")
	}
	if v.IsSet("logging.log_format") {
		cfg.Logging.LogFormat = v.GetString("logging.log_format")
	}
	if v.IsSet("logging.max_console_messages") {
		cfg.Logging.MaxConsoleMessages = v.GetInt("logging.max_console_messages")
	}
	cfg.Logging.VerboseModules = v.GetStringSlice("logging.verbose_modules")

	if err := cfg.Valid(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
