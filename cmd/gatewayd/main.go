// Command gatewayd brings a fleet of Huawei ESM batteries online over an
// RS-485 link, then polls them continuously, recording samples to a
// SQLite history store until interrupted.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/config"
	"github.com/williamsioSapo/esm-battery-gateway/fleet"
)

var (
	configFile  = flag.String("config", "", "path to a config file (any format viper supports)")
	port        = flag.String("port", "", "serial port device, overrides config")
	ids         = flag.String("ids", "", "comma-separated battery ids to bring online, e.g. 1,2,3")
	historyPath = flag.String("history", "battery_history.db", "path to the SQLite history database")
)

func main() {
	flag.Parse()

	v := viper.New()
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "gatewayd: read config: %v\n", err)
			os.Exit(1)
		}
	}
	if *port != "" {
		v.Set("serial.port", *port)
	}

	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatewayd: invalid config: %v\n", err)
		os.Exit(1)
	}

	batteryIDs, err := parseIDs(*ids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatewayd: %v\n", err)
		os.Exit(1)
	}
	if len(batteryIDs) == 0 {
		fmt.Fprintln(os.Stderr, "gatewayd: -ids is required, e.g. -ids=1,2,3")
		os.Exit(1)
	}

	log := clog.NewLogrusLogger("gatewayd", logLevel(cfg.Logging.LogLevel))

	f, err := fleet.New(batteryIDs, fleet.Options{
		Serial:      cfg.Serial,
		Scanning:    cfg.Scanning,
		Monitoring:  cfg.Monitoring,
		HistoryPath: *historyPath,
		Log:         log,
	})
	if err != nil {
		log.Error("build fleet: %v", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := f.Open(); err != nil {
		log.Error("open serial port: %v", err)
		os.Exit(1)
	}

	result := f.Init.InitializeBatteries(batteryIDs)
	log.Debug("bring-up finished: status=%s initialized=%d failed=%d",
		result.Status, result.InitializedCount, result.FailedCount)
	if result.Status == "error" {
		log.Error("no battery came online, exiting")
		os.Exit(1)
	}

	f.Monitor.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Debug("shutdown signal received")
}

func parseIDs(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("invalid battery id %q", p)
		}
		out = append(out, byte(n))
	}
	return out, nil
}

func logLevel(s string) logrus.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARNING", "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	case "CRITICAL":
		return logrus.FatalLevel
	case "NONE":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}
