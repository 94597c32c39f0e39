// Command collector polls a fleet of Modbus/TCP devices on independent
// scan intervals and republishes the readings as InfluxDB line protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/timokroeger/data-collector/internal/config"
	"github.com/timokroeger/data-collector/internal/controller"
	"github.com/timokroeger/data-collector/internal/device"
	"github.com/timokroeger/data-collector/internal/logging"
	"github.com/timokroeger/data-collector/internal/publisher"
	"github.com/timokroeger/data-collector/internal/scheduler"
	"github.com/timokroeger/data-collector/internal/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration document")
	logfile := flag.String("logfile", "", "write logs to this file instead of stderr")
	loglevel := flag.String("loglevel", "warn", "off|error|warn|info|debug|trace")
	connectRetries := flag.Int("connect-retries", 5, "bounded retries for the initial Modbus TCP connect")
	flag.Parse()

	log, err := logging.New(*loglevel, *logfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "collector: %v\n", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", zap.Error(err))
		return 1
	}
	log.Info("configuration loaded",
		zap.Int("devices", len(cfg.Devices)),
		zap.String("modbus_host", cfg.Modbus.Hostname),
		zap.Int("modbus_port", cfg.Modbus.Port),
		zap.Stringer("sink", cfg.Sink.Variant),
	)
	for _, d := range cfg.Devices {
		if d.Plan.Empty() {
			log.Warn("device has no input registers configured", zap.Uint8("device_id", d.ID))
		}
	}

	tr, err := dialWithRetry(log, cfg.Modbus, *connectRetries)
	if err != nil {
		log.Error("failed to connect to modbus server", zap.Error(err))
		return 1
	}
	defer tr.Close()

	pub, err := publisher.New(cfg.Sink, cfg.Modbus.Timeout)
	if err != nil {
		log.Error("failed to configure publisher", zap.Error(err))
		return 1
	}

	ctrl := controller.New(deviceThreshold(cfg.Devices))

	sched := scheduler.New(tr, pub, ctrl, log, cfg.Devices)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting scheduler", zap.Int64("fail_count_threshold", ctrl.Threshold()))
	if err := sched.Run(ctx); err != nil {
		log.Error("terminal failure threshold reached", zap.Error(err))
		return 1
	}

	log.Info("shutting down")
	return 0
}

// dialWithRetry bounds the initial connect attempt: a refused/unreachable
// Modbus server at startup is worth a few retries before giving up, since
// the collector and the device gateway often boot concurrently.
func dialWithRetry(log *zap.Logger, cfg config.Modbus, retries int) (*transport.Transport, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= retries; attempt++ {
		tr, err := transport.Dial(cfg.Hostname, cfg.Port, cfg.Timeout)
		if err == nil {
			return tr, nil
		}
		lastErr = err
		if attempt == retries {
			break
		}
		log.Warn("modbus connect attempt failed, retrying",
			zap.Int("attempt", attempt+1), zap.Error(err))
		time.Sleep(backoff)
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
	return nil, lastErr
}

// deviceThreshold derives the Controller's failure threshold from the
// fleet's fastest and slowest scan intervals.
func deviceThreshold(devices []*device.Device) int64 {
	if len(devices) == 0 {
		return 0
	}
	min, max := devices[0].ScanInterval, devices[0].ScanInterval
	for _, d := range devices[1:] {
		if d.ScanInterval < min {
			min = d.ScanInterval
		}
		if d.ScanInterval > max {
			max = d.ScanInterval
		}
	}
	return controller.Threshold(len(devices), min, max)
}
