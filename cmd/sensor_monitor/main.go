// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/sms_beacon/internal/app"
	"github.com/relabs-tech/sms_beacon/internal/config"
	"github.com/relabs-tech/sms_beacon/internal/logging"
)

func main() {
	configPath := flag.String("config", "./beacon_config.txt", "path to configuration file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("starting sms-beacon sensor monitor")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunSensorMonitor(ctx, cfg, log); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
