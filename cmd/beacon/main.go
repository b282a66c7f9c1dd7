// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"

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
	log.Infof("starting sms-beacon: %d destinations every %v", len(cfg.SMSDestinations), cfg.SMSPeriod())

	if err := app.RunBeacon(context.Background(), cfg, log); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
