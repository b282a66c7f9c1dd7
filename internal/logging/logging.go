// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. An unparsable level falls back to info;
// format "json" selects the JSON formatter, anything else plain text.
func New(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// Component returns a child logger tagged with the component name.
func Component(log logrus.FieldLogger, name string) logrus.FieldLogger {
	return log.WithField("component", name)
}
