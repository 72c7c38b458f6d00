// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gymlink/gymlink/internal/config"
)

// setupLogging routes the standard logger to a rotating file when one
// is configured, keeping stderr as well so interactive runs stay
// visible.
func setupLogging() io.Closer {
	path := config.GetString("log-file")
	if path == "" {
		return nil
	}
	logF := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    config.GetInt("log-max-size"),
		MaxBackups: config.GetInt("log-max-backups"),
		MaxAge:     config.GetInt("log-max-age"),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, logF))
	return logF
}
