/*
 * Copyright 2026 Yem Networks.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

type logger struct {
	zl zerolog.Logger
}

// New builds a Logger from config. Defaults to info level on stdout with
// RFC3339 timestamps.
func New(config Config) (Logger, error) {
	var output io.Writer = os.Stdout

	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, err
		}
	}

	timeFormat := time.RFC3339
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}

	zerolog.TimeFieldFormat = timeFormat

	zl := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &logger{zl: zl}, nil
}

func (l *logger) Trace() *zerolog.Event { return l.zl.Trace() }
func (l *logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *logger) Fatal() *zerolog.Event { return l.zl.Fatal() }
func (l *logger) With() zerolog.Context { return l.zl.With() }

func (l *logger) WithComponent(component string) Logger {
	return &logger{zl: l.zl.With().Str("component", component).Logger()}
}

func (l *logger) SetLevel(level zerolog.Level) {
	l.zl = l.zl.Level(level)
}
