/*
 * Copyright 2021-2022 by Nedim Sabic Sabic
 * https://www.fibratus.io
 * All Rights Reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package log

import (
	"expvar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rabbitstack/audiotap/pkg/util/log/rotate"
	fs "github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

var loggerErrors = expvar.NewMap("logger.errors")

// DefaultPath returns the logs directory relative to the running executable.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join(os.TempDir(), "audiotap", "logs")
	}
	return filepath.Join(filepath.Dir(exe), "..", "logs")
}

// InitFromConfig sets up the global logrus logger to write into the
// filename under the configured logs directory.
func InitFromConfig(c Config, filename string) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return err
	}

	path := c.Path
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("unable to create the %s logs directory: %v", path, err)
	}
	file := filepath.Join(path, filename)

	var formatter logrus.Formatter
	switch c.Formatter {
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	logrus.SetFormatter(formatter)
	logrus.SetLevel(level)

	if c.LogStdout {
		logrus.SetOutput(os.Stdout)
	} else {
		logrus.SetOutput(io.Discard)
	}

	rhook, err := rotate.NewHook(rotate.Config{
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		MaxSize:    c.MaxSize,
		Compress:   c.Compress,
		Level:      level,
		Formatter:  formatter,
		Filename:   file,
	})
	if err != nil {
		loggerErrors.Add(err.Error(), 1)
		// fall back to the plain file hook without rotation
		pathMap := make(fs.PathMap)
		for _, lvl := range logrus.AllLevels {
			pathMap[lvl] = file
		}
		logrus.AddHook(fs.NewHook(pathMap, formatter))
		logrus.Warnf("unable to initialize rotate file hook: %v", err)
		return nil
	}
	logrus.AddHook(rhook)

	return nil
}

// InitFallback routes log lines to standard error. It is used when the
// log file can't be set up and the process must keep going regardless.
func InitFallback(err error) {
	loggerErrors.Add(err.Error(), 1)
	logrus.SetOutput(os.Stderr)
}
