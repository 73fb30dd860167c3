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

package rotate

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the configuration for the rotate file hook.
type Config struct {
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	Level      logrus.Level
	Formatter  logrus.Formatter
}

// File is a logrus hook writing entries into a size-rotated file.
type File struct {
	config       Config
	mu           sync.Mutex
	w            io.WriteCloser
	depth        int
	skip         int
	skipPrefixes []string
}

// NewHook builds a new rotate file hook.
func NewHook(config Config) (*File, error) {
	if config.Filename == "" {
		return nil, errors.New("log file name is empty")
	}
	if config.Formatter == nil {
		return nil, errors.New("log formatter is nil")
	}
	hook := &File{
		config:       config,
		depth:        20,
		skip:         5,
		skipPrefixes: []string{"logrus/", "logrus@"},
	}
	hook.w = &lumberjack.Logger{
		Filename:   config.Filename,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	return hook, nil
}

// Levels returns the levels at or above the configured level.
func (hook *File) Levels() []logrus.Level {
	return logrus.AllLevels[:hook.config.Level+1]
}

// Fire writes the entry annotated with its call site.
func (hook *File) Fire(entry *logrus.Entry) error {
	file, line := hook.caller()
	modified := entry.WithField("source", fmt.Sprintf("%s:%d", file, line))
	modified.Level = entry.Level
	modified.Message = entry.Message
	modified.Time = entry.Time
	b, err := hook.config.Formatter.Format(modified)
	if err != nil {
		return err
	}
	hook.mu.Lock()
	defer hook.mu.Unlock()
	_, err = hook.w.Write(b)
	return err
}

// Close closes the underlying log file.
func (hook *File) Close() error {
	hook.mu.Lock()
	defer hook.mu.Unlock()
	return hook.w.Close()
}

// caller walks up the stack until it leaves logrus.
func (hook *File) caller() (string, int) {
	for i := 0; i < hook.depth; i++ {
		_, file, line, ok := runtime.Caller(hook.skip + i)
		if !ok {
			return "", 0
		}
		file = trimPath(file)
		if !hook.skipFile(file) {
			return file, line
		}
	}
	return "", 0
}

func (hook *File) skipFile(file string) bool {
	for _, prefix := range hook.skipPrefixes {
		if strings.HasPrefix(file, prefix) {
			return true
		}
	}
	return false
}

// trimPath keeps the last two path components.
func trimPath(file string) string {
	n := 0
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			n++
			if n >= 2 {
				return file[i+1:]
			}
		}
	}
	return file
}
