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
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	logLevel      = "logging.level"
	logMaxAge     = "logging.max-age"
	logMaxBackups = "logging.max-backups"
	logMaxSize    = "logging.max-size"
	logFormatter  = "logging.formatter"
	logPath       = "logging.path"
	logStdout     = "logging.log-stdout"
	logCompress   = "logging.compress"
)

// Config drives where and how log lines are written.
type Config struct {
	// Level is the minimum level that gets logged.
	Level string `json:"logging.level" yaml:"logging.level"`
	// MaxAge is the number of days rotated log files are retained.
	MaxAge int `json:"logging.max-age" yaml:"logging.max-age"`
	// MaxBackups is the number of rotated log files to keep.
	MaxBackups int `json:"logging.max-backups" yaml:"logging.max-backups"`
	// MaxSize is the size in megabytes at which the log file is rotated.
	MaxSize int `json:"logging.max-size" yaml:"logging.max-size"`
	// Formatter is the log line format (json|text).
	Formatter string `json:"logging.formatter" yaml:"logging.formatter"`
	// Path overrides the directory log files are written to.
	Path string `json:"logging.path" yaml:"logging.path"`
	// LogStdout mirrors log lines to standard output.
	LogStdout bool `json:"logging.log-stdout" yaml:"logging.log-stdout"`
	// Compress gzips rotated log files.
	Compress bool `json:"logging.compress" yaml:"logging.compress"`
}

// InitFromViper initializes logging configuration from Viper.
func (c *Config) InitFromViper(v *viper.Viper) {
	c.Level = v.GetString(logLevel)
	c.MaxAge = v.GetInt(logMaxAge)
	c.MaxBackups = v.GetInt(logMaxBackups)
	c.MaxSize = v.GetInt(logMaxSize)
	c.Formatter = v.GetString(logFormatter)
	c.Path = v.GetString(logPath)
	c.LogStdout = v.GetBool(logStdout)
	c.Compress = v.GetBool(logCompress)
}

// AddFlags registers persistent logging flags.
func (c *Config) AddFlags(flags *pflag.FlagSet) {
	flags.String(logLevel, "info", "Specifies the minimum allowed log level")
	flags.Int(logMaxAge, 0, "Sets the maximum number of days to retain rotated log files. By default old log files are kept")
	flags.Int(logMaxBackups, 5, "Specifies the maximum number of rotated log files to retain")
	flags.Int(logMaxSize, 50, "Specifies the maximum size in megabytes of the log file before it gets rotated")
	flags.String(logFormatter, "text", "Represents the log formatter (json|text)")
	flags.String(logPath, "", "Specifies the alternative directory for storing the logs")
	flags.Bool(logStdout, true, "Indicates whether log lines are written to standard output in addition to the log file")
	flags.Bool(logCompress, false, "Indicates whether rotated log files are compressed")
}

// Hook returns the logging configuration used inside the target
// process. Nothing is written to the host's standard output.
func Hook(dir string) Config {
	return Config{
		Level:      "info",
		MaxBackups: 2,
		MaxSize:    10,
		Formatter:  "text",
		Path:       dir,
	}
}
