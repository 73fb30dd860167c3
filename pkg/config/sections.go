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

package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	sampleFormat       = "assembler.sample-format"
	pipeWriteTimeout   = "pipe.write-timeout"
	pipeConnectTimeout = "pipe.connect-timeout"
)

// AssemblerConfig contains stream assembler options.
type AssemblerConfig struct {
	// SampleFormat is the sample encoding of the WAV file (auto|pcm|float).
	SampleFormat string `json:"sample-format" yaml:"sample-format"`
}

func (c *AssemblerConfig) initFromViper(v *viper.Viper) {
	c.SampleFormat = v.GetString(sampleFormat)
}

// PipeConfig contains stream channel options.
type PipeConfig struct {
	// WriteTimeout bounds how long a frame write may stall the audio thread.
	WriteTimeout time.Duration `json:"write-timeout" yaml:"write-timeout"`
	// ConnectTimeout is how long the consumer waits for the channel to appear.
	ConnectTimeout time.Duration `json:"connect-timeout" yaml:"connect-timeout"`
}

func (c *PipeConfig) initFromViper(v *viper.Viper) {
	c.WriteTimeout = v.GetDuration(pipeWriteTimeout)
	c.ConnectTimeout = v.GetDuration(pipeConnectTimeout)
}
