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

package assembler

import (
	"github.com/rabbitstack/audiotap/pkg/frame"
	log "github.com/sirupsen/logrus"
)

// Stream accumulates the payload of every decoded frame.
type Stream struct {
	// Format is the last observed format. It governs the whole output.
	Format frame.Format
	// Samples is the running count of multi-channel sample frames.
	Samples uint64
	// Frames is the number of assembled frames.
	Frames uint64
	// FormatChanges counts how many times the format differed from the previous frame.
	FormatChanges uint64
	// Torn is set when a partial final frame was discarded.
	Torn bool

	data []byte
}

func (s *Stream) append(h frame.Header, payload []byte) {
	if !s.Format.IsZero() && s.Format != h.Format {
		s.FormatChanges++
		log.Warnf("format changed mid-stream from [%s] to [%s]. "+
			"Only the last format is honoured", s.Format, h.Format)
	}
	s.Format = h.Format
	s.Samples += uint64(h.Samples)
	s.Frames++
	s.data = append(s.data, payload...)
}

// Bytes returns the assembled payload clamped to the number of
// samples the frames declared.
func (s *Stream) Bytes() []byte {
	n := s.Samples * uint64(s.Format.BlockAlign())
	if n < uint64(len(s.data)) {
		return s.data[:n]
	}
	return s.data
}

// Empty reports whether no audio was assembled.
func (s *Stream) Empty() bool { return s.Samples == 0 || len(s.Bytes()) == 0 }
