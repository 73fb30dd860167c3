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

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rabbitstack/audiotap/pkg/frame"
	"github.com/rabbitstack/audiotap/pkg/interpose"
)

// ErrMisaligned is returned when the block alignment of a format
// descriptor doesn't agree with its channel count and bit depth.
var ErrMisaligned = errors.New("block align mismatch")

// WaveFormatExSize is the packed size of WAVEFORMATEX. The Go struct is
// padded past it, so it is never read wholesale from foreign memory.
const WaveFormatExSize = 18

// WaveFormatEx mirrors the WAVEFORMATEX structure. Extensible formats
// share this prefix, so it can be read from either.
type WaveFormatEx struct {
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	Size           uint16
}

// Format is the audio format descriptor reported by the backend.
type Format struct {
	Channels      uint32
	BitsPerSample uint32
	SampleRate    uint32
	BlockAlign    uint32
}

// ParseWaveFormat decodes the packed WAVEFORMATEX layout. Spans shorter
// than WaveFormatExSize yield the zero value.
func ParseWaveFormat(b []byte) WaveFormatEx {
	if len(b) < WaveFormatExSize {
		return WaveFormatEx{}
	}
	le := binary.LittleEndian
	return WaveFormatEx{
		FormatTag:      le.Uint16(b[0:]),
		Channels:       le.Uint16(b[2:]),
		SamplesPerSec:  le.Uint32(b[4:]),
		AvgBytesPerSec: le.Uint32(b[8:]),
		BlockAlign:     le.Uint16(b[12:]),
		BitsPerSample:  le.Uint16(b[14:]),
		Size:           le.Uint16(b[16:]),
	}
}

// ReadWaveFormat decodes the WAVEFORMATEX located at the foreign address.
func ReadWaveFormat(addr uintptr) WaveFormatEx {
	return ParseWaveFormat(interpose.Bytes(addr, WaveFormatExSize))
}

// FormatFromWave converts the native format structure.
func FormatFromWave(w WaveFormatEx) Format {
	return Format{
		Channels:      uint32(w.Channels),
		BitsPerSample: uint32(w.BitsPerSample),
		SampleRate:    w.SamplesPerSec,
		BlockAlign:    uint32(w.BlockAlign),
	}
}

// Validate checks the block alignment equals channels times the
// sample width in bytes. Sizes derived from a format are only
// computed after it validates.
func (f Format) Validate() error {
	if f.BlockAlign == 0 {
		return fmt.Errorf("%w: zero block align", ErrMisaligned)
	}
	if want := f.Channels * (f.BitsPerSample / 8); f.BlockAlign != want {
		return fmt.Errorf("%w: block align is %d, but %d channels at %d bits need %d", ErrMisaligned, f.BlockAlign, f.Channels, f.BitsPerSample, want)
	}
	return nil
}

// Frame returns the format as carried by the wire frame.
func (f Format) Frame() frame.Format {
	return frame.Format{Channels: f.Channels, BitsPerSample: f.BitsPerSample, SampleRate: f.SampleRate}
}
