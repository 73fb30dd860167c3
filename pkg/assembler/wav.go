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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SampleFormat determines how samples are encoded in the WAV container.
type SampleFormat string

const (
	// SampleFormatAuto treats 32-bit samples as IEEE float and everything else as integer PCM.
	// The frame header doesn't carry the format tag, so a 32-bit integer stream, which some
	// DirectSound buffers use, gets a float header. Use SampleFormatPCM for those.
	SampleFormatAuto SampleFormat = "auto"
	// SampleFormatPCM always writes integer PCM.
	SampleFormatPCM SampleFormat = "pcm"
	// SampleFormatFloat always writes IEEE float samples.
	SampleFormatFloat SampleFormat = "float"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// ErrEmptyStream is returned when there is no audio to write.
var ErrEmptyStream = errors.New("no audio was captured")

// ParseSampleFormat parses the sample format name.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch sf := SampleFormat(s); sf {
	case SampleFormatAuto, SampleFormatPCM, SampleFormatFloat:
		return sf, nil
	case "":
		return SampleFormatAuto, nil
	default:
		return "", fmt.Errorf("unknown sample format %q", s)
	}
}

func (sf SampleFormat) wavFormat(bits uint32) (int, error) {
	switch sf {
	case SampleFormatFloat:
		if bits != 32 {
			return 0, fmt.Errorf("%d-bit samples can't be encoded as float", bits)
		}
		return wavFormatFloat, nil
	case SampleFormatPCM:
		return wavFormatPCM, nil
	default:
		if bits == 32 {
			return wavFormatFloat, nil
		}
		return wavFormatPCM, nil
	}
}

// OutputPath resolves the WAV file path. An empty path yields a
// timestamped file in the working directory, while an existing
// directory gets the timestamped file inside it.
func OutputPath(path string, now time.Time) string {
	name := now.Format("record_20060102_150405.wav")
	if path == "" {
		return name
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return filepath.Join(path, name)
	}
	return path
}

// WriteWAV writes the assembled stream to a WAV file.
func WriteWAV(path string, s *Stream, sf SampleFormat) error {
	if s.Empty() {
		return ErrEmptyStream
	}
	f := s.Format
	wavFormat, err := sf.wavFormat(f.BitsPerSample)
	if err != nil {
		return err
	}
	buf, err := intBuffer(s.Bytes(), f.Channels, f.SampleRate, f.BitsPerSample)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := wav.NewEncoder(out, int(f.SampleRate), int(f.BitsPerSample), int(f.Channels), wavFormat)
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("unable to write samples to %s: %v", path, err)
	}
	return enc.Close()
}

// intBuffer decodes little-endian samples. The encoder writes the value
// back with the same width, so float samples keep their bit pattern.
func intBuffer(b []byte, channels, rate, bits uint32) (*audio.IntBuffer, error) {
	width := int(bits / 8)
	switch bits {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bits)
	}
	data := make([]int, len(b)/width)
	for i := range data {
		p := b[i*width:]
		switch width {
		case 1:
			data[i] = int(p[0])
		case 2:
			data[i] = int(int16(uint16(p[0]) | uint16(p[1])<<8))
		case 3:
			v := int32(uint32(p[0])<<8|uint32(p[1])<<16|uint32(p[2])<<24) >> 8
			data[i] = int(v)
		case 4:
			data[i] = int(int32(uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24))
		}
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: int(channels), SampleRate: int(rate)},
		Data:           data,
		SourceBitDepth: int(bits),
	}, nil
}
