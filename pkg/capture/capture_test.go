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
	"sync"
	"testing"

	"github.com/rabbitstack/audiotap/pkg/frame"
	"github.com/rabbitstack/audiotap/pkg/interpose/comfake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (r *frameRecorder) Write(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, append([]byte(nil), b...))
	return nil
}

func (r *frameRecorder) decoded(t *testing.T) ([]frame.Header, [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		headers  []frame.Header
		payloads [][]byte
	)
	for _, b := range r.frames {
		h, payload, err := frame.Decode(b)
		require.NoError(t, err)
		headers = append(headers, h)
		payloads = append(payloads, payload)
	}
	return headers, payloads
}

func TestFormatValidate(t *testing.T) {
	var tests = []struct {
		f   Format
		err error
	}{
		{Format{Channels: 2, BitsPerSample: 16, SampleRate: 44100, BlockAlign: 4}, nil},
		{Format{Channels: 2, BitsPerSample: 32, SampleRate: 48000, BlockAlign: 8}, nil},
		{Format{Channels: 6, BitsPerSample: 24, SampleRate: 48000, BlockAlign: 18}, nil},
		{Format{Channels: 2, BitsPerSample: 16, SampleRate: 44100, BlockAlign: 3}, ErrMisaligned},
		{Format{Channels: 2, BitsPerSample: 16, SampleRate: 44100}, ErrMisaligned},
		{Format{}, ErrMisaligned},
	}

	for _, tt := range tests {
		err := tt.f.Validate()
		if tt.err == nil {
			assert.NoError(t, err)
			continue
		}
		assert.ErrorIs(t, err, tt.err)
	}
}

// packWaveFormat lays out w the way WAVEFORMATEX is stored natively.
func packWaveFormat(b []byte, w WaveFormatEx) {
	le := binary.LittleEndian
	le.PutUint16(b[0:], w.FormatTag)
	le.PutUint16(b[2:], w.Channels)
	le.PutUint32(b[4:], w.SamplesPerSec)
	le.PutUint32(b[8:], w.AvgBytesPerSec)
	le.PutUint16(b[12:], w.BlockAlign)
	le.PutUint16(b[14:], w.BitsPerSample)
	le.PutUint16(b[16:], w.Size)
}

func TestReadWaveFormat(t *testing.T) {
	want := WaveFormatEx{FormatTag: 0xFFFE, Channels: 6, SamplesPerSec: 48000, AvgBytesPerSec: 1152000, BlockAlign: 24, BitsPerSample: 32, Size: 22}

	b := make([]byte, WaveFormatExSize)
	packWaveFormat(b, want)
	assert.Equal(t, want, ParseWaveFormat(b))
	assert.Equal(t, WaveFormatEx{}, ParseWaveFormat(b[:WaveFormatExSize-1]))

	rt := comfake.NewRuntime()
	mem, addr := rt.Buffer(WaveFormatExSize)
	packWaveFormat(mem, want)
	assert.Equal(t, want, ReadWaveFormat(addr))
}

func TestFormatFromWave(t *testing.T) {
	f := FormatFromWave(WaveFormatEx{FormatTag: 3, Channels: 2, SamplesPerSec: 48000, AvgBytesPerSec: 384000, BlockAlign: 8, BitsPerSample: 32})
	assert.Equal(t, Format{Channels: 2, BitsPerSample: 32, SampleRate: 48000, BlockAlign: 8}, f)
	assert.Equal(t, frame.Format{Channels: 2, BitsPerSample: 32, SampleRate: 48000}, f.Frame())
}

func TestEmitterWriteFailureDropsFrame(t *testing.T) {
	w := &frameRecorder{err: errors.New("no consumer")}
	e := NewEmitter(w)

	dropped := framesDropped.Value()
	ok := e.Emit("test", []byte{1, 2, 3, 4}, frame.Meta{Format: frame.Format{Channels: 1, BitsPerSample: 16, SampleRate: 8000}, Samples: 2})
	assert.False(t, ok)
	assert.Equal(t, dropped+1, framesDropped.Value())
}

func TestEmitterOversizeFrame(t *testing.T) {
	w := &frameRecorder{}
	e := NewEmitter(w)

	assert.False(t, e.EmitSilence("test", frame.MaxPayloadSize+1, frame.Meta{}))
	assert.Empty(t, w.frames)
}

func TestEmitterFormatChanges(t *testing.T) {
	e := NewEmitter(&frameRecorder{})
	changes := formatChanges.Value()

	meta := frame.Meta{Format: frame.Format{Channels: 2, BitsPerSample: 16, SampleRate: 44100}, Samples: 1}
	e.Emit("test", []byte{0, 0, 0, 0}, meta)
	e.Emit("test", []byte{0, 0, 0, 0}, meta)
	assert.Equal(t, changes, formatChanges.Value())

	meta.SampleRate = 48000
	e.Emit("test", []byte{0, 0, 0, 0}, meta)
	assert.Equal(t, changes+1, formatChanges.Value())
}
