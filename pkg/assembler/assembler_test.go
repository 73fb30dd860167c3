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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"
	"time"

	"github.com/go-audio/wav"
	"github.com/rabbitstack/audiotap/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stereo16 = frame.Format{Channels: 2, BitsPerSample: 16, SampleRate: 44100}

func frames(t *testing.T, n int, payload []byte, f frame.Format) []byte {
	var b []byte
	var err error
	for i := 0; i < n; i++ {
		b, err = frame.Append(b, payload, frame.Meta{Format: f, Samples: uint32(len(payload)) / f.BlockAlign()})
		require.NoError(t, err)
	}
	return b
}

func TestRun(t *testing.T) {
	b := frames(t, 3, bytes.Repeat([]byte{1, 0, 2, 0}, 100), stereo16)

	// one byte reads exercise frames split across many reads
	s, err := New(iotest.OneByteReader(bytes.NewReader(b))).Run()
	require.NoError(t, err)

	assert.Equal(t, uint64(300), s.Samples)
	assert.Equal(t, uint64(3), s.Frames)
	assert.Equal(t, stereo16, s.Format)
	assert.Len(t, s.Bytes(), 1200)
	assert.False(t, s.Torn)
	assert.False(t, s.Empty())
}

func TestRunEmptyStream(t *testing.T) {
	s, err := New(bytes.NewReader(nil)).Run()
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestRunPartialTail(t *testing.T) {
	b := frames(t, 2, make([]byte, 400), stereo16)

	for _, cut := range []int{1, 20, frame.PrefixSize + 100} {
		s, err := New(bytes.NewReader(b[:len(b)-frame.Size(400)+cut])).Run()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), s.Frames)
		assert.Equal(t, uint64(100), s.Samples)
		assert.True(t, s.Torn)
	}
}

func TestRunIntegrity(t *testing.T) {
	valid := frames(t, 1, make([]byte, 400), stereo16)

	t.Run("bad magic", func(t *testing.T) {
		b := append(append([]byte(nil), valid...), 0x00, 0x00)
		b = append(b, make([]byte, 100)...)
		s, err := New(bytes.NewReader(b)).Run()
		require.ErrorIs(t, err, ErrIntegrity)
		assert.Equal(t, uint64(1), s.Frames)
	})

	t.Run("bad magic in tail", func(t *testing.T) {
		_, err := New(bytes.NewReader([]byte{0x00, 0x00})).Run()
		require.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("corrupt header", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		b[frame.MagicSize+16] = 0x01
		s, err := New(bytes.NewReader(b)).Run()
		require.ErrorIs(t, err, ErrIntegrity)
		assert.True(t, s.Empty())
	})
}

func TestRunReadError(t *testing.T) {
	_, err := New(iotest.ErrReader(errors.New("pipe broken"))).Run()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIntegrity)
}

func TestFormatChange(t *testing.T) {
	mono := frame.Format{Channels: 1, BitsPerSample: 16, SampleRate: 22050}
	b := frames(t, 1, make([]byte, 400), stereo16)
	b = append(b, frames(t, 1, make([]byte, 200), mono)...)

	s, err := New(bytes.NewReader(b)).Run()
	require.NoError(t, err)
	assert.Equal(t, mono, s.Format)
	assert.Equal(t, uint64(1), s.FormatChanges)
	assert.Equal(t, uint64(200), s.Samples)
}

func TestWriteWAV(t *testing.T) {
	b := frames(t, 3, bytes.Repeat([]byte{0x10, 0x00, 0xF0, 0xFF}, 100), stereo16)
	s, err := New(bytes.NewReader(b)).Run()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, WriteWAV(path, s, SampleFormatAuto))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), d.NumChans)
	assert.Equal(t, uint16(16), d.BitDepth)
	assert.Equal(t, uint32(44100), d.SampleRate)
	assert.Equal(t, uint16(wavFormatPCM), d.WavAudioFormat)
	require.Len(t, buf.Data, 600)
	assert.Equal(t, 16, buf.Data[0])
	assert.Equal(t, -16, buf.Data[1])

	var out bytes.Buffer
	PrintStats(&out, path, s)
	assert.Contains(t, out.String(), "out.wav")
}

func TestWriteWAVFloat(t *testing.T) {
	f32 := frame.Format{Channels: 2, BitsPerSample: 32, SampleRate: 48000}
	b := frames(t, 2, make([]byte, 480*8), f32)
	s, err := New(bytes.NewReader(b)).Run()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "float.wav")
	require.NoError(t, WriteWAV(path, s, SampleFormatAuto))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	require.NoError(t, d.Err())
	assert.Equal(t, uint16(wavFormatFloat), d.WavAudioFormat)
	assert.Equal(t, uint16(32), d.BitDepth)

	assert.Error(t, WriteWAV(path, &Stream{Format: stereo16, Samples: 1, data: make([]byte, 4)}, SampleFormatFloat))
}

func TestWriteWAVInteger32(t *testing.T) {
	i32 := frame.Format{Channels: 2, BitsPerSample: 32, SampleRate: 44100}
	b := frames(t, 1, make([]byte, 100*8), i32)
	s, err := New(bytes.NewReader(b)).Run()
	require.NoError(t, err)

	// auto can't tell integer from float at this depth
	for sf, tag := range map[SampleFormat]int{SampleFormatAuto: wavFormatFloat, SampleFormatPCM: wavFormatPCM} {
		path := filepath.Join(t.TempDir(), string(sf)+".wav")
		require.NoError(t, WriteWAV(path, s, sf))

		f, err := os.Open(path)
		require.NoError(t, err)
		d := wav.NewDecoder(f)
		d.ReadInfo()
		require.NoError(t, d.Err())
		assert.Equal(t, uint16(tag), d.WavAudioFormat, sf)
		assert.Equal(t, uint16(32), d.BitDepth)
		f.Close()
	}
}

func TestWriteWAVEmpty(t *testing.T) {
	err := WriteWAV(filepath.Join(t.TempDir(), "empty.wav"), &Stream{}, SampleFormatAuto)
	require.ErrorIs(t, err, ErrEmptyStream)
}

func TestOutputPath(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	dir := t.TempDir()

	assert.Equal(t, "record_20240309_140507.wav", OutputPath("", now))
	assert.Equal(t, filepath.Join(dir, "record_20240309_140507.wav"), OutputPath(dir, now))
	assert.Equal(t, filepath.Join(dir, "capture.wav"), OutputPath(filepath.Join(dir, "capture.wav"), now))
}

func TestParseSampleFormat(t *testing.T) {
	sf, err := ParseSampleFormat("")
	require.NoError(t, err)
	assert.Equal(t, SampleFormatAuto, sf)

	sf, err = ParseSampleFormat("float")
	require.NoError(t, err)
	assert.Equal(t, SampleFormatFloat, sf)

	_, err = ParseSampleFormat("mp3")
	require.Error(t, err)
}
