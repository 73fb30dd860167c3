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

package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendDecode(t *testing.T) {
	var tests = []struct {
		name    string
		payload []byte
		meta    Meta
	}{
		{
			"stereo 16-bit",
			bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 100),
			Meta{Format: Format{Channels: 2, BitsPerSample: 16, SampleRate: 44100}, Samples: 100},
		},
		{
			"float mix",
			bytes.Repeat([]byte{0xAA}, 480*8),
			Meta{Format: Format{Channels: 2, BitsPerSample: 32, SampleRate: 48000}, Samples: 480},
		},
		{
			"empty payload",
			nil,
			Meta{Format: Format{Channels: 1, BitsPerSample: 8, SampleRate: 8000}},
		},
		{
			"largest payload",
			make([]byte, MaxPayloadSize),
			Meta{Format: Format{Channels: 1, BitsPerSample: 8, SampleRate: 8000}, Samples: MaxPayloadSize},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Append(nil, tt.payload, tt.meta)
			require.NoError(t, err)
			require.Len(t, b, Size(len(tt.payload)))
			assert.Equal(t, Magic1, b[0])
			assert.Equal(t, Magic2, b[1])

			h, payload, err := Decode(b)
			require.NoError(t, err)
			assert.Equal(t, tt.meta, h.Meta)
			assert.Equal(t, uint32(MagicSize), h.HeaderOffset)
			assert.Equal(t, uint32(HeaderSize), h.HeaderSize)
			assert.Equal(t, h.HeaderOffset+h.HeaderSize, h.DataOffset)
			assert.Equal(t, h.HeaderOffset+h.HeaderSize+h.DataSize, h.TotalSize)
			assert.Equal(t, len(tt.payload), len(payload))
			if len(tt.payload) > 0 {
				assert.Equal(t, tt.payload, payload)
			}
		})
	}
}

func TestAppendPreservesPrefix(t *testing.T) {
	dst := []byte("prefix")
	b, err := Append(dst, []byte{1, 2, 3, 4}, Meta{Format: Format{Channels: 1, BitsPerSample: 16, SampleRate: 8000}, Samples: 2})
	require.NoError(t, err)
	assert.Equal(t, []byte("prefix"), b[:6])

	h, payload, err := Decode(b[6:])
	require.NoError(t, err)
	assert.Equal(t, uint32(2), h.Samples)
	assert.Equal(t, []byte{1, 2, 3, 4}, payload)
}

func TestAppendTooLarge(t *testing.T) {
	dst := make([]byte, 0, 16)
	dst = append(dst, 0x42)

	b, err := Append(dst, make([]byte, MaxPayloadSize+1), Meta{})
	require.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Equal(t, []byte{0x42}, b)

	b, err = AppendSilence(dst, MaxSize, Meta{})
	require.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Equal(t, []byte{0x42}, b)
}

func TestAppendSilence(t *testing.T) {
	b, err := AppendSilence(nil, 64, Meta{Format: Format{Channels: 2, BitsPerSample: 16, SampleRate: 48000}, Samples: 16})
	require.NoError(t, err)

	h, payload, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), h.Samples)
	assert.Equal(t, make([]byte, 64), payload)
}

func TestDecodeErrors(t *testing.T) {
	valid, err := Append(nil, bytes.Repeat([]byte{7}, 400), Meta{Format: Format{Channels: 2, BitsPerSample: 16, SampleRate: 44100}, Samples: 100})
	require.NoError(t, err)

	t.Run("short", func(t *testing.T) {
		_, _, err := Decode(valid[:PrefixSize-1])
		require.ErrorIs(t, err, ErrShortFrame)
	})

	t.Run("bad magic", func(t *testing.T) {
		b := append([]byte{0x00, 0x00}, valid[2:]...)
		_, _, err := Decode(b)
		require.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := Decode(valid[:len(valid)-1])
		require.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("inconsistent total size", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		le.PutUint32(b[MagicSize+16:], 0xFFFFFFFF)
		_, _, err := Decode(b)
		require.ErrorIs(t, err, ErrCorruptHeader)
	})

	t.Run("data offset overlaps header", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		le.PutUint32(b[MagicSize+8:], 4)
		_, _, err := Decode(b)
		require.ErrorIs(t, err, ErrCorruptHeader)
	})
}

func TestHasMagic(t *testing.T) {
	assert.True(t, HasMagic(nil))
	assert.True(t, HasMagic([]byte{Magic1}))
	assert.False(t, HasMagic([]byte{0x00}))
	assert.True(t, HasMagic([]byte{Magic1, Magic2, 0x00}))
	assert.False(t, HasMagic([]byte{0x00, 0x00}))
}

func TestFormatBlockAlign(t *testing.T) {
	assert.Equal(t, uint32(4), Format{Channels: 2, BitsPerSample: 16}.BlockAlign())
	assert.Equal(t, uint32(8), Format{Channels: 2, BitsPerSample: 32}.BlockAlign())
	assert.Equal(t, uint32(6), Format{Channels: 2, BitsPerSample: 24}.BlockAlign())
	assert.True(t, Format{}.IsZero())
}

func TestPeekSize(t *testing.T) {
	b, err := Append(nil, make([]byte, 400), Meta{Format: Format{Channels: 2, BitsPerSample: 16, SampleRate: 44100}, Samples: 100})
	require.NoError(t, err)

	n, err := PeekSize(b[:PrefixSize])
	require.NoError(t, err)
	assert.Equal(t, PrefixSize+400, n)

	_, err = PeekSize(b[:10])
	require.ErrorIs(t, err, ErrShortFrame)
}
