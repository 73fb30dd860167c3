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
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic1 is the first byte of the frame magic marker.
	Magic1 byte = 0xFE
	// Magic2 is the second byte of the frame magic marker.
	Magic2 byte = 0xCF

	// MagicSize is the length of the magic marker.
	MagicSize = 2
	// HeaderSize is the size of the fixed header that follows the magic marker.
	// The header is comprised of nine 32-bit integers.
	HeaderSize = 9 * 4
	// PrefixSize is the number of bytes that must be available to locate the payload.
	PrefixSize = MagicSize + HeaderSize

	// MaxSize is the fixed channel capacity. Frames larger than this are rejected.
	MaxSize = 1024 * 1024
	// MaxPayloadSize is the largest payload that fits into a single frame.
	MaxPayloadSize = MaxSize - PrefixSize
)

var (
	// ErrFrameTooLarge is returned when the encoded frame would exceed the channel capacity.
	ErrFrameTooLarge = errors.New("frame exceeds channel capacity")
	// ErrShortFrame is returned when fewer bytes than magic and header are available.
	ErrShortFrame = errors.New("not enough bytes to read the frame header")
	// ErrBadMagic signals the byte span doesn't start with the frame magic marker.
	ErrBadMagic = errors.New("invalid frame magic number")
	// ErrCorruptHeader signals the header offsets and sizes are not self-consistent.
	ErrCorruptHeader = errors.New("corrupt frame header")
	// ErrTruncated is returned when the declared frame size exceeds the available bytes.
	ErrTruncated = errors.New("frame is truncated")
)

var le = binary.LittleEndian

// Format describes the layout of the PCM samples carried by a frame.
type Format struct {
	Channels      uint32
	BitsPerSample uint32
	SampleRate    uint32
}

// BlockAlign returns the number of bytes in one multi-channel sample frame.
func (f Format) BlockAlign() uint32 { return f.Channels * (f.BitsPerSample / 8) }

// IsZero reports whether the format was never set.
func (f Format) IsZero() bool { return f == Format{} }

// String returns a human-readable representation of the format.
func (f Format) String() string {
	return fmt.Sprintf("%d ch, %d bit, %d Hz", f.Channels, f.BitsPerSample, f.SampleRate)
}

// Meta is the audio metadata carried in every frame header.
type Meta struct {
	Format
	// Samples is the number of multi-channel sample frames in the payload.
	Samples uint32
}

// Header is the decoded frame header. All offsets are relative to
// the start of the frame, so a frame can be located without any
// external context.
type Header struct {
	HeaderOffset uint32
	HeaderSize   uint32
	DataOffset   uint32
	DataSize     uint32
	TotalSize    uint32
	Meta
}

// String returns the header summary.
func (h Header) String() string {
	return fmt.Sprintf("size: %d, data: %d, samples: %d, format: %s", h.TotalSize, h.DataSize, h.Samples, h.Format)
}

// Size returns the size of a frame carrying n payload bytes.
func Size(n int) int { return PrefixSize + n }

// Append encodes a frame with the given payload and metadata and appends it to dst.
// If the frame wouldn't fit into the channel capacity, dst is returned unmodified
// along with ErrFrameTooLarge.
func Append(dst []byte, payload []byte, meta Meta) ([]byte, error) {
	if Size(len(payload)) > MaxSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, Size(len(payload)))
	}
	dst = appendPrefix(dst, len(payload), meta)
	return append(dst, payload...), nil
}

// AppendSilence is like Append but the payload is comprised of n zero bytes.
func AppendSilence(dst []byte, n int, meta Meta) ([]byte, error) {
	if n < 0 || Size(n) > MaxSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, Size(n))
	}
	dst = appendPrefix(dst, n, meta)
	for i := 0; i < n; i++ {
		dst = append(dst, 0)
	}
	return dst, nil
}

func appendPrefix(dst []byte, n int, meta Meta) []byte {
	h := Header{
		HeaderOffset: MagicSize,
		HeaderSize:   HeaderSize,
		DataOffset:   MagicSize + HeaderSize,
		DataSize:     uint32(n),
		TotalSize:    uint32(MagicSize + HeaderSize + n),
		Meta:         meta,
	}
	dst = append(dst, Magic1, Magic2)
	dst = le.AppendUint32(dst, h.HeaderOffset)
	dst = le.AppendUint32(dst, h.HeaderSize)
	dst = le.AppendUint32(dst, h.DataOffset)
	dst = le.AppendUint32(dst, h.DataSize)
	dst = le.AppendUint32(dst, h.TotalSize)
	dst = le.AppendUint32(dst, h.Channels)
	dst = le.AppendUint32(dst, h.Samples)
	dst = le.AppendUint32(dst, h.BitsPerSample)
	dst = le.AppendUint32(dst, h.SampleRate)
	return dst
}

// HasMagic reports whether b starts with the frame magic marker. Spans
// shorter than the marker are checked only for the bytes they have.
func HasMagic(b []byte) bool {
	switch {
	case len(b) == 0:
		return true
	case len(b) == 1:
		return b[0] == Magic1
	default:
		return b[0] == Magic1 && b[1] == Magic2
	}
}

// ReadHeader parses and validates the magic marker and the header. The
// payload doesn't need to be present, which makes it suitable for
// inspecting a partially buffered frame to learn its total size.
func ReadHeader(b []byte) (Header, error) {
	if len(b) < PrefixSize {
		return Header{}, ErrShortFrame
	}
	if !HasMagic(b) {
		return Header{}, fmt.Errorf("%w: got %#x %#x", ErrBadMagic, b[0], b[1])
	}
	hb := b[MagicSize:]
	h := Header{
		HeaderOffset: le.Uint32(hb[0:]),
		HeaderSize:   le.Uint32(hb[4:]),
		DataOffset:   le.Uint32(hb[8:]),
		DataSize:     le.Uint32(hb[12:]),
		TotalSize:    le.Uint32(hb[16:]),
	}
	h.Channels = le.Uint32(hb[20:])
	h.Samples = le.Uint32(hb[24:])
	h.BitsPerSample = le.Uint32(hb[28:])
	h.SampleRate = le.Uint32(hb[32:])

	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// PeekSize returns the total size of the frame that starts at b. Only
// the magic marker and the header have to be buffered.
func PeekSize(b []byte) (int, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return 0, err
	}
	return int(h.TotalSize), nil
}

func (h Header) validate() error {
	// widen to 64 bits so corrupt values can't wrap around
	var (
		hoff  = uint64(h.HeaderOffset)
		hsize = uint64(h.HeaderSize)
		doff  = uint64(h.DataOffset)
		dsize = uint64(h.DataSize)
		total = uint64(h.TotalSize)
	)
	switch {
	case hoff < MagicSize || hsize < HeaderSize:
		return fmt.Errorf("%w: header at %d with size %d", ErrCorruptHeader, hoff, hsize)
	case doff != hoff+hsize:
		return fmt.Errorf("%w: data offset %d doesn't follow the header", ErrCorruptHeader, doff)
	case total != doff+dsize:
		return fmt.Errorf("%w: total size %d doesn't match data offset %d and size %d", ErrCorruptHeader, total, doff, dsize)
	case total > MaxSize:
		return fmt.Errorf("%w: total size %d exceeds capacity", ErrCorruptHeader, total)
	}
	return nil
}

// Decode decodes a frame from the byte span. The returned payload aliases b.
// Trailing bytes after the frame are ignored.
func Decode(b []byte) (Header, []byte, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return Header{}, nil, err
	}
	if uint64(h.TotalSize) > uint64(len(b)) {
		return Header{}, nil, fmt.Errorf("%w: declared %d bytes, %d available", ErrTruncated, h.TotalSize, len(b))
	}
	return h, b[h.DataOffset : h.DataOffset+h.DataSize], nil
}
