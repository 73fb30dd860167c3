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

// Package assembler reconstructs the captured audio from the frames
// read off the stream channel.
package assembler

import (
	"bufio"
	"errors"
	"expvar"
	"fmt"
	"io"

	"github.com/rabbitstack/audiotap/pkg/frame"
	log "github.com/sirupsen/logrus"
)

// ErrIntegrity is returned when the stream doesn't carry well-formed
// frames. The stream can't be resynchronized after that.
var ErrIntegrity = errors.New("stream integrity violation")

var framesAssembled = expvar.NewInt("assembler.frames")

// Assembler reads frames from the consumer end of the channel.
type Assembler struct {
	r      *bufio.Reader
	stream *Stream
}

// New creates an assembler that reads from r. The read buffer is sized
// to the channel capacity so every valid frame can be inspected at once.
func New(r io.Reader) *Assembler {
	return &Assembler{
		r:      bufio.NewReaderSize(r, frame.MaxSize),
		stream: &Stream{},
	}
}

// Stream returns the stream assembled so far.
func (a *Assembler) Stream() *Stream { return a.stream }

// Run consumes frames until the producer closes the channel. The
// returned stream holds everything assembled before the end of the
// stream or the integrity failure.
func (a *Assembler) Run() (*Stream, error) {
	for {
		done, err := a.next()
		if err != nil {
			return a.stream, err
		}
		if done {
			return a.stream, nil
		}
	}
}

func (a *Assembler) next() (bool, error) {
	prefix, err := a.r.Peek(frame.PrefixSize)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return false, err
		}
		if !frame.HasMagic(prefix) {
			return false, fmt.Errorf("%w: %v", ErrIntegrity, frame.ErrBadMagic)
		}
		return true, a.discardTail(len(prefix))
	}

	size, err := frame.PeekSize(prefix)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	b, err := a.r.Peek(size)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return true, a.discardTail(len(b))
		}
		return false, err
	}

	h, payload, err := frame.Decode(b)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	a.stream.append(h, payload)
	framesAssembled.Add(1)
	log.Debugf("assembled frame %d (%s)", a.stream.Frames, h)

	_, err = a.r.Discard(size)
	return false, err
}

func (a *Assembler) discardTail(n int) error {
	if n == 0 {
		return nil
	}
	log.Warnf("stream ended with a partial frame. Discarding %d trailing bytes", n)
	a.stream.Torn = true
	_, err := a.r.Discard(n)
	return err
}
