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
	"expvar"
	"sync"
	"time"

	"github.com/rabbitstack/audiotap/pkg/frame"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/time/rate"
)

var (
	framesEmitted = expvar.NewInt("capture.frames.emitted")
	framesDropped = expvar.NewInt("capture.frames.dropped")
	formatErrors  = expvar.NewInt("capture.format.errors")
	formatChanges = expvar.NewInt("capture.format.changes")
)

// Writer accepts encoded frames. Implementations must not block the
// caller for long, since frames are written from the host's audio threads.
type Writer interface {
	Write(b []byte) error
}

// Emitter encodes captured buffers into frames and pushes them to the
// writer. Failures drop the frame and never surface to the caller.
type Emitter struct {
	w       Writer
	limiter *rate.Limiter

	mu   sync.Mutex
	last frame.Format
}

// NewEmitter creates an emitter on top of the frame writer.
func NewEmitter(w Writer) *Emitter {
	return &Emitter{
		w:       w,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Emit encodes the payload along with its metadata and writes the frame.
func (e *Emitter) Emit(source string, payload []byte, meta frame.Meta) bool {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	b, err := frame.Append(buf.B[:0], payload, meta)
	if err != nil {
		e.drop(source, err)
		return false
	}
	buf.B = b
	return e.write(source, b, meta)
}

// EmitSilence writes a frame carrying n zero bytes.
func (e *Emitter) EmitSilence(source string, n int, meta frame.Meta) bool {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	b, err := frame.AppendSilence(buf.B[:0], n, meta)
	if err != nil {
		e.drop(source, err)
		return false
	}
	buf.B = b
	return e.write(source, b, meta)
}

func (e *Emitter) write(source string, b []byte, meta frame.Meta) bool {
	e.observe(source, meta.Format)
	if e.w == nil {
		framesDropped.Add(1)
		return false
	}
	if err := e.w.Write(b); err != nil {
		e.drop(source, err)
		return false
	}
	framesEmitted.Add(1)
	return true
}

// observe logs format transitions once per change.
func (e *Emitter) observe(source string, f frame.Format) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == f {
		return
	}
	if !e.last.IsZero() {
		formatChanges.Add(1)
		log.Infof("%s: audio format changed from [%s] to [%s]", source, e.last, f)
	} else {
		log.Infof("%s: capturing audio in [%s] format", source, f)
	}
	e.last = f
}

func (e *Emitter) drop(source string, err error) {
	framesDropped.Add(1)
	e.warn("%s: dropping frame: %v", source, err)
}

// warn logs through the limiter so a persistent failure doesn't
// flood the log from the audio thread.
func (e *Emitter) warn(format string, args ...any) {
	if e.limiter.Allow() {
		log.Warnf(format, args...)
	}
}

// formatError records a failure to obtain a valid format descriptor.
func (e *Emitter) formatError(source string, err error) {
	formatErrors.Add(1)
	framesDropped.Add(1)
	e.warn("%s: dropping frame: %v", source, err)
}
