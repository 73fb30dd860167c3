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
	"fmt"
	"sync"
	"unsafe"

	"github.com/rabbitstack/audiotap/pkg/frame"
	"github.com/rabbitstack/audiotap/pkg/interpose"
	log "github.com/sirupsen/logrus"
)

// Vtable slots of the intercepted WASAPI methods.
const (
	// SlotGetDefaultAudioEndpoint is IMMDeviceEnumerator::GetDefaultAudioEndpoint.
	SlotGetDefaultAudioEndpoint = 4
	// SlotGetCurrentPadding is IAudioClient::GetCurrentPadding.
	SlotGetCurrentPadding = 6
	// SlotGetMixFormat is IAudioClient::GetMixFormat.
	SlotGetMixFormat = 8
	// SlotGetBuffer is IAudioRenderClient::GetBuffer.
	SlotGetBuffer = 3
	// SlotReleaseBuffer is IAudioRenderClient::ReleaseBuffer.
	SlotReleaseBuffer = 4
)

// BufferFlagsSilent is AUDCLNT_BUFFERFLAGS_SILENT. The caller wants the
// released frames to be treated as silence regardless of the buffer contents.
const BufferFlagsSilent = 0x2

const wasapiSource = "wasapi"

// WASAPIProbe holds the live objects the WASAPI vtables are resolved from.
type WASAPIProbe struct {
	Enumerator   uintptr
	Client       uintptr
	RenderClient uintptr
}

// wasapiState tracks the render client in use. The API doesn't pass
// the owning client to ReleaseBuffer, so it is learned from the
// preceding GetCurrentPadding call.
type wasapiState struct {
	mu     sync.Mutex
	client uintptr
	buffer uintptr

	// out-parameter of GetMixFormat
	qmu       sync.Mutex
	mixFormat uintptr
}

func (s *wasapiState) setClient(client uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

func (s *wasapiState) setBuffer(buf uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = buf
}

// take returns the active client and the acquired buffer. The buffer
// is handed out once per GetBuffer/ReleaseBuffer pair.
func (s *wasapiState) take() (client, buffer uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, buffer = s.client, s.buffer
	s.buffer = 0
	return client, buffer
}

// WASAPI intercepts the shared-mode render path. Frames are captured
// when the render client commits them with ReleaseBuffer.
type WASAPI struct {
	rt      interpose.Runtime
	emitter *Emitter
	state   *wasapiState
	group   *interpose.Group

	endpoint      *interpose.Target
	padding       *interpose.Target
	getBuffer     *interpose.Target
	releaseBuffer *interpose.Target
}

// NewWASAPI builds the WASAPI interception group from the probe objects.
func NewWASAPI(rt interpose.Runtime, patcher interpose.Patcher, emitter *Emitter, probe WASAPIProbe) *WASAPI {
	w := &WASAPI{
		rt:      rt,
		emitter: emitter,
		state:   &wasapiState{mixFormat: rt.Alloc(int(unsafe.Sizeof(uintptr(0))))},
	}
	w.endpoint = interpose.NewTarget("IMMDeviceEnumerator::GetDefaultAudioEndpoint", probe.Enumerator, SlotGetDefaultAudioEndpoint, rt.Callback(w.getDefaultAudioEndpoint))
	w.padding = interpose.NewTarget("IAudioClient::GetCurrentPadding", probe.Client, SlotGetCurrentPadding, rt.Callback(w.getCurrentPadding))
	w.getBuffer = interpose.NewTarget("IAudioRenderClient::GetBuffer", probe.RenderClient, SlotGetBuffer, rt.Callback(w.getRenderBuffer))
	w.releaseBuffer = interpose.NewTarget("IAudioRenderClient::ReleaseBuffer", probe.RenderClient, SlotReleaseBuffer, rt.Callback(w.releaseRenderBuffer))
	w.group = interpose.NewGroup(wasapiSource, patcher, w.endpoint, w.padding, w.getBuffer, w.releaseBuffer)
	return w
}

// Group returns the interception group.
func (w *WASAPI) Group() *interpose.Group { return w.group }

func (w *WASAPI) getDefaultAudioEndpoint(this, dataFlow, role, ppEndpoint uintptr) uintptr {
	hr := w.rt.Call(w.endpoint.Original(), this, dataFlow, role, ppEndpoint)
	if succeeded(hr) && ppEndpoint != 0 && log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("default audio endpoint %#x resolved for flow %d and role %d", interpose.Read[uintptr](ppEndpoint), dataFlow, role)
	}
	return hr
}

func (w *WASAPI) getCurrentPadding(this, pNumPaddingFrames uintptr) uintptr {
	hr := w.rt.Call(w.padding.Original(), this, pNumPaddingFrames)
	w.state.setClient(this)
	return hr
}

func (w *WASAPI) getRenderBuffer(this, numFramesRequested, ppData uintptr) uintptr {
	hr := w.rt.Call(w.getBuffer.Original(), this, numFramesRequested, ppData)
	if succeeded(hr) && ppData != 0 {
		w.state.setBuffer(interpose.Read[uintptr](ppData))
	}
	return hr
}

func (w *WASAPI) releaseRenderBuffer(this, numFramesWritten, flags uintptr) uintptr {
	w.capture(uint32(numFramesWritten), uint32(flags))
	return w.rt.Call(w.releaseBuffer.Original(), this, numFramesWritten, flags)
}

// capture emits the frames committed to the render buffer. It runs
// before the real ReleaseBuffer while the buffer is still readable.
func (w *WASAPI) capture(frames, flags uint32) {
	client, buffer := w.state.take()
	if client == 0 || frames == 0 {
		return
	}
	silent := flags&BufferFlagsSilent != 0
	if buffer == 0 && !silent {
		return
	}

	f, err := w.mixFormat(client)
	if err != nil {
		w.emitter.formatError(wasapiSource, err)
		return
	}
	if err := f.Validate(); err != nil {
		w.emitter.formatError(wasapiSource, err)
		return
	}

	// 32-bit builds would wrap in int
	n := uint64(frames) * uint64(f.BlockAlign)
	if n > frame.MaxPayloadSize {
		w.emitter.drop(wasapiSource, fmt.Errorf("%w: %d frames of %d bytes", frame.ErrFrameTooLarge, frames, f.BlockAlign))
		return
	}
	size := int(n)
	meta := frame.Meta{Format: f.Frame(), Samples: frames}
	if silent {
		w.emitter.EmitSilence(wasapiSource, size, meta)
		return
	}
	w.emitter.Emit(wasapiSource, interpose.Bytes(buffer, size), meta)
}

// mixFormat queries the live format of the client. The descriptor
// returned by GetMixFormat is released right after it is copied.
func (w *WASAPI) mixFormat(client uintptr) (Format, error) {
	w.state.qmu.Lock()
	defer w.state.qmu.Unlock()

	out := w.state.mixFormat
	if out == 0 {
		return Format{}, errNoScratch
	}
	interpose.Write[uintptr](out, 0)
	fn := interpose.Resolve(client, SlotGetMixFormat)
	hr := w.rt.Call(fn, client, out)
	if !succeeded(hr) {
		return Format{}, hresultError("IAudioClient::GetMixFormat", hr)
	}
	wfx := interpose.Read[uintptr](out)
	if wfx == 0 {
		return Format{}, errNilFormat
	}
	f := ReadWaveFormat(wfx)
	w.rt.Free(wfx)
	interpose.Write[uintptr](out, 0)
	return FormatFromWave(f), nil
}
