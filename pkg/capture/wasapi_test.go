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
	"bytes"
	"testing"

	"github.com/rabbitstack/audiotap/pkg/frame"
	"github.com/rabbitstack/audiotap/pkg/interpose"
	"github.com/rabbitstack/audiotap/pkg/interpose/comfake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const audclntEBufferTooLarge = 0x88890006

// fakeWASAPI is a render stack made of fake COM objects.
type fakeWASAPI struct {
	rt           *comfake.Runtime
	device       uintptr
	enumerator   uintptr
	client       uintptr
	renderClient uintptr

	mix       WaveFormatEx
	mixAddrs  []uintptr
	mixHR     uintptr
	padding   uint32
	buf       []byte
	bufAddr   uintptr
	bufferHR  uintptr
	released  []uint32
	flags     []uint32
	mixCalled int
}

func newFakeWASAPI(t *testing.T) *fakeWASAPI {
	f := &fakeWASAPI{
		rt:      comfake.NewRuntime(),
		mix:     WaveFormatEx{FormatTag: 1, Channels: 2, SamplesPerSec: 44100, AvgBytesPerSec: 176400, BlockAlign: 4, BitsPerSample: 16},
		padding: 96,
	}
	f.buf, f.bufAddr = f.rt.Buffer(4096)
	f.device = f.rt.NewObject(nil)
	f.enumerator = f.rt.NewObject(map[int]any{
		SlotGetDefaultAudioEndpoint: func(this, flow, role, pp uintptr) uintptr {
			comfake.Put(pp, f.device)
			return 0
		},
	})
	f.client = f.rt.NewObject(map[int]any{
		SlotGetCurrentPadding: func(this, p uintptr) uintptr {
			comfake.Put(p, f.padding)
			return 0
		},
		SlotGetMixFormat: func(this, pp uintptr) uintptr {
			f.mixCalled++
			if f.mixHR != 0 {
				return f.mixHR
			}
			// CoTaskMemAlloc'ed descriptors carry no padding
			wfx, addr := f.rt.Buffer(WaveFormatExSize)
			packWaveFormat(wfx, f.mix)
			f.mixAddrs = append(f.mixAddrs, addr)
			comfake.Put(pp, addr)
			return 0
		},
	})
	f.renderClient = f.rt.NewObject(map[int]any{
		SlotGetBuffer: func(this, n, pp uintptr) uintptr {
			if f.bufferHR != 0 {
				return f.bufferHR
			}
			comfake.Put(pp, f.bufAddr)
			return 0
		},
		SlotReleaseBuffer: func(this, n, flags uintptr) uintptr {
			f.released = append(f.released, uint32(n))
			f.flags = append(f.flags, uint32(flags))
			return 0
		},
	})
	return f
}

func (f *fakeWASAPI) probe() WASAPIProbe {
	return WASAPIProbe{Enumerator: f.enumerator, Client: f.client, RenderClient: f.renderClient}
}

// render drives one render cycle the way an audio engine does.
func (f *fakeWASAPI) render(t *testing.T, frames uint32, flags uint32, fill byte) {
	padding, paddingAddr := comfake.Alloc[uint32](f.rt)
	require.Equal(t, uintptr(0), f.rt.Invoke(f.client, SlotGetCurrentPadding, paddingAddr))
	assert.Equal(t, f.padding, *padding)

	data, dataAddr := comfake.Alloc[uintptr](f.rt)
	require.Equal(t, uintptr(0), f.rt.Invoke(f.renderClient, SlotGetBuffer, uintptr(frames), dataAddr))
	require.Equal(t, f.bufAddr, *data)
	for i := range f.buf {
		f.buf[i] = fill
	}
	require.Equal(t, uintptr(0), f.rt.Invoke(f.renderClient, SlotReleaseBuffer, uintptr(frames), uintptr(flags)))
}

func TestWASAPICapture(t *testing.T) {
	f := newFakeWASAPI(t)
	rec := &frameRecorder{}
	w := NewWASAPI(f.rt, interpose.DirectPatcher{}, NewEmitter(rec), f.probe())

	require.NoError(t, w.Group().Install())
	defer w.Group().Uninstall()

	f.render(t, 100, 0, 0x11)
	f.render(t, 50, 0, 0x22)

	headers, payloads := rec.decoded(t)
	require.Len(t, headers, 2)

	assert.Equal(t, uint32(100), headers[0].Samples)
	assert.Equal(t, frame.Format{Channels: 2, BitsPerSample: 16, SampleRate: 44100}, headers[0].Format)
	assert.Equal(t, bytes.Repeat([]byte{0x11}, 400), payloads[0])
	assert.Equal(t, uint32(50), headers[1].Samples)
	assert.Equal(t, bytes.Repeat([]byte{0x22}, 200), payloads[1])

	// the real commit still happens with the original arguments
	assert.Equal(t, []uint32{100, 50}, f.released)
	// every mix format descriptor is released
	assert.ElementsMatch(t, f.mixAddrs, f.rt.Freed())
}

func TestWASAPISilentBuffer(t *testing.T) {
	f := newFakeWASAPI(t)
	rec := &frameRecorder{}
	w := NewWASAPI(f.rt, interpose.DirectPatcher{}, NewEmitter(rec), f.probe())

	require.NoError(t, w.Group().Install())
	defer w.Group().Uninstall()

	f.render(t, 10, BufferFlagsSilent, 0x7F)

	headers, payloads := rec.decoded(t)
	require.Len(t, headers, 1)
	assert.Equal(t, uint32(10), headers[0].Samples)
	assert.Equal(t, make([]byte, 40), payloads[0])
	assert.Equal(t, []uint32{BufferFlagsSilent}, f.flags)
}

func TestWASAPIMisalignedFormat(t *testing.T) {
	f := newFakeWASAPI(t)
	f.mix.BlockAlign = 3
	rec := &frameRecorder{}
	w := NewWASAPI(f.rt, interpose.DirectPatcher{}, NewEmitter(rec), f.probe())

	require.NoError(t, w.Group().Install())
	defer w.Group().Uninstall()

	errs := formatErrors.Value()
	f.render(t, 100, 0, 0x11)

	assert.Empty(t, rec.frames)
	assert.Equal(t, errs+1, formatErrors.Value())
	assert.Equal(t, []uint32{100}, f.released)
}

func TestWASAPIFormatQueryFailure(t *testing.T) {
	f := newFakeWASAPI(t)
	f.mixHR = 0x80070005
	rec := &frameRecorder{}
	w := NewWASAPI(f.rt, interpose.DirectPatcher{}, NewEmitter(rec), f.probe())

	require.NoError(t, w.Group().Install())
	defer w.Group().Uninstall()

	f.render(t, 100, 0, 0x11)
	assert.Empty(t, rec.frames)
	assert.Empty(t, f.rt.Freed())
	assert.Equal(t, []uint32{100}, f.released)
}

func TestWASAPIPassThrough(t *testing.T) {
	f := newFakeWASAPI(t)
	w := NewWASAPI(f.rt, interpose.DirectPatcher{}, NewEmitter(&frameRecorder{}), f.probe())

	call := func() (hrs []uintptr, device, data uintptr, padding uint32) {
		dev, devAddr := comfake.Alloc[uintptr](f.rt)
		pad, padAddr := comfake.Alloc[uint32](f.rt)
		buf, bufAddr := comfake.Alloc[uintptr](f.rt)
		hrs = append(hrs,
			f.rt.Invoke(f.enumerator, SlotGetDefaultAudioEndpoint, 0, 0, devAddr),
			f.rt.Invoke(f.client, SlotGetCurrentPadding, padAddr),
			f.rt.Invoke(f.renderClient, SlotGetBuffer, 10, bufAddr),
			f.rt.Invoke(f.renderClient, SlotReleaseBuffer, 10, 0),
		)
		return hrs, *dev, *buf, *pad
	}

	direct, dev1, data1, pad1 := call()
	require.NoError(t, w.Group().Install())
	hooked, dev2, data2, pad2 := call()

	assert.Equal(t, direct, hooked)
	assert.Equal(t, dev1, dev2)
	assert.Equal(t, data1, data2)
	assert.Equal(t, pad1, pad2)

	// failure codes surface unmodified
	f.bufferHR = audclntEBufferTooLarge
	_, bufAddr := comfake.Alloc[uintptr](f.rt)
	assert.Equal(t, uintptr(audclntEBufferTooLarge), f.rt.Invoke(f.renderClient, SlotGetBuffer, 10, bufAddr))

	require.NoError(t, w.Group().Uninstall())
	assert.Equal(t, interpose.Uninstalled, w.Group().State())
	assert.Equal(t, uintptr(audclntEBufferTooLarge), f.rt.Invoke(f.renderClient, SlotGetBuffer, 10, bufAddr))
}

func TestWASAPIUninstallStopsCapture(t *testing.T) {
	f := newFakeWASAPI(t)
	rec := &frameRecorder{}
	w := NewWASAPI(f.rt, interpose.DirectPatcher{}, NewEmitter(rec), f.probe())

	require.NoError(t, w.Group().Uninstall())
	require.NoError(t, w.Group().Install())
	require.NoError(t, w.Group().Uninstall())
	require.NoError(t, w.Group().Uninstall())

	f.render(t, 100, 0, 0x11)
	assert.Empty(t, rec.frames)
	assert.Equal(t, []uint32{100}, f.released)
	assert.Zero(t, f.mixCalled)
}

func TestWASAPIOversizeCommitIsDropped(t *testing.T) {
	f := newFakeWASAPI(t)
	rec := &frameRecorder{}
	w := NewWASAPI(f.rt, interpose.DirectPatcher{}, NewEmitter(rec), f.probe())

	require.NoError(t, w.Group().Install())
	defer w.Group().Uninstall()

	dropped := framesDropped.Value()
	// 2^30 frames of 4 bytes overflow a 32-bit int
	f.render(t, 1<<30, 0, 0x11)
	f.render(t, 1<<30, BufferFlagsSilent, 0x11)

	assert.Empty(t, rec.frames)
	assert.Equal(t, dropped+2, framesDropped.Value())
	assert.Equal(t, []uint32{1 << 30, 1 << 30}, f.released)
}
