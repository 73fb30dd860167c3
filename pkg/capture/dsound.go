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

	"github.com/rabbitstack/audiotap/pkg/frame"
	"github.com/rabbitstack/audiotap/pkg/interpose"
)

// Vtable slots of the intercepted DirectSound methods.
const (
	// SlotGetFormat is IDirectSoundBuffer::GetFormat.
	SlotGetFormat = 5
	// SlotLock is IDirectSoundBuffer::Lock.
	SlotLock = 11
	// SlotUnlock is IDirectSoundBuffer::Unlock.
	SlotUnlock = 19
)

const dsoundSource = "dsound"

const pcmWaveFormatSize = 16

// formatScratchSize fits WAVEFORMATEXTENSIBLE with room to spare.
const formatScratchSize = 64

// DirectSoundProbe holds the live buffer the DirectSound vtable is resolved from.
type DirectSoundProbe struct {
	Buffer uintptr
}

// dsoundState holds the scratch memory GetFormat writes into.
type dsoundState struct {
	mu      sync.Mutex
	scratch uintptr
	written uintptr
}

// DirectSound intercepts secondary buffer writes. Frames are captured
// when the buffer is unlocked, once the caller considers the data final.
// Only the first locked region is captured. The second region of a
// wrapped lock is passed through untouched.
type DirectSound struct {
	rt      interpose.Runtime
	emitter *Emitter
	state   *dsoundState
	group   *interpose.Group

	lock   *interpose.Target
	unlock *interpose.Target
}

// NewDirectSound builds the DirectSound interception group.
func NewDirectSound(rt interpose.Runtime, patcher interpose.Patcher, emitter *Emitter, probe DirectSoundProbe) *DirectSound {
	d := &DirectSound{
		rt:      rt,
		emitter: emitter,
		state: &dsoundState{
			scratch: rt.Alloc(formatScratchSize),
			written: rt.Alloc(4),
		},
	}
	d.lock = interpose.NewTarget("IDirectSoundBuffer::Lock", probe.Buffer, SlotLock, rt.Callback(d.lockBuffer))
	d.unlock = interpose.NewTarget("IDirectSoundBuffer::Unlock", probe.Buffer, SlotUnlock, rt.Callback(d.unlockBuffer))
	d.group = interpose.NewGroup(dsoundSource, patcher, d.lock, d.unlock)
	return d
}

// Group returns the interception group.
func (d *DirectSound) Group() *interpose.Group { return d.group }

func (d *DirectSound) lockBuffer(this, offset, bytes, ppvAudioPtr1, pdwAudioBytes1, ppvAudioPtr2, pdwAudioBytes2, flags uintptr) uintptr {
	return d.rt.Call(d.lock.Original(), this, offset, bytes, ppvAudioPtr1, pdwAudioBytes1, ppvAudioPtr2, pdwAudioBytes2, flags)
}

func (d *DirectSound) unlockBuffer(this, pvAudioPtr1, dwAudioBytes1, pvAudioPtr2, dwAudioBytes2 uintptr) uintptr {
	d.capture(this, pvAudioPtr1, uint32(dwAudioBytes1))
	return d.rt.Call(d.unlock.Original(), this, pvAudioPtr1, dwAudioBytes1, pvAudioPtr2, dwAudioBytes2)
}

func (d *DirectSound) capture(buffer, data uintptr, n uint32) {
	if data == 0 || n == 0 {
		return
	}
	f, err := d.format(buffer)
	if err != nil {
		d.emitter.formatError(dsoundSource, err)
		return
	}
	if err := f.Validate(); err != nil {
		d.emitter.formatError(dsoundSource, err)
		return
	}
	if uint64(n) > frame.MaxPayloadSize {
		d.emitter.drop(dsoundSource, frame.ErrFrameTooLarge)
		return
	}
	meta := frame.Meta{Format: f.Frame(), Samples: n / f.BlockAlign}
	d.emitter.Emit(dsoundSource, interpose.Bytes(data, int(n)), meta)
}

// format queries the buffer format into the scratch memory.
func (d *DirectSound) format(buffer uintptr) (Format, error) {
	d.state.mu.Lock()
	defer d.state.mu.Unlock()

	scratch, written := d.state.scratch, d.state.written
	if scratch == 0 || written == 0 {
		return Format{}, errNoScratch
	}
	clear(interpose.Bytes(scratch, formatScratchSize))
	interpose.Write[uint32](written, 0)

	fn := interpose.Resolve(buffer, SlotGetFormat)
	hr := d.rt.Call(fn, buffer, scratch, formatScratchSize, written)
	if !succeeded(hr) {
		return Format{}, hresultError("IDirectSoundBuffer::GetFormat", hr)
	}
	// PCMWAVEFORMAT, the shortest layout, lacks the trailing size field
	if n := interpose.Read[uint32](written); n != 0 && n < pcmWaveFormatSize {
		return Format{}, fmt.Errorf("format descriptor is %d bytes long", n)
	}
	return FormatFromWave(ReadWaveFormat(scratch)), nil
}
