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
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/pkg/errors"
	"github.com/rabbitstack/audiotap/pkg/interpose"
	"github.com/rabbitstack/audiotap/pkg/sys"
)

var (
	clsidMMDeviceEnumerator = ole.NewGUID("{BCDE0395-E52F-467C-8E3D-C4579291692E}")
	iidIMMDeviceEnumerator  = ole.NewGUID("{A95664D2-9614-4F35-A746-DE8DB63617E6}")
	iidIAudioClient         = ole.NewGUID("{1CB9AD4C-DBFA-4C32-B178-C2F568A703B2}")
	iidIAudioRenderClient   = ole.NewGUID("{F294ACFC-3146-4483-A7BF-ADDCA7C260E2}")
)

const (
	clsctxAll = 0x17

	eRender  = 0
	eConsole = 0

	audclntShareModeShared      = 0
	audclntStreamFlagsNoPersist = 0x00080000
	slotRelease                 = 2
	slotActivate                = 3
	slotInitialize              = 3
	slotGetService              = 14
	slotCreateSoundBuffer       = 3
	dsbcapsGlobalFocus          = 0x00008000
	dsbcapsCtrlPositionNotify   = 0x00000100
	dsbcapsGetCurrentPosition2  = 0x00010000
	waveFormatPCM               = 1
	probeBufferBytes            = 4 * 192000
	probeChannels               = 2
	probeSampleRate             = 44100
	probeBitsPerSample          = 16
)

// dsBufferDesc mirrors DSBUFFERDESC.
type dsBufferDesc struct {
	Size            uint32
	Flags           uint32
	BufferBytes     uint32
	Reserved        uint32
	Format          *WaveFormatEx
	Guid3DAlgorithm ole.GUID
}

// comCall invokes the method at the vtable slot of the COM object.
func comCall(obj uintptr, slot int, args ...uintptr) error {
	fn := interpose.Resolve(obj, slot)
	r, _, _ := syscall.SyscallN(fn, append([]uintptr{obj}, args...)...)
	if !succeeded(r) {
		return hresultError(fmt.Sprintf("vtable[%d]", slot), r)
	}
	return nil
}

// comRelease calls IUnknown::Release.
func comRelease(obj uintptr) {
	if obj != 0 {
		fn := interpose.Resolve(obj, slotRelease)
		_, _, _ = syscall.SyscallN(fn, obj)
	}
}

// refTime splits the 64-bit REFERENCE_TIME into the machine words the
// calling convention expects.
func refTime(v int64) []uintptr {
	if unsafe.Sizeof(uintptr(0)) == 8 {
		return []uintptr{uintptr(v)}
	}
	return []uintptr{uintptr(uint32(v)), uintptr(uint32(v >> 32))}
}

// ProbeWASAPI instantiates a device enumerator, the default render
// endpoint, an initialized shared-mode audio client and its render
// client. They share vtables with the objects the host creates. COM
// must be initialized on the calling thread. The returned function
// releases the probe objects.
func ProbeWASAPI() (WASAPIProbe, func(), error) {
	var (
		probe  WASAPIProbe
		device uintptr
		objs   []uintptr
	)
	release := func() {
		for i := len(objs) - 1; i >= 0; i-- {
			comRelease(objs[i])
		}
	}

	enum, err := ole.CreateInstance(clsidMMDeviceEnumerator, iidIMMDeviceEnumerator)
	if err != nil {
		return probe, nil, errors.Wrap(err, "unable to create MMDeviceEnumerator")
	}
	probe.Enumerator = uintptr(unsafe.Pointer(enum))
	objs = append(objs, probe.Enumerator)

	if err := comCall(probe.Enumerator, SlotGetDefaultAudioEndpoint, eRender, eConsole, uintptr(unsafe.Pointer(&device))); err != nil {
		release()
		return probe, nil, errors.Wrap(err, "unable to get default audio endpoint")
	}
	objs = append(objs, device)

	if err := comCall(device, slotActivate, uintptr(unsafe.Pointer(iidIAudioClient)), clsctxAll, 0, uintptr(unsafe.Pointer(&probe.Client))); err != nil {
		release()
		return probe, nil, errors.Wrap(err, "unable to activate audio client")
	}
	objs = append(objs, probe.Client)

	var wfx uintptr
	if err := comCall(probe.Client, SlotGetMixFormat, uintptr(unsafe.Pointer(&wfx))); err != nil {
		release()
		return probe, nil, errors.Wrap(err, "unable to get mix format")
	}
	args := []uintptr{audclntShareModeShared, audclntStreamFlagsNoPersist}
	args = append(args, refTime(0)...)
	args = append(args, refTime(0)...)
	args = append(args, wfx, 0)
	err = comCall(probe.Client, slotInitialize, args...)
	ole.CoTaskMemFree(wfx)
	if err != nil {
		release()
		return probe, nil, errors.Wrap(err, "unable to initialize audio client")
	}

	if err := comCall(probe.Client, slotGetService, uintptr(unsafe.Pointer(iidIAudioRenderClient)), uintptr(unsafe.Pointer(&probe.RenderClient))); err != nil {
		release()
		return probe, nil, errors.Wrap(err, "unable to get render client")
	}
	objs = append(objs, probe.RenderClient)

	return probe, release, nil
}

// ProbeDirectSound creates a DirectSound8 device and a secondary
// buffer of 2 channels at 44.1 kHz and 16 bits. The returned function
// releases them.
func ProbeDirectSound() (DirectSoundProbe, func(), error) {
	var (
		probe DirectSoundProbe
		ds    uintptr
	)
	if err := sys.DirectSoundCreate8(nil, &ds, 0); err != nil {
		return probe, nil, errors.Wrap(err, "unable to create DirectSound8 device")
	}

	wfx := &WaveFormatEx{
		FormatTag:      waveFormatPCM,
		Channels:       probeChannels,
		SamplesPerSec:  probeSampleRate,
		AvgBytesPerSec: probeSampleRate * probeChannels * probeBitsPerSample / 8,
		BlockAlign:     probeChannels * probeBitsPerSample / 8,
		BitsPerSample:  probeBitsPerSample,
	}
	desc := &dsBufferDesc{
		Flags:       dsbcapsGlobalFocus | dsbcapsCtrlPositionNotify | dsbcapsGetCurrentPosition2,
		BufferBytes: probeBufferBytes,
		Format:      wfx,
	}
	desc.Size = uint32(unsafe.Sizeof(*desc))

	if err := comCall(ds, slotCreateSoundBuffer, uintptr(unsafe.Pointer(desc)), uintptr(unsafe.Pointer(&probe.Buffer)), 0); err != nil {
		comRelease(ds)
		return probe, nil, errors.Wrap(err, "unable to create sound buffer")
	}

	release := func() {
		comRelease(probe.Buffer)
		comRelease(ds)
	}
	return probe, release, nil
}
