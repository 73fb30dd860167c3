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

package interpose

import (
	"syscall"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

// NativeRuntime is the runtime for the live process. Callbacks follow
// the stdcall convention on x86 and the x64 calling convention on amd64,
// which is what COM methods use.
type NativeRuntime struct{}

// NewRuntime returns the native runtime.
func NewRuntime() Runtime { return NativeRuntime{} }

// Callback wraps fn into a foreign-callable pointer.
func (NativeRuntime) Callback(fn any) uintptr { return syscall.NewCallback(fn) }

// Call invokes the foreign function.
func (NativeRuntime) Call(fn uintptr, args ...uintptr) uintptr {
	r, _, _ := syscall.SyscallN(fn, args...)
	return r
}

// Free releases COM task memory.
func (NativeRuntime) Free(addr uintptr) {
	if addr != 0 {
		ole.CoTaskMemFree(addr)
	}
}

// Alloc allocates fixed local heap memory.
func (NativeRuntime) Alloc(n int) uintptr {
	addr, err := windows.LocalAlloc(windows.LPTR, uint32(n))
	if err != nil {
		return 0
	}
	return addr
}
