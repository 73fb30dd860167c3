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
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rabbitstack/audiotap/pkg/sys"
	"golang.org/x/sys/windows"
)

// ProtectPatcher lifts the page protection of the vtable before writing
// the pointer and puts the old protection back when done. Vtables of
// system COM classes live in read-only image sections.
type ProtectPatcher struct{}

// WritePointer patches the pointer at addr.
func (ProtectPatcher) WritePointer(addr, val uintptr) error {
	var old uint32
	if err := windows.VirtualProtect(addr, ptrSize, windows.PAGE_EXECUTE_READWRITE, &old); err != nil {
		return errors.Wrapf(err, "unable to unprotect %#x", addr)
	}
	atomic.StoreUintptr((*uintptr)(unsafe.Pointer(addr)), val)
	var tmp uint32
	if err := windows.VirtualProtect(addr, ptrSize, old, &tmp); err != nil {
		return errors.Wrapf(err, "unable to restore protection of %#x", addr)
	}
	return sys.FlushInstructionCache(windows.CurrentProcess(), addr, ptrSize)
}

// NewPatcher returns the patcher suited for live process memory.
func NewPatcher() Patcher { return ProtectPatcher{} }
