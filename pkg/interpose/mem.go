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
)

// ptrSize is the size of the machine word.
const ptrSize = unsafe.Sizeof(uintptr(0))

// SlotAddress returns the address of the vtable entry at the given slot
// ordinal. The first machine word of a COM object points to its vtable.
func SlotAddress(obj uintptr, slot int) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	return vtbl + uintptr(slot)*ptrSize
}

// Resolve returns the function pointer stored at the given vtable slot
// of the object. The object must be a live instance of the expected
// interface, so it is only safe to call on objects the caller just obtained.
func Resolve(obj uintptr, slot int) uintptr {
	return atomic.LoadUintptr((*uintptr)(unsafe.Pointer(SlotAddress(obj, slot))))
}

// Read reads the value of type T located at the foreign address.
func Read[T any](addr uintptr) T {
	return *(*T)(unsafe.Pointer(addr))
}

// Bytes returns the byte slice backed by n bytes of foreign memory
// starting at addr. The slice aliases the memory and must not be
// retained beyond the call that handed out the address.
func Bytes(addr uintptr, n int) []byte {
	if addr == 0 || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// Write stores the value of type T at the foreign address. Used for
// filling out-parameters.
func Write[T any](addr uintptr, v T) {
	*(*T)(unsafe.Pointer(addr)) = v
}
