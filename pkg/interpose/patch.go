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

// Patcher writes pointers into memory that might be protected.
type Patcher interface {
	// WritePointer atomically stores val at addr.
	WritePointer(addr, val uintptr) error
}

// DirectPatcher writes straight into memory that is known to be
// writable, like vtables allocated by the fake runtime.
type DirectPatcher struct{}

// WritePointer stores the pointer without touching page protection.
func (DirectPatcher) WritePointer(addr, val uintptr) error {
	atomic.StoreUintptr((*uintptr)(unsafe.Pointer(addr)), val)
	return nil
}
