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
	"fmt"
	"sync/atomic"
)

// Target is a single hookable vtable entry.
type Target struct {
	// Name identifies the intercepted method, e.g. IAudioRenderClient::ReleaseBuffer.
	Name string
	// Object is the live COM object the vtable is resolved from.
	Object uintptr
	// Slot is the method ordinal in the vtable.
	Slot int
	// Replacement is the foreign-callable pointer the slot is redirected to.
	Replacement uintptr

	original atomic.Uintptr
	addr     uintptr
	patched  bool
}

// NewTarget creates a new intercept target.
func NewTarget(name string, obj uintptr, slot int, replacement uintptr) *Target {
	return &Target{Name: name, Object: obj, Slot: slot, Replacement: replacement}
}

// Original returns the resolved original function pointer. It is
// zero until the target is installed for the first time and keeps the
// last resolved value afterwards, so a late call that raced with the
// uninstall still reaches the real method.
func (t *Target) Original() uintptr { return t.original.Load() }

// Patched reports whether the slot currently points to the replacement.
func (t *Target) Patched() bool { return t.patched }

// String returns the target description.
func (t *Target) String() string {
	return fmt.Sprintf("%s (slot %d)", t.Name, t.Slot)
}
