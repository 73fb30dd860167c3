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

package comfake

import (
	"unsafe"

	"github.com/rabbitstack/audiotap/pkg/interpose"
)

// NewObject builds a COM-shaped object. The first word of the object
// points to a vtable whose entries are callbacks for the given methods.
// Slots without a method are left nil.
func (r *Runtime) NewObject(methods map[int]any) uintptr {
	n := 3 // IUnknown
	for slot := range methods {
		if slot+1 > n {
			n = slot + 1
		}
	}
	vtbl := r.words(n)
	for slot, fn := range methods {
		vtbl[slot] = r.Callback(fn)
	}
	obj := r.words(2)
	obj[0] = uintptr(unsafe.Pointer(&vtbl[0]))
	return uintptr(unsafe.Pointer(&obj[0]))
}

// Invoke calls the method at the slot through the object's current
// vtable, the way the host process would. The object is passed as the
// first argument.
func (r *Runtime) Invoke(obj uintptr, slot int, args ...uintptr) uintptr {
	fn := interpose.Resolve(obj, slot)
	return r.Call(fn, append([]uintptr{obj}, args...)...)
}

func (r *Runtime) words(n int) []uintptr {
	b := r.mem.alloc(n * int(unsafe.Sizeof(uintptr(0))))
	return unsafe.Slice((*uintptr)(unsafe.Pointer(&b[:1][0])), n)
}

// Alloc allocates a zero value of T outside the Go heap and returns it
// along with its address. T must not hold Go pointers.
func Alloc[T any](r *Runtime) (*T, uintptr) {
	var zero T
	addr := r.Alloc(int(unsafe.Sizeof(zero)))
	return (*T)(unsafe.Pointer(addr)), addr
}

// Buffer allocates n bytes of memory outside the Go heap.
func (r *Runtime) Buffer(n int) ([]byte, uintptr) {
	if n == 0 {
		return nil, 0
	}
	b := r.mem.alloc(n)
	return b, uintptr(unsafe.Pointer(&b[0]))
}

// Put writes v to the out-parameter at addr. Nil addresses are ignored.
func Put[T any](addr uintptr, v T) {
	if addr != 0 {
		interpose.Write(addr, v)
	}
}
