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

// Package comfake provides an in-memory stand-in for COM objects and the
// foreign calling machinery so interception can be exercised without a
// live audio stack.
package comfake

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/rabbitstack/audiotap/pkg/interpose"
)

// stubSize is the size of the code block that backs each callback
// address. Stubs are filled with NOPs followed by RET so they can be
// disassembled.
const stubSize = 64

var uintptrType = reflect.TypeOf(uintptr(0))

// Runtime implements interpose.Runtime on top of reflection. Callback
// addresses point to real, readable memory owned by the runtime.
type Runtime struct {
	mem   arena
	mu    sync.Mutex
	funcs map[uintptr]reflect.Value
	freed []uintptr
	calls map[uintptr]int
}

// NewRuntime creates a fake runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		funcs: make(map[uintptr]reflect.Value),
		calls: make(map[uintptr]int),
	}
}

// Callback registers fn and returns the address it is reachable at.
func (r *Runtime) Callback(fn any) uintptr {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("comfake: callback must be a function, got %T", fn))
	}
	stub := r.mem.alloc(stubSize)
	for i := range stub {
		stub[i] = 0x90
	}
	stub[stubSize-1] = 0xC3
	addr := uintptr(unsafe.Pointer(&stub[0]))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[addr] = v
	return addr
}

// Call invokes the function registered at fn. Missing arguments are
// passed as zero. It panics on unknown addresses, just like jumping to
// garbage would crash a real process.
func (r *Runtime) Call(fn uintptr, args ...uintptr) uintptr {
	r.mu.Lock()
	v, ok := r.funcs[fn]
	if ok {
		r.calls[fn]++
	}
	r.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("comfake: call to unknown function %#x", fn))
	}

	typ := v.Type()
	in := make([]reflect.Value, typ.NumIn())
	for i := range in {
		var arg uintptr
		if i < len(args) {
			arg = args[i]
		}
		in[i] = reflect.ValueOf(arg).Convert(typ.In(i))
	}
	out := v.Call(in)
	if len(out) == 0 {
		return 0
	}
	return out[0].Convert(uintptrType).Interface().(uintptr)
}

// Free records the released address.
func (r *Runtime) Free(addr uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freed = append(r.freed, addr)
}

// Freed returns the addresses released through Free.
func (r *Runtime) Freed() []uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uintptr(nil), r.freed...)
}

// Calls returns how many times the function at fn was invoked.
func (r *Runtime) Calls(fn uintptr) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[fn]
}

// Alloc hands out n bytes of zeroed memory.
func (r *Runtime) Alloc(n int) uintptr {
	return uintptr(unsafe.Pointer(&r.mem.alloc(n)[:1][0]))
}

var _ interpose.Runtime = (*Runtime)(nil)
