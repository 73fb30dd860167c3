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

// Runtime bridges Go functions and foreign function pointers.
type Runtime interface {
	// Callback returns a foreign-callable pointer that invokes fn. The
	// function must take uintptr-sized arguments and return a uintptr.
	Callback(fn any) uintptr
	// Call invokes the function at fn with the arguments and returns the
	// primary return register.
	Call(fn uintptr, args ...uintptr) uintptr
	// Free releases memory handed out by the callee, e.g. CoTaskMemAlloc'ed
	// out-parameters.
	Free(addr uintptr)
	// Alloc returns n bytes of zeroed memory for out-parameters of
	// foreign calls, or zero when none is available. The memory is
	// held for the lifetime of the process.
	Alloc(n int) uintptr
}
