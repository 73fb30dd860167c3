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

import "sync"

const (
	chunkSize = 1 << 20
	alignment = 16
)

// arena hands out zeroed memory the Go runtime doesn't manage. Fake
// objects are reached through plain addresses just like foreign memory,
// and the race detector only accepts that outside the Go heap. Memory
// is never returned.
type arena struct {
	mu    sync.Mutex
	chunk []byte
	off   int
}

func (a *arena) alloc(n int) []byte {
	size := (n + alignment - 1) &^ (alignment - 1)
	if size == 0 {
		size = alignment
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if size > chunkSize {
		return mapMemory(size)[:n]
	}
	if a.chunk == nil || a.off+size > len(a.chunk) {
		a.chunk = mapMemory(chunkSize)
		a.off = 0
	}
	b := a.chunk[a.off : a.off+n : a.off+size]
	a.off += size
	return b
}
