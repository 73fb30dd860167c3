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

// Package pipe implements both ends of the per-process stream channel
// the captured frames travel over.
package pipe

import (
	"fmt"

	"github.com/rabbitstack/audiotap/pkg/frame"
)

// Capacity is the size of the pipe buffers. No frame exceeds it.
const Capacity = frame.MaxSize

// Name returns the name of the pipe owned by the process.
func Name(pid uint32) string {
	return fmt.Sprintf(`\\.\pipe\audiocapture_%d`, pid)
}
