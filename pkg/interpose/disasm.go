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
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// maxInsnLen is the longest x86 instruction encoding.
const maxInsnLen = 15

// Describe disassembles up to n leading instructions of the function at
// addr in Intel syntax. It is used to log what a hooked slot pointed to
// before it was redirected.
func Describe(addr uintptr, n int) string {
	if addr == 0 || n <= 0 {
		return ""
	}
	mode := 64
	if ptrSize == 4 {
		mode = 32
	}
	buf := Bytes(addr, n*maxInsnLen)

	var b strings.Builder
	for i := 0; i < len(buf) && n > 0; n-- {
		ins, err := x86asm.Decode(buf[i:], mode)
		if err != nil {
			break
		}
		if b.Len() > 0 {
			b.WriteRune('|')
		}
		b.WriteString(x86asm.IntelSyntax(ins, uint64(addr+uintptr(i)), nil))
		i += ins.Len
	}
	return b.String()
}
