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

package sys

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// InjectAccess is the access mask required to load a module into a remote process.
const InjectAccess = windows.PROCESS_QUERY_INFORMATION | windows.PROCESS_CREATE_THREAD |
	windows.PROCESS_VM_OPERATION | windows.PROCESS_VM_WRITE | windows.PROCESS_VM_READ

// RemoteString is a NUL-terminated UTF-16 string living in the address
// space of another process.
type RemoteString struct {
	proc windows.Handle
	Addr uintptr
}

// WriteRemoteString copies s into memory allocated in the target process.
func WriteRemoteString(proc windows.Handle, s string) (*RemoteString, error) {
	u, err := windows.UTF16FromString(s)
	if err != nil {
		return nil, err
	}
	size := uintptr(len(u)) * unsafe.Sizeof(u[0])
	addr, err := VirtualAllocEx(proc, 0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, errors.Wrap(err, "unable to allocate remote memory")
	}
	var n uintptr
	err = windows.WriteProcessMemory(proc, addr, (*byte)(unsafe.Pointer(&u[0])), size, &n)
	if err == nil && n != size {
		err = errors.Errorf("short write: %d of %d bytes", n, size)
	}
	if err != nil {
		_ = VirtualFreeEx(proc, addr, 0, windows.MEM_RELEASE)
		return nil, errors.Wrap(err, "unable to write remote memory")
	}
	return &RemoteString{proc: proc, Addr: addr}, nil
}

// Free releases the remote memory.
func (r *RemoteString) Free() error {
	return VirtualFreeEx(r.proc, r.Addr, 0, windows.MEM_RELEASE)
}

// LoadLibraryAddress returns the address of LoadLibraryW. The system
// maps kernel32 at the same base in every process of the same
// architecture, so the address is valid in the target as well.
func LoadLibraryAddress() (uintptr, error) {
	proc := windows.NewLazySystemDLL("kernel32.dll").NewProc("LoadLibraryW")
	if err := proc.Find(); err != nil {
		return 0, err
	}
	return proc.Addr(), nil
}

// IsWow64 determines whether the process is a 32-bit process running
// on 64-bit Windows.
func IsWow64(proc windows.Handle) (bool, error) {
	var wow64 bool
	if err := windows.IsWow64Process(proc, &wow64); err != nil {
		return false, err
	}
	return wow64, nil
}

// WaitThread waits for the thread to exit and returns its exit code.
func WaitThread(thread windows.Handle, timeout uint32) (uint32, error) {
	s, err := windows.WaitForSingleObject(thread, timeout)
	if err != nil {
		return 0, err
	}
	if s == uint32(windows.WAIT_TIMEOUT) {
		return 0, errors.New("timed out waiting for remote thread")
	}
	var code uint32
	if err := GetExitCodeThread(thread, &code); err != nil {
		return 0, err
	}
	return code, nil
}
