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

//go:generate go run golang.org/x/sys/windows/mkwinsyscall -output zsyscall_windows.go syscall.go

//sys FlushInstructionCache(process windows.Handle, addr uintptr, size uintptr) (err error) = kernel32.FlushInstructionCache
//sys VirtualAllocEx(process windows.Handle, addr uintptr, size uintptr, allocType uint32, protect uint32) (base uintptr, err error) = kernel32.VirtualAllocEx
//sys VirtualFreeEx(process windows.Handle, addr uintptr, size uintptr, freeType uint32) (err error) = kernel32.VirtualFreeEx
//sys CreateRemoteThread(process windows.Handle, sa *windows.SecurityAttributes, stackSize uint32, startAddress uintptr, param uintptr, creationFlags uint32, threadID *uint32) (handle windows.Handle, err error) = kernel32.CreateRemoteThread
//sys GetExitCodeThread(thread windows.Handle, code *uint32) (err error) = kernel32.GetExitCodeThread
//sys DirectSoundCreate8(device *windows.GUID, ds *uintptr, outer uintptr) (ret error) = dsound.DirectSoundCreate8
