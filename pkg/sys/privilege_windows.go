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

// SeDebugPrivilege is the name of the privilege used to debug programs.
// It is required to open processes of other users for injection.
const SeDebugPrivilege = "SeDebugPrivilege"

// EnableTokenPrivileges enables the specified privileges in the given
// token. The token must have TOKEN_ADJUST_PRIVILEGES access. If the token
// does not already contain the privilege it cannot be enabled.
func EnableTokenPrivileges(token windows.Token, privileges ...string) error {
	if len(privileges) == 0 {
		return nil
	}
	// TOKEN_PRIVILEGES ends with a variable length array
	b := make([]byte, 4+len(privileges)*int(unsafe.Sizeof(windows.LUIDAndAttributes{})))
	tp := (*windows.Tokenprivileges)(unsafe.Pointer(&b[0]))
	tp.PrivilegeCount = uint32(len(privileges))
	attrs := unsafe.Slice(&tp.Privileges[0], len(privileges))
	for i, name := range privileges {
		if err := windows.LookupPrivilegeValue(nil, windows.StringToUTF16Ptr(name), &attrs[i].Luid); err != nil {
			return errors.Wrapf(err, "LookupPrivilegeValue failed on '%v'", name)
		}
		attrs[i].Attributes = windows.SE_PRIVILEGE_ENABLED
	}
	err := windows.AdjustTokenPrivileges(token, false, tp, uint32(len(b)), nil, nil)
	// the call succeeds even if some privileges weren't assigned
	if err == windows.ERROR_NOT_ALL_ASSIGNED {
		return errors.Wrap(err, "not all privileges were assigned")
	}
	return err
}

// SetDebugPrivilege enables the debug privilege in the current process.
func SetDebugPrivilege() error {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
	if err != nil {
		return errors.Wrap(err, "unable to open process token")
	}
	defer token.Close()
	return EnableTokenPrivileges(token, SeDebugPrivilege)
}
