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

package inject

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rabbitstack/audiotap/pkg/sys"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// loadTimeout bounds how long the remote LoadLibraryW call may take.
const loadTimeout = 10000

// Inject loads the hook module into the process. The module must
// match the bitness of the current process, which in turn must match
// the target, since the LoadLibraryW address is taken from the
// current process.
func Inject(pid uint32, dll string) error {
	mod, err := ReadModule(dll)
	if err != nil {
		return err
	}

	proc, err := windows.OpenProcess(sys.InjectAccess, false, pid)
	if err != nil {
		return errors.Wrapf(err, "unable to open process %d", pid)
	}
	defer windows.CloseHandle(proc)

	self, err := sys.IsWow64(windows.CurrentProcess())
	if err != nil {
		return err
	}
	target, err := sys.IsWow64(proc)
	if err != nil {
		return err
	}
	if self != target {
		return fmt.Errorf("%w: process %d has a different bitness than the injector", ErrArchMismatch, pid)
	}
	if err := mod.Check(is64); err != nil {
		return err
	}

	path, err := sys.WriteRemoteString(proc, dll)
	if err != nil {
		return err
	}
	loadLibrary, err := sys.LoadLibraryAddress()
	if err != nil {
		_ = path.Free()
		return err
	}
	thread, err := sys.CreateRemoteThread(proc, nil, 0, loadLibrary, path.Addr, 0, nil)
	if err != nil {
		_ = path.Free()
		return errors.Wrap(err, "unable to create remote thread")
	}
	defer windows.CloseHandle(thread)

	// the path must outlive the remote call, so it's leaked if the thread doesn't finish
	code, err := sys.WaitThread(thread, loadTimeout)
	if err != nil {
		log.Warnf("unable to wait for the hook module to load: %v", err)
		return nil
	}
	if err := path.Free(); err != nil {
		log.Warnf("unable to free remote module path: %v", err)
	}
	if code == 0 {
		return fmt.Errorf("LoadLibraryW failed to load %s in process %d", dll, pid)
	}
	log.Infof("hook module %s loaded into process %d", dll, pid)
	return nil
}
