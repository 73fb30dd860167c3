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

package controller

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows"
)

// stopPollInterval bounds each wait on the stop event so the watcher
// also notices when the parent context is done.
const stopPollInterval = 250

// StopEventName returns the name of the event that ends the capture
// session of the process.
func StopEventName(pid uint32) string {
	return fmt.Sprintf(`Local\audiocapture_stop_%d`, pid)
}

// WatchStop creates the stop event of the process and returns a
// context that is cancelled once the event gets signalled.
func WatchStop(parent context.Context, pid uint32) (context.Context, context.CancelFunc, error) {
	name, err := windows.UTF16PtrFromString(StopEventName(pid))
	if err != nil {
		return nil, nil, err
	}
	evt, err := windows.CreateEvent(nil, 1, 0, name)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create stop event: %v", err)
	}
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer windows.CloseHandle(evt)
		defer cancel()
		for {
			s, err := windows.WaitForSingleObject(evt, stopPollInterval)
			if err != nil || s == windows.WAIT_OBJECT_0 {
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return ctx, cancel, nil
}

// SignalStop asks the capture session of the process to end.
func SignalStop(pid uint32) error {
	name, err := windows.UTF16PtrFromString(StopEventName(pid))
	if err != nil {
		return err
	}
	evt, err := windows.OpenEvent(windows.EVENT_MODIFY_STATE, false, name)
	if err != nil {
		return fmt.Errorf("unable to open stop event: %v", err)
	}
	defer windows.CloseHandle(evt)
	return windows.SetEvent(evt)
}
