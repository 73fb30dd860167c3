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

// Command audiotap-hook is built as a DLL and loaded into the target
// process:
//
//	go build -buildmode=c-shared -o audiotap-hook.dll ./cmd/audiotap-hook
package main

import "C"

import (
	"sync"

	"github.com/rabbitstack/audiotap/internal/bootstrap"
)

var (
	stop     = make(chan struct{})
	stopOnce sync.Once
	done     = make(chan struct{})
)

// the Go runtime runs init functions when the module is loaded
func init() {
	go func() {
		defer close(done)
		bootstrap.RunHook(stop)
	}()
}

// AudiotapStop ends the capture session and waits until the
// interception is uninstalled.
//
//export AudiotapStop
func AudiotapStop() {
	stopOnce.Do(func() { close(stop) })
	<-done
}

func main() {}
