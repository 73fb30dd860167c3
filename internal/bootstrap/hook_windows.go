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

package bootstrap

import (
	"context"
	"net"
	"os"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/rabbitstack/audiotap/pkg/capture"
	"github.com/rabbitstack/audiotap/pkg/config"
	"github.com/rabbitstack/audiotap/pkg/controller"
	"github.com/rabbitstack/audiotap/pkg/interpose"
	"github.com/rabbitstack/audiotap/pkg/pipe"
	"github.com/rabbitstack/audiotap/pkg/util/version"
	log "github.com/sirupsen/logrus"
)

// RunHook drives the capture session inside the target process. It
// returns when the stop event is signalled or the stop channel is
// closed. Nothing is ever propagated to the host: every failure is
// logged and leaves the session in a degraded state.
func RunHook(stop <-chan struct{}) {
	pid := uint32(os.Getpid())

	cfg := config.NewWithOpts(config.WithHook())
	InitHookConfigAndLogger(cfg, pid)
	log.Infof("hook module loaded into process %d. Version: %s", pid, version.Get())

	ctx, cancel, err := controller.WatchStop(context.Background(), pid)
	if err != nil {
		log.Errorf("%v. The session can only be stopped from within the process", err)
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// probe objects are created and released on this thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err == nil || isFalse(err) {
		defer ole.CoUninitialize()
	} else {
		log.Warnf("unable to initialize COM: %v", err)
	}

	listen := func() (net.Listener, error) { return pipe.Listen(pid) }
	c := controller.New(controller.Config{WriteTimeout: cfg.Pipe.WriteTimeout}, listen, groups)
	c.Run(ctx)

	log.Infof("capture session ended: %v", c.States())
}

// groups probes both audio APIs independently, so a missing device
// for one of them doesn't prevent capturing from the other.
func groups(w controller.FrameWriter) ([]controller.Group, func()) {
	var (
		rt       = interpose.NewRuntime()
		patcher  = interpose.NewPatcher()
		emitter  = capture.NewEmitter(w)
		groups   []controller.Group
		releases []func()
	)

	if probe, release, err := capture.ProbeWASAPI(); err != nil {
		log.Errorf("unable to probe WASAPI: %v", err)
	} else {
		groups = append(groups, capture.NewWASAPI(rt, patcher, emitter, probe).Group())
		releases = append(releases, release)
	}
	if probe, release, err := capture.ProbeDirectSound(); err != nil {
		log.Errorf("unable to probe DirectSound: %v", err)
	} else {
		groups = append(groups, capture.NewDirectSound(rt, patcher, emitter, probe).Group())
		releases = append(releases, release)
	}

	return groups, func() {
		for _, release := range releases {
			release()
		}
	}
}

// isFalse reports whether COM was already initialized on the thread.
func isFalse(err error) bool {
	oleErr, ok := err.(*ole.OleError)
	return ok && oleErr.Code() == sFalse
}

const sFalse = 0x1
