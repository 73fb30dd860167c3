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

// Package inject locates the target process and loads the hook module into it.
package inject

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no process matches before the search gives up.
var ErrNotFound = errors.New("target process not found")

// Process identifies a candidate target.
type Process struct {
	Pid  uint32
	Name string
}

// Lister enumerates the running processes.
type Lister func(ctx context.Context) ([]Process, error)

// Processes lists the processes of the system. Processes whose name
// can't be read, usually because of insufficient access rights, are skipped.
func Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	ps := make([]Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		ps = append(ps, Process{Pid: uint32(p.Pid), Name: name})
	}
	return ps, nil
}

// Finder looks for the target process by partial executable name.
type Finder struct {
	list     Lister
	interval time.Duration
	timeout  time.Duration
	self     uint32
	notify   func(attempt int)
}

// NewFinder creates a finder that retries the lookup on the given
// interval. A zero timeout keeps searching until the context is done.
func NewFinder(list Lister, interval, timeout time.Duration) *Finder {
	return &Finder{list: list, interval: interval, timeout: timeout, self: uint32(os.Getpid())}
}

// OnRetry registers the function invoked before every new lookup.
func (f *Finder) OnRetry(fn func(attempt int)) { f.notify = fn }

// Find returns the first process whose executable name contains the pattern.
func (f *Finder) Find(ctx context.Context, pattern string) (Process, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	attempt := 0
	lookup := func() (Process, error) {
		ps, err := f.list(ctx)
		if err != nil {
			return Process{}, backoff.Permanent(err)
		}
		for _, p := range ps {
			if p.Pid == f.self || p.Pid == 0 {
				continue
			}
			if Match(p.Name, pattern) {
				return p, nil
			}
		}
		return Process{}, ErrNotFound
	}
	notify := func(err error, wait time.Duration) {
		attempt++
		log.Warnf("can't find %q process. Retrying in %v", pattern, wait)
		if f.notify != nil {
			f.notify(attempt)
		}
	}
	p, err := backoff.RetryNotifyWithData(lookup, backoff.WithContext(backoff.NewConstantBackOff(f.interval), ctx), notify)
	if err != nil && ctx.Err() != nil {
		return Process{}, fmt.Errorf("%w: %v", ErrNotFound, ctx.Err())
	}
	return p, err
}

// Match reports whether the executable name contains the pattern.
// The comparison ignores case as Windows file names do.
func Match(name, pattern string) bool {
	if pattern == "" {
		return false
	}
	return strings.Contains(strings.ToLower(filepath.Base(name)), strings.ToLower(pattern))
}
