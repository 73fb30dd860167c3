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
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rabbitstack/audiotap/internal/inject"
	"github.com/rabbitstack/audiotap/pkg/assembler"
	"github.com/rabbitstack/audiotap/pkg/config"
	"github.com/rabbitstack/audiotap/pkg/controller"
	"github.com/rabbitstack/audiotap/pkg/pipe"
	"github.com/rabbitstack/audiotap/pkg/sys"
	"github.com/rabbitstack/audiotap/pkg/util/spinner"
	log "github.com/sirupsen/logrus"
)

// drainTimeout is how long the hook gets to close the channel after
// the stop event is signalled.
const drainTimeout = time.Second * 5

// App injects the hook module into the target process and records
// the captured stream.
type App struct {
	config *config.Config
	ctx    context.Context
	stop   context.CancelFunc
	pid    uint32
}

// Option enables changing the behaviour of the bootstrap application.
type Option func(*opts)

type opts struct {
	setDebugPrivilege bool
	installSignals    bool
}

// WithSignals stops the application on interrupt and termination signals.
func WithSignals() Option {
	return func(o *opts) {
		o.installSignals = true
	}
}

// WithDebugPrivilege injects the SeDebugPrivilege in the process access token.
func WithDebugPrivilege() Option {
	return func(o *opts) {
		o.setDebugPrivilege = true
	}
}

// NewApp constructs a new bootstrap application with the specified configuration
// and a list of options.
func NewApp(cfg *config.Config, options ...Option) (*App, error) {
	if err := InitConfigAndLogger(cfg, "audiotap.log"); err != nil {
		return nil, err
	}
	var opts opts
	for _, opt := range options {
		opt(&opts)
	}
	if cfg.DebugPrivilege && opts.setDebugPrivilege {
		if err := sys.SetDebugPrivilege(); err != nil {
			log.Warnf("unable to enable debug privilege: %v", err)
		}
	}
	app := &App{config: cfg}
	if opts.installSignals {
		app.ctx, app.stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	} else {
		app.ctx, app.stop = context.WithCancel(context.Background())
	}
	return app, nil
}

// Inject looks for the target process and loads the hook module into it.
func (a *App) Inject() (uint32, error) {
	dll, err := a.config.HookPath()
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(dll); err != nil {
		return 0, fmt.Errorf("can't find hook module: %v", err)
	}

	spin := spinner.Show(fmt.Sprintf("Looking for %q process", a.config.Process))
	finder := inject.NewFinder(inject.Processes, a.config.SearchInterval, a.config.SearchTimeout)
	finder.OnRetry(func(attempt int) { spin.Update(fmt.Sprintf("(attempt %d)", attempt+1)) })
	proc, err := finder.Find(a.ctx, a.config.Process)
	if err != nil {
		spin.Stop("")
		return 0, err
	}
	spin.Stop(fmt.Sprintf("> Found %s (%d)", proc.Name, proc.Pid))

	if err := a.config.WriteHookFile(config.HookFile(proc.Pid)); err != nil {
		return 0, fmt.Errorf("unable to write hook file: %v", err)
	}
	if err := inject.Inject(proc.Pid, dll); err != nil {
		_ = os.Remove(config.HookFile(proc.Pid))
		return 0, err
	}
	a.pid = proc.Pid
	return proc.Pid, nil
}

// Record consumes the stream of the injected process and writes the
// WAV file once the stream ends. The stream ends when the target
// process goes away, or after the application is stopped, in which
// case the hook is asked to end the session first.
func (a *App) Record() error {
	conn, err := pipe.Dial(a.ctx, a.pid, a.config.Pipe.ConnectTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	sf, err := assembler.ParseSampleFormat(a.config.Assembler.SampleFormat)
	if err != nil {
		return err
	}

	spin := spinner.Show("Capturing")
	asm := assembler.New(conn)
	done := make(chan error, 1)
	go func() {
		_, err := asm.Run()
		done <- err
	}()

	var closed bool
	select {
	case err = <-done:
	case <-a.ctx.Done():
		closed, err = a.drain(conn, done)
	}
	spin.Stop("")

	if err != nil && !closed {
		log.Errorf("stream assembler failed: %v", err)
	}
	s := asm.Stream()
	if s.Empty() {
		if err != nil && !closed {
			return err
		}
		return assembler.ErrEmptyStream
	}
	out := assembler.OutputPath(a.config.Output, time.Now())
	if werr := assembler.WriteWAV(out, s, sf); werr != nil {
		return werr
	}
	assembler.PrintStats(os.Stdout, out, s)

	if errors.Is(err, assembler.ErrIntegrity) {
		return err
	}
	return nil
}

func (a *App) drain(conn net.Conn, done chan error) (bool, error) {
	if err := controller.SignalStop(a.pid); err != nil {
		log.Warnf("unable to stop the capture session: %v", err)
	}
	select {
	case err := <-done:
		return false, err
	case <-time.After(drainTimeout):
		log.Warn("capture session didn't end in time. Closing the stream channel")
		_ = conn.Close()
		return true, <-done
	}
}

// Wait blocks until the application is stopped.
func (a *App) Wait() {
	<-a.ctx.Done()
}

// Shutdown releases the application resources.
func (a *App) Shutdown() error {
	a.stop()
	return nil
}
