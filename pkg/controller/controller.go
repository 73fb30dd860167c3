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

// Package controller owns the capture window inside the target
// process: it opens the stream channel, installs the interception
// groups, and reverses both when the session ends.
package controller

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rabbitstack/audiotap/pkg/interpose"
	"github.com/rabbitstack/audiotap/pkg/pipe"
	log "github.com/sirupsen/logrus"
)

// Group is an interception group that is installed as a single transaction.
type Group interface {
	Name() string
	Install() error
	Uninstall() error
	State() interpose.State
}

// FrameWriter accepts encoded frames.
type FrameWriter interface {
	Write(b []byte) error
}

// Factory resolves the interception groups. The returned function
// releases whatever the factory obtained to build the groups and is
// invoked once the groups are installed.
type Factory func(w FrameWriter) (groups []Group, release func())

// ListenFunc creates the producer end of the stream channel.
type ListenFunc func() (net.Listener, error)

// Config holds the controller settings.
type Config struct {
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
}

// Controller drives one capture session.
type Controller struct {
	config  Config
	listen  ListenFunc
	factory Factory

	mu     sync.Mutex
	groups []Group
	server *pipe.Server
}

// New creates a controller.
func New(config Config, listen ListenFunc, factory Factory) *Controller {
	return &Controller{config: config, listen: listen, factory: factory}
}

// Run opens the channel, installs every group and blocks until the
// context is done. Groups are then uninstalled and the channel is
// closed. Setup failures are logged and leave the session in a
// degraded state where nothing is captured, but they are never
// returned, so the host keeps running undisturbed.
func (c *Controller) Run(ctx context.Context) {
	var w FrameWriter
	l, err := c.listen()
	if err != nil {
		log.Errorf("unable to create stream channel: %v. Audio is not captured", err)
	} else {
		opts := []pipe.Option{}
		if c.config.WriteTimeout > 0 {
			opts = append(opts, pipe.WithWriteTimeout(c.config.WriteTimeout))
		}
		c.mu.Lock()
		c.server = pipe.NewServer(l, opts...)
		c.mu.Unlock()
		w = c.server
	}

	if w != nil {
		c.install(w)
	}

	<-ctx.Done()
	log.Info("stopping audio capture")

	c.shutdown()
}

func (c *Controller) install(w FrameWriter) {
	groups, release := c.factory(w)
	for _, g := range groups {
		if err := g.Install(); err != nil {
			log.Errorf("unable to install %s interception: %v", g.Name(), err)
			continue
		}
		log.Infof("%s interception installed", g.Name())
	}
	if release != nil {
		release()
	}
	c.mu.Lock()
	c.groups = groups
	c.mu.Unlock()
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.groups {
		if err := g.Uninstall(); err != nil {
			log.Errorf("unable to uninstall %s interception: %v", g.Name(), err)
			continue
		}
		log.Infof("%s interception uninstalled", g.Name())
	}
	if c.server != nil {
		if err := c.server.Close(); err != nil {
			log.Warnf("unable to close stream channel: %v", err)
		}
	}
}

// States returns the state of every interception group.
func (c *Controller) States() map[string]interpose.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	states := make(map[string]interpose.State, len(c.groups))
	for _, g := range c.groups {
		states[g.Name()] = g.State()
	}
	return states
}
