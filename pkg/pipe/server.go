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

package pipe

import (
	"errors"
	"expvar"
	"net"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoConsumer is returned when there is no consumer to write the frame to.
	ErrNoConsumer = errors.New("no consumer connected")
	// ErrClosed is returned when writing to a closed server.
	ErrClosed = errors.New("stream server closed")
)

var (
	writeErrors = expvar.NewInt("pipe.write.errors")
	tornWrites  = expvar.NewInt("pipe.torn.writes")
	consumers   = expvar.NewInt("pipe.consumers")
)

// DefaultWriteTimeout bounds how long a frame write may stall the caller.
const DefaultWriteTimeout = 5 * time.Millisecond

// Option customizes the server.
type Option func(*Server)

// WithWriteTimeout sets the write deadline for each frame.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// Server is the producer end of the stream channel. It serves a single
// consumer at a time and writes frames on a best-effort basis: a frame
// that can't be written within the deadline is dropped.
type Server struct {
	l            net.Listener
	writeTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	wg sync.WaitGroup
}

// NewServer starts accepting consumers on the listener.
func NewServer(l net.Listener, opts ...Option) *Server {
	s := &Server{l: l, writeTimeout: DefaultWriteTimeout}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.serve()
	return s
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.l.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warnf("unable to accept stream consumer: %v", err)
			continue
		}

		s.mu.Lock()
		switch {
		case s.closed:
			s.mu.Unlock()
			_ = conn.Close()
			return
		case s.conn != nil:
			s.mu.Unlock()
			log.Warn("rejecting stream consumer: another consumer is already connected")
			_ = conn.Close()
			continue
		}
		s.conn = conn
		s.mu.Unlock()

		consumers.Add(1)
		log.Info("stream consumer connected")
	}
}

// Connected reports whether a consumer is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Write writes the encoded frame to the consumer. It never retries. A
// write that made partial progress tears the stream, so the consumer
// is disconnected and observes the end of the stream instead of
// desynchronized bytes.
func (s *Server) Write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.conn == nil {
		return ErrNoConsumer
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	n, err := s.conn.Write(b)
	if err == nil {
		return nil
	}

	writeErrors.Add(1)
	switch {
	case n > 0:
		tornWrites.Add(1)
		log.Warnf("torn frame write (%d of %d bytes). Disconnecting consumer", n, len(b))
		s.disconnect()
	case !errors.Is(err, os.ErrDeadlineExceeded):
		log.Infof("stream consumer gone: %v", err)
		s.disconnect()
	}
	return err
}

func (s *Server) disconnect() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
		consumers.Add(-1)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting consumers and closes the current consumer
// connection, which the consumer observes as the end of the stream.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.disconnect()
	s.mu.Unlock()

	err := s.l.Close()
	s.wg.Wait()
	return err
}
