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
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// DialFunc establishes a single connection attempt.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Connect keeps dialing with exponential backoff until the connection
// is established, maxElapsed passes or the context is done.
func Connect(ctx context.Context, dial DialFunc, maxElapsed time.Duration) (net.Conn, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 50,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         time.Second * 2,
		MaxElapsedTime:      maxElapsed,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	var conn net.Conn
	op := func() error {
		c, err := dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, d time.Duration) {
		log.Debugf("stream channel not ready: %v. Retrying in %v", err, d)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}
