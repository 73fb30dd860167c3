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
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// Listen creates the stream channel of the process.
func Listen(pid uint32) (net.Listener, error) {
	name := Name(pid)
	l, err := winio.ListenPipe(name, &winio.PipeConfig{
		InputBufferSize:  Capacity,
		OutputBufferSize: Capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("fail to listen on the %q pipe: %v", name, err)
	}
	return l, nil
}

// Dial connects to the stream channel of the process, waiting for it to
// appear for up to timeout.
func Dial(ctx context.Context, pid uint32, timeout time.Duration) (net.Conn, error) {
	name := Name(pid)
	conn, err := Connect(ctx, func(ctx context.Context) (net.Conn, error) {
		return winio.DialPipeContext(ctx, name)
	}, timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to dial %s pipe: %v", name, err)
	}
	return conn, nil
}
