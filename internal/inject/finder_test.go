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
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	assert.True(t, Match("chrome.exe", "chrome"))
	assert.True(t, Match("Spotify.exe", "spotify"))
	assert.True(t, Match(`C:\Program Files\foobar2000\foobar2000.exe`, "foobar"))
	assert.False(t, Match("explorer.exe", "chrome"))
	assert.False(t, Match("explorer.exe", ""))
}

func TestFind(t *testing.T) {
	calls := 0
	list := func(ctx context.Context) ([]Process, error) {
		calls++
		ps := []Process{{Pid: uint32(os.Getpid()), Name: "audiotap.exe"}, {Pid: 4, Name: "System"}}
		if calls > 2 {
			ps = append(ps, Process{Pid: 2040, Name: "Spotify.exe"})
		}
		return ps, nil
	}

	f := NewFinder(list, time.Millisecond, 0)
	var retries int
	f.OnRetry(func(attempt int) { retries = attempt })

	p, err := f.Find(context.Background(), "spotify")
	require.NoError(t, err)
	assert.Equal(t, uint32(2040), p.Pid)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestFindSkipsSelf(t *testing.T) {
	list := func(ctx context.Context) ([]Process, error) {
		return []Process{{Pid: uint32(os.Getpid()), Name: "audiotap.exe"}}, nil
	}
	_, err := NewFinder(list, time.Millisecond*5, time.Millisecond*50).Find(context.Background(), "audiotap")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindListError(t *testing.T) {
	calls := 0
	list := func(ctx context.Context) ([]Process, error) {
		calls++
		return nil, errors.New("access denied")
	}
	_, err := NewFinder(list, time.Millisecond, 0).Find(context.Background(), "chrome")
	require.EqualError(t, err, "access denied")
	assert.Equal(t, 1, calls)
}

func TestProcesses(t *testing.T) {
	ps, err := Processes(context.Background())
	require.NoError(t, err)
	var found bool
	for _, p := range ps {
		if p.Pid == uint32(os.Getpid()) {
			found = true
		}
	}
	assert.True(t, found)
}
