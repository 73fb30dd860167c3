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

package interpose_test

import (
	"errors"
	"testing"

	"github.com/rabbitstack/audiotap/pkg/interpose"
	"github.com/rabbitstack/audiotap/pkg/interpose/comfake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPatcher struct {
	interpose.DirectPatcher
	writes int
	failAt int
}

func (p *failingPatcher) WritePointer(addr, val uintptr) error {
	p.writes++
	if p.writes == p.failAt {
		return errors.New("access denied")
	}
	return p.DirectPatcher.WritePointer(addr, val)
}

func newObject(rt *comfake.Runtime) uintptr {
	return rt.NewObject(map[int]any{
		3: func(this, a uintptr) uintptr { return a + 1 },
		4: func(this, a uintptr) uintptr { return a * 2 },
	})
}

func TestResolve(t *testing.T) {
	rt := comfake.NewRuntime()
	obj := newObject(rt)

	fn := interpose.Resolve(obj, 3)
	require.NotZero(t, fn)
	assert.Equal(t, uintptr(11), rt.Call(fn, obj, 10))
	assert.Zero(t, interpose.Resolve(obj, 0))
}

func TestGroupInstallUninstall(t *testing.T) {
	rt := comfake.NewRuntime()
	obj := newObject(rt)
	orig3 := interpose.Resolve(obj, 3)
	orig4 := interpose.Resolve(obj, 4)

	var t3, t4 *interpose.Target
	t3 = interpose.NewTarget("Inc", obj, 3, rt.Callback(func(this, a uintptr) uintptr {
		return rt.Call(t3.Original(), this, a) + 100
	}))
	t4 = interpose.NewTarget("Double", obj, 4, rt.Callback(func(this, a uintptr) uintptr {
		return rt.Call(t4.Original(), this, a)
	}))

	g := interpose.NewGroup("test", interpose.DirectPatcher{}, t3, t4)
	assert.Equal(t, interpose.Uninstalled, g.State())

	require.NoError(t, g.Install())
	assert.Equal(t, interpose.Installed, g.State())
	assert.Equal(t, orig3, t3.Original())
	assert.Equal(t, orig4, t4.Original())
	assert.True(t, t3.Patched())

	assert.Equal(t, uintptr(111), rt.Invoke(obj, 3, 10))
	assert.Equal(t, uintptr(20), rt.Invoke(obj, 4, 10))

	// installing again is a no-op
	require.NoError(t, g.Install())
	assert.Equal(t, uintptr(111), rt.Invoke(obj, 3, 10))

	require.NoError(t, g.Uninstall())
	assert.Equal(t, interpose.Uninstalled, g.State())
	assert.Equal(t, orig3, interpose.Resolve(obj, 3))
	assert.Equal(t, orig4, interpose.Resolve(obj, 4))
	assert.Equal(t, uintptr(11), rt.Invoke(obj, 3, 10))
	assert.False(t, t3.Patched())

	// reinstall after a full cycle
	require.NoError(t, g.Install())
	assert.Equal(t, uintptr(111), rt.Invoke(obj, 3, 10))
	require.NoError(t, g.Uninstall())
}

func TestGroupUninstallIdempotent(t *testing.T) {
	rt := comfake.NewRuntime()
	obj := newObject(rt)
	orig := interpose.Resolve(obj, 3)

	tgt := interpose.NewTarget("Inc", obj, 3, rt.Callback(func(this, a uintptr) uintptr { return 0 }))
	g := interpose.NewGroup("test", interpose.DirectPatcher{}, tgt)

	require.NoError(t, g.Uninstall())
	assert.Equal(t, orig, interpose.Resolve(obj, 3))

	require.NoError(t, g.Install())
	require.NoError(t, g.Uninstall())
	require.NoError(t, g.Uninstall())
	assert.Equal(t, orig, interpose.Resolve(obj, 3))
	assert.Equal(t, uintptr(11), rt.Invoke(obj, 3, 10))
}

func TestGroupInstallRollback(t *testing.T) {
	rt := comfake.NewRuntime()
	obj := newObject(rt)
	orig3 := interpose.Resolve(obj, 3)
	orig4 := interpose.Resolve(obj, 4)

	t3 := interpose.NewTarget("Inc", obj, 3, rt.Callback(func(this, a uintptr) uintptr { return 0 }))
	t4 := interpose.NewTarget("Double", obj, 4, rt.Callback(func(this, a uintptr) uintptr { return 0 }))

	p := &failingPatcher{failAt: 2}
	g := interpose.NewGroup("test", p, t3, t4)

	err := g.Install()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Equal(t, interpose.Uninstalled, g.State())
	assert.Equal(t, orig3, interpose.Resolve(obj, 3))
	assert.Equal(t, orig4, interpose.Resolve(obj, 4))
	assert.False(t, t3.Patched())
	assert.False(t, t4.Patched())

	// uninstall after a failed install leaves the originals in place
	require.NoError(t, g.Uninstall())
	assert.Equal(t, orig3, interpose.Resolve(obj, 3))
	assert.Equal(t, uintptr(11), rt.Invoke(obj, 3, 10))
}

func TestGroupInvalidTargets(t *testing.T) {
	rt := comfake.NewRuntime()

	g := interpose.NewGroup("empty", interpose.DirectPatcher{})
	require.ErrorIs(t, g.Install(), interpose.ErrNoTargets)

	g = interpose.NewGroup("nil", interpose.DirectPatcher{}, interpose.NewTarget("Nil", 0, 3, rt.Callback(func() uintptr { return 0 })))
	require.Error(t, g.Install())
	assert.Equal(t, interpose.Uninstalled, g.State())
}

func TestGroupAdd(t *testing.T) {
	rt := comfake.NewRuntime()
	obj := newObject(rt)

	g := interpose.NewGroup("test", interpose.DirectPatcher{})
	require.NoError(t, g.Add(interpose.NewTarget("Inc", obj, 3, rt.Callback(func(this, a uintptr) uintptr { return 0 }))))
	require.NoError(t, g.Install())
	require.Error(t, g.Add(interpose.NewTarget("Double", obj, 4, rt.Callback(func(this, a uintptr) uintptr { return 0 }))))
	assert.Len(t, g.Targets(), 1)
	require.NoError(t, g.Uninstall())
}

func TestDescribe(t *testing.T) {
	rt := comfake.NewRuntime()
	fn := rt.Callback(func() uintptr { return 0 })

	s := interpose.Describe(fn, 3)
	assert.Equal(t, "nop|nop|nop", s)
	assert.Empty(t, interpose.Describe(0, 3))
}
