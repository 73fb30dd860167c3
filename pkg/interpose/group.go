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

package interpose

import (
	"context"
	"errors"
	"fmt"
	"sync"

	fsm "github.com/qmuntal/stateless"
	log "github.com/sirupsen/logrus"
)

// State represents the install state of a target group.
type State string

const (
	// Uninstalled means no target of the group is patched.
	Uninstalled State = "uninstalled"
	// Installing means targets are being patched.
	Installing State = "installing"
	// Installed means every target of the group is patched.
	Installed State = "installed"
	// Uninstalling means the original pointers are being restored.
	Uninstalling State = "uninstalling"
)

var (
	installTrigger   = fsm.Trigger("install")
	commitTrigger    = fsm.Trigger("commit")
	abortTrigger     = fsm.Trigger("abort")
	uninstallTrigger = fsm.Trigger("uninstall")
	restoredTrigger  = fsm.Trigger("restored")
)

// ErrNoTargets is returned when installing a group without targets.
var ErrNoTargets = errors.New("group has no targets")

// Group is a named set of targets that are installed and uninstalled
// as a single transaction. Either all targets get patched or none does.
type Group struct {
	name    string
	targets []*Target
	patcher Patcher

	mu  sync.Mutex
	fsm *fsm.StateMachine
}

// NewGroup creates a target group that writes through the given patcher.
func NewGroup(name string, patcher Patcher, targets ...*Target) *Group {
	g := &Group{
		name:    name,
		targets: targets,
		patcher: patcher,
		fsm:     fsm.NewStateMachine(Uninstalled),
	}
	g.fsm.Configure(Uninstalled).
		Permit(installTrigger, Installing)
	g.fsm.Configure(Installing).
		Permit(commitTrigger, Installed).
		Permit(abortTrigger, Uninstalled)
	g.fsm.Configure(Installed).
		Permit(uninstallTrigger, Uninstalling)
	g.fsm.Configure(Uninstalling).
		Permit(restoredTrigger, Uninstalled)

	g.fsm.OnTransitioned(func(ctx context.Context, t fsm.Transition) {
		log.Debugf("%s group transitioned from %v to %v", g.name, t.Source, t.Destination)
	})
	return g
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Targets returns the group targets.
func (g *Group) Targets() []*Target { return g.targets }

// State returns the current group state.
func (g *Group) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fsm.MustState().(State)
}

// Add appends a target to the group. Targets can only be added while
// the group is uninstalled.
func (g *Group) Add(t *Target) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s := g.fsm.MustState().(State); s != Uninstalled {
		return fmt.Errorf("cannot add %s to %s group in %s state", t, g.name, s)
	}
	g.targets = append(g.targets, t)
	return nil
}

// Install patches every target of the group. The original function
// pointer is stored in the target before its slot is redirected. If
// any write fails, the targets already patched are restored and the
// group remains uninstalled.
func (g *Group) Install() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fsm.MustState().(State) == Installed {
		return nil
	}
	if len(g.targets) == 0 {
		return fmt.Errorf("%s: %w", g.name, ErrNoTargets)
	}
	if err := g.fsm.Fire(installTrigger); err != nil {
		return err
	}

	for _, t := range g.targets {
		if err := g.patch(t); err != nil {
			rerr := g.restore()
			_ = g.fsm.Fire(abortTrigger)
			return errors.Join(fmt.Errorf("unable to install %s group: %w", g.name, err), rerr)
		}
	}

	return g.fsm.Fire(commitTrigger)
}

// Uninstall restores the original pointers of the patched targets. It
// is a no-op when the group was never installed or is already
// uninstalled.
func (g *Group) Uninstall() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fsm.MustState().(State) != Installed {
		return nil
	}
	if err := g.fsm.Fire(uninstallTrigger); err != nil {
		return err
	}
	err := g.restore()
	if ferr := g.fsm.Fire(restoredTrigger); ferr != nil {
		return errors.Join(err, ferr)
	}
	if err != nil {
		return fmt.Errorf("unable to uninstall %s group: %w", g.name, err)
	}
	return nil
}

func (g *Group) patch(t *Target) error {
	if t.Object == 0 {
		return fmt.Errorf("%s: nil object", t)
	}
	if t.Replacement == 0 {
		return fmt.Errorf("%s: nil replacement", t)
	}
	addr := SlotAddress(t.Object, t.Slot)
	orig := Resolve(t.Object, t.Slot)
	if orig == t.Replacement {
		return fmt.Errorf("%s is already hooked", t)
	}
	t.original.Store(orig)
	if err := g.patcher.WritePointer(addr, t.Replacement); err != nil {
		return fmt.Errorf("%s: %w", t, err)
	}
	t.addr = addr
	t.patched = true
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("hooked %s at %#x. original %#x [%s]", t, addr, orig, Describe(orig, 3))
	}
	return nil
}

// restore puts the original pointers back into every patched slot.
// Restoration continues past failures so as much as possible is undone.
func (g *Group) restore() error {
	var errs []error
	for _, t := range g.targets {
		if !t.patched {
			continue
		}
		if err := g.patcher.WritePointer(t.addr, t.Original()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
			continue
		}
		t.patched = false
	}
	return errors.Join(errs...)
}
