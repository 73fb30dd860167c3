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

package controller

import (
	"github.com/rabbitstack/audiotap/pkg/interpose"
	"github.com/stretchr/testify/mock"
)

// GroupMock is the interception group mock used in tests.
type GroupMock struct {
	mock.Mock
}

// Name method
func (g *GroupMock) Name() string { args := g.Called(); return args.String(0) }

// Install method
func (g *GroupMock) Install() error { args := g.Called(); return args.Error(0) }

// Uninstall method
func (g *GroupMock) Uninstall() error { args := g.Called(); return args.Error(0) }

// State method
func (g *GroupMock) State() interpose.State {
	args := g.Called()
	return args.Get(0).(interpose.State)
}
