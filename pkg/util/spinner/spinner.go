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

package spinner

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner renders progress on the terminal while a step is pending.
type Spinner struct {
	s *spinner.Spinner
}

// Show creates a new spinner and starts it.
func Show(prefix string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Prefix = "> " + prefix + " "
	s.HideCursor = true
	s.Start()
	return &Spinner{s: s}
}

// Update changes the text displayed after the spinner.
func (s *Spinner) Update(suffix string) {
	s.s.Lock()
	s.s.Suffix = " " + suffix
	s.s.Unlock()
}

// Stop stops the spinner and leaves the final message in its place.
func (s *Spinner) Stop(msg string) {
	s.s.FinalMSG = msg + "\n"
	s.s.Stop()
}
