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

package assembler

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// PrintStats renders the capture statistics.
func PrintStats(w io.Writer, path string, s *Stream) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Capture Statistics")
	t.SetStyle(table.StyleLight)

	t.AppendRow(table.Row{"File", filepath.Base(path)})
	t.AppendRow(table.Row{"Format", s.Format.String()})
	t.AppendSeparator()

	t.AppendRow(table.Row{"Frames assembled", s.Frames})
	t.AppendRow(table.Row{"Samples", s.Samples})
	if rate := s.Format.SampleRate; rate > 0 {
		d := time.Duration(s.Samples) * time.Second / time.Duration(rate)
		t.AppendRow(table.Row{"Duration", d.Round(time.Millisecond)})
	}
	t.AppendRow(table.Row{"Format changes", s.FormatChanges})
	if s.Torn {
		t.AppendRow(table.Row{"Final frame", "torn"})
	}

	f, err := os.Stat(path)
	if err != nil {
		t.Render()
		return
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Capture size", humanize.Bytes(uint64(f.Size()))})

	t.Render()
}
