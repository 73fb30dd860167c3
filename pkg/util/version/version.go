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

// Package version carries the release information stamped at build time.
package version

import (
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	semver "github.com/hashicorp/go-version"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Version stores the SemVer release information along with the
// commit that produced the release.
type Version struct {
	Major  int64
	Minor  int64
	Patch  int64
	Commit string
	Date   string
}

var versionRegexp = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

var version string

// Set initializes the version string as global variable.
func Set(v string) { version = v }

// Get returns the version string.
func Get() string {
	if IsDev() {
		return "dev"
	}
	return version
}

// IsDev determines if this is a dev version.
func IsDev() bool { return version == "0.0.0" || version == "" || version == "dev" }

// Compatible reports whether the hook module built with this version
// can be driven by the injector of the given version. Releases are
// compatible when their major and minor versions match. Dev builds
// are compatible with everything.
func Compatible(other string) bool {
	if IsDev() || other == "" || other == "dev" {
		return true
	}
	a, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	b, err := semver.NewVersion(other)
	if err != nil {
		return false
	}
	sa, sb := a.Segments(), b.Segments()
	return sa[0] == sb[0] && sa[1] == sb[1]
}

// New parses the version string and return the version instance.
func New(version, commit, date string) Version {
	if version == "" {
		return Version{Commit: commit, Date: date}
	}

	toks := versionRegexp.FindStringSubmatch(version)
	if len(toks) == 0 || toks[0] != version {
		panic(fmt.Sprintf("invalid semver release: %s", version))
	}

	parts := strings.Split(toks[1], ".")
	major, _ := strconv.ParseInt(parts[0], 10, 64)
	minor, _ := strconv.ParseInt(parts[1], 10, 64)
	patch, _ := strconv.ParseInt(parts[2], 10, 64)

	return Version{
		Major:  major,
		Minor:  minor,
		Patch:  patch,
		Commit: commit,
		Date:   date,
	}
}

// Render dumps the version information to the writer.
func (v Version) Render(w io.Writer, hook string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	ver := "dev"
	if v.Major != 0 || v.Minor != 0 || v.Patch != 0 {
		ver = fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}

	t.AppendRow(table.Row{"Version", ver})
	t.AppendRow(table.Row{"Commit", v.Commit})
	t.AppendRow(table.Row{"Build date", v.Date})
	if hook != "" {
		t.AppendRow(table.Row{"Hook module", hook})
	}

	t.AppendSeparator()

	t.AppendRow(table.Row{"Go compiler", runtime.Version()})
	t.AppendRow(table.Row{"Architecture", runtime.GOARCH})

	t.Render()
}
