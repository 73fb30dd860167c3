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

package config

import (
	"fmt"
	"sort"
	"strings"
)

// Print returns all the config options pretty-printed one per line,
// with nested sections flattened into dotted keys.
func (c *Config) Print() string {
	opts := make(map[string]string)
	flatten("", c.viper.AllSettings(), opts)

	keys := make([]string, 0, len(opts))
	width := 20
	for k := range opts {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if opts[k] == "" {
			continue
		}
		b.WriteString("\n\t")
		b.WriteString(k)
		b.WriteString(" ")
		b.WriteString(strings.Repeat(".", width-len(k)+5))
		b.WriteString(" ")
		b.WriteString(opts[k])
	}
	return b.String()
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case []any:
			items := make([]string, len(val))
			for i, item := range val {
				items[i] = fmt.Sprintf("%v", item)
			}
			out[key] = strings.Join(items, ";")
		default:
			out[key] = fmt.Sprintf("%v", val)
		}
	}
}
