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
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// validate checks the settings tree against the config schema.
func validate(m any) (bool, []error) {
	doc, err := normalize(m, nil)
	if err != nil {
		return false, []error{fmt.Errorf("fail to convert keys to string: %v", err)}
	}
	r, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return false, []error{fmt.Errorf("fail to validate config through schema: %v", err)}
	}
	errs := make([]error, 0, len(r.Errors()))
	for _, e := range r.Errors() {
		errs = append(errs, errors.New(e.String()))
	}
	return r.Valid(), errs
}

// normalize turns YAML maps with interface keys into string-keyed
// maps, which is the only shape JSON schema validation understands.
func normalize(value any, path []string) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			n, err := normalize(e, append(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			key, ok := k.(string)
			if !ok {
				return nil, errors.Errorf("non-string key %#v %s", k, location(path))
			}
			n, err := normalize(e, append(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			n, err := normalize(e, append(path, fmt.Sprintf("[%d]", i)))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return value, nil
}

func location(path []string) string {
	if len(path) == 0 {
		return "at top level"
	}
	return "in " + strings.Join(path, ".")
}
