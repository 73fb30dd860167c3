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

package capture

import (
	"errors"
	"fmt"
)

var (
	errNilFormat = errors.New("format descriptor is nil")
	errNoScratch = errors.New("no memory for the out-parameters")
)

func succeeded(hr uintptr) bool { return int32(hr) >= 0 }

func hresultError(method string, hr uintptr) error {
	return fmt.Errorf("%s failed with HRESULT %#08x", method, uint32(hr))
}
