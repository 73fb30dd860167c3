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
	"errors"
	"fmt"

	peparser "github.com/saferwall/pe"
	peparserlog "github.com/saferwall/pe/log"
	log "github.com/sirupsen/logrus"
)

// ErrArchMismatch is returned when the hook module can't be loaded into the target.
var ErrArchMismatch = errors.New("architecture mismatch")

// Module describes the hook module image.
type Module struct {
	Path  string
	Is64  bool
	IsDLL bool
}

// ReadModule parses the PE headers of the hook module.
func ReadModule(path string) (Module, error) {
	pe, err := peparser.New(path, &peparser.Options{
		DisableCertValidation:  true,
		OmitIATDirectory:       true,
		OmitResourceDirectory:  true,
		OmitImportDirectory:    true,
		OmitExportDirectory:    true,
		OmitSecurityDirectory:  true,
		OmitExceptionDirectory: true,
		OmitRelocDirectory:     true,
		OmitDebugDirectory:     true,
		Logger:                 &logger{},
	})
	if err != nil {
		return Module{}, err
	}
	defer pe.Close()
	if err := pe.ParseDOSHeader(); err != nil {
		return Module{}, fmt.Errorf("%s is not a PE image: %v", path, err)
	}
	if err := pe.ParseNTHeader(); err != nil {
		return Module{}, fmt.Errorf("%s has an invalid NT header: %v", path, err)
	}
	return Module{Path: path, Is64: pe.Is64, IsDLL: pe.IsDLL()}, nil
}

// Check verifies the module can be loaded into a process of the given bitness.
func (m Module) Check(target64 bool) error {
	if !m.IsDLL {
		return fmt.Errorf("%s is not a DLL", m.Path)
	}
	if m.Is64 != target64 {
		return fmt.Errorf("%w: %s module can't be loaded into a %s process", ErrArchMismatch, bits(m.Is64), bits(target64))
	}
	return nil
}

func bits(is64 bool) string {
	if is64 {
		return "64-bit"
	}
	return "32-bit"
}

// logger routes PE parser logs to logrus.
type logger struct{}

func (logger) Log(level peparserlog.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	switch level {
	case peparserlog.LevelError, peparserlog.LevelFatal:
		log.Error(keyvals[1:]...)
	default:
		log.Debug(keyvals[1:]...)
	}
	return nil
}
