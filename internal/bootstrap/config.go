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

package bootstrap

import (
	"fmt"
	"os"

	"github.com/rabbitstack/audiotap/pkg/config"
	"github.com/rabbitstack/audiotap/pkg/util/log"
	"github.com/rabbitstack/audiotap/pkg/util/version"
	"github.com/sirupsen/logrus"
)

// InitConfigAndLogger initializes the configuration and sets up the logger.
func InitConfigAndLogger(cfg *config.Config, filename string) error {
	if err := cfg.Init(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return log.InitFromConfig(cfg.Log, filename)
}

// InitHookConfigAndLogger loads the configuration the injector left for
// the process. We allow continuing even if the hook file is missing or
// broken, or the log file can't be created. In this situation, the
// default settings are used since there is nobody to report the failure to.
func InitHookConfigAndLogger(cfg *config.Config, pid uint32) {
	file := config.HookFile(pid)
	_, err := os.Stat(file)
	isLoaded := err == nil
	if isLoaded {
		cfg.SetFile(file)
	}
	var initErr error
	if err := cfg.Bind(); err != nil {
		initErr, isLoaded = err, false
	} else if err := cfg.Init(); err != nil {
		initErr, isLoaded = err, false
	} else if isLoaded {
		if err := cfg.Validate(); err != nil {
			initErr, isLoaded = err, false
		}
	}

	lc := log.Hook(config.HookDir())
	if isLoaded {
		lc.Level = cfg.Log.Level
		lc.Formatter = cfg.Log.Formatter
		if cfg.Log.Path != "" {
			lc.Path = cfg.Log.Path
		}
	}
	if err := log.InitFromConfig(lc, fmt.Sprintf("audiotap-hook-%d.log", pid)); err != nil {
		log.InitFallback(err)
		logrus.Warnf("%v. Logging to standard error...", err)
	}

	switch {
	case initErr != nil:
		logrus.Warnf("unable to load hook configuration from %s: %v. "+
			"Falling back to default settings...", file, initErr)
	case !isLoaded:
		logrus.Warnf("%s hook file not found. Falling back to default settings...", file)
	default:
		_ = os.Remove(file)
	}
	if !version.Compatible(cfg.InjectorVersion) {
		logrus.Warnf("hook module version %s doesn't match injector version %s", version.Get(), cfg.InjectorVersion)
	}
}
