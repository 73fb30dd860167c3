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

package rotate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHook(t *testing.T) {
	_, err := NewHook(Config{Formatter: &logrus.TextFormatter{}})
	require.Error(t, err)
	_, err = NewHook(Config{Filename: "audiotap.log"})
	require.Error(t, err)
}

func TestFire(t *testing.T) {
	file := filepath.Join(t.TempDir(), "audiotap.log")
	hook, err := NewHook(Config{Filename: file, MaxSize: 1, Level: logrus.InfoLevel, Formatter: &logrus.JSONFormatter{}})
	require.NoError(t, err)
	defer hook.Close()

	assert.Equal(t, []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}, hook.Levels())

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.AddHook(hook)
	logger.Warn("frame dropped")

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "frame dropped")
	assert.Contains(t, string(b), `"source"`)
}

func TestTrimPath(t *testing.T) {
	assert.Equal(t, "capture/wasapi.go", trimPath("/src/audiotap/pkg/capture/wasapi.go"))
	assert.Equal(t, "wasapi.go", trimPath("wasapi.go"))
}
