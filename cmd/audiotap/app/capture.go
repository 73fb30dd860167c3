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

package app

import (
	"fmt"

	"github.com/rabbitstack/audiotap/internal/bootstrap"
	"github.com/rabbitstack/audiotap/pkg/config"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Inject the hook module into the process and record its audio",
	Example: `  audiotap capture -p spotify -o C:\recordings
  audiotap capture -p game.exe --x86`,
	RunE: capture,
}

var captureConfig = config.NewWithOpts(config.WithCapture())

func init() {
	captureConfig.MustViperize(captureCmd)
}

func capture(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.NewApp(captureConfig, bootstrap.WithSignals(), bootstrap.WithDebugPrivilege())
	if err != nil {
		return err
	}
	defer app.Shutdown()

	pid, err := app.Inject()
	if err != nil {
		return err
	}
	if captureConfig.Output == "" {
		// nobody consumes the stream, the hook keeps running on its own
		fmt.Printf("Hook module loaded into process %d. Audio is not recorded\n", pid)
		return nil
	}
	return app.Record()
}
