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
	"errors"
	"runtime"

	"github.com/spf13/cobra"
)

// RootCmd is the entrance to audiotap CLI
var RootCmd = &cobra.Command{
	Use:   "audiotap",
	Short: "Record the audio a Windows process renders",
	Long: `
	audiotap records the audio played by a running Windows process without
	its cooperation. The hook module is loaded into the target process where
	it intercepts WASAPI and DirectSound render calls and streams raw PCM
	frames over a named pipe. The frames are reassembled into a WAV file.
	`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if runtime.GOOS != "windows" {
			return errors.New("audiotap can only be run on Windows operating systems")
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(captureCmd)
	RootCmd.AddCommand(versionCmd)
}
