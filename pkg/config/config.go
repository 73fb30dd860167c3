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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rabbitstack/audiotap/pkg/util/log"
	"github.com/rabbitstack/audiotap/pkg/util/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	configFile     = "config-file"
	process        = "process"
	output         = "output"
	x86            = "x86"
	dll            = "dll"
	debugPrivilege = "debug-privilege"
	searchInterval = "search-interval"
	searchTimeout  = "search-timeout"
	// set by the injector in the hook file
	injectorVersion = "injector-version"
)

// HookDLL is the file name of the hook module for the native architecture.
const HookDLL = "audiotap-hook.dll"

// HookDLLX86 is the file name of the hook module for 32-bit targets.
const HookDLLX86 = "audiotap-hook-x86.dll"

// Config stores the options that drive capture sessions.
type Config struct {
	// Process is the partial executable name of the target process.
	Process string `json:"process" yaml:"process"`
	// Output is the path of the WAV file or the directory it's written to.
	// Capture runs without a consumer when it's empty.
	Output string `json:"output" yaml:"output"`
	// X86 selects the 32-bit hook module.
	X86 bool `json:"x86" yaml:"x86"`
	// DLL overrides the path of the hook module.
	DLL string `json:"dll" yaml:"dll"`
	// DebugPrivilege dictates if the SeDebugPrivilege is enabled in
	// the process token before opening the target.
	DebugPrivilege bool `json:"debug-privilege" yaml:"debug-privilege"`
	// SearchInterval is the pause between target process lookups.
	SearchInterval time.Duration `json:"search-interval" yaml:"search-interval"`
	// SearchTimeout bounds how long the target is looked for. Zero waits forever.
	SearchTimeout time.Duration `json:"search-timeout" yaml:"search-timeout"`

	// InjectorVersion is the release of the injector that wrote the hook file.
	InjectorVersion string `json:"injector-version" yaml:"injector-version"`

	// Assembler contains stream assembler options.
	Assembler AssemblerConfig `json:"assembler" yaml:"assembler"`
	// Pipe contains stream channel options.
	Pipe PipeConfig `json:"pipe" yaml:"pipe"`
	// Log contains log-specific configuration options.
	Log log.Config `json:"logging" yaml:"logging"`

	flags *pflag.FlagSet
	viper *viper.Viper
	opts  *Options
}

// Options determines which config flags are toggled depending on the command type.
type Options struct {
	capture bool
	hook    bool
}

// Option is the type alias for the config option.
type Option func(*Options)

// WithCapture determines the capture command is executed.
func WithCapture() Option {
	return func(o *Options) {
		o.capture = true
	}
}

// WithHook determines the configuration is loaded inside the target process.
func WithHook() Option {
	return func(o *Options) {
		o.hook = true
	}
}

// NewWithOpts builds a new configuration store from a variety of sources such as configuration files,
// environment variables or command line flags.
func NewWithOpts(options ...Option) *Config {
	opts := &Options{}
	for _, opt := range options {
		opt(opts)
	}

	v := viper.New()
	v.SetEnvPrefix("audiotap")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	c := &Config{
		Log:   log.Config{},
		viper: v,
		flags: new(pflag.FlagSet),
		opts:  opts,
	}
	c.addFlags()

	return c
}

// MustViperize adds the flag set to the Cobra command and binds them within the Viper flags.
func (c *Config) MustViperize(cmd *cobra.Command) {
	cmd.PersistentFlags().AddFlagSet(c.flags)
	if err := c.viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		panic(err)
	}
	if c.opts.capture {
		if err := cmd.MarkPersistentFlagRequired(process); err != nil {
			panic(err)
		}
	}
}

// Bind binds the flag set to Viper without a command. Used where
// there is no command line, like inside the target process.
func (c *Config) Bind() error {
	return c.viper.BindPFlags(c.flags)
}

// Init setups the configuration state from Viper. The configuration
// file is loaded first if one is given.
func (c *Config) Init() error {
	if file := c.File(); file != "" {
		if err := c.TryLoadFile(file); err != nil {
			return fmt.Errorf("unable to load %s config file: %v", file, err)
		}
	}

	c.Assembler.initFromViper(c.viper)
	c.Pipe.initFromViper(c.viper)
	c.Log.InitFromViper(c.viper)

	c.Process = c.viper.GetString(process)
	c.Output = c.viper.GetString(output)
	c.X86 = c.viper.GetBool(x86)
	c.DLL = c.viper.GetString(dll)
	c.DebugPrivilege = c.viper.GetBool(debugPrivilege)
	c.SearchInterval = c.viper.GetDuration(searchInterval)
	c.SearchTimeout = c.viper.GetDuration(searchTimeout)
	c.InjectorVersion = c.viper.GetString(injectorVersion)

	return nil
}

// TryLoadFile attempts to load the configuration file from specified path on the file system.
func (c *Config) TryLoadFile(file string) error {
	c.viper.SetConfigFile(file)
	return c.viper.ReadInConfig()
}

// File returns the config file path.
func (c *Config) File() string { return c.viper.GetString(configFile) }

// Validate ensures that all configuration options provided by user have the expected values. It returns
// a list of validation errors prefixed with the offending configuration property/flag.
func (c *Config) Validate() error {
	if file := c.File(); file != "" {
		out, err := readFile(file)
		if err != nil {
			return err
		}
		if valid, errs := validate(out); !valid || len(errs) > 0 {
			return fmt.Errorf("invalid config: %v", errors.Join(errs...))
		}
	}
	if valid, errs := validate(c.viper.AllSettings()); !valid || len(errs) > 0 {
		return fmt.Errorf("invalid config: %v", errors.Join(errs...))
	}
	if c.opts.capture && c.Process == "" {
		return errors.New("invalid config: target process is not specified")
	}
	return nil
}

// HookPath returns the path of the hook module that is loaded into the
// target process. Unless overridden, the module is expected next to
// the running executable.
func (c *Config) HookPath() (string, error) {
	if c.DLL != "" {
		return filepath.Abs(c.DLL)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	name := HookDLL
	if c.X86 {
		name = HookDLLX86
	}
	return filepath.Join(filepath.Dir(exe), name), nil
}

func readFile(file string) (any, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var out any
	switch filepath.Ext(file) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &out)
	case ".json":
		err = json.Unmarshal(b, &out)
	default:
		return nil, fmt.Errorf("%s is not a supported config file extension", filepath.Ext(file))
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read the config file: %v", err)
	}
	return out, nil
}

func (c *Config) addFlags() {
	c.flags.String(configFile, "", "Indicates the location of the configuration file")
	if c.opts.capture {
		c.flags.StringP(process, "p", "", "Partial executable name of the process whose audio is captured")
		c.flags.StringP(output, "o", "", "The path of the output WAV file or the directory it's written to. Audio is not recorded when empty")
		c.flags.Bool(x86, false, "Injects the 32-bit hook module for x86 targets")
		c.flags.String(dll, "", "Overrides the path of the hook module")
		c.flags.Bool(debugPrivilege, true, "Dictates if the SeDebugPrivilege is injected into the process access token")
		c.flags.Duration(searchInterval, time.Second*3, "Specifies the pause between target process lookups")
		c.flags.Duration(searchTimeout, 0, "Bounds how long the target process is looked for. Waits forever by default")
		c.flags.String(sampleFormat, "auto", "Sample encoding of the WAV file (auto|pcm|float). auto writes every 32-bit stream as float, so pick pcm for 32-bit integer sources")
		c.flags.Duration(pipeConnectTimeout, time.Second*30, "Determines how long to wait for the stream channel to appear")
	}
	c.flags.Duration(pipeWriteTimeout, time.Millisecond*5, "Bounds how long writing a frame may stall the audio thread")
	c.Log.AddFlags(c.flags)
}

// SetFile points the configuration at the given file. It's loaded on Init.
func (c *Config) SetFile(file string) { c.viper.Set(configFile, file) }

// hookFile is the configuration handed over to the hook module.
type hookFile struct {
	InjectorVersion string `yaml:"injector-version"`
	Pipe            struct {
		WriteTimeout string `yaml:"write-timeout"`
	} `yaml:"pipe"`
	Logging struct {
		Level     string `yaml:"level"`
		Formatter string `yaml:"formatter"`
		Path      string `yaml:"path,omitempty"`
	} `yaml:"logging"`
}

// WriteHookFile stores the options that apply inside the target
// process. The hook module can't receive arguments when it gets
// loaded, so it picks them up from this file.
func (c *Config) WriteHookFile(file string) error {
	var h hookFile
	h.InjectorVersion = version.Get()
	h.Pipe.WriteTimeout = c.Pipe.WriteTimeout.String()
	h.Logging.Level = c.Log.Level
	h.Logging.Formatter = c.Log.Formatter
	h.Logging.Path = c.Log.Path

	b, err := yaml.Marshal(&h)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(file, b, 0o644)
}

// HookFile returns the path of the hook configuration for the process.
func HookFile(pid uint32) string {
	return filepath.Join(HookDir(), fmt.Sprintf("audiotap-hook-%d.yml", pid))
}

// HookDir is the directory the hook module keeps its files in.
func HookDir() string {
	return filepath.Join(os.TempDir(), "audiotap")
}
