// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import "github.com/spf13/pflag"

// Flags are the persistent flags shared by every command.
type Flags struct {
	Verbose    bool
	Quiet      bool
	JSON       bool
	ConfigPath string
}

var (
	globals Flags

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// BindFlags registers the persistent flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&globals.Verbose, "verbose", "v", false, "Enable debug logging")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress non-error output")
	fs.BoolVar(&globals.JSON, "json", false, "Output in JSON format")
	fs.StringVar(&globals.ConfigPath, "config", "", "Path to config file (default: ~/.config/connectkit/config.yaml)")
}

// Globals returns the current persistent flag values.
func Globals() Flags {
	return globals
}

func GetJSON() bool         { return globals.JSON }
func GetConfigPath() string { return globals.ConfigPath }

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// SetConfigPathForTest points commands at a config file.
func SetConfigPathForTest(path string) {
	globals.ConfigPath = path
}

// ResetFlagsForTest clears every persistent flag.
func ResetFlagsForTest() {
	globals = Flags{}
}
