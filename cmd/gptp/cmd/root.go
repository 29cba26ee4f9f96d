/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is a main entry point
var RootCmd = &cobra.Command{
	Use:           "gptp",
	Short:         "gPTP (IEEE 802.1AS) time-aware bridge and tools",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	rootVerboseFlag  bool
	rootLogLevelFlag string
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "shortcut for --loglevel debug")
	RootCmd.PersistentFlags().StringVar(&rootLogLevelFlag, "loglevel", "info", "log level: warning, info or debug")
}

// logLevel picks the level from flags, --verbose wins over --loglevel
func logLevel(verbose bool, level string) (log.Level, error) {
	if verbose {
		return log.DebugLevel, nil
	}
	return log.ParseLevel(level)
}

/*
ConfigureVerbosity sets up logging for a subcommand. Levels used by gptp:
  - warning: protocol trouble on a port (lost responses, sequence mismatches, asCapable changes)
  - info: daemon lifecycle, ports being opened
  - debug: every state transition and every sent or received message
*/
func ConfigureVerbosity() {
	level, err := logLevel(rootVerboseFlag, rootLogLevelFlag)
	if err != nil {
		log.Fatalf("bad --loglevel: %v", err)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
}

// Execute runs the CLI and exits with non-zero code on error
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gptp: %v\n", err)
		os.Exit(1)
	}
}
