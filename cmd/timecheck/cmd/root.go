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

	"github.com/cellos/time/daemon"
)

// RootCmd is the main entry point, exported so timecheck can be extended
// without touching core functionality
var RootCmd = &cobra.Command{
	Use:   "timecheck",
	Short: "Query and diagnose the timekeeper daemon",
}

// flags
var rootVerboseFlag bool
var rootServerFlag string

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().StringVarP(&rootServerFlag, "server", "S",
		fmt.Sprintf("http://localhost:%d", daemon.DefaultMonitoringPort),
		"monitoring address of the timekeeper daemon")
}

// ConfigureVerbosity configures log verbosity based on parsed flags.
// Needs to be called by any subcommand.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
