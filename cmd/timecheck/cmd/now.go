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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cellos/time/daemon"
)

func init() {
	RootCmd.AddCommand(nowCmd)
}

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Show current time in both microsecond and nanosecond resolution",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		reply, err := daemon.FetchTime(rootServerFlag)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Time in micro seconds (%d sec: %d usec)\n", reply.Sec, reply.Usec)
		fmt.Printf("Time in nano seconds  (%d sec: %d nsec)\n", reply.Sec, reply.Nsec)
	},
}
