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
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cellos/time/daemon"
)

func init() {
	RootCmd.AddCommand(sourcesCmd)
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the registered time counters",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		sources, err := daemon.FetchSources(rootServerFlag)
		if err != nil {
			log.Fatal(err)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{
			"active", "name", "resolution(ns)", "frequency(hz)", "width(bits)", "fixup period", "enabled",
		})
		for _, s := range sources {
			table.Append([]string{
				fmt.Sprintf("%v", s.Active),
				s.Name,
				fmt.Sprintf("%d", s.ResolutionNS),
				fmt.Sprintf("%d", s.FrequencyHz),
				fmt.Sprintf("%d", s.CounterBits),
				time.Duration(s.FixupPeriodNS).String(),
				fmt.Sprintf("%v", s.Enabled),
			})
		}
		table.Render()
	},
}
