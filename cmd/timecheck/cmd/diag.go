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

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/constraints"

	"github.com/cellos/time/daemon"
)

type status int

// possible check results
const (
	OK status = iota
	WARN
	FAIL
	CRITICAL
)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

var statusToColor = []string{okString, warnString, failString}

// diagReport is everything we pulled from the daemon for the checks to look at
type diagReport struct {
	counters map[string]int64
	sources  []daemon.SourceReply
}

// diagnoser is a function that runs one check against the report
type diagnoser func(r *diagReport) (status, string)

func fmtThreshold(warnThreshold any) string {
	return color.BlueString("%v", warnThreshold)
}

// generic function to check value against some thresholds
func checkAgainstThreshold[T constraints.Ordered](name string, value, warnThreshold, failThreshold T, explanation string) (status, string) {
	msgTemplate := "%s is %s, we expect it to be within %s%s"
	thresholdStr := fmtThreshold(warnThreshold)

	if value > failThreshold {
		return FAIL, fmt.Sprintf(
			msgTemplate,
			name,
			color.RedString("%v", value),
			thresholdStr,
			". "+explanation,
		)
	}
	if value > warnThreshold {
		return WARN, fmt.Sprintf(
			msgTemplate,
			name,
			color.YellowString("%v", value),
			thresholdStr,
			". "+explanation,
		)
	}
	return OK, fmt.Sprintf(
		msgTemplate,
		name,
		color.GreenString("%v", value),
		thresholdStr,
		"",
	)
}

func activeSource(r *diagReport) *daemon.SourceReply {
	for i := range r.sources {
		if r.sources[i].Active {
			return &r.sources[i]
		}
	}
	return nil
}

func checkActiveSource(r *diagReport) (status, string) {
	active := activeSource(r)
	if active == nil {
		return FAIL, fmt.Sprintf("No active time counter among %d registered. Time queries will fail until one is selected", len(r.sources))
	}
	if !active.Enabled {
		return FAIL, fmt.Sprintf("Active time counter %q is not enabled, the wall clock is frozen", active.Name)
	}
	enabled := 0
	for _, s := range r.sources {
		if s.Enabled {
			enabled++
		}
	}
	if enabled > 1 {
		return WARN, fmt.Sprintf("%d counters are enabled, we expect only the active %q to be counting", enabled, active.Name)
	}
	return OK, fmt.Sprintf("Active time counter is %s with %s resolution", color.GreenString(active.Name), color.GreenString("%dns", active.ResolutionNS))
}

func checkAdvanceGap(r *diagReport) (status, string) {
	active := activeSource(r)
	if active == nil || active.FixupPeriodNS == 0 {
		return WARN, "No fixup period to check the advance gap against"
	}
	fixup := time.Duration(active.FixupPeriodNS)
	return checkAgainstThreshold(
		"Longest gap between advances",
		time.Duration(r.counters["advance_gap_ns.max"]),
		fixup/2,
		fixup,
		"Gaps over the fixup period can hide counter wraparounds and undercount elapsed time",
	)
}

func checkReadErrors(r *diagReport) (status, string) {
	// the occasional failed hardware read is survivable, a stream of them
	// means the wall clock is effectively stopped
	return checkAgainstThreshold(
		"Counter read errors",
		r.counters["read_error"],
		0,
		100,
		"Failed reads leave the wall clock still",
	)
}

func checkFixupOverruns(r *diagReport) (status, string) {
	return checkAgainstThreshold(
		"Fixup period overruns",
		r.counters["fixup_overrun"],
		0,
		10,
		"Every overrun may have silently lost one counter wraparound of time",
	)
}

var diagnosers = []diagnoser{
	checkActiveSource,
	checkAdvanceGap,
	checkReadErrors,
	checkFixupOverruns,
}

func runDiagnosers(r *diagReport, toRun []diagnoser) int {
	failed := 0
	for _, check := range toRun {
		status, msg := check(r)
		if status != OK {
			failed++
		}
		switch status {
		case CRITICAL:
			fmt.Printf("%s %s\n", failString, msg)
			return 127
		default:
			fmt.Printf("%s %s\n", statusToColor[status], msg)
		}
	}
	return failed
}

func init() {
	RootCmd.AddCommand(diagCmd)
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Perform basic timekeeping diagnosis, report in human-readable form.",
	Long: `Perform basic timekeeping diagnosis, report in human-readable form.
Runs a set of checks against the timekeeper daemon, and prints the results.
Exit code will be equal to the number of failed checks.
`,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		counters, err := daemon.FetchCounters(rootServerFlag)
		if err != nil {
			log.Fatal(err)
		}
		sources, err := daemon.FetchSources(rootServerFlag)
		if err != nil {
			log.Fatal(err)
		}
		r := &diagReport{counters: counters, sources: sources}
		os.Exit(runDiagnosers(r, diagnosers))
	},
}
