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

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	log "github.com/sirupsen/logrus"

	"github.com/cellos/time/daemon"
)

func main() {
	var (
		cfg     = &daemon.Config{}
		err     error
		cfgPath string
		verbose bool
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "timekeeperd: keeps the wall clock advancing on top of the best available time counter\n\nFlags:\n")
		flag.PrintDefaults()
	}

	flag.DurationVar(&cfg.Interval, "i", time.Second, "Interval at which we sample the active counter. 0 derives it from the counter's fixup period")
	flag.IntVar(&cfg.MonitoringPort, "monitoringport", daemon.DefaultMonitoringPort, "Port to run monitoring server on")
	flag.StringVar(&cfg.NTPServer, "ntpserver", "", "Seed the wall clock from this NTP server instead of the system clock")
	flag.StringVar(&cfgPath, "cfg", "", "Path to config")
	flag.BoolVar(&verbose, "verbose", false, "Verbose logging")

	flag.Parse()

	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if cfgPath != "" {
		log.Warningf("using config from %s, flag values are ignored", cfgPath)
		cfg, err = daemon.ReadConfig(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.EvalAndValidate(); err != nil {
		log.Fatal(err)
	}
	log.Debugf("Config: %+v", *cfg)

	s := daemon.New(cfg, daemon.NewStats(), clock.NewClock())
	ctx := context.Background()
	if err := s.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
