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

package daemon

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// DefaultMonitoringPort is where the daemon serves counters and time queries
const DefaultMonitoringPort = 21040

// Config represents configuration we expect to read from file or flags
type Config struct {
	Interval       time.Duration // how often we sample the active counter; 0 means derive from its fixup period
	MonitoringPort int           // port for the http monitoring endpoints
	NTPServer      string        // seed the wall clock from this NTP server; empty means system clock
}

// EvalAndValidate makes sure config is valid
func (c *Config) EvalAndValidate() error {
	if c.Interval < 0 {
		return fmt.Errorf("bad config: 'interval' must not be negative")
	}
	if c.Interval > time.Minute {
		return fmt.Errorf("bad config: 'interval' is over a minute")
	}
	if c.MonitoringPort <= 0 || c.MonitoringPort > 65535 {
		return fmt.Errorf("bad config: 'monitoringport' must be a valid port")
	}
	return nil
}

// ReadConfig reads config and unmarshals it from yaml into Config
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Config{}
	err = yaml.UnmarshalStrict(data, &c)
	return &c, err
}
