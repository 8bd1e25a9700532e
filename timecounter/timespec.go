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

package timecounter

import "fmt"

// Timespec is a wall-clock value split into whole seconds since the epoch
// and a sub-second nanosecond part. A normalized value keeps
// 0 <= Nsec < 1e9.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// AddNanos folds ns nanoseconds into the value, carrying whole seconds out
// of the nanosecond part
func (ts *Timespec) AddNanos(ns int64) {
	ts.Nsec += ns
	ts.Sec += ts.Nsec / NanosecondsPerSecond
	ts.Nsec %= NanosecondsPerSecond
}

// Nanoseconds collapses the value into a single nanosecond count
func (ts Timespec) Nanoseconds() int64 {
	return ts.Sec*NanosecondsPerSecond + ts.Nsec
}

// Microseconds returns the sub-second part in whole microseconds, truncated
func (ts Timespec) Microseconds() int64 {
	return ts.Nsec / 1000
}

func (ts Timespec) String() string {
	return fmt.Sprintf("%d.%09ds", ts.Sec, ts.Nsec)
}
