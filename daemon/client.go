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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// FetchTime returns the daemon's current wall clock
func FetchTime(url string) (*TimeReply, error) {
	reply := &TimeReply{}
	if err := fetchJSON(url+"/time", reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// FetchSources returns the daemon's registered counter inventory
func FetchSources(url string) ([]SourceReply, error) {
	sources := []SourceReply{}
	if err := fetchJSON(url+"/sources", &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// FetchCounters returns the daemon's monitoring counters
func FetchCounters(url string) (map[string]int64, error) {
	counters := map[string]int64{}
	if err := fetchJSON(url+"/", &counters); err != nil {
		return nil, err
	}
	return counters, nil
}

func fetchJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
