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

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrDuplicateSource means the descriptor is already registered
var ErrDuplicateSource = errors.New("time counter already registered")

// ErrEmptyRegistry means source selection ran with no registered counters
var ErrEmptyRegistry = errors.New("no time counters registered")

// Registry is the collection of registered counter descriptors.
// Membership only changes under its lock; registration order is preserved
// because source selection breaks resolution ties in favor of the counter
// registered first.
type Registry struct {
	mu      sync.Mutex
	members []*Descriptor
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a descriptor and invokes its Enable hook, giving the driver
// a chance to self-initialize. Registering the same descriptor twice is
// rejected with ErrDuplicateSource.
func (r *Registry) Add(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m == d {
			log.Warningf("time counter %q is already registered", d.Name)
			return ErrDuplicateSource
		}
	}
	r.members = append(r.members, d)
	if err := d.Counter.Enable(); err != nil {
		log.Warningf("enabling time counter %q: %v", d.Name, err)
	} else {
		d.enabled.Store(true)
	}
	log.Debugf("registered time counter %q: resolution %dns, frequency %dHz, width %d bits",
		d.Name, d.ResolutionNS, d.FrequencyHz, d.CounterBits)
	return nil
}

// Remove deletes a descriptor from the registry. Removing a descriptor that
// was never registered is a no-op. Remove does not disable the driver;
// callers must not remove the currently active source without selecting a
// new one first.
func (r *Registry) Remove(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m == d {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

// List returns the registered descriptors in registration order
func (r *Registry) List() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Descriptor, len(r.members))
	copy(out, r.members)
	return out
}

// Len returns the number of registered descriptors
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}
