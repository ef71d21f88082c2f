// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package live

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Status is the last value of each stream status key, in the order the
// keys were first set.
type Status struct {
	Keys       []string
	StringData map[string]string

	sync.RWMutex
}

func (s *Status) SetString(key, value string) {
	s.Lock()
	defer s.Unlock()

	if s.StringData == nil {
		s.StringData = make(map[string]string)
	}
	if _, ok := s.StringData[key]; !ok {
		s.Keys = append(s.Keys, key)
	}
	s.StringData[key] = value
}

func (s *Status) Get(key string) string {
	s.RLock()
	defer s.RUnlock()
	return s.StringData[key]
}

type statusEntry struct {
	Key   string
	Value string
}

// ServeHTTP writes the status as an ordered JSON list.
func (s *Status) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.RLock()
	entries := make([]statusEntry, len(s.Keys))
	for i, key := range s.Keys {
		entries[i] = statusEntry{Key: key, Value: s.StringData[key]}
	}
	s.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Statuses collects the status of every stream served by a monitor.
type Statuses struct {
	streams map[string]*Status
	sync.Mutex
}

// Stream returns the status of the named stream, creating it if needed.
func (s *Statuses) Stream(name string) *Status {
	s.Lock()
	defer s.Unlock()

	if s.streams == nil {
		s.streams = make(map[string]*Status)
	}
	status := s.streams[name]
	if status == nil {
		status = &Status{}
		s.streams[name] = status
	}
	return status
}

// ServeHTTP serves /status/<stream>.
func (s *Statuses) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path
	for len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}

	s.Lock()
	status := s.streams[name]
	s.Unlock()
	if status == nil {
		http.NotFound(w, r)
		return
	}
	status.ServeHTTP(w, r)
}
