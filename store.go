// Copyright 2024 Terminos Storage Protocol
// This file is part of the tos library.
//
// The tos library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tos library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tos library. If not, see <http://www.gnu.org/licenses/>.

package dhtring

// Store is a plain key/value map confined to the dispatcher task. Since the
// protocol runs a single cooperative receive loop rather than concurrent
// listener goroutines, no locking is needed at all.
type Store struct {
	values map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the value for k and whether it is present.
func (s *Store) Get(k string) (string, bool) {
	v, ok := s.values[k]
	return v, ok
}

// Put inserts or overwrites k with v.
func (s *Store) Put(k, v string) {
	s.values[k] = v
}

// Remove deletes k, if present.
func (s *Store) Remove(k string) {
	delete(s.values, k)
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	return len(s.values)
}

// Iterate visits every (key, value) pair. The callback must not mutate the
// store; this is only ever called from the dispatcher's own goroutine.
func (s *Store) Iterate(fn func(key, value string)) {
	for k, v := range s.values {
		fn(k, v)
	}
}

// Keys returns a snapshot of the stored keys.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}
