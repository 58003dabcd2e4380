/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

// Pair is one attribute word of a protocol reply sentence.
type Pair struct {
	Key   string
	Value string
}

// Row is one reply sentence; attribute order is preserved.
type Row []Pair

// Get returns the value for key, or "" when absent.
func (r Row) Get(key string) string {
	for _, p := range r {
		if p.Key == key {
			return p.Value
		}
	}

	return ""
}

// Map flattens the row; later duplicates win.
func (r Row) Map() map[string]string {
	out := make(map[string]string, len(r))
	for _, p := range r {
		out[p.Key] = p.Value
	}

	return out
}
