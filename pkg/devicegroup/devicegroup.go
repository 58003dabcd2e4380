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

// Package devicegroup collapses registry entries that point at the same
// physical router into one polling group.
package devicegroup

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/zeebo/blake3"

	"github.com/carverauto/routerwatch/pkg/models"
)

// fingerprintKey is the BLAKE3 key for credential fingerprints. Changing it
// changes every group key, which only costs one reconnect per device.
//
//nolint:gochecknoglobals // fixed hashing domain
var fingerprintKey = [32]byte{
	'r', 'o', 'u', 't', 'e', 'r', 'w', 'a', 't', 'c', 'h', '.',
	'c', 'r', 'e', 'd', 'e', 'n', 't', 'i', 'a', 'l', 's',
}

// Fingerprint returns a stable, hex-encoded keyed hash of the connection
// credentials. Fields are length-prefixed so ("ab","c") and ("a","bc") differ.
func Fingerprint(c models.Credentials) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("devicegroup: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	port := c.Port
	if port == 0 {
		port = models.DefaultAPIPort
	}

	for _, field := range []string{c.Host, strconv.Itoa(port), c.Username, c.Password} {
		var size [4]byte

		binary.BigEndian.PutUint32(size[:], uint32(len(field)))
		_, _ = hasher.Write(size[:])
		_, _ = hasher.Write([]byte(field))
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// Group partitions devices by credential fingerprint. Every device lands in
// exactly one group. Groups are ordered by their first member's position in
// the input so ticks poll devices in a stable order; an empty registry
// yields an empty, non-nil slice.
func Group(devices []models.Device) []models.DeviceGroup {
	index := make(map[string]int, len(devices))
	groups := make([]models.DeviceGroup, 0, len(devices))

	for _, d := range devices {
		key := Fingerprint(d.Credentials)

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i

			groups = append(groups, models.DeviceGroup{
				GroupKey:    key,
				Credentials: d.Credentials,
			})
		}

		groups[i].Members = append(groups[i].Members, models.DeviceRef{
			WorkspaceID: d.WorkspaceID,
			DeviceID:    d.DeviceID,
		})
	}

	for i := range groups {
		members := groups[i].Members
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].String() < members[b].String()
		})
	}

	return groups
}

// Find returns the group containing ref.
func Find(groups []models.DeviceGroup, ref models.DeviceRef) (models.DeviceGroup, bool) {
	for _, g := range groups {
		for _, m := range g.Members {
			if m == ref {
				return g, true
			}
		}
	}

	return models.DeviceGroup{}, false
}
