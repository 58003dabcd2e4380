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

package devicegroup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/routerwatch/pkg/models"
)

func device(ws, id, host string, port int, user, pass string) models.Device {
	return models.Device{
		DeviceID:    id,
		WorkspaceID: ws,
		Credentials: models.Credentials{Host: host, Port: port, Username: user, Password: pass},
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	base := models.Credentials{Host: "10.0.0.1", Port: 8728, Username: "admin", Password: "secret"}

	tests := []struct {
		name  string
		other models.Credentials
		same  bool
	}{
		{"identical", base, true},
		{"default port", models.Credentials{Host: "10.0.0.1", Username: "admin", Password: "secret"}, true},
		{"different password", models.Credentials{Host: "10.0.0.1", Port: 8728, Username: "admin", Password: "other"}, false},
		{"different port", models.Credentials{Host: "10.0.0.1", Port: 8729, Username: "admin", Password: "secret"}, false},
		{"shifted boundary", models.Credentials{Host: "10.0.0.1", Port: 8728, Username: "admins", Password: "ecret"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.same, Fingerprint(base) == Fingerprint(tc.other))
		})
	}
}

func TestFingerprintDoesNotLeakPassword(t *testing.T) {
	t.Parallel()

	fp := Fingerprint(models.Credentials{Host: "r1", Username: "admin", Password: "hunter2"})

	assert.Len(t, fp, 64)
	assert.NotContains(t, fp, "hunter2")
}

func TestGroupSharesPhysicalDeviceAcrossWorkspaces(t *testing.T) {
	t.Parallel()

	groups := Group([]models.Device{
		device("ws-b", "dev-2", "10.0.0.1", 8728, "admin", "pw"),
		device("ws-a", "dev-1", "10.0.0.1", 8728, "admin", "pw"),
		device("ws-a", "dev-3", "10.0.0.2", 8728, "admin", "pw"),
	})

	require.Len(t, groups, 2)
	assert.Equal(t, []models.DeviceRef{
		{WorkspaceID: "ws-a", DeviceID: "dev-1"},
		{WorkspaceID: "ws-b", DeviceID: "dev-2"},
	}, groups[0].Members)
	assert.Equal(t, []string{"ws-a", "ws-b"}, groups[0].WorkspaceIDs())
	assert.Equal(t, "10.0.0.1", groups[0].Credentials.Host)
	assert.Len(t, groups[1].Members, 1)
	assert.NotEqual(t, groups[0].GroupKey, groups[1].GroupKey)
}

func TestGroupEveryDeviceInExactlyOneGroup(t *testing.T) {
	t.Parallel()

	devices := []models.Device{
		device("ws-a", "d1", "h1", 0, "u", "p"),
		device("ws-b", "d2", "h1", 0, "u", "p"),
		device("ws-c", "d3", "h2", 0, "u", "p"),
		device("ws-a", "d4", "h2", 0, "u", "p2"),
	}

	seen := make(map[models.DeviceRef]int)

	for _, g := range Group(devices) {
		for _, m := range g.Members {
			seen[m]++
		}
	}

	assert.Len(t, seen, len(devices))

	for ref, n := range seen {
		assert.Equal(t, 1, n, ref.String())
	}
}

func TestGroupEmptyRegistry(t *testing.T) {
	t.Parallel()

	groups := Group(nil)
	require.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestFind(t *testing.T) {
	t.Parallel()

	groups := Group([]models.Device{device("ws-a", "d1", "h1", 0, "u", "p")})

	g, ok := Find(groups, models.DeviceRef{WorkspaceID: "ws-a", DeviceID: "d1"})
	require.True(t, ok)
	assert.Equal(t, groups[0].GroupKey, g.GroupKey)

	_, ok = Find(groups, models.DeviceRef{WorkspaceID: "ws-a", DeviceID: "missing"})
	assert.False(t, ok)
}
