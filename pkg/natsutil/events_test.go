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

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
)

var errTestFixture = errors.New("fixture error")

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:    "adds subject when list empty",
			subject: "routerwatch.notifications.reconnect",
			want:    []string{"routerwatch.notifications.reconnect"},
		},
		{
			name:     "keeps list when wildcard matches",
			subjects: []string{"routerwatch.notifications.*"},
			subject:  "routerwatch.notifications.reconnect",
			want:     []string{"routerwatch.notifications.*"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"routerwatch.>"},
			subject:  "routerwatch.notifications.reconnect",
			want:     []string{"routerwatch.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"logs.syslog.*"},
			subject:  "routerwatch.notifications.alarm",
			want:     []string{"logs.syslog.*", "routerwatch.notifications.alarm"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "a.b.c", "a.b.c", true},
		{"single wildcard", "a.*.c", "a.b.c", true},
		{"greater wildcard", "a.>", "a.b.c", true},
		{"greater needs a token", "a.>", "a", false},
		{"no match length", "a.*", "a.b.c", false},
		{"pattern longer", "a.b.c.d", "a.b.c", false},
		{"no match tokens", "logs.syslog.*", "a.b.c", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats no stream response", nats.ErrNoStreamResponse, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}

func TestTLSConfigRequiresMTLS(t *testing.T) {
	t.Parallel()

	_, err := TLSConfig(nil)
	require.ErrorIs(t, err, ErrMTLSRequired)

	_, err = TLSConfig(&models.SecurityConfig{Mode: models.SecurityModeNone})
	require.ErrorIs(t, err, ErrMTLSRequired)

	_, err = TLSConfig(&models.SecurityConfig{
		Mode: models.SecurityModeMTLS,
		TLS:  models.TLSConfig{CertFile: "/missing/cert.pem", KeyFile: "/missing/key.pem"},
	})
	require.Error(t, err)
}

func TestPublisherCreatesStreamAndWidensSubjects(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded JetStream test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	srv := runJetStreamServer(t, &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	t.Cleanup(srv.Shutdown)

	nc, err := ConnectWithSecurity(ctx, srv.ClientURL(), nil, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	publisher, err := CreateEventPublisher(ctx, nc, "", "TEST_EVENTS", []string{"test.events.*"}, logger.NewTestLogger())
	require.NoError(t, err)

	ack, err := publisher.Publish(ctx, "test.events.reconnect", "reconnect", map[string]string{"user": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "TEST_EVENTS", ack.Stream)

	// Not covered by the initial subjects; the stream is widened on demand.
	ack, err = publisher.Publish(ctx, "other.alarm", "alarm", map[string]int{"cpu": 95})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ack.Sequence)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, "TEST_EVENTS")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"test.events.*", "other.alarm"}, stream.CachedInfo().Config.Subjects)

	msg, err := stream.GetMsg(ctx, 1)
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, "reconnect", event.Type)
	assert.Equal(t, "test.events.reconnect", event.Subject)
	assert.NotEmpty(t, event.ID)
}

func runJetStreamServer(t *testing.T, opts *server.Options) *server.Server {
	t.Helper()

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	return srv
}
