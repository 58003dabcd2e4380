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

// Package natsutil connects to NATS and publishes event envelopes to JetStream.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
)

const (
	eventSpecVersion = "1.0"
	eventSource      = "routerwatch/core"
)

var ErrStreamNameRequired = errors.New("jetstream stream name is required")

// Event is the JSON envelope written to JetStream. Field names follow
// CloudEvents so downstream workers can decode it generically.
type Event struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	Subject         string      `json:"subject"`
	DataContentType string      `json:"datacontenttype"`
	Time            time.Time   `json:"time"`
	Data            interface{} `json:"data"`
}

// EventPublisher publishes events to one JetStream stream and keeps the
// stream's subject list covering every subject it publishes on.
type EventPublisher struct {
	js       jetstream.JetStream
	stream   string
	log      logger.Logger
	mu       sync.Mutex
	subjects []string
}

// NewEventPublisher wraps an existing JetStream context.
func NewEventPublisher(js jetstream.JetStream, streamName string, subjects []string, log logger.Logger) *EventPublisher {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &EventPublisher{
		js:       js,
		stream:   streamName,
		log:      log,
		subjects: append([]string(nil), subjects...),
	}
}

// Stream returns the stream name.
func (p *EventPublisher) Stream() string {
	return p.stream
}

// Publish wraps data in an Event and publishes it on subject. A missing
// stream is created once and the publish retried.
func (p *EventPublisher) Publish(ctx context.Context, subject, eventType string, data interface{}) (*jetstream.PubAck, error) {
	event := Event{
		SpecVersion:     eventSpecVersion,
		ID:              uuid.NewString(),
		Source:          eventSource,
		Type:            eventType,
		Subject:         subject,
		DataContentType: "application/json",
		Time:            time.Now().UTC(),
		Data:            data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	ack, err := p.js.Publish(ctx, subject, payload)
	if err != nil && isStreamMissingErr(err) {
		if ensureErr := p.ensureStream(ctx, subject); ensureErr != nil {
			return nil, ensureErr
		}

		ack, err = p.js.Publish(ctx, subject, payload)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.log.Debug().
		Str("event_id", event.ID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("Published event")

	return ack, nil
}

// ensureStream creates the stream, or widens its subjects to cover subject.
func (p *EventPublisher) ensureStream(ctx context.Context, subject string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stream, err := p.js.Stream(ctx, p.stream)
	if err != nil && !isStreamMissingErr(err) {
		return fmt.Errorf("failed to look up stream %s: %w", p.stream, err)
	}

	cfg := jetstream.StreamConfig{
		Name:     p.stream,
		Subjects: p.subjects,
	}

	if stream != nil {
		cfg = stream.CachedInfo().Config
	}

	cfg.Subjects = ensureSubjectList(append([]string(nil), cfg.Subjects...), subject)

	if _, err := p.js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to create or update stream %s: %w", p.stream, err)
	}

	p.subjects = cfg.Subjects
	p.log.Info().Str("stream", p.stream).Strs("subjects", cfg.Subjects).Msg("Ensured JetStream stream")

	return nil
}

// CreateEventPublisher creates an EventPublisher for an existing connection.
// An empty domain uses the account's default JetStream domain.
func CreateEventPublisher(
	ctx context.Context,
	nc *nats.Conn,
	domain, streamName string,
	subjects []string,
	log logger.Logger,
) (*EventPublisher, error) {
	if streamName == "" {
		return nil, ErrStreamNameRequired
	}

	var (
		js  jetstream.JetStream
		err error
	)

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := NewEventPublisher(js, streamName, subjects, log)

	if _, err := js.Stream(ctx, streamName); err != nil {
		if !isStreamMissingErr(err) {
			return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
		}

		for _, subject := range subjects {
			if err := publisher.ensureStream(ctx, subject); err != nil {
				return nil, err
			}
		}
	}

	return publisher, nil
}

// ConnectWithSecurity dials NATS, adding mTLS when security mode is mtls.
func ConnectWithSecurity(
	_ context.Context,
	natsURL string,
	security *models.SecurityConfig,
	log logger.Logger,
	extraOpts ...nats.Option,
) (*nats.Conn, error) {
	if log == nil {
		log = logger.NewTestLogger()
	}

	var opts []nats.Option

	if security != nil && security.Mode == models.SecurityModeMTLS {
		tlsConf, err := TLSConfig(security)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}

// ensureSubjectList appends subject unless an existing pattern covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject applies NATS wildcard rules: "*" matches one token and a
// trailing ">" matches one or more.
func matchesSubject(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, tok := range pTokens {
		if tok == ">" {
			return i == len(pTokens)-1 && len(sTokens) > i
		}

		if i >= len(sTokens) {
			return false
		}

		if tok != "*" && tok != sTokens[i] {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}
