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

// Package routeros is the device protocol boundary: a Session issues one
// API sentence at a time against a RouterOS router.
package routeros

//go:generate mockgen -destination=mock_routeros.go -package=routeros github.com/carverauto/routerwatch/pkg/routeros Session,Dialer

import (
	"context"
	"fmt"
	"strings"
	"time"

	ros "github.com/go-routeros/routeros/v3"

	"github.com/carverauto/routerwatch/pkg/models"
)

// Session is a single stateful request/response channel to a router.
// Run must not be called concurrently; callers serialize access.
type Session interface {
	Run(args []string) ([]models.Row, error)
	Close() error
}

// Dialer opens sessions. The pool owns the returned session.
type Dialer interface {
	Dial(ctx context.Context, creds models.Credentials) (Session, error)
}

const defaultDialTimeout = 10 * time.Second

// APIDialer dials the plain RouterOS API with go-routeros.
type APIDialer struct {
	Timeout time.Duration
}

// NewDialer returns an APIDialer using timeout for the TCP connect and login.
func NewDialer(timeout time.Duration) *APIDialer {
	return &APIDialer{Timeout: timeout}
}

// Dial connects and logs in. The context deadline, when earlier, shortens
// the configured timeout.
func (d *APIDialer) Dial(ctx context.Context, creds models.Credentials) (Session, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := ros.DialTimeout(creds.Address(), creds.Username, creds.Password, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", creds.Address(), err)
	}

	return &apiSession{client: c}, nil
}

type apiSession struct {
	client *ros.Client
}

func (s *apiSession) Run(args []string) ([]models.Row, error) {
	reply, err := s.client.RunArgs(args)
	if err != nil {
		if isEmptyReply(err) {
			return nil, ErrEmptyReply
		}

		return nil, err
	}

	rows := make([]models.Row, 0, len(reply.Re))

	for _, sentence := range reply.Re {
		row := make(models.Row, 0, len(sentence.List))

		for _, pair := range sentence.List {
			row = append(row, models.Pair{Key: pair.Key, Value: pair.Value})
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func (s *apiSession) Close() error {
	s.client.Close()

	return nil
}

// isEmptyReply matches the "!empty" reply word RouterOS 7 sends for
// print commands with no rows. Older library versions surface it as an
// unknown-reply error.
func isEmptyReply(err error) bool {
	return strings.Contains(err.Error(), "!empty")
}
