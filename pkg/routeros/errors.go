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

package routeros

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrEmptyReply is the protocol's "no rows" reply. The command executor
	// turns it into an empty result; it never reaches monitoring code.
	ErrEmptyReply = errors.New("routeros: empty reply")
	// ErrTimeout means the caller stopped waiting for a reply.
	ErrTimeout = errors.New("routeros: command timed out")
	// ErrNotConnected means the pooled connection is no longer usable.
	ErrNotConnected = errors.New("routeros: not connected")
)

// Class is the error taxonomy used to decide what a failed call means for
// the connection it ran on.
type Class int

const (
	ClassNone Class = iota
	ClassEmpty
	ClassTimeout
	ClassConnectionLost
	ClassUnclassified
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassEmpty:
		return "empty"
	case ClassTimeout:
		return "timeout"
	case ClassConnectionLost:
		return "connection_lost"
	case ClassUnclassified:
		return "unclassified"
	default:
		return "unknown"
	}
}

// connectionLostMarkers are substrings the library and the OS use for a
// dead socket when no typed error is available.
//
//nolint:gochecknoglobals // read-only table
var connectionLostMarkers = []string{
	"not connected",
	"connection closed",
	"use of closed network connection",
	"connection reset",
	"broken pipe",
}

// IsConnectionLost reports whether err means the session cannot be reused.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNotConnected) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range connectionLostMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// Classify maps an error to its Class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrEmptyReply):
		return ClassEmpty
	case errors.Is(err, ErrTimeout):
		return ClassTimeout
	case IsConnectionLost(err):
		return ClassConnectionLost
	default:
		return ClassUnclassified
	}
}
