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

package db

import "strings"

// splitSQLStatements splits a migration file on top-level semicolons.
// Semicolons inside quotes, comments and dollar-quoted bodies are kept.
func splitSQLStatements(content string) []string {
	s := &sqlSplitter{src: content}

	return s.split()
}

type sqlSplitter struct {
	src  string
	pos  int
	cur  strings.Builder
	out  []string
	quot byte   // active ' or " quote
	tag  string // active $tag$
}

func (s *sqlSplitter) split() []string {
	for s.pos < len(s.src) {
		switch {
		case s.tag != "":
			s.consumeDollarBody()
		case s.quot != 0:
			s.consumeQuoted()
		case s.hasPrefix("--"):
			s.skipLineComment()
		case s.hasPrefix("/*"):
			s.skipBlockComment()
		default:
			s.consumePlain()
		}
	}

	s.flush()

	return s.out
}

func (s *sqlSplitter) hasPrefix(p string) bool {
	return strings.HasPrefix(s.src[s.pos:], p)
}

func (s *sqlSplitter) consumePlain() {
	ch := s.src[s.pos]

	switch ch {
	case ';':
		s.flush()
		s.pos++

		return
	case '\'', '"':
		s.quot = ch
	case '$':
		if tag := dollarTag(s.src[s.pos:]); tag != "" {
			s.tag = tag
			s.cur.WriteString(tag)
			s.pos += len(tag)

			return
		}
	}

	s.cur.WriteByte(ch)
	s.pos++
}

func (s *sqlSplitter) consumeQuoted() {
	ch := s.src[s.pos]
	if ch == s.quot {
		s.quot = 0
	}

	s.cur.WriteByte(ch)
	s.pos++
}

func (s *sqlSplitter) consumeDollarBody() {
	if s.hasPrefix(s.tag) {
		s.cur.WriteString(s.tag)
		s.pos += len(s.tag)
		s.tag = ""

		return
	}

	s.cur.WriteByte(s.src[s.pos])
	s.pos++
}

func (s *sqlSplitter) skipLineComment() {
	end := strings.IndexByte(s.src[s.pos:], '\n')
	if end < 0 {
		s.pos = len(s.src)

		return
	}

	s.pos += end
}

func (s *sqlSplitter) skipBlockComment() {
	end := strings.Index(s.src[s.pos+2:], "*/")
	if end < 0 {
		s.pos = len(s.src)

		return
	}

	s.pos += end + 4
}

func (s *sqlSplitter) flush() {
	if stmt := strings.TrimSpace(s.cur.String()); stmt != "" {
		s.out = append(s.out, stmt)
	}

	s.cur.Reset()
}

// dollarTag returns the $tag$ opening at the start of src, or "".
func dollarTag(src string) string {
	for i := 1; i < len(src); i++ {
		ch := src[i]

		switch {
		case ch == '$':
			return src[:i+1]
		case ch == '_', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9' && i > 1:
		default:
			return ""
		}
	}

	return ""
}
