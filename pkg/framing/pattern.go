// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package framing

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Element is a single pattern position: an exact byte or a wildcard that
// matches any byte. The zero value matches only 0x00; use Exact or Any.
type Element struct {
	value byte
	wild  bool
}

// Exact returns an element that matches only b.
func Exact(b byte) Element { return Element{value: b} }

// Any returns a wildcard element.
func Any() Element { return Element{wild: true} }

// Matches reports whether the element accepts b.
func (e Element) Matches(b byte) bool { return e.wild || e.value == b }

// IsWildcard reports whether the element matches any byte.
func (e Element) IsWildcard() bool { return e.wild }

// Pattern is an ordered byte pattern with optional wildcard positions, used
// for frame terminators and magic headers.
type Pattern []Element

// Bytes builds a Pattern that matches the given bytes exactly.
func Bytes(b ...byte) Pattern {
	p := make(Pattern, len(b))
	for i, v := range b {
		p[i] = Exact(v)
	}
	return p
}

// ParsePattern parses the hex notation used in config files: two-digit hex
// bytes separated by whitespace, with "??" marking a wildcard position.
// Example: "99 ?? 0D 0A".
func ParsePattern(s string) (Pattern, error) {
	fields := strings.Fields(s)
	p := make(Pattern, 0, len(fields))
	for _, f := range fields {
		if f == "??" {
			p = append(p, Any())
			continue
		}
		b, err := hex.DecodeString(f)
		if err != nil || len(b) != 1 {
			return nil, fmt.Errorf("pattern %q: %q is not a two-digit hex byte or ??", s, f)
		}
		p = append(p, Exact(b[0]))
	}
	return p, nil
}

// String renders the pattern back in ParsePattern notation.
func (p Pattern) String() string {
	var sb strings.Builder
	for i, e := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if e.wild {
			sb.WriteString("??")
		} else {
			fmt.Fprintf(&sb, "%02X", e.value)
		}
	}
	return sb.String()
}

// Literal returns the concrete bytes of a wildcard-free pattern. ok is
// false when any position is a wildcard.
func (p Pattern) Literal() ([]byte, bool) {
	out := make([]byte, len(p))
	for i, e := range p {
		if e.wild {
			return nil, false
		}
		out[i] = e.value
	}
	return out, true
}

// Find returns the index of the first occurrence of p in buf, or -1 when
// there is none. An empty pattern matches at index 0; a buffer shorter than
// the pattern never matches. The scan is a plain left-to-right walk taking
// the lowest matching index; no skip tables.
func (p Pattern) Find(buf []byte) int {
	if len(p) == 0 {
		return 0
	}
	for i := 0; i+len(p) <= len(buf); i++ {
		if p.matchAt(buf, i) {
			return i
		}
	}
	return -1
}

func (p Pattern) matchAt(buf []byte, at int) bool {
	for j := range p {
		if !p[j].Matches(buf[at+j]) {
			return false
		}
	}
	return true
}
