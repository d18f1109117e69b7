// Package heuristic judges whether a probe's sample looks like coherent text,
// the way a human watching a terminal would.
//
// At the right framing a talkative device produces text that decodes cleanly
// and prints. At the wrong baud rate or parity the sample is either silence,
// byte sequences that do not survive a decode/encode round trip, or control
// character noise.
package heuristic

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	xunicode "golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is the encoding used when none is configured
const DefaultEncoding = "utf-8"

// Checker classifies samples under one target encoding
type Checker struct {
	name     string
	encoding encoding.Encoding
}

// New returns a Checker for an IANA charset name such as "utf-8" or
// "iso-8859-1". An empty name selects DefaultEncoding.
func New(name string) (*Checker, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultEncoding
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}

	return &Checker{name: name, encoding: enc}, nil
}

// UTF8 returns a Checker for UTF-8
func UTF8() *Checker {
	return &Checker{name: DefaultEncoding, encoding: xunicode.UTF8}
}

// Name returns the configured encoding name
func (c *Checker) Name() string {
	return c.name
}

// Decode converts raw to text. Undecodable sequences become U+FFFD; Decode
// never fails.
func (c *Checker) Decode(raw []byte) string {
	out, err := c.encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(unicode.ReplacementChar))
	}
	return string(out)
}

// Accept reports whether text, decoded from raw, is a credible reply:
// it must re-encode to exactly raw, be non-empty, and contain only printable
// characters (TAB, CR and LF allowed).
func (c *Checker) Accept(raw []byte, text string) bool {
	if text == "" {
		return false
	}

	encoded, err := c.encoding.NewEncoder().Bytes([]byte(text))
	if err != nil || !bytes.Equal(encoded, raw) {
		return false
	}

	return Printable(text)
}

// Printable reports whether every rune of text is printable. TAB, CR and LF
// count as printable since line-oriented devices end every message with them.
func Printable(text string) bool {
	for _, r := range text {
		if r == '\t' || r == '\r' || r == '\n' {
			continue
		}
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// Accept applies the UTF-8 checker
func Accept(raw []byte, text string) bool {
	return UTF8().Accept(raw, text)
}
