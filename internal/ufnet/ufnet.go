// Package ufnet contains utilities for domain and hostname parsing,
// validation, and normalization.
package ufnet

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/net/idna"
)

// ErrNotDomainName is returned when a string is not a valid domain name even
// after conversion to ASCII.
const ErrNotDomainName errors.Error = "not a valid domain name"

// asciiProfile converts internationalized domain names into their ASCII form.
// Transitional processing is disabled to match what browsers send in the Host
// header.
var asciiProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.BidiRule(),
)

// IsASCII returns true if s contains only ASCII characters.
func IsASCII(s string) (ok bool) {
	for i := range len(s) {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}

// ToASCII converts domain to its lowercase ASCII (punycode) form and validates
// the result.
func ToASCII(domain string) (ascii string, err error) {
	if IsASCII(domain) {
		ascii = strings.ToLower(domain)
	} else {
		ascii, err = asciiProfile.ToASCII(domain)
		if err != nil {
			return "", fmt.Errorf("converting %q to ascii: %w", domain, err)
		}
	}

	if !IsDomainName(ascii) {
		return "", fmt.Errorf("domain %q: %w", domain, ErrNotDomainName)
	}

	return ascii, nil
}

// SplitPatternHost splits a basic rule pattern that starts with a hostname
// anchor ("||") into the hostname part and the rest of the pattern.  ok is
// false if the pattern is not anchored to a hostname.
func SplitPatternHost(pattern string) (host, rest string, ok bool) {
	const hostAnchor = "||"
	if !strings.HasPrefix(pattern, hostAnchor) {
		return "", "", false
	}

	pattern = pattern[len(hostAnchor):]
	end := strings.IndexAny(pattern, "/:^?*|")
	if end == -1 {
		return pattern, "", true
	}

	return pattern[:end], pattern[end:], true
}

// IsDomainName - check if input string is a valid domain name
// Syntax: [label.]... label.label
//
// Each label is 1 to 63 characters long, and may contain:
//
//	. ASCII letters a-z and A-Z
//	. digits 0-9
//	. hyphen ('-')
//
// . labels cannot start or end with hyphens (RFC 952)
// . max length of ascii hostname including dots is 253 characters
// . TLD is >=2 characters
// . TLD is [a-zA-Z]+ or "xn--[a-zA-Z0-9]+"
//
//nolint:gocyclo
func IsDomainName(name string) (ok bool) {
	if len(name) > 253 {
		return false
	}

	st := 0
	nLabel := 0
	nLevel := 1
	var prevChar byte
	charOnly := true
	xn := 0

	for _, c := range []byte(name) {
		switch st {
		case 0:
			fallthrough
		case 1:
			if !((c >= 'a' && c <= 'z') ||
				(c >= 'A' && c <= 'Z')) {
				charOnly = false

				if !(c >= '0' && c <= '9') {
					return false
				}
			} else if c == 'x' || c == 'X' {
				xn = 1
			}
			st = 2
			nLabel = 1

		case 2:
			if c == '.' {
				if prevChar == '-' {
					return false
				}

				nLevel++
				st = 0
				charOnly = true
				xn = 0

				continue
			}

			if nLabel == 63 {
				return false
			}

			if !((c >= 'a' && c <= 'z') ||
				(c >= 'A' && c <= 'Z')) {
				charOnly = false
				if !((c >= '0' && c <= '9') ||
					c == '-') {

					return false
				}
			}

			if xn > 0 {
				if xn < len("xn--") {
					if c == "xn--"[xn] {
						xn++
					} else {
						xn = 0
					}
				} else {
					xn++
				}
			}

			prevChar = c
			nLabel++
		}
	}

	if st != 2 ||
		nLabel == 1 ||
		(!charOnly && xn < len("xn--wwww")) {

		return false
	}

	return true
}
