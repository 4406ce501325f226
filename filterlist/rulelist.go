// Package filterlist provides access to the contents of filter lists: raw
// lines, rules by their index, and a scanner that parses network rules.
package filterlist

import (
	"io"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrRuleRetrieval signals that the rule cannot be retrieved by the
	// specified index.
	ErrRuleRetrieval errors.Error = "cannot retrieve the rule"

	// ErrSourceUnavailable signals that the contents of the rule list cannot
	// be loaded.
	ErrSourceUnavailable errors.Error = "rule list source is unavailable"
)

// RuleList represents a set of filtering rules.
type RuleList interface {
	// GetID returns the rule list identifier.
	GetID() (id int)

	// Lines returns the lines of the list.  It returns an error wrapping
	// [ErrSourceUnavailable] if the contents cannot be loaded.
	Lines() (lines []string, err error)

	// RetrieveRuleText returns the trimmed text of the line with the
	// specified 0-based index.
	RetrieveRuleText(idx int) (text string, err error)

	// Closer closes the resources associated with the list.
	io.Closer
}

// splitLines splits text into lines removing the trailing carriage returns.
func splitLines(text string) (lines []string) {
	if text == "" {
		return []string{}
	}

	lines = strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}

	return lines
}

// retrieveLine returns the trimmed line from lines by its index.
func retrieveLine(lines []string, idx int) (text string, err error) {
	if idx < 0 || idx >= len(lines) {
		return "", ErrRuleRetrieval
	}

	text = strings.TrimSpace(lines[idx])
	if text == "" {
		return "", ErrRuleRetrieval
	}

	return text, nil
}
