package filterlist

import (
	"fmt"
	"os"
	"sync"
)

// FileRuleList represents a file-based rule list.  The file is read lazily on
// the first request and its lines are kept until the list is closed.
type FileRuleList struct {
	// mu protects lines.
	mu *sync.Mutex

	// lines are the lines of the file, nil until the first read.
	lines []string

	// path is the path to the file.
	path string

	// id is the rule list ID.
	id int
}

// type check
var _ RuleList = (*FileRuleList)(nil)

// NewFileRuleList returns a new file-based rule list.  path must point to an
// existing regular file.
func NewFileRuleList(id int, path string) (l *FileRuleList, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("rule list %d: %w", id, err)
	} else if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("rule list %d: %q is not a regular file", id, path)
	}

	return &FileRuleList{
		mu:   &sync.Mutex{},
		path: path,
		id:   id,
	}, nil
}

// GetID implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) GetID() (id int) {
	return l.id
}

// Lines implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) Lines() (lines []string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lines != nil {
		return l.lines, nil
	}

	b, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("rule list %d: %w: %w", l.id, ErrSourceUnavailable, err)
	}

	l.lines = splitLines(string(b))

	return l.lines, nil
}

// RetrieveRuleText implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) RetrieveRuleText(idx int) (text string, err error) {
	lines, err := l.Lines()
	if err != nil {
		return "", err
	}

	return retrieveLine(lines, idx)
}

// Close implements the [RuleList] interface for *FileRuleList.  It frees the
// loaded lines, a later call to Lines reads the file again.
func (l *FileRuleList) Close() (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = nil

	return nil
}
