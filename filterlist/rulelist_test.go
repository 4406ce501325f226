package filterlist_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AdguardTeam/dnrconverter/filterlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRulesText is the common text of the rule lists in tests.
const testRulesText = "||example.org\r\n! test\n\n##banner\n  ||example.com^$script  "

func TestStringRuleList(t *testing.T) {
	t.Parallel()

	l := &filterlist.StringRuleList{
		ID:        1,
		RulesText: testRulesText,
	}
	t.Cleanup(func() { require.NoError(t, l.Close()) })

	assert.Equal(t, 1, l.GetID())

	lines, err := l.Lines()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"||example.org",
		"! test",
		"",
		"##banner",
		"  ||example.com^$script  ",
	}, lines)

	text, err := l.RetrieveRuleText(4)
	require.NoError(t, err)

	assert.Equal(t, "||example.com^$script", text)

	_, err = l.RetrieveRuleText(2)
	assert.ErrorIs(t, err, filterlist.ErrRuleRetrieval)

	_, err = l.RetrieveRuleText(5)
	assert.ErrorIs(t, err, filterlist.ErrRuleRetrieval)

	_, err = l.RetrieveRuleText(-1)
	assert.ErrorIs(t, err, filterlist.ErrRuleRetrieval)
}

func TestFileRuleList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "filter.txt")
	err := os.WriteFile(path, []byte(testRulesText), 0o600)
	require.NoError(t, err)

	l, err := filterlist.NewFileRuleList(2, path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, l.Close()) })

	assert.Equal(t, 2, l.GetID())

	text, err := l.RetrieveRuleText(0)
	require.NoError(t, err)

	assert.Equal(t, "||example.org", text)

	lines, err := l.Lines()
	require.NoError(t, err)

	assert.Len(t, lines, 5)

	t.Run("removed", func(t *testing.T) {
		removedPath := filepath.Join(t.TempDir(), "removed.txt")
		err = os.WriteFile(removedPath, []byte(testRulesText), 0o600)
		require.NoError(t, err)

		removed, err := filterlist.NewFileRuleList(3, removedPath)
		require.NoError(t, err)

		err = os.Remove(removedPath)
		require.NoError(t, err)

		_, err = removed.Lines()
		assert.ErrorIs(t, err, filterlist.ErrSourceUnavailable)
	})

	t.Run("not_exist", func(t *testing.T) {
		_, err = filterlist.NewFileRuleList(4, filepath.Join(t.TempDir(), "none.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("dir", func(t *testing.T) {
		_, err = filterlist.NewFileRuleList(5, t.TempDir())
		assert.Error(t, err)
	})
}
