package fasthash_test

import (
	"testing"

	"github.com/AdguardTeam/dnrconverter/internal/fasthash"
	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), fasthash.String(""))
	assert.Equal(t, uint32(5381*33^'a'), fasthash.String("a"))
	assert.Equal(t, fasthash.String("||example.org^"), fasthash.String("||example.org^"))
	assert.NotEqual(t, fasthash.String("||example.org^"), fasthash.String("||example.com^"))
}

func TestSalted(t *testing.T) {
	t.Parallel()

	const text = "||example.org^$script"

	assert.Equal(t, fasthash.String(text), fasthash.Salted(text, 0))
	assert.Equal(t, fasthash.String(text+"1"), fasthash.Salted(text, 1))
	assert.Equal(t, fasthash.String(text+"42"), fasthash.Salted(text, 42))
	assert.NotEqual(t, fasthash.Salted(text, 1), fasthash.Salted(text, 2))
}
