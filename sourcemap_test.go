package dnrconverter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceMap(t *testing.T) {
	t.Parallel()

	srcA := Source{FilterID: 1, Index: 0}
	srcB := Source{FilterID: 1, Index: 5}
	srcC := Source{FilterID: 2, Index: 5}

	sm := newSourceMap()
	sm.add(10, srcA)
	sm.add(10, srcB)
	sm.add(11, srcC)
	sm.add(12, srcC)

	assert.Equal(t, []Source{srcA, srcB}, sm.Sources(10))
	assert.Equal(t, []int{11, 12}, sm.RuleIDs(srcC))
	assert.Empty(t, sm.Sources(13))
	assert.Equal(t, 4, sm.Len())

	b, err := json.Marshal(sm)
	require.NoError(t, err)

	assert.JSONEq(t, `[[10,0,1],[10,5,1],[11,5,2],[12,5,2]]`, string(b))

	decoded := newSourceMap()
	err = json.Unmarshal(b, decoded)
	require.NoError(t, err)

	assert.Equal(t, sm, decoded)
}

func TestRulesHashMap(t *testing.T) {
	t.Parallel()

	srcA := Source{FilterID: 1, Index: 0}
	srcB := Source{FilterID: 2, Index: 3}

	m := newRulesHashMap()
	m.add(42, srcA)
	m.add(42, srcB)
	m.add(1<<63, srcB)

	s, err := m.Serialize()
	require.NoError(t, err)

	decoded, err := DeserializeRulesHashMap(s)
	require.NoError(t, err)

	assert.Equal(t, m, decoded)
	assert.Equal(t, []Source{srcA, srcB}, decoded.Lookup(42))
	assert.Equal(t, 2, decoded.Len())
	assert.Empty(t, decoded.Lookup(7))

	_, err = DeserializeRulesHashMap(`{"zz!":[1,2]}`)
	assert.Error(t, err)

	_, err = DeserializeRulesHashMap(`{"a":[1]}`)
	assert.Error(t, err)
}
