package xsdnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiMapAddIsIdempotent(t *testing.T) {
	m := newMultiMap()

	isNew := m.Add("ns", "a")
	assert.True(t, isNew)

	isNew = m.Add("ns", "a")
	assert.False(t, isNew)

	assert.True(t, m.Has("ns", "a"))
	assert.False(t, m.Has("ns", "b"))
	assert.Equal(t, []string{"a"}, m.Values("ns"))
}

func TestMultiMapKeysPreservesInsertionOrder(t *testing.T) {
	m := newMultiMap()
	m.Add("z", "1")
	m.Add("a", "1")
	m.Add("z", "2")

	require.Equal(t, []string{"z", "a"}, m.Keys())
	assert.Equal(t, 2, m.Len())
}

func TestMultiMapSnapshotIsACopy(t *testing.T) {
	m := newMultiMap()
	m.Add("ns", "a")

	snap := m.Snapshot()
	snap["ns"] = append(snap["ns"], "b")

	assert.Equal(t, []string{"a"}, m.Values("ns"))
}
