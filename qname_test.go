package xsdnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQNameString(t *testing.T) {
	assert.Equal(t, "local", QName{Local: "local"}.String())
	assert.Equal(t, "urn:x|local", QName{URI: "urn:x", Local: "local"}.String())
}

func TestQNameIsZero(t *testing.T) {
	assert.True(t, QName{}.IsZero())
	assert.False(t, QName{Local: "a"}.IsZero())
}

func TestSplitPrefixed(t *testing.T) {
	prefix, local := splitPrefixed("xs:string")
	assert.Equal(t, "xs", prefix)
	assert.Equal(t, "string", local)

	prefix, local = splitPrefixed("string")
	assert.Equal(t, "", prefix)
	assert.Equal(t, "string", local)
}

func TestNamespaceTableBindAndLookup(t *testing.T) {
	nt := NewNamespaceTable()

	require.NoError(t, nt.Bind("urn:a", "a"))
	prefix, ok := nt.Prefix("urn:a")
	require.True(t, ok)
	assert.Equal(t, "a", prefix)

	uri, ok := nt.URI("a")
	require.True(t, ok)
	assert.Equal(t, "urn:a", uri)

	// Rebinding the same pair is a no-op, not a conflict.
	require.NoError(t, nt.Bind("urn:a", "a"))
}

func TestNamespaceTableConflict(t *testing.T) {
	nt := NewNamespaceTable()
	require.NoError(t, nt.Bind("urn:a", "a"))

	err := nt.Bind("urn:a", "b")
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, CodeNamespaceConflict, schemaErr.Code)

	err = nt.Bind("urn:b", "a")
	require.Error(t, err)
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, CodeNamespaceConflict, schemaErr.Code)
}

func TestNamespaceTablePreseedsXML(t *testing.T) {
	nt := NewNamespaceTable()
	uri, ok := nt.URI("xml")
	require.True(t, ok)
	assert.Equal(t, xmlNamespace, uri)
}

func TestQualifiedPath(t *testing.T) {
	nt := NewNamespaceTable()
	require.NoError(t, nt.Bind("urn:a", "a"))

	path := nt.QualifiedPath([]QName{{Local: "root"}, {URI: "urn:a", Local: "child"}})
	assert.Equal(t, "/root/a:child", path)
}
