package xsdnorm

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves fixed bodies by URL and counts how many times each
// URL was fetched, so tests can assert cycle suppression actually
// prevents redundant downloads.
type fakeFetcher struct {
	bodies map[string][]byte
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: make(map[string][]byte), calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, int, error) {
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return nil, 404, nil
	}
	return body, 200, nil
}

const schemaA = `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="nsA">
  <import namespace="nsB" schemaLocation="http://example.test/b.xsd"/>
  <element name="rootA" type="string"/>
</schema>`

const schemaB = `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="nsB">
  <import namespace="nsA" schemaLocation="http://example.test/a.xsd"/>
  <element name="rootB" type="string"/>
</schema>`

func TestAcquisitionClosureWithCycle(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.bodies["http://example.test/b.xsd"] = []byte(schemaB)
	fetcher.bodies["http://example.test/a.xsd"] = []byte(schemaA)

	reg := NewRegistry()
	a := newAcquirer(reg, fetcher, zerolog.Nop())

	pending := PendingImports{"nsA": []string{"http://example.test/a.xsd"}}
	require.NoError(t, a.populateSchemas(context.Background(), pending))

	_, okA := reg.Elements[QName{URI: "nsA", Local: "rootA"}]
	_, okB := reg.Elements[QName{URI: "nsB", Local: "rootB"}]
	assert.True(t, okA)
	assert.True(t, okB)

	// The cycle (A imports B imports A) must not cause A's URL to be
	// fetched more than once.
	assert.Equal(t, 1, fetcher.calls["http://example.test/a.xsd"])
	assert.Equal(t, 1, fetcher.calls["http://example.test/b.xsd"])

	// A second closure over the same pending set is a no-op: nothing
	// new is fetched.
	require.NoError(t, a.populateSchemas(context.Background(), pending))
	assert.Equal(t, 1, fetcher.calls["http://example.test/a.xsd"])
}

func TestAcquisitionMismatchedSchemaLocation(t *testing.T) {
	fetcher := newFakeFetcher()
	reg := NewRegistry()
	a := newAcquirer(reg, fetcher, zerolog.Nop())

	pending := PendingImports{"nsA": []string{"http://example.test/one.xsd", "http://example.test/two.xsd"}}
	err := a.populateSchemas(context.Background(), pending)
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, CodeMismatchedSchemaLocation, schemaErr.Code)
}

func TestFindSchemaLocationHintsRejectsOddTokenCount(t *testing.T) {
	doc := []byte(`<root xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="nsA"/>`)
	p := New()
	_, err := p.FindSchemas(doc)
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, CodeInvalidSchema, schemaErr.Code)
}

func TestFindSchemaLocationHints(t *testing.T) {
	doc := []byte(`<root xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="nsA http://example.test/a.xsd nsB http://example.test/b.xsd"/>`)
	p := New()
	hints, err := p.FindSchemas(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.test/a.xsd"}, hints["nsA"])
	assert.Equal(t, []string{"http://example.test/b.xsd"}, hints["nsB"])
}

func TestParseStringMissingSchemaWhenDownloadsDisabled(t *testing.T) {
	p := New()
	doc := []byte(`<root xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="nsA http://example.test/a.xsd"/>`)
	_, err := p.ParseString(context.Background(), doc, Options{DownloadSchemas: false})
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, CodeMissingSchema, schemaErr.Code)
}
