package xsdnorm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParserWithSchema(t *testing.T, namespace, xsd string) *Parser {
	t.Helper()
	p := New()
	_, err := p.AddSchema(namespace, []byte(xsd))
	require.NoError(t, err)
	return p
}

func TestScenarioSimpleTypedLeaf(t *testing.T) {
	p := newParserWithSchema(t, "ns", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="ns">
  <element name="amount" type="decimal"/>
</schema>`)

	result, err := p.ParseString(context.Background(), []byte(`<n:amount xmlns:n="ns">3.14</n:amount>`), Options{})
	require.NoError(t, err)

	obj, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 3.14, obj["amount"], 0.0001)
}

func TestScenarioArrayCollapse(t *testing.T) {
	p := newParserWithSchema(t, "", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema">
  <element name="basket">
    <complexType>
      <sequence maxOccurs="3">
        <element name="item" type="integer"/>
      </sequence>
    </complexType>
  </element>
</schema>`)

	result, err := p.ParseString(context.Background(), []byte(`<basket><item>1</item></basket>`), Options{})
	require.NoError(t, err)

	obj := result.(map[string]interface{})["basket"].(map[string]interface{})
	assert.Equal(t, int64(1), obj["item"])
}

func TestScenarioArrayCollapseWithMultipleOccurrences(t *testing.T) {
	p := newParserWithSchema(t, "", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema">
  <element name="basket">
    <complexType>
      <sequence maxOccurs="3">
        <element name="item" type="integer"/>
      </sequence>
    </complexType>
  </element>
</schema>`)

	result, err := p.ParseString(context.Background(), []byte(`<basket><item>1</item><item>2</item></basket>`), Options{})
	require.NoError(t, err)

	obj := result.(map[string]interface{})["basket"].(map[string]interface{})
	assert.Equal(t, []interface{}{int64(1), int64(2)}, obj["item"])
}

func TestScenarioUnionSimpleType(t *testing.T) {
	p := newParserWithSchema(t, "", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema">
  <element name="code">
    <simpleType>
      <union memberTypes="int string"/>
    </simpleType>
  </element>
</schema>`)

	result, err := p.ParseString(context.Background(), []byte(`<code>42</code>`), Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.(map[string]interface{})["code"])

	result, err = p.ParseString(context.Background(), []byte(`<code>forty-two</code>`), Options{})
	require.NoError(t, err)
	assert.Equal(t, "forty-two", result.(map[string]interface{})["code"])
}

func TestScenarioBooleanDecoding(t *testing.T) {
	p := newParserWithSchema(t, "", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema">
  <element name="flag" type="boolean"/>
</schema>`)

	result, err := p.ParseString(context.Background(), []byte(`<flag>1</flag>`), Options{})
	require.NoError(t, err)
	assert.Equal(t, true, result.(map[string]interface{})["flag"])

	result, err = p.ParseString(context.Background(), []byte(`<flag>false</flag>`), Options{})
	require.NoError(t, err)
	assert.Equal(t, false, result.(map[string]interface{})["flag"])

	_, err = p.ParseString(context.Background(), []byte(`<flag>maybe</flag>`), Options{})
	require.Error(t, err)
	var coerceErr *CoercionError
	require.ErrorAs(t, err, &coerceErr)
}

func TestScenarioSimpleContentExtensionOfBuiltinWithAttribute(t *testing.T) {
	p := newParserWithSchema(t, "", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema">
  <element name="amount">
    <complexType>
      <simpleContent>
        <extension base="decimal">
          <attribute name="currency" type="string"/>
        </extension>
      </simpleContent>
    </complexType>
  </element>
</schema>`)

	result, err := p.ParseString(context.Background(), []byte(`<amount currency="USD">12.50</amount>`), Options{})
	require.NoError(t, err)

	obj := result.(map[string]interface{})["amount"].(map[string]interface{})
	assert.Equal(t, "USD", obj["@currency"])
	assert.InDelta(t, 12.50, obj["#text"], 0.0001)
}

func TestScenarioAttributeNamespacingAndFiltering(t *testing.T) {
	p := newParserWithSchema(t, "ns", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="ns">
  <element name="widget">
    <complexType>
      <attribute name="kind" type="string" form="qualified"/>
    </complexType>
  </element>
</schema>`)

	doc := `<w:widget xmlns:w="ns" xmlns:x="ns" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="widgetType" x:kind="y"/>`
	result, err := p.ParseString(context.Background(), []byte(doc), Options{})
	require.NoError(t, err)

	obj := result.(map[string]interface{})["widget"].(map[string]interface{})
	assert.Equal(t, "y", obj["@kind"])
	assert.Len(t, obj, 1)
}

func TestScenarioAttributeNamespacingWithOutputNamespace(t *testing.T) {
	p := newParserWithSchema(t, "ns", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" xmlns:w="ns" targetNamespace="ns">
  <element name="widget">
    <complexType>
      <attribute name="kind" type="string" form="qualified"/>
    </complexType>
  </element>
</schema>`)

	doc := `<w:widget xmlns:w="ns" x:kind="y" xmlns:x="ns"/>`
	result, err := p.ParseString(context.Background(), []byte(doc), Options{OutputWithNamespace: true})
	require.NoError(t, err)

	obj := result.(map[string]interface{})["w:widget"].(map[string]interface{})
	assert.Equal(t, "y", obj["@w:kind"])
}

func TestScenarioUnexpectedAttributeIsRejected(t *testing.T) {
	p := newParserWithSchema(t, "", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema">
  <element name="widget" type="string"/>
</schema>`)

	_, err := p.ParseString(context.Background(), []byte(`<widget extra="y">hello</widget>`), Options{})
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, CodeUnexpectedAttribute, valErr.Code)
}

func TestScenarioUnknownRootElement(t *testing.T) {
	p := newParserWithSchema(t, "", `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema">
  <element name="widget" type="string"/>
</schema>`)

	_, err := p.ParseString(context.Background(), []byte(`<gadget>hello</gadget>`), Options{})
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, CodeUnknownElement, valErr.Code)
}
