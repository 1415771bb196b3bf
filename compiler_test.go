package xsdnorm

import (
	"testing"

	"github.com/kratylos/xsdnorm/internal/xmltree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nsURI = "urn:amounts"

func compileOne(t *testing.T, xsd string) *Registry {
	t.Helper()
	reg := NewRegistry()
	root, err := xmltree.Parse([]byte(xsd))
	require.NoError(t, err)
	c := newCompiler(reg)
	_, err = c.CompileSchema(root, nsURI)
	require.NoError(t, err)
	return reg
}

func TestCompileSimpleTypedElement(t *testing.T) {
	reg := compileOne(t, `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="`+nsURI+`">
  <element name="amount" type="decimal"/>
</schema>`)

	entry, ok := reg.Elements[QName{URI: nsURI, Local: "amount"}]
	require.True(t, ok)
	assert.Equal(t, QName{Local: "decimal"}, entry.Type)
}

func TestCompileComplexTypeWithArrayChild(t *testing.T) {
	reg := compileOne(t, `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="`+nsURI+`">
  <element name="basket">
    <complexType>
      <sequence maxOccurs="3">
        <element name="item" type="integer"/>
      </sequence>
    </complexType>
  </element>
</schema>`)

	basketType, ok := reg.Elements[QName{URI: nsURI, Local: "basket"}]
	require.True(t, ok)
	entry, ok := reg.Types[basketType.Type]
	require.True(t, ok)
	require.Equal(t, kindComplex, entry.Kind)

	spec, ok := entry.Complex.Children[QName{URI: nsURI, Local: "item"}]
	require.True(t, ok)
	assert.True(t, spec.resolvedIsArray())
}

func TestCompileUnionSimpleType(t *testing.T) {
	reg := compileOne(t, `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="`+nsURI+`">
  <simpleType name="code">
    <union memberTypes="int string"/>
  </simpleType>
</schema>`)

	entry, ok := reg.Types[QName{URI: nsURI, Local: "code"}]
	require.True(t, ok)
	require.Equal(t, kindSimple, entry.Kind)
	require.Len(t, entry.Simple.Bases, 2)

	parsers, err := resolveToParse(reg, QName{URI: nsURI, Local: "code"})
	require.NoError(t, err)
	require.Len(t, parsers, 2)
}

func TestCompileAnyChildrenArity(t *testing.T) {
	reg := compileOne(t, `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="`+nsURI+`">
  <element name="bag">
    <complexType>
      <sequence maxOccurs="unbounded">
        <any/>
      </sequence>
    </complexType>
  </element>
</schema>`)

	bagElem := reg.Elements[QName{URI: nsURI, Local: "bag"}]
	entry := reg.Types[bagElem.Type]
	assert.True(t, entry.Complex.AnyChildren)
	assert.True(t, entry.Complex.AnyIsArray)
}

func TestCompileRejectsUnsupportedConstruct(t *testing.T) {
	reg := NewRegistry()
	root, err := xmltree.Parse([]byte(`<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="`+nsURI+`">
  <element name="weird" unknownAttribute="x"/>
</schema>`))
	require.NoError(t, err)
	c := newCompiler(reg)
	_, err = c.CompileSchema(root, nsURI)
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, CodeUnsupportedSchema, schemaErr.Code)
	assert.Contains(t, schemaErr.Residual, "unknownAttribute")
}

func TestResolveTypeThroughBuiltinSimpleContentBase(t *testing.T) {
	reg := compileOne(t, `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="`+nsURI+`">
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

	amountElem, ok := reg.Elements[QName{URI: nsURI, Local: "amount"}]
	require.True(t, ok)

	entries, err := resolveType(reg, amountElem.Type)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Attributes, QName{Local: "currency"})

	parsers, err := resolveToParse(reg, amountElem.Type)
	require.NoError(t, err)
	require.Len(t, parsers, 1)
}

func TestCompileComplexContentExtension(t *testing.T) {
	reg := compileOne(t, `<?xml version="1.0"?>
<schema xmlns="http://www.w3.org/2001/XMLSchema" xmlns:tns="`+nsURI+`" targetNamespace="`+nsURI+`">
  <complexType name="base">
    <sequence>
      <element name="name" type="string"/>
    </sequence>
  </complexType>
  <complexType name="derived">
    <complexContent>
      <extension base="tns:base">
        <sequence>
          <element name="age" type="integer"/>
        </sequence>
      </extension>
    </complexContent>
  </complexType>
</schema>`)

	derived, ok := reg.Types[QName{URI: nsURI, Local: "derived"}]
	require.True(t, ok)
	assert.True(t, derived.Complex.BaseSet)
	assert.Equal(t, QName{URI: nsURI, Local: "base"}, derived.Complex.Base)

	entries, err := resolveType(reg, QName{URI: nsURI, Local: "derived"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
