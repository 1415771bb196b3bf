// Package doctree builds a generic tree from an XML document being
// validated, the document-side counterpart of internal/xmltree. It
// relies on encoding/xml's own namespace resolution instead of
// hand-rolling prefix bookkeeping: element names arrive with Name.Space
// already resolved to the bound URI, and explicitly prefixed attributes
// resolve the same way. Unprefixed attributes are left in no namespace,
// which is exactly the behavior the document-normalization rules (§4.G)
// assume when matching attribute QNames against a type's declared
// attribute set.
package doctree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"
)

// Node is one element of the document being validated.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*Node
	Text     string
}

// Parse decodes an XML document into a Node tree rooted at the
// document element.
func Parse(body []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("doctree: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
	if root == nil {
		return nil, fmt.Errorf("doctree: document has no root element")
	}
	return root, nil
}

// IsNamespaceDecl reports whether an attribute is an xmlns or xmlns:*
// declaration, which normalization always drops regardless of whether
// the declared type happens to have a matching attribute (§4.G step 4).
func IsNamespaceDecl(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || a.Name.Local == "xmlns"
}

// IsXSI reports whether an attribute belongs to the XML Schema
// instance namespace (xsi:type, xsi:nil, xsi:schemaLocation, ...),
// which normalization also drops unconditionally.
func IsXSI(a xml.Attr) bool {
	return a.Name.Space == "http://www.w3.org/2001/XMLSchema-instance"
}
