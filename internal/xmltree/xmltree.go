// Package xmltree builds a generic, order-preserving tree of XML
// elements from a byte stream. It is the schema-side counterpart of
// the teacher repository's own xml_parser.go/libxml.go Node builder,
// adapted to also track, per element, which attributes and children
// have been "consumed" by a caller — the destructive-compilation
// bookkeeping the XSD compiler uses to detect unsupported schema
// constructs (residual nodes left over after compilation).
package xmltree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Node is one element in the generic tree: its qualified name, its
// attributes, its ordered children, and any direct character data.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*Node
	Text     string

	consumedAttrs map[int]bool
	consumedKids  map[int]bool
}

// Parse decodes an XML document into a Node tree rooted at the
// document element. Non-UTF-8 encodings declared in the XML
// declaration (common in older SOAP/metadata-harvesting feeds) are
// transcoded via golang.org/x/net/html/charset.
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
			return nil, fmt.Errorf("xmltree: %w", err)
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
		return nil, fmt.Errorf("xmltree: document has no root element")
	}
	return root, nil
}

// Attr returns the value of the first unconsumed attribute with the
// given local name (namespace-blind, matching the teacher's
// attribute-lookup convention) and marks it consumed. ok is false if
// no such attribute exists.
func (n *Node) Attr(local string) (value string, ok bool) {
	for i, a := range n.Attrs {
		if n.consumedAttrs != nil && n.consumedAttrs[i] {
			continue
		}
		if a.Name.Local == local {
			if n.consumedAttrs == nil {
				n.consumedAttrs = make(map[int]bool)
			}
			n.consumedAttrs[i] = true
			return a.Value, true
		}
	}
	return "", false
}

// RawAttrs returns every attribute, without marking anything
// consumed — used for prefix discovery, which reads xmlns:* here and
// then marks each declaration consumed with ConsumeAttr, so namespace
// declarations never count as residual.
func (n *Node) RawAttrs() []xml.Attr { return n.Attrs }

// ConsumeAttr marks the i-th attribute (by position in Attrs) as
// consumed, used when a caller has already inspected RawAttrs
// directly (e.g. xmlns:* handling).
func (n *Node) ConsumeAttr(i int) {
	if n.consumedAttrs == nil {
		n.consumedAttrs = make(map[int]bool)
	}
	n.consumedAttrs[i] = true
}

// ChildrenByLocal returns every unconsumed child element with the
// given local name, in document order, and marks them consumed.
func (n *Node) ChildrenByLocal(local string) []*Node {
	var out []*Node
	for i, c := range n.Children {
		if n.consumedKids != nil && n.consumedKids[i] {
			continue
		}
		if c.Name.Local == local {
			if n.consumedKids == nil {
				n.consumedKids = make(map[int]bool)
			}
			n.consumedKids[i] = true
			out = append(out, c)
		}
	}
	return out
}

// FirstChildByLocal returns the first unconsumed child with the given
// local name, or nil.
func (n *Node) FirstChildByLocal(local string) *Node {
	kids := n.ChildrenByLocal(local)
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}

// Residual reports every attribute and child element of n that has
// not yet been consumed, for the UnsupportedSchema residual-node
// assertion (§4.D, §9).
func (n *Node) Residual() string {
	var parts []string
	for i, a := range n.Attrs {
		if n.consumedAttrs == nil || !n.consumedAttrs[i] {
			parts = append(parts, "@"+a.Name.Local)
		}
	}
	for i, c := range n.Children {
		if n.consumedKids == nil || !n.consumedKids[i] {
			parts = append(parts, "<"+c.Name.Local+">")
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ")
}

// IsFullyConsumed reports whether every attribute and child has been
// consumed.
func (n *Node) IsFullyConsumed() bool { return n.Residual() == "" }
