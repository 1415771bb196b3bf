package xsdnorm

import "strings"

// xsNamespace is the XML Schema namespace. Its prefix is stripped
// during compilation (§3) so built-in type names are stored bare.
const xsNamespace = "http://www.w3.org/2001/XMLSchema"

// xsiNamespace is the XML Schema Instance namespace, used for
// xsi:schemaLocation and xsi:type/xsi:nil wiring attributes.
const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// xmlNamespace is pre-seeded into every namespace-prefix table (§3).
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// QName is a qualified name: a namespace URI paired with a local
// name. The zero-value URI means "no namespace" (built-in types and
// unqualified locals).
type QName struct {
	URI   string
	Local string
}

// String renders the canonical "<uri>|<local>" form, or the bare
// local name when there is no namespace.
func (q QName) String() string {
	if q.URI == "" {
		return q.Local
	}
	return q.URI + "|" + q.Local
}

// IsZero reports whether q is the empty QName.
func (q QName) IsZero() bool { return q.URI == "" && q.Local == "" }

// splitPrefixed splits "prefix:local" into its two parts; a name with
// no colon returns an empty prefix.
func splitPrefixed(name string) (prefix, local string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// NamespaceTable is a mapping from namespace URI to a single bound
// prefix (§3). Each URI binds to exactly one prefix across the life
// of the registry; rebinding an already-known URI to a different
// prefix is a NamespaceConflict.
type NamespaceTable struct {
	uriToPrefix map[string]string
	prefixToURI map[string]string
}

// NewNamespaceTable returns a table pre-seeded with the standard
// xml: binding.
func NewNamespaceTable() *NamespaceTable {
	t := &NamespaceTable{
		uriToPrefix: make(map[string]string),
		prefixToURI: make(map[string]string),
	}
	t.uriToPrefix[xmlNamespace] = "xml"
	t.prefixToURI["xml"] = xmlNamespace
	return t
}

// Bind records uri -> prefix. Binding the same (uri, prefix) pair
// again is a no-op. Binding a known uri to a different prefix, or a
// known prefix to a different uri, is a NamespaceConflict.
func (t *NamespaceTable) Bind(uri, prefix string) error {
	if uri == "" || prefix == "" {
		return nil
	}
	if existing, ok := t.uriToPrefix[uri]; ok {
		if existing != prefix {
			return newSchemaError(CodeNamespaceConflict,
				"namespace %q already bound to prefix %q, cannot rebind to %q", uri, existing, prefix)
		}
		return nil
	}
	if existingURI, ok := t.prefixToURI[prefix]; ok && existingURI != uri {
		return newSchemaError(CodeNamespaceConflict,
			"prefix %q already bound to namespace %q, cannot rebind to %q", prefix, existingURI, uri)
	}
	t.uriToPrefix[uri] = prefix
	t.prefixToURI[prefix] = uri
	return nil
}

// Prefix returns the prefix bound to uri, and whether a binding exists.
func (t *NamespaceTable) Prefix(uri string) (string, bool) {
	if uri == "" {
		return "", true
	}
	p, ok := t.uriToPrefix[uri]
	return p, ok
}

// URI returns the namespace bound to prefix, and whether a binding exists.
func (t *NamespaceTable) URI(prefix string) (string, bool) {
	if prefix == "" {
		return "", true
	}
	u, ok := t.prefixToURI[prefix]
	return u, ok
}

// QualifiedPath renders a slice of local names qualified with their
// bound prefixes, using "/" as the separator, for error messages.
func (t *NamespaceTable) QualifiedPath(names []QName) string {
	parts := make([]string, len(names))
	for i, n := range names {
		if n.URI == "" {
			parts[i] = n.Local
			continue
		}
		if prefix, ok := t.Prefix(n.URI); ok && prefix != "" {
			parts[i] = prefix + ":" + n.Local
		} else {
			parts[i] = n.Local
		}
	}
	return "/" + strings.Join(parts, "/")
}
