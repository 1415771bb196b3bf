package xsdnorm

import (
	"fmt"
	"sort"

	"github.com/kratylos/xsdnorm/internal/doctree"
)

// validator walks a parsed document tree top-down against a committed
// Registry, producing the normalized value tree described in §4.G. A
// top-down descent is used rather than the bottom-up per-element
// callback order the source implementation drives its SAX parser
// with: the two orders produce the same final structure for a
// strictly nested document tree, and top-down lets each frame resolve
// its own element's type before recursing instead of threading
// partial results back up through callback state.
type validator struct {
	reg          *Registry
	outputWithNS bool
}

// charContentKey is the output object key holding a simpleContent
// element's coerced character content alongside its attributes,
// matching the "#text" convention the retrieval pack's other XML
// normalizers use for character data (§4.G step 5: "an object with
// attributes plus charkey").
const charContentKey = "#text"

// normalize validates root against the global element declaration
// matching root's own qualified name and returns the normalized value
// tree (§4.G).
func normalize(reg *Registry, root *doctree.Node, outputWithNS bool) (interface{}, error) {
	v := &validator{reg: reg, outputWithNS: outputWithNS}
	rootQName := QName{URI: root.Name.Space, Local: root.Name.Local}
	path := v.outputKey(rootQName)
	_, elemEntry, err := resolveElement(reg, rootQName)
	if err != nil {
		return nil, attachPath(err, "/"+path)
	}
	val, err := v.normalizeNode(root, elemEntry.Type, "/"+path)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{path: val}, nil
}

// outputKey renders a QName as an output object key, qualifying it
// with its bound prefix when outputWithNS is set and the name carries
// a namespace (§6 Options.OutputWithNamespace).
func (v *validator) outputKey(q QName) string {
	if q.URI == "" {
		return q.Local
	}
	if !v.outputWithNS {
		return q.Local
	}
	if prefix, ok := v.reg.Namespaces.Prefix(q.URI); ok && prefix != "" {
		return prefix + ":" + q.Local
	}
	return q.Local
}

// normalizeNode validates and normalizes one element already known to
// be declared with the given type QName, returning its native value.
func (v *validator) normalizeNode(n *doctree.Node, typeQName QName, path string) (interface{}, error) {
	parsers, err := resolveToParse(v.reg, typeQName)
	if err != nil {
		return nil, attachPath(err, path)
	}

	complexEntries, complexErr := resolveType(v.reg, typeQName)
	hasComplex := complexErr == nil && len(complexEntries) > 0 && !(typeQName.URI == "" && isBuiltinType(typeQName.Local))

	if hasComplex {
		if len(parsers) > 0 {
			// simpleContent/complexContent whose base chain bottoms
			// out at a parseable simple type: attributes plus coerced
			// character content, no children (§3, §4.G step 5).
			return v.normalizeSimpleContent(n, typeQName, parsers, path)
		}
		return v.normalizeComplex(n, complexEntries, typeQName, path)
	}

	// Simple/leaf type: attributes are never allowed, children
	// are never allowed; only character content is coerced.
	if len(n.Attrs) > 0 {
		for _, a := range n.Attrs {
			if doctree.IsNamespaceDecl(a) || doctree.IsXSI(a) {
				continue
			}
			return nil, newValidationError(path, CodeUnexpectedAttribute,
				"leaf element does not accept attribute "+a.Name.Local)
		}
	}
	if len(n.Children) > 0 {
		return nil, newValidationError(path, CodeUnexpectedChildren,
			"leaf element does not accept children")
	}
	if len(parsers) == 0 {
		return n.Text, nil
	}
	val, err := v.tryParse(parsers, n.Text)
	if err != nil {
		return nil, attachPath(err, path)
	}
	return val, nil
}

// normalizeSimpleContent handles a complex type whose base chain
// resolves to one or more simple parsers (a simpleContent/
// complexContent extension or restriction of a built-in or other
// simple type, §3). Attributes validate exactly as they do for an
// ordinary complex type; children are not permitted; the character
// content is coerced in place and, when attributes are also present,
// carried under charContentKey instead of replacing the whole value
// (§4.G step 5: "an object with attributes plus charkey -> parse only
// charkey in place").
func (v *validator) normalizeSimpleContent(n *doctree.Node, typeQName QName, parsers []ValueParser, path string) (interface{}, error) {
	if len(n.Children) > 0 {
		return nil, newValidationError(path, CodeUnexpectedChildren,
			"simple-content element does not accept children")
	}

	out := make(map[string]interface{})
	if err := v.normalizeAttributes(n, typeQName, path, out); err != nil {
		return nil, err
	}

	val, err := v.tryParse(parsers, n.Text)
	if err != nil {
		return nil, attachPath(err, path)
	}

	if len(out) == 0 {
		return val, nil
	}
	out[charContentKey] = val
	return out, nil
}

// tryParse attempts each parser in order, returning the first success.
// On an all-branches-failure (the union case) the LAST parser's error
// is surfaced, and the i-th attempt always invokes the i-th parser —
// deliberately not the source implementation's bug of always retrying
// parsers[0] (§4.A, §8 property 6). Each attempt is pure: a failed
// trial must not have mutated anything callers observe, which holds
// here because ValueParser only reads raw and returns a fresh value.
func (v *validator) tryParse(parsers []ValueParser, raw string) (interface{}, error) {
	var lastErr error
	for _, p := range parsers {
		val, err := p(raw)
		if err == nil {
			return val, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// normalizeComplex validates n's children against the content model
// obtained by merging every entry of resolveType's list
// (mergeComplexEntries), validates its attributes via
// normalizeAttributes, and assembles the resulting object. The entries
// are merged once; they are not tried one at a time.
func (v *validator) normalizeComplex(n *doctree.Node, entries []*ComplexTypeEntry, typeQName QName, path string) (interface{}, error) {
	entry := mergeComplexEntries(entries)

	out := make(map[string]interface{})

	if err := v.normalizeAttributes(n, typeQName, path, out); err != nil {
		return nil, err
	}

	if entry.AnyChildren {
		return v.normalizeAnyChildren(n, entry, path, out)
	}

	used := make(map[int]bool)
	for _, childQName := range entry.ChildOrder {
		spec := entry.Children[childQName]
		matches := matchingChildren(n, childQName, used)
		if len(matches) == 0 {
			continue
		}
		resolvedQName, elemEntry, isArray, childType, err := v.resolveChildSpec(childQName, spec)
		if err != nil {
			return nil, attachPath(err, path)
		}
		_ = resolvedQName
		_ = elemEntry

		if !isArray && len(matches) > 1 {
			return nil, newValidationError(path, CodeUnexpectedChildren,
				fmt.Sprintf("element %s is not declared repeatable but occurs %d times", childQName.String(), len(matches)))
		}

		key := v.outputKey(childQName)
		childPath := path + "/" + key

		if isArray {
			vals := make([]interface{}, 0, len(matches))
			for _, m := range matches {
				val, err := v.normalizeNode(m, childType, childPath)
				if err != nil {
					return nil, err
				}
				vals = append(vals, val)
			}
			out[key] = vals
		} else {
			val, err := v.normalizeNode(matches[0], childType, childPath)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
	}

	// Any element left over that was not consumed by a declared child
	// spec is an UnexpectedChildren violation (closed content model).
	for i, c := range n.Children {
		if used[i] {
			continue
		}
		cq := QName{URI: c.Name.Space, Local: c.Name.Local}
		return nil, newValidationError(path, CodeUnexpectedChildren,
			"unexpected child "+cq.String(), childOrderStrings(entry)...)
	}

	return out, nil
}

// normalizeAnyChildren handles a content model whose only child rule
// is a wildcard: every child element must resolve against some global
// element declaration (any namespace, any name). A child group is an
// array when the wildcard's own arity says so; otherwise it must occur
// exactly once and is collapsed to its single value (§9 corrected <any>
// arity rule, already applied at compile time into AnyIsArray).
func (v *validator) normalizeAnyChildren(n *doctree.Node, entry *ComplexTypeEntry, path string, out map[string]interface{}) (interface{}, error) {
	groups := make(map[string][]interface{})
	order := make([]string, 0)

	for _, c := range n.Children {
		cq := QName{URI: c.Name.Space, Local: c.Name.Local}
		_, elemEntry, err := resolveElement(v.reg, cq)
		if err != nil {
			return nil, attachPath(err, path)
		}
		key := v.outputKey(cq)
		childPath := path + "/" + key
		val, err := v.normalizeNode(c, elemEntry.Type, childPath)
		if err != nil {
			return nil, err
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], val)
	}

	for _, key := range order {
		vals := groups[key]
		if entry.AnyIsArray {
			out[key] = vals
		} else if len(vals) > 1 {
			return nil, newValidationError(path, CodeUnexpectedChildren,
				fmt.Sprintf("element %s is not declared repeatable but occurs %d times", key, len(vals)))
		} else {
			out[key] = vals[0]
		}
	}
	return out, nil
}

// resolveChildSpec resolves a ChildSpec to its effective (isArray,
// element type) pair, chasing a ref through the global elements map
// when needed.
func (v *validator) resolveChildSpec(childQName QName, spec ChildSpec) (QName, *ElementEntry, bool, QName, error) {
	if spec.isRef() {
		resolved, entry, err := resolveElement(v.reg, spec.Ref)
		if err != nil {
			return QName{}, nil, false, QName{}, err
		}
		isArray := entry.IsArray != nil && *entry.IsArray
		if entry.IsArray == nil && entry.IsArrayDefault != nil {
			isArray = *entry.IsArrayDefault
		}
		return resolved, entry, isArray, entry.Type, nil
	}
	return childQName, nil, spec.resolvedIsArray(), spec.Type, nil
}

// normalizeAttributes validates n's attributes against the declared
// attribute set reachable via resolveToAttributes(typeQName) — the
// deepest non-empty attributes map on the base chain (§4.H) — dropping
// namespace declarations and xsi:* wiring attributes unconditionally,
// and coercing every remaining attribute's value through its declared
// parser (§4.G step 4, §8 invariant 2).
func (v *validator) normalizeAttributes(n *doctree.Node, typeQName QName, path string, out map[string]interface{}) error {
	declared, err := resolveToAttributes(v.reg, typeQName)
	if err != nil {
		return attachPath(err, path)
	}

	for _, a := range n.Attrs {
		if doctree.IsNamespaceDecl(a) || doctree.IsXSI(a) {
			continue
		}
		aq := QName{URI: a.Name.Space, Local: a.Name.Local}
		spec, ok := declared[aq]
		if !ok {
			return newValidationError(path, CodeUnexpectedAttribute,
				"unexpected attribute "+aq.String(), declaredAttrStrings(declared)...)
		}
		attrTypeQName, err := resolveAttribute(v.reg, spec)
		if err != nil {
			return attachPath(err, path+"/@"+v.outputKey(aq))
		}
		parsers, err := resolveToParse(v.reg, attrTypeQName)
		if err != nil {
			return attachPath(err, path+"/@"+v.outputKey(aq))
		}
		key := "@" + v.outputKey(aq)
		if len(parsers) == 0 {
			out[key] = a.Value
			continue
		}
		val, err := v.tryParse(parsers, a.Value)
		if err != nil {
			return attachPath(err, path+"/@"+v.outputKey(aq))
		}
		out[key] = val
	}
	return nil
}

// matchingChildren returns every not-yet-claimed child of n whose
// QName equals want, marking their indices used.
func matchingChildren(n *doctree.Node, want QName, used map[int]bool) []*doctree.Node {
	var out []*doctree.Node
	for i, c := range n.Children {
		if used[i] {
			continue
		}
		if c.Name.Local == want.Local && c.Name.Space == want.URI {
			used[i] = true
			out = append(out, c)
		}
	}
	return out
}

// mergeComplexEntries flattens a base chain of complex-type entries
// (as returned by resolveType) into one effective content model: a
// child or attribute declared on a more-derived entry shadows one of
// the same QName on a base entry.
func mergeComplexEntries(entries []*ComplexTypeEntry) *ComplexTypeEntry {
	if len(entries) == 1 {
		return entries[0]
	}
	merged := &ComplexTypeEntry{
		Children:   make(map[QName]ChildSpec),
		Attributes: make(map[QName]AttrSpec),
	}
	// Walk base-to-derived (entries is derived-to-base), so later
	// writes from more-derived entries win.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.AnyChildren {
			merged.AnyChildren = true
			merged.AnyIsArray = e.AnyIsArray
		}
		for _, q := range e.ChildOrder {
			if _, exists := merged.Children[q]; !exists {
				merged.ChildOrder = append(merged.ChildOrder, q)
			}
			merged.Children[q] = e.Children[q]
		}
		for _, q := range e.AttrOrder {
			if _, exists := merged.Attributes[q]; !exists {
				merged.AttrOrder = append(merged.AttrOrder, q)
			}
			merged.Attributes[q] = e.Attributes[q]
		}
	}
	return merged
}

func childOrderStrings(entry *ComplexTypeEntry) []string {
	out := make([]string, len(entry.ChildOrder))
	for i, q := range entry.ChildOrder {
		out[i] = q.String()
	}
	return out
}

// declaredAttrStrings renders the attributes resolveToAttributes found
// as sorted strings for an UnexpectedAttribute error's detail list;
// the source map carries no inherent order.
func declaredAttrStrings(declared map[QName]AttrSpec) []string {
	out := make([]string, 0, len(declared))
	for q := range declared {
		out = append(out, q.String())
	}
	sort.Strings(out)
	return out
}
