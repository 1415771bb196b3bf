package xsdnorm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kratylos/xsdnorm/internal/xmltree"
)

// facetLocalNames are the restriction facets the compiler reads and
// discards without enforcing (§1 non-goals: "the compiler records the
// base type chain; facet predicates are dropped").
var facetLocalNames = []string{
	"minLength", "maxLength", "pattern", "enumeration",
	"minInclusive", "maxInclusive", "minExclusive", "maxExclusive",
	"totalDigits", "fractionDigits", "whiteSpace", "length",
}

// compiler walks one schema document's parsed tree and populates the
// shared registry (component D, §4.D). A fresh compiler is used per
// AddSchema call, but all compilers for one parser instance share the
// same *Registry and its anonymous-type counter.
type compiler struct {
	reg      *Registry
	xsPrefix string
	haveXS   bool
}

func newCompiler(reg *Registry) *compiler {
	return &compiler{reg: reg}
}

// PendingImports maps a required namespace to the schemaLocation URLs
// that were offered for it (possibly more than one, across import and
// include declarations in a single schema).
type PendingImports map[string][]string

// CompileSchema consumes the parsed tree rooted at root (expected to
// be an xs:schema element) and returns the pending imports/includes
// discovered (§4.D steps 1-2).
func (c *compiler) CompileSchema(root *xmltree.Node, callerNamespace string) (PendingImports, error) {
	if root.Name.Local != "schema" {
		return nil, newSchemaError(CodeInvalidSchema, "root element is <%s>, expected <schema>", root.Name.Local)
	}

	if err := c.discoverPrefixes(root); err != nil {
		return nil, err
	}

	targetNS, _ := root.Attr("targetNamespace")
	if targetNS == "" {
		targetNS = callerNamespace
	}
	// Known-but-not-enforced schema-level attributes (§1 non-goals).
	root.Attr("elementFormDefault")
	root.Attr("attributeFormDefault")
	root.Attr("version")
	root.Attr("id")

	pending := newMultiMap()

	for _, inc := range root.ChildrenByLocal("include") {
		loc, hasLoc := inc.Attr("schemaLocation")
		discardAnnotation(inc)
		if !inc.IsFullyConsumed() {
			return nil, newSchemaError(CodeUnsupportedSchema, "unsupported <include> construct").withResidual(inc.Residual())
		}
		if hasLoc && loc != "" {
			pending.Add(targetNS, loc)
		}
	}

	for _, imp := range root.ChildrenByLocal("import") {
		ns, _ := imp.Attr("namespace")
		loc, hasLoc := imp.Attr("schemaLocation")
		discardAnnotation(imp)
		if !imp.IsFullyConsumed() {
			return nil, newSchemaError(CodeUnsupportedSchema, "unsupported <import> construct").withResidual(imp.Residual())
		}
		if hasLoc && loc != "" {
			pending.Add(ns, loc)
		}
	}

	for _, el := range root.ChildrenByLocal("element") {
		if err := c.compileGlobalElement(el, targetNS); err != nil {
			return nil, err
		}
	}

	for _, attr := range root.ChildrenByLocal("attribute") {
		if err := c.compileGlobalAttribute(attr, targetNS); err != nil {
			return nil, err
		}
	}

	for _, ct := range root.ChildrenByLocal("complexType") {
		name, _ := ct.Attr("name")
		if name == "" {
			return nil, newSchemaError(CodeInvalidSchema, "top-level <complexType> missing required name attribute")
		}
		if err := c.compileComplexTypeBody(ct, QName{targetNS, name}, targetNS); err != nil {
			return nil, err
		}
	}

	for _, st := range root.ChildrenByLocal("simpleType") {
		name, _ := st.Attr("name")
		if name == "" {
			return nil, newSchemaError(CodeInvalidSchema, "top-level <simpleType> missing required name attribute")
		}
		if err := c.compileSimpleTypeBody(st, QName{targetNS, name}, targetNS); err != nil {
			return nil, err
		}
	}

	discardAnnotation(root)

	if !root.IsFullyConsumed() {
		return nil, newSchemaError(CodeUnsupportedSchema, "schema document contains unrecognized constructs").
			withResidual(root.Residual())
	}

	return PendingImports(pending.Snapshot()), nil
}

// discoverPrefixes reads xmlns:* declarations off the schema root
// (§4.D step 1). It consumes every namespace-declaration attribute so
// they never show up as residual, and binds each URI to its prefix in
// the shared registry — except the XML Schema namespace itself, whose
// prefix is tracked locally and stripped from output.
func (c *compiler) discoverPrefixes(root *xmltree.Node) error {
	for i, a := range root.RawAttrs() {
		var prefix string
		switch {
		case a.Name.Space == "xmlns":
			prefix = a.Name.Local
		case a.Name.Local == "xmlns" && a.Name.Space == "":
			prefix = ""
		default:
			continue
		}
		root.ConsumeAttr(i)
		if a.Value == xsNamespace {
			c.xsPrefix = prefix
			c.haveXS = true
			continue
		}
		if err := c.reg.Namespaces.Bind(a.Value, prefixOrDefault(prefix)); err != nil {
			return err
		}
	}
	return nil
}

// prefixOrDefault gives the default namespace a stable synthetic
// prefix name so the namespace table's "one prefix per URI" invariant
// has something to bind to even for xmlns="..." declarations.
func prefixOrDefault(prefix string) string {
	if prefix == "" {
		return "_default"
	}
	return prefix
}

// qualify resolves a possibly-prefixed schema-local name to a QName,
// using this schema's discovered prefix bindings (component B). A name
// carrying this schema's XML Schema prefix resolves to a bare built-in
// name; when the default namespace is XML Schema that includes every
// unprefixed name. Otherwise an unprefixed name resolves against
// targetNS, matching the convention that global XSD components live in
// their schema's target namespace.
func (c *compiler) qualify(raw, targetNS string) QName {
	prefix, local := splitPrefixed(raw)
	if c.haveXS && prefix == c.xsPrefix {
		return QName{Local: local}
	}
	if prefix == "" {
		return QName{URI: targetNS, Local: local}
	}
	if uri, ok := c.reg.Namespaces.URI(prefixOrDefault(prefix)); ok {
		return QName{URI: uri, Local: local}
	}
	return QName{Local: local}
}

func (c *compiler) synthesizeTypeName(base QName) QName {
	c.reg.anonCounter++
	return QName{URI: base.URI, Local: fmt.Sprintf("%s-type-%d", base.Local, c.reg.anonCounter)}
}

// discardAnnotation consumes every <annotation> child without
// inspecting it (§4.D: "annotation ... ignored").
func discardAnnotation(n *xmltree.Node) {
	for _, ann := range n.ChildrenByLocal("annotation") {
		for _, doc := range ann.ChildrenByLocal("documentation") {
			_ = doc
		}
		for _, app := range ann.ChildrenByLocal("appinfo") {
			_ = app
		}
	}
}

func parseMaxOccurs(raw string, has bool) *bool {
	if !has {
		return nil
	}
	if raw == "unbounded" {
		v := true
		return &v
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	v := n > 1
	return &v
}

func (c *compiler) compileGlobalElement(el *xmltree.Node, targetNS string) error {
	defer discardAnnotation(el)

	if ref, hasRef := el.Attr("ref"); hasRef {
		qref := c.qualify(ref, targetNS)
		entry := &ElementEntry{Ref: qref}
		maxStr, hasMax := el.Attr("maxOccurs")
		entry.IsArray = parseMaxOccurs(maxStr, hasMax)
		el.Attr("minOccurs")
		// Global element is stored keyed by... a ref-only top-level
		// element declaration is unusual; key it by the ref target so
		// lookups by that name still succeed.
		c.reg.Elements[qref] = entry
		return c.checkConsumed(el, "element")
	}

	name, hasName := el.Attr("name")
	if !hasName || name == "" {
		return newSchemaError(CodeInvalidSchema, "top-level <element> missing required name/ref attribute")
	}
	qname := QName{targetNS, name}
	entry := &ElementEntry{}

	if typeAttr, hasType := el.Attr("type"); hasType {
		entry.Type = c.qualify(typeAttr, targetNS)
	} else if inlineCT := el.FirstChildByLocal("complexType"); inlineCT != nil {
		synth := c.synthesizeTypeName(qname)
		if err := c.compileComplexTypeBody(inlineCT, synth, targetNS); err != nil {
			return err
		}
		entry.Type = synth
	} else if inlineST := el.FirstChildByLocal("simpleType"); inlineST != nil {
		synth := c.synthesizeTypeName(qname)
		if err := c.compileSimpleTypeBody(inlineST, synth, targetNS); err != nil {
			return err
		}
		entry.Type = synth
	} else {
		return newSchemaError(CodeUnsupportedSchema, "element %q has neither @type nor an inline type", name).
			withResidual(el.Residual())
	}

	maxStr, hasMax := el.Attr("maxOccurs")
	entry.IsArray = parseMaxOccurs(maxStr, hasMax)
	el.Attr("minOccurs")

	c.reg.Elements[qname] = entry
	return c.checkConsumed(el, "element "+name)
}

func (c *compiler) compileGlobalAttribute(node *xmltree.Node, targetNS string) error {
	defer discardAnnotation(node)

	if _, hasRef := node.Attr("ref"); hasRef {
		return c.checkConsumed(node, "attribute")
	}

	name, hasName := node.Attr("name")
	if !hasName || name == "" {
		return newSchemaError(CodeInvalidSchema, "top-level <attribute> missing required name attribute")
	}
	qname := QName{targetNS, name}

	var typ QName
	if typeAttr, hasType := node.Attr("type"); hasType {
		typ = c.qualify(typeAttr, targetNS)
	} else if inlineST := node.FirstChildByLocal("simpleType"); inlineST != nil {
		synth := c.synthesizeTypeName(qname)
		if err := c.compileSimpleTypeBody(inlineST, synth, targetNS); err != nil {
			return err
		}
		typ = synth
	} else {
		typ = QName{Local: "string"}
	}
	node.Attr("default")
	node.Attr("fixed")

	c.reg.Attributes[qname] = &GlobalAttributeEntry{Type: typ}
	return c.checkConsumed(node, "attribute "+name)
}

func (c *compiler) checkConsumed(n *xmltree.Node, what string) error {
	if n.IsFullyConsumed() {
		return nil
	}
	return newSchemaError(CodeUnsupportedSchema, "unsupported construct in %s", what).withResidual(n.Residual())
}

// compileComplexTypeBody compiles a <complexType> body (named or
// synthesized-anonymous) into a ComplexTypeEntry registered under
// qname (§4.D step 5).
func (c *compiler) compileComplexTypeBody(node *xmltree.Node, qname QName, targetNS string) error {
	entry := &ComplexTypeEntry{
		Children:   make(map[QName]ChildSpec),
		Attributes: make(map[QName]AttrSpec),
	}
	node.Attr("mixed")
	node.Attr("abstract") // left unconsumed would be a non-goal (abstract types); we tolerate the attribute itself but do not implement abstract semantics

	if sc := node.FirstChildByLocal("simpleContent"); sc != nil {
		if err := c.compileContentExtension(sc, entry, targetNS, true); err != nil {
			return err
		}
	} else if cc := node.FirstChildByLocal("complexContent"); cc != nil {
		if err := c.compileContentExtension(cc, entry, targetNS, false); err != nil {
			return err
		}
	} else {
		if seq := node.FirstChildByLocal("sequence"); seq != nil {
			if err := c.compileSequence(seq, entry, targetNS); err != nil {
				return err
			}
		}
		if ch := node.FirstChildByLocal("choice"); ch != nil {
			if err := c.compileChoiceAsChildren(ch, entry, targetNS, nil); err != nil {
				return err
			}
		}
		for _, a := range node.ChildrenByLocal("attribute") {
			if err := c.compileAttributeUse(a, entry, targetNS); err != nil {
				return err
			}
		}
	}

	discardAnnotation(node)

	if entry.AnyChildren && len(entry.Children) > 0 {
		return newSchemaError(CodeInvalidSchema, "type %s: anyChildren and children are mutually exclusive", qname)
	}

	c.reg.Types[qname] = &TypeEntry{Kind: kindComplex, Complex: entry}
	return c.checkConsumed(node, "complexType "+qname.Local)
}

func (c *compiler) compileContentExtension(container *xmltree.Node, entry *ComplexTypeEntry, targetNS string, simpleContent bool) error {
	var body *xmltree.Node
	if restr := container.FirstChildByLocal("restriction"); restr != nil {
		entry.Restriction = true
		body = restr
	} else if ext := container.FirstChildByLocal("extension"); ext != nil {
		body = ext
	} else {
		return newSchemaError(CodeUnsupportedSchema, "simpleContent/complexContent requires restriction or extension")
	}

	baseAttr, _ := body.Attr("base")
	baseQ := c.qualify(baseAttr, targetNS)
	if baseQ.Local != "anyType" {
		entry.Base = baseQ
		entry.BaseSet = true
	}

	for _, a := range body.ChildrenByLocal("attribute") {
		if err := c.compileAttributeUse(a, entry, targetNS); err != nil {
			return err
		}
	}

	if !simpleContent {
		if seq := body.FirstChildByLocal("sequence"); seq != nil {
			if err := c.compileSequence(seq, entry, targetNS); err != nil {
				return err
			}
		}
		if ch := body.FirstChildByLocal("choice"); ch != nil {
			if err := c.compileChoiceAsChildren(ch, entry, targetNS, nil); err != nil {
				return err
			}
		}
	} else {
		// simpleContent bodies may carry facet-like restriction
		// children when restricting a simple base; discard them.
		for _, f := range facetLocalNames {
			body.ChildrenByLocal(f)
		}
	}

	discardAnnotation(body)
	if !body.IsFullyConsumed() {
		return newSchemaError(CodeUnsupportedSchema, "unsupported construct in simpleContent/complexContent body").withResidual(body.Residual())
	}
	discardAnnotation(container)
	if !container.IsFullyConsumed() {
		return newSchemaError(CodeUnsupportedSchema, "unsupported construct in simpleContent/complexContent").withResidual(container.Residual())
	}
	return nil
}

func (c *compiler) compileSequence(seq *xmltree.Node, entry *ComplexTypeEntry, targetNS string) error {
	maxStr, hasMax := seq.Attr("maxOccurs")
	seq.Attr("minOccurs")
	arrayDefault := parseMaxOccurs(maxStr, hasMax)

	for _, el := range seq.ChildrenByLocal("element") {
		if err := c.compileChildElement(el, entry, targetNS, arrayDefault); err != nil {
			return err
		}
	}
	if ch := seq.FirstChildByLocal("choice"); ch != nil {
		if err := c.compileChoiceAsChildren(ch, entry, targetNS, arrayDefault); err != nil {
			return err
		}
	}
	if any := seq.FirstChildByLocal("any"); any != nil {
		if err := c.compileAny(any, entry, arrayDefault); err != nil {
			return err
		}
	}
	discardAnnotation(seq)
	if !seq.IsFullyConsumed() {
		return newSchemaError(CodeUnsupportedSchema, "unsupported construct in <sequence>").withResidual(seq.Residual())
	}
	return nil
}

func (c *compiler) compileChoiceAsChildren(choice *xmltree.Node, entry *ComplexTypeEntry, targetNS string, parentDefault *bool) error {
	maxStr, hasMax := choice.Attr("maxOccurs")
	choice.Attr("minOccurs")
	localDefault := parseMaxOccurs(maxStr, hasMax)
	if localDefault == nil {
		localDefault = parentDefault
	}
	for _, el := range choice.ChildrenByLocal("element") {
		if err := c.compileChildElement(el, entry, targetNS, localDefault); err != nil {
			return err
		}
	}
	discardAnnotation(choice)
	if !choice.IsFullyConsumed() {
		return newSchemaError(CodeUnsupportedSchema, "unsupported construct in <choice>").withResidual(choice.Residual())
	}
	return nil
}

// compileAny normalizes the XSD 1.1 <any> arity oddity flagged in §9:
// the wildcard's own maxOccurs wins; absence inherits the enclosing
// sequence/choice default.
func (c *compiler) compileAny(any *xmltree.Node, entry *ComplexTypeEntry, containerDefault *bool) error {
	entry.AnyChildren = true
	maxStr, hasMax := any.Attr("maxOccurs")
	any.Attr("minOccurs")
	any.Attr("namespace")
	any.Attr("processContents")
	if b := parseMaxOccurs(maxStr, hasMax); b != nil {
		entry.AnyIsArray = *b
	} else if containerDefault != nil {
		entry.AnyIsArray = *containerDefault
	}
	discardAnnotation(any)
	if !any.IsFullyConsumed() {
		return newSchemaError(CodeUnsupportedSchema, "unsupported construct in <any>").withResidual(any.Residual())
	}
	return nil
}

func (c *compiler) compileChildElement(el *xmltree.Node, entry *ComplexTypeEntry, targetNS string, arrayDefault *bool) error {
	defer discardAnnotation(el)
	el.Attr("minOccurs")

	var key QName
	var spec ChildSpec

	if ref, hasRef := el.Attr("ref"); hasRef {
		qref := c.qualify(ref, targetNS)
		spec.Ref = qref
		key = qref
		maxStr, hasMax := el.Attr("maxOccurs")
		spec.IsArray = parseMaxOccurs(maxStr, hasMax)
		if spec.IsArray == nil {
			spec.IsArrayDefault = arrayDefault
		}
	} else {
		name, hasName := el.Attr("name")
		if !hasName || name == "" {
			return newSchemaError(CodeInvalidSchema, "<element> child missing name/ref")
		}
		key = QName{targetNS, name}
		if typeAttr, hasType := el.Attr("type"); hasType {
			spec.Type = c.qualify(typeAttr, targetNS)
		} else if inlineCT := el.FirstChildByLocal("complexType"); inlineCT != nil {
			synth := c.synthesizeTypeName(key)
			if err := c.compileComplexTypeBody(inlineCT, synth, targetNS); err != nil {
				return err
			}
			spec.Type = synth
		} else if inlineST := el.FirstChildByLocal("simpleType"); inlineST != nil {
			synth := c.synthesizeTypeName(key)
			if err := c.compileSimpleTypeBody(inlineST, synth, targetNS); err != nil {
				return err
			}
			spec.Type = synth
		} else {
			return newSchemaError(CodeUnsupportedSchema, "element %q has neither @type nor an inline type", name)
		}
		maxStr, hasMax := el.Attr("maxOccurs")
		if b := parseMaxOccurs(maxStr, hasMax); b != nil {
			spec.IsArray = b
		} else {
			spec.IsArrayDefault = arrayDefault
		}
	}

	entry.Children[key] = spec
	entry.ChildOrder = append(entry.ChildOrder, key)
	return c.checkConsumed(el, "element child "+key.Local)
}

func (c *compiler) compileAttributeUse(node *xmltree.Node, entry *ComplexTypeEntry, targetNS string) error {
	defer discardAnnotation(node)
	node.Attr("use")
	node.Attr("default")
	node.Attr("fixed")

	var key QName
	var spec AttrSpec

	if ref, hasRef := node.Attr("ref"); hasRef {
		qref := c.qualify(ref, targetNS)
		spec.Ref = qref
		key = qref
	} else {
		name, hasName := node.Attr("name")
		if !hasName || name == "" {
			return newSchemaError(CodeInvalidSchema, "<attribute> missing name/ref")
		}
		attrURI := ""
		if form, _ := node.Attr("form"); form == "qualified" {
			attrURI = targetNS
		}
		key = QName{attrURI, name}
		if typeAttr, hasType := node.Attr("type"); hasType {
			spec.Type = c.qualify(typeAttr, targetNS)
		} else if inlineST := node.FirstChildByLocal("simpleType"); inlineST != nil {
			synth := c.synthesizeTypeName(key)
			if err := c.compileSimpleTypeBody(inlineST, synth, targetNS); err != nil {
				return err
			}
			spec.Type = synth
		} else {
			spec.Type = QName{Local: "string"}
		}
	}

	entry.Attributes[key] = spec
	entry.AttrOrder = append(entry.AttrOrder, key)
	return c.checkConsumed(node, "attribute "+key.Local)
}

func (c *compiler) compileSimpleTypeBody(node *xmltree.Node, qname QName, targetNS string) error {
	entry := &SimpleTypeEntry{}

	if restr := node.FirstChildByLocal("restriction"); restr != nil {
		entry.Restriction = true
		baseAttr, hasBase := restr.Attr("base")
		if !hasBase || baseAttr == "" || c.isAnySimpleType(baseAttr, targetNS) {
			entry.BaseAbsent = true
		} else {
			baseQ := c.qualify(baseAttr, targetNS)
			entry.Bases = []QName{baseQ}
			if baseQ.URI == "" {
				if p, ok := builtinParser(baseQ.Local); ok {
					entry.Parse = p
				}
			}
		}
		for _, f := range facetLocalNames {
			restr.ChildrenByLocal(f)
		}
		if inlineST := restr.FirstChildByLocal("simpleType"); inlineST != nil {
			// restriction of an anonymous base: compile it and adopt
			// its base chain instead of a named base reference.
			synth := c.synthesizeTypeName(QName{qname.URI, qname.Local + "-base"})
			if err := c.compileSimpleTypeBody(inlineST, synth, targetNS); err != nil {
				return err
			}
			entry.Bases = []QName{synth}
			entry.BaseAbsent = false
		}
		discardAnnotation(restr)
		if !restr.IsFullyConsumed() {
			return newSchemaError(CodeUnsupportedSchema, "unsupported construct in <restriction>").withResidual(restr.Residual())
		}
	} else if union := node.FirstChildByLocal("union"); union != nil {
		if memberTypes, ok := union.Attr("memberTypes"); ok {
			for _, f := range strings.Fields(memberTypes) {
				entry.Bases = append(entry.Bases, c.qualify(f, targetNS))
			}
		}
		for i, inline := range union.ChildrenByLocal("simpleType") {
			synth := c.synthesizeTypeName(QName{qname.URI, fmt.Sprintf("%s-union-%d", qname.Local, i)})
			if err := c.compileSimpleTypeBody(inline, synth, targetNS); err != nil {
				return err
			}
			entry.Bases = append(entry.Bases, synth)
		}
		discardAnnotation(union)
		if !union.IsFullyConsumed() {
			return newSchemaError(CodeUnsupportedSchema, "unsupported construct in <union>").withResidual(union.Residual())
		}
	} else {
		return newSchemaError(CodeUnsupportedSchema, "simpleType %s has neither restriction nor union", qname)
	}

	c.reg.Types[qname] = &TypeEntry{Kind: kindSimple, Simple: entry}
	discardAnnotation(node)
	return c.checkConsumed(node, "simpleType "+qname.Local)
}

func (c *compiler) isAnySimpleType(raw, targetNS string) bool {
	q := c.qualify(raw, targetNS)
	return q.URI == "" && q.Local == "anySimpleType"
}

func (e *SchemaError) withResidual(r string) *SchemaError {
	e.Residual = r
	return e
}
