package xsdnorm

// resolveType walks base chains starting at qname, flattening unions
// into a list of terminal complex types (component H). It fails
// UnknownType on a dangling reference.
func resolveType(reg *Registry, qname QName) ([]*ComplexTypeEntry, error) {
	var out []*ComplexTypeEntry
	seen := make(map[QName]bool)

	var walk func(q QName) error
	walk = func(q QName) error {
		if seen[q] {
			return nil
		}
		seen[q] = true
		if q.URI == "" && isBuiltinType(q.Local) {
			// A base chain bottoming out at a built-in (e.g. a
			// simpleContent extension of xs:decimal) terminates the
			// walk without error; the complex entries collected so
			// far are what the caller wants (§3 simpleContent/
			// complexContent base chains).
			return nil
		}
		entry, ok := reg.Types[q]
		if !ok {
			return newValidationError("", CodeUnknownType, "unknown type "+q.String())
		}
		switch entry.Kind {
		case kindComplex:
			out = append(out, entry.Complex)
			if entry.Complex.BaseSet {
				return walk(entry.Complex.Base)
			}
			return nil
		case kindSimple:
			for _, base := range entry.Simple.Bases {
				if err := walk(base); err != nil {
					return err
				}
			}
			return nil
		}
		return nil
	}
	if err := walk(qname); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveElement walks ref chains in the global-elements map, tracking
// the most recently seen isArrayDefault. If the terminal element spec
// has no isArray of its own but a default is in scope, a copy carrying
// the synthesized default is returned; the registry entry itself is
// never mutated (component H).
func resolveElement(reg *Registry, qname QName) (QName, *ElementEntry, error) {
	seen := make(map[QName]bool)
	var arrayDefault *bool
	cur := qname

	for {
		if seen[cur] {
			return QName{}, nil, newValidationError("", CodeUnknownElement, "cyclic element reference at "+cur.String())
		}
		seen[cur] = true
		entry, ok := reg.Elements[cur]
		if !ok {
			return QName{}, nil, newValidationError("", CodeUnknownElement, "unknown element "+cur.String())
		}
		if entry.IsArrayDefault != nil {
			arrayDefault = entry.IsArrayDefault
		}
		if entry.isRef() {
			if entry.IsArray != nil {
				arrayDefault = entry.IsArray
			}
			cur = entry.Ref
			continue
		}
		if entry.IsArray == nil && arrayDefault != nil {
			cp := *entry
			d := *arrayDefault
			cp.IsArrayDefault = &d
			return cur, &cp, nil
		}
		return cur, entry, nil
	}
}

// resolveAttribute walks ref chains on a global attribute (or an
// inline AttrSpec) to a terminal type QName.
func resolveAttribute(reg *Registry, spec AttrSpec) (QName, error) {
	seen := make(map[QName]bool)
	if !spec.isRef() {
		return spec.Type, nil
	}
	cur := spec.Ref
	for {
		if seen[cur] {
			return QName{}, newValidationError("", CodeUnknownAttribute, "cyclic attribute reference at "+cur.String())
		}
		seen[cur] = true
		entry, ok := reg.Attributes[cur]
		if !ok {
			return QName{}, newValidationError("", CodeUnknownAttribute, "unknown attribute "+cur.String())
		}
		return entry.Type, nil
	}
}

// resolveToParse walks base chains from qname, collecting parsers
// along the way. The result may be empty (complex type with no simple
// base) or carry multiple entries for a union.
func resolveToParse(reg *Registry, qname QName) ([]ValueParser, error) {
	if qname.URI == "" {
		if p, ok := builtinParser(qname.Local); ok {
			return []ValueParser{p}, nil
		}
	}
	var out []ValueParser
	seen := make(map[QName]bool)

	var walk func(q QName) error
	walk = func(q QName) error {
		if seen[q] {
			return nil
		}
		seen[q] = true
		if q.URI == "" {
			if p, ok := builtinParser(q.Local); ok {
				out = append(out, p)
				return nil
			}
			if q.Local == "anySimpleType" || q.Local == "anyType" {
				return nil
			}
		}
		entry, ok := reg.Types[q]
		if !ok {
			return newValidationError("", CodeUnknownType, "unknown type "+q.String())
		}
		switch entry.Kind {
		case kindSimple:
			if entry.Simple.Parse != nil && len(entry.Simple.Bases) <= 1 {
				out = append(out, entry.Simple.Parse)
			}
			for _, base := range entry.Simple.Bases {
				if err := walk(base); err != nil {
					return err
				}
			}
			return nil
		case kindComplex:
			if entry.Complex.BaseSet {
				return walk(entry.Complex.Base)
			}
			return nil
		}
		return nil
	}
	if err := walk(qname); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveToAttributes returns the deepest non-empty attributes map
// reachable from qname's base chain, or an empty map if none declare
// any.
func resolveToAttributes(reg *Registry, qname QName) (map[QName]AttrSpec, error) {
	seen := make(map[QName]bool)

	var walk func(q QName) (map[QName]AttrSpec, error)
	walk = func(q QName) (map[QName]AttrSpec, error) {
		if seen[q] {
			return nil, nil
		}
		seen[q] = true
		entry, ok := reg.Types[q]
		if !ok {
			return nil, newValidationError("", CodeUnknownType, "unknown type "+q.String())
		}
		if entry.Kind != kindComplex {
			return nil, nil
		}
		if len(entry.Complex.Attributes) > 0 {
			return entry.Complex.Attributes, nil
		}
		if entry.Complex.BaseSet {
			return walk(entry.Complex.Base)
		}
		return nil, nil
	}

	attrs, err := walk(qname)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		return map[QName]AttrSpec{}, nil
	}
	return attrs, nil
}
