package xsdnorm

// ChildSpec describes one allowed child of a complex type (§3). It is
// either a by-reference pointer to a global element, or an inline
// element with an explicit type.
type ChildSpec struct {
	Ref            QName // set when this child is "ref"-based
	Type           QName // set when this child carries an explicit inline type
	IsArray        *bool // explicit cardinality, nil when unset
	IsArrayDefault *bool // inherited default for a ref lacking its own IsArray
}

func (c ChildSpec) isRef() bool { return !c.Ref.IsZero() }

// resolvedIsArray reports the effective array-ness of this child spec
// once ref defaults have been applied (§3: "An unresolved isArray on a
// ref inherits isArrayDefault at resolution time... default is not an
// array").
func (c ChildSpec) resolvedIsArray() bool {
	if c.IsArray != nil {
		return *c.IsArray
	}
	if c.IsArrayDefault != nil {
		return *c.IsArrayDefault
	}
	return false
}

// AttrSpec describes one allowed attribute: either a direct type
// QName, or a ref chasing to a global attribute.
type AttrSpec struct {
	Ref  QName
	Type QName // valid when Ref.IsZero()
}

func (a AttrSpec) isRef() bool { return !a.Ref.IsZero() }

// SimpleTypeEntry is a simple type definition: a base type (or a list
// of bases for a union), carrying the base's parser when it is a
// restriction whose named base is a built-in.
type SimpleTypeEntry struct {
	Bases       []QName // one element for a plain restriction, >1 for a union
	BaseAbsent  bool    // true when base was "anySimpleType"
	Parse       ValueParser
	Restriction bool
}

// ComplexTypeEntry is a complex type definition (§3).
type ComplexTypeEntry struct {
	Children    map[QName]ChildSpec
	ChildOrder  []QName // insertion order, for deterministic output/iteration
	AnyChildren bool
	AnyIsArray  bool
	Attributes  map[QName]AttrSpec
	AttrOrder   []QName
	Base        QName
	BaseSet     bool
	Restriction bool
}

// typeKind distinguishes a registry entry's nature without resorting
// to type assertions everywhere.
type typeKind int

const (
	kindSimple typeKind = iota
	kindComplex
)

// TypeEntry is the registry's unit of storage for both simple and
// complex type definitions, keyed by QName (§3).
type TypeEntry struct {
	Kind    typeKind
	Simple  *SimpleTypeEntry
	Complex *ComplexTypeEntry
}

// ElementEntry is a global element declaration: same shape as
// ChildSpec (it may itself be a ref), plus the anonymous-type
// synthesis described in §3.
type ElementEntry struct {
	Ref            QName
	Type           QName
	IsArray        *bool
	IsArrayDefault *bool
}

func (e ElementEntry) isRef() bool { return !e.Ref.IsZero() }

// GlobalAttributeEntry is a global attribute declaration.
type GlobalAttributeEntry struct {
	Type QName
}

// Registry holds the process-scoped (per parser instance) collections
// populated by the compiler and consulted by the validator (component
// E): parsed-schema bodies, downloaded-schema URLs, the namespace
// prefix table, and the type/element/attribute maps.
type Registry struct {
	Namespaces *NamespaceTable

	Types      map[QName]*TypeEntry
	Elements   map[QName]*ElementEntry
	Attributes map[QName]*GlobalAttributeEntry

	// parsedSchemas tracks (namespace -> set of schema-body hashes)
	// already compiled, so re-adding the same body is a no-op (§3
	// invariants, §8 property 1).
	parsedSchemas *multiMap
	// schemaBodies retains the actual bytes per (namespace -> body
	// hash) pair, keyed for KnownSchemas() snapshots.
	schemaBodies map[string]map[string][]byte
	// downloaded tracks (namespace -> set of URLs) already fetched,
	// for acquisition cycle suppression (§4.F).
	downloaded *multiMap

	// anonCounter seeds synthesized anonymous-type names
	// ("<elem-qname>-type-<n>"); monotonic per registry so names never
	// collide within one parser instance's lifetime (§3).
	anonCounter int
}

// NewRegistry returns an empty, ready-to-compile registry.
func NewRegistry() *Registry {
	return &Registry{
		Namespaces:    NewNamespaceTable(),
		Types:         make(map[QName]*TypeEntry),
		Elements:      make(map[QName]*ElementEntry),
		Attributes:    make(map[QName]*GlobalAttributeEntry),
		parsedSchemas: newMultiMap(),
		schemaBodies:  make(map[string]map[string][]byte),
		downloaded:    newMultiMap(),
	}
}

// AlreadyParsed reports whether a schema body with this hash has
// already been committed under namespace.
func (r *Registry) AlreadyParsed(namespace, bodyHash string) bool {
	return r.parsedSchemas.Has(namespace, bodyHash)
}

// markParsed records (namespace, bodyHash) as committed and retains
// the body bytes for KnownSchemas().
func (r *Registry) markParsed(namespace, bodyHash string, body []byte) {
	r.parsedSchemas.Add(namespace, bodyHash)
	if r.schemaBodies[namespace] == nil {
		r.schemaBodies[namespace] = make(map[string][]byte)
	}
	r.schemaBodies[namespace][bodyHash] = body
}

// AlreadyDownloaded reports whether (namespace, url) has already been
// fetched successfully.
func (r *Registry) AlreadyDownloaded(namespace, url string) bool {
	return r.downloaded.Has(namespace, url)
}

func (r *Registry) markDownloaded(namespace, url string) {
	r.downloaded.Add(namespace, url)
}

// KnownSchemas returns a snapshot of namespace -> set of known schema
// bodies (§6 API surface, §SUPPLEMENTED FEATURES: copy-on-read so
// callers cannot mutate live registry state).
func (r *Registry) KnownSchemas() map[string][][]byte {
	out := make(map[string][][]byte, len(r.schemaBodies))
	for ns, bodies := range r.schemaBodies {
		list := make([][]byte, 0, len(bodies))
		for _, b := range bodies {
			cp := make([]byte, len(b))
			copy(cp, b)
			list = append(list, cp)
		}
		out[ns] = list
	}
	return out
}
