package xsdnorm

import (
	"context"

	"github.com/kratylos/xsdnorm/httpfetch"
	"github.com/kratylos/xsdnorm/internal/doctree"
	"github.com/rs/zerolog"
)

// Options configures a call to ParseString (§6).
type Options struct {
	// DownloadSchemas, if true, lets the acquisition driver fetch
	// remote schemas named by xsi:schemaLocation hints that are not
	// already known. This leaks the document's namespace URIs (and
	// whatever hostnames they resolve to) over the network, so it
	// defaults to false.
	DownloadSchemas bool

	// OutputWithNamespace selects whether normalized object keys carry
	// their bound prefix ("ns:local") or are stripped to the bare
	// local name (the default).
	OutputWithNamespace bool
}

// Parser is the top-level entry point: a registry plus the schemas
// that have been committed to it so far (component E/F/G wired
// together, analogous to the teacher's top-level Schema/ParseXSD
// pairing but holding state across multiple AddSchema calls instead of
// compiling one document per call).
type Parser struct {
	reg     *Registry
	fetcher Fetcher
	log     zerolog.Logger
}

// New returns an empty Parser backed by an httpfetch.Client and a
// quiet (disabled) zerolog logger. Use NewWithLogger to capture the
// acquisition driver's structured log output.
func New() *Parser {
	return &Parser{reg: NewRegistry(), fetcher: httpfetch.New(), log: zerolog.Nop()}
}

// NewWithLogger returns an empty Parser that logs acquisition activity
// through the given zerolog.Logger.
func NewWithLogger(log zerolog.Logger) *Parser {
	return &Parser{reg: NewRegistry(), fetcher: httpfetch.New(), log: log}
}

// SetFetcher overrides the Fetcher used for DownloadAndAddSchema and
// for ParseString's DownloadSchemas path. Tests use this to substitute
// an in-memory fake.
func (p *Parser) SetFetcher(f Fetcher) { p.fetcher = f }

// AddSchema compiles a schema document's bytes under namespace and
// commits its declarations to the registry, returning every import or
// include it names, whether or not that schema is already known (§6).
// Re-adding a body already committed under namespace returns nothing.
func (p *Parser) AddSchema(namespace string, body []byte) (PendingImports, error) {
	a := newAcquirer(p.reg, p.fetcher, p.log)
	return a.compileBody(namespace, body)
}

// DownloadAndAddSchema fetches the schema document at url, then
// behaves as AddSchema on the result (§6, §5 suspension point).
func (p *Parser) DownloadAndAddSchema(ctx context.Context, namespace, url string) (PendingImports, error) {
	if p.reg.AlreadyDownloaded(namespace, url) {
		return nil, nil
	}
	body, status, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, newHttpError(namespace, url, status, err)
	}
	if status != 0 && (status < 200 || status >= 300) {
		return nil, newHttpError(namespace, url, status, nil)
	}
	p.reg.markDownloaded(namespace, url)
	return p.AddSchema(namespace, body)
}

// FindSchemas parses document and returns every (namespace -> url set)
// pair named by its xsi:schemaLocation hints, without committing
// anything (§6).
func (p *Parser) FindSchemas(document []byte) (PendingImports, error) {
	root, err := doctree.Parse(document)
	if err != nil {
		return nil, wrapSchemaError(CodeInvalidSchema, err, "malformed document")
	}
	hints, err := findSchemaLocationHints(root)
	if err != nil {
		return nil, err
	}
	return hints, nil
}

// KnownSchemas returns a copy-on-read snapshot of every schema body
// committed so far, keyed by namespace (§6, §SUPPLEMENTED FEATURES).
func (p *Parser) KnownSchemas() map[string][][]byte {
	return p.reg.KnownSchemas()
}

// ParseString validates and normalizes document against whatever
// schemas are already known (and, if opts.DownloadSchemas is set, any
// additional ones its xsi:schemaLocation hints point to), returning
// the normalized value tree (§4.G, §6).
func (p *Parser) ParseString(ctx context.Context, document []byte, opts Options) (interface{}, error) {
	root, err := doctree.Parse(document)
	if err != nil {
		return nil, wrapSchemaError(CodeInvalidSchema, err, "malformed document")
	}

	hints, err := findSchemaLocationHints(root)
	if err != nil {
		return nil, err
	}

	if len(hints) > 0 {
		if opts.DownloadSchemas {
			a := newAcquirer(p.reg, p.fetcher, p.log)
			if err := a.populateSchemas(ctx, hints); err != nil {
				return nil, err
			}
		} else if missing := missingNamespaces(p.reg, hints); len(missing) > 0 {
			return nil, newSchemaError(CodeMissingSchema,
				"schema for namespace %q is not known and downloadSchemas is disabled", missing[0])
		}
	}

	rootQName := QName{URI: root.Name.Space, Local: root.Name.Local}
	if _, ok := p.reg.Elements[rootQName]; !ok {
		if rootQName.URI != "" {
			if _, hasNS := p.reg.Namespaces.Prefix(rootQName.URI); !hasNS {
				return nil, newValidationError("/"+rootQName.Local, CodeUnknownNamespace,
					"namespace "+rootQName.URI+" has no committed schema")
			}
		}
		return nil, newValidationError("/"+rootQName.Local, CodeUnknownElement,
			"no global element declaration for "+rootQName.String())
	}

	return normalize(p.reg, root, opts.OutputWithNamespace)
}
