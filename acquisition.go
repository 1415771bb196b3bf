package xsdnorm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/kratylos/xsdnorm/internal/doctree"
	"github.com/kratylos/xsdnorm/internal/xmltree"
	"github.com/rs/zerolog"
)

// Fetcher retrieves the bytes of a schema document named by url. The
// default implementation is httpfetch.Client; tests substitute an
// in-memory fake (component F, §4.F).
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body []byte, status int, err error)
}

// acquirer drives schema closure: given one or more freshly compiled
// schemas' pending imports/includes, it downloads every offered
// (namespace, URL) pair that has not been downloaded before,
// recursively compiling each newly fetched document until nothing is
// left pending (§4.F). A namespace already committed by other means
// (for example AddSchema) is still fetched when its URL has not been
// downloaded; an identical body is then not compiled again. It mirrors the teacher's own processImportsAndIncludesWithTracker
// visited-set recursion, generalized to an explicit worklist instead
// of call-stack recursion so the cycle-suppression state (download set,
// parsed set) lives on the shared Registry rather than a fresh map per
// call.
type acquirer struct {
	reg     *Registry
	fetcher Fetcher
	log     zerolog.Logger
}

func newAcquirer(reg *Registry, fetcher Fetcher, log zerolog.Logger) *acquirer {
	return &acquirer{reg: reg, fetcher: fetcher, log: log}
}

type pendingEntry struct {
	namespace string
	url       string
}

// populateSchemas performs the breadth-first download-and-compile
// closure starting from an initial pending set. Cycle suppression
// relies on two registry-level sets: (namespace, url) for what has
// already been downloaded, and (namespace, bodyHash) for what has
// already been compiled — a schema reachable via two different URLs
// that happen to serve byte-identical content is compiled only once.
// Two different URLs offered for the same namespace within one
// closure is a MismatchedSchemaLocation, tracked via resolvedURL.
func (a *acquirer) populateSchemas(ctx context.Context, initial PendingImports) error {
	var worklist []pendingEntry
	resolvedURL := make(map[string]string)

	enqueue := func(ns, url string) error {
		if existing, ok := resolvedURL[ns]; ok && existing != url {
			return newSchemaError(CodeMismatchedSchemaLocation,
				"namespace %q resolves to both %q and %q within this closure", ns, existing, url)
		}
		resolvedURL[ns] = url
		worklist = append(worklist, pendingEntry{namespace: ns, url: url})
		return nil
	}

	for ns, urls := range initial {
		for _, u := range urls {
			if err := enqueue(ns, u); err != nil {
				return err
			}
		}
	}

	for len(worklist) > 0 {
		entry := worklist[0]
		worklist = worklist[1:]

		if a.reg.AlreadyDownloaded(entry.namespace, entry.url) {
			a.log.Debug().Str("namespace", entry.namespace).Str("url", entry.url).Msg("schema already downloaded, skipping")
			continue
		}

		body, status, err := a.fetcher.Fetch(ctx, entry.url)
		if err != nil {
			return newHttpError(entry.namespace, entry.url, status, err)
		}
		if status != 0 && (status < 200 || status >= 300) {
			return newHttpError(entry.namespace, entry.url, status, nil)
		}
		a.reg.markDownloaded(entry.namespace, entry.url)

		pending, err := a.compileBody(entry.namespace, body)
		if err != nil {
			return err
		}
		a.log.Info().Str("namespace", entry.namespace).Str("url", entry.url).Msg("compiled downloaded schema")

		for ns, urls := range pending {
			for _, u := range urls {
				if err := enqueue(ns, u); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// compileBody parses and compiles one schema document's bytes under
// callerNamespace, returning its own pending imports/includes. If an
// identical body has already been compiled under this namespace, the
// call is a no-op that returns no further pending work (§3 invariant,
// §8 property 1: adding the same schema twice changes nothing).
func (a *acquirer) compileBody(callerNamespace string, body []byte) (PendingImports, error) {
	hash := bodyHash(body)
	if a.reg.AlreadyParsed(callerNamespace, hash) {
		return nil, nil
	}

	root, err := xmltree.Parse(body)
	if err != nil {
		return nil, wrapSchemaError(CodeInvalidSchema, err, "malformed schema document")
	}

	c := newCompiler(a.reg)
	pending, err := c.CompileSchema(root, callerNamespace)
	if err != nil {
		return nil, err
	}
	a.reg.markParsed(callerNamespace, hash, body)
	return pending, nil
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// missingNamespaces reports which namespaces named by hints the
// registry has no committed schema for yet, used when automatic
// downloading is disabled and acquisition must fail fast instead
// (§4.F step 2).
func missingNamespaces(reg *Registry, hints PendingImports) []string {
	var missing []string
	for ns := range hints {
		if len(reg.schemaBodies[ns]) == 0 {
			missing = append(missing, ns)
		}
	}
	return missing
}

// findSchemaLocationHints walks a parsed document collecting every
// xsi:schemaLocation attribute (a whitespace-separated list of
// alternating namespace/URL pairs), the discovery half of component F
// (§4.F: "xsi:schemaLocation hint discovery"). An attribute with an
// odd number of tokens is rejected outright rather than silently
// dropping the dangling one (§8 boundary behavior).
func findSchemaLocationHints(root *doctree.Node) (PendingImports, error) {
	out := make(PendingImports)
	var walk func(n *doctree.Node) error
	walk = func(n *doctree.Node) error {
		for _, a := range n.Attrs {
			if a.Name.Local != "schemaLocation" {
				continue
			}
			if a.Name.Space != "" && !strings.Contains(a.Name.Space, "XMLSchema-instance") {
				continue
			}
			fields := strings.Fields(a.Value)
			if len(fields)%2 != 0 {
				return newSchemaError(CodeInvalidSchema,
					"xsi:schemaLocation has an odd number of tokens: %q", a.Value)
			}
			for i := 0; i+1 < len(fields); i += 2 {
				out[fields[i]] = append(out[fields[i]], fields[i+1])
			}
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
