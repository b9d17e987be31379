// Package catalog implements the YAML catalog importer: a namespaced
// document of tagged entries (effects, primitives, words, overload
// sets, state snapshots) that drives the graph builder and object
// store the same way the CLI's individual `effect add`/`prim
// add`/`word add` commands do, in bulk.
//
// Grounded on original_source/src/yaml.rs's tag vocabulary and
// original_source/src/cli/commands/catalog.rs's per-namespace import
// order (effects and prims first, then guards, then overloads, then
// plain words, then snapshots), reimplemented against
// gopkg.in/yaml.v3's tagged yaml.Node instead of a hand-rolled
// recursive-descent parser.
package catalog

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/global"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/store"
	"github.com/marchdb/march/internal/types"
)

// Report lists every entry an Import call stored or updated, in import
// order, for CLI progress output.
type Report struct {
	Lines []string
}

func (r *Report) add(format string, args ...any) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}

// Importer holds the shared state an import pass threads across
// namespaces: the object store, the global store snapshot destination,
// and the per-prim effect masks gathered from `!prim { emask }` (never
// persisted in the canonical Prim form, only used here to seed the
// builder's token permission inference for the stack ops that invoke
// that prim).
type Importer struct {
	st      *store.Store
	globals *global.Store

	// masks remembers each imported prim's non-canonical effect mask by
	// its fully-qualified catalog name, so word stack ops referencing it
	// by name can recover the permission split without re-parsing YAML.
	masks map[string]types.EffectMask
}

// New returns an importer writing into st and globals.
func New(st *store.Store, globals *global.Store) *Importer {
	return &Importer{st: st, globals: globals, masks: make(map[string]types.EffectMask)}
}

// Import parses data as a catalog document and applies every entry.
func (im *Importer) Import(data []byte) (*Report, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	report := &Report{}

	namespaces := make([]string, 0, len(doc))
	for ns := range doc {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		if err := im.importNamespace(ns, doc[ns], report); err != nil {
			return report, fmt.Errorf("namespace %q: %w", ns, err)
		}
	}
	return report, nil
}

// importNamespace applies entries.add in original_source's fixed order:
// effects and prims (needed by later stack ops), then guard words, then
// overload sets, then plain words, then snapshots.
func (im *Importer) importNamespace(ns string, entries map[string]*yaml.Node, report *Report) error {
	symbols := make([]string, 0, len(entries))
	for sym := range entries {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var guardSyms, wordSyms, overloadSyms, snapshotSyms []string
	for _, sym := range symbols {
		switch entries[sym].Tag {
		case tagEffect:
			if err := im.importEffect(ns, sym, entries[sym], report); err != nil {
				return err
			}
		case tagPrim:
			if err := im.importPrim(ns, sym, entries[sym], report); err != nil {
				return err
			}
		case tagGuard:
			guardSyms = append(guardSyms, sym)
		case tagWord:
			wordSyms = append(wordSyms, sym)
		case tagOverloads:
			overloadSyms = append(overloadSyms, sym)
		case tagSnapshot:
			snapshotSyms = append(snapshotSyms, sym)
		default:
			return fmt.Errorf("%w: entry %q has unsupported tag %q", marcherr.ErrInvalidCanonicalForm, sym, entries[sym].Tag)
		}
	}
	for _, sym := range guardSyms {
		if err := im.importGuardWord(ns, sym, entries[sym], report); err != nil {
			return err
		}
	}
	for _, sym := range overloadSyms {
		if err := im.importOverloads(ns, sym, entries[sym], report); err != nil {
			return err
		}
	}
	for _, sym := range wordSyms {
		if err := im.importWord(ns, sym, entries[sym], report); err != nil {
			return err
		}
	}
	for _, sym := range snapshotSyms {
		if err := im.importSnapshot(ns, sym, entries[sym], report); err != nil {
			return err
		}
	}
	return nil
}

func fullName(ns, sym string) string { return ns + "/" + sym }

// nameAndBare registers c under both its fully-qualified name and, if
// unclaimed, its bare symbol — original_source/src/cli/commands/
// catalog.rs's "also register the short name if free" convenience.
func (im *Importer) nameAndBare(scope, ns, sym string, c cid.CID) error {
	full := fullName(ns, sym)
	if err := im.st.NamePut(scope, full, c); err != nil {
		return err
	}
	if _, ok, err := im.st.NameGet(scope, sym); err != nil {
		return err
	} else if !ok {
		if err := im.st.NamePut(scope, sym, c); err != nil {
			return err
		}
	}
	return nil
}

// importEffect stores a !effect entry. The domain bucket used by the
// builder's token pool defaults to the symbol itself (the common case:
// a namespace effect named "io" or "state" names its own domain) but
// may be overridden with an explicit `domain` field for effects whose
// catalog symbol differs from the domain category it gates.
func (im *Importer) importEffect(ns, sym string, n *yaml.Node, report *Report) error {
	full := fullName(ns, sym)
	domainStr, err := scalarField(n, "domain", sym)
	if err != nil {
		return err
	}
	domain := types.Domain(domainStr)
	doc, err := scalarField(n, "doc", "")
	if err != nil {
		return err
	}

	eff := object.Effect{Domain: domain, Symbol: full}
	data, err := eff.Encode()
	if err != nil {
		return err
	}
	c, _, err := im.st.Put("effect", data)
	if err != nil {
		return err
	}
	if doc != "" {
		if err := im.st.SetEffectDoc(c, doc); err != nil {
			return err
		}
	}
	if err := im.nameAndBare("effect", ns, sym, c); err != nil {
		return err
	}
	report.add("stored effect %q with cid %s", full, c)
	return nil
}
